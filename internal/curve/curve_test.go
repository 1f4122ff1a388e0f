package curve

import (
	"bytes"
	"testing"
)

func allCurves() map[string]Curve {
	return map[string]Curve{
		"curve25519": Curve25519,
		"secp256k1":  Secp256k1,
	}
}

func TestScalarBaseMultMatchesDH(t *testing.T) {
	for name, c := range allCurves() {
		t.Run(name, func(t *testing.T) {
			var aSeed, bSeed [32]byte
			for i := range aSeed {
				aSeed[i] = byte(i + 1)
			}
			for i := range bSeed {
				bSeed[i] = byte(i + 99)
			}

			a, err := c.DecodeScalar(aSeed[:])
			if err != nil {
				t.Fatalf("DecodeScalar(a) error = %v", err)
			}
			b, err := c.DecodeScalar(bSeed[:])
			if err != nil {
				t.Fatalf("DecodeScalar(b) error = %v", err)
			}

			aPub := c.ScalarBaseMult(a)
			bPub := c.ScalarBaseMult(b)

			shared1 := c.ScalarMult(a, bPub)
			shared2 := c.ScalarMult(b, aPub)

			if !bytes.Equal(c.Compress(shared1), c.Compress(shared2)) {
				t.Errorf("DH mismatch: %x != %x", c.Compress(shared1), c.Compress(shared2))
			}
		})
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	for name, c := range allCurves() {
		t.Run(name, func(t *testing.T) {
			var seed [32]byte
			for i := range seed {
				seed[i] = byte(i * 7)
			}
			s, err := c.DecodeScalar(seed[:])
			if err != nil {
				t.Fatalf("DecodeScalar() error = %v", err)
			}
			p := c.ScalarBaseMult(s)

			enc := c.Compress(p)
			if len(enc) != c.CompressedLen() {
				t.Fatalf("Compress() length = %d, want %d", len(enc), c.CompressedLen())
			}

			dec, err := c.Decompress(enc)
			if err != nil {
				t.Fatalf("Decompress() error = %v", err)
			}
			if !bytes.Equal(c.Compress(dec), enc) {
				t.Error("Decompress(Compress(p)) != p")
			}
		})
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	for name, c := range allCurves() {
		t.Run(name, func(t *testing.T) {
			garbage := bytes.Repeat([]byte{0xFF}, c.CompressedLen())
			if _, err := c.Decompress(garbage); err == nil {
				t.Error("expected Decompress to reject an all-0xFF encoding")
			}
		})
	}
}

func TestScalarArithmetic(t *testing.T) {
	for name, c := range allCurves() {
		t.Run(name, func(t *testing.T) {
			var aSeed, bSeed [32]byte
			for i := range aSeed {
				aSeed[i] = byte(i + 3)
			}
			for i := range bSeed {
				bSeed[i] = byte(i + 11)
			}
			a, _ := c.DecodeScalar(aSeed[:])
			b, _ := c.DecodeScalar(bSeed[:])

			sum := c.ScalarAdd(a, b)
			back := c.ScalarSub(sum, b)

			// (a + b) - b should reach the same point as a when base-multiplied,
			// exercising ScalarSub the way Schnorr verification does.
			if !bytes.Equal(c.Compress(c.ScalarBaseMult(back)), c.Compress(c.ScalarBaseMult(a))) {
				t.Error("ScalarSub(ScalarAdd(a, b), b) != a under base multiplication")
			}

			inv := c.ScalarInvert(a)
			// a * a^-1 multiplied against the base point should match G itself,
			// since a^-1 undoes a's scaling before the base multiplication.
			recovered := c.ScalarBaseMult(c.ScalarMul(a, inv))
			if !bytes.Equal(c.Compress(recovered), c.Compress(c.BasePoint())) {
				t.Error("ScalarMul(a, ScalarInvert(a)) does not act as identity")
			}
		})
	}
}

func TestXCoordinateLength(t *testing.T) {
	for name, c := range allCurves() {
		t.Run(name, func(t *testing.T) {
			var seed [32]byte
			s, _ := c.DecodeScalar(seed[:])
			p := c.ScalarBaseMult(s)
			x := c.XCoordinate(p)
			if len(x) != c.CoordLen() {
				t.Errorf("XCoordinate() length = %d, want %d", len(x), c.CoordLen())
			}
		})
	}
}
