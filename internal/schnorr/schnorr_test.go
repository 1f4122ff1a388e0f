package schnorr

import (
	"testing"

	"github.com/coinstash/vru-mesh/internal/curve"
)

func allCurves() map[string]curve.Curve {
	return map[string]curve.Curve{
		"curve25519": curve.Curve25519,
		"secp256k1":  curve.Secp256k1,
	}
}

func scalarOf(c curve.Curve, v byte) curve.Scalar {
	buf := make([]byte, c.ScalarLen())
	for i := range buf {
		buf[i] = v + byte(i)
	}
	s, err := c.DecodeScalar(buf)
	if err != nil {
		panic(err)
	}
	return s
}

func TestSignVerifyRoundTrip(t *testing.T) {
	for name, c := range allCurves() {
		t.Run(name, func(t *testing.T) {
			sk := scalarOf(c, 0x11)
			pk := c.ScalarBaseMult(sk)
			msg := []byte("vru control message")
			seed := make([]byte, c.ScalarLen())
			for i := range seed {
				seed[i] = byte(0x40 + i)
			}

			sig, err := Sign(c, sk, msg, seed)
			if err != nil {
				t.Fatalf("Sign() error = %v", err)
			}
			if err := Verify(c, pk, msg, sig); err != nil {
				t.Errorf("Verify() error = %v", err)
			}
		})
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	c := curve.Curve25519
	sk := scalarOf(c, 0x22)
	pk := c.ScalarBaseMult(sk)
	seed := make([]byte, c.ScalarLen())
	for i := range seed {
		seed[i] = byte(0x50 + i)
	}

	sig, err := Sign(c, sk, []byte("message one"), seed)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := Verify(c, pk, []byte("message two"), sig); err == nil {
		t.Error("expected verification failure for tampered message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	c := curve.Curve25519
	sk := scalarOf(c, 0x33)
	wrongSk := scalarOf(c, 0x44)
	wrongPk := c.ScalarBaseMult(wrongSk)
	msg := []byte("message")
	seed := make([]byte, c.ScalarLen())
	for i := range seed {
		seed[i] = byte(0x60 + i)
	}

	sig, err := Sign(c, sk, msg, seed)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := Verify(c, wrongPk, msg, sig); err == nil {
		t.Error("expected verification failure for wrong key")
	}
}

func TestSignatureEncodeDecodeRoundTrip(t *testing.T) {
	c := curve.Curve25519
	sk := scalarOf(c, 0x55)
	seed := make([]byte, c.ScalarLen())
	for i := range seed {
		seed[i] = byte(0x70 + i)
	}

	sig, err := Sign(c, sk, []byte("encode me"), seed)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	decoded, err := Decode(c, sig.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(decoded.Bytes()) != string(sig.Bytes()) {
		t.Error("decoded signature does not round-trip")
	}
}
