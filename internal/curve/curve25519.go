package curve

import (
	"fmt"

	"filippo.io/edwards25519"
)

// Curve25519 is the reference curve for this module: the Edwards form of
// Curve25519, using filippo.io/edwards25519 for group arithmetic the same
// way FiloSottile-age's x25519Kyber768 recipient composes a classical
// point with a Kyber768 key. Unlike golang.org/x/crypto/curve25519's
// Montgomery-ladder X25519 function, edwards25519.Point exposes the full
// group (Add, arbitrary-point ScalarMult, canonical compression) that
// Schnorr and the handshake's point bookkeeping need.
var Curve25519 Curve = curve25519Impl{}

type curve25519Impl struct{}

func (curve25519Impl) Name() string        { return "curve25519" }
func (curve25519Impl) ScalarLen() int      { return 32 }
func (curve25519Impl) CompressedLen() int  { return 32 }
func (curve25519Impl) CoordLen() int       { return 32 }

type edScalar struct{ s *edwards25519.Scalar }

func (s edScalar) Bytes() []byte { return s.s.Bytes() }

type edPoint struct{ p *edwards25519.Point }

// DecodeScalar clamps buf per the Curve25519 convention (RFC 7748 §5): the
// three low bits and the top two bits of the 32-byte string are cleared or
// set so that every byte string decodes to a valid scalar in the prime-
// order subgroup's cofactor-cleared range. This is the "decoding is
// infallible only under clamping" rule from spec.md §3.
func (curve25519Impl) DecodeScalar(buf []byte) (Scalar, error) {
	if len(buf) != 32 {
		return nil, fmt.Errorf("curve25519: scalar must be 32 bytes, got %d", len(buf))
	}
	clamped := make([]byte, 32)
	copy(clamped, buf)
	clamped[0] &= 248
	clamped[31] &= 127
	clamped[31] |= 64

	s, err := edwards25519.NewScalar().SetBytesWithClamping(clamped)
	if err != nil {
		// SetBytesWithClamping only fails on wrong-length input, which we
		// already checked; unreachable in practice.
		return nil, fmt.Errorf("curve25519: clamp scalar: %w", err)
	}
	return edScalar{s}, nil
}

func (curve25519Impl) ScalarAdd(a, b Scalar) Scalar {
	return edScalar{edwards25519.NewScalar().Add(a.(edScalar).s, b.(edScalar).s)}
}

func (curve25519Impl) ScalarSub(a, b Scalar) Scalar {
	return edScalar{edwards25519.NewScalar().Subtract(a.(edScalar).s, b.(edScalar).s)}
}

func (curve25519Impl) ScalarMul(a, b Scalar) Scalar {
	return edScalar{edwards25519.NewScalar().Multiply(a.(edScalar).s, b.(edScalar).s)}
}

func (curve25519Impl) ScalarInvert(a Scalar) Scalar {
	return edScalar{edwards25519.NewScalar().Invert(a.(edScalar).s)}
}

func (curve25519Impl) BasePoint() Point {
	return edPoint{edwards25519.NewGeneratorPoint()}
}

func (curve25519Impl) ScalarBaseMult(s Scalar) Point {
	return edPoint{edwards25519.NewIdentityPoint().ScalarBaseMult(s.(edScalar).s)}
}

func (curve25519Impl) ScalarMult(s Scalar, p Point) Point {
	return edPoint{edwards25519.NewIdentityPoint().ScalarMult(s.(edScalar).s, p.(edPoint).p)}
}

func (curve25519Impl) Add(p, q Point) Point {
	return edPoint{edwards25519.NewIdentityPoint().Add(p.(edPoint).p, q.(edPoint).p)}
}

func (curve25519Impl) Compress(p Point) []byte {
	return p.(edPoint).p.Bytes()
}

// Decompress rejects any encoding that is not the canonical image of a
// point on the curve (invariant 4, spec.md §3); edwards25519.Point.SetBytes
// already enforces canonicity.
func (curve25519Impl) Decompress(buf []byte) (Point, error) {
	p, err := edwards25519.NewIdentityPoint().SetBytes(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}
	return edPoint{p}, nil
}

// XCoordinate projects an Edwards point to its Montgomery-form u-coordinate,
// the same projection X25519 uses internally and the one Schnorr's
// commitment encoding relies on.
func (curve25519Impl) XCoordinate(p Point) []byte {
	return p.(edPoint).p.BytesMontgomery()
}
