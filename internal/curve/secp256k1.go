package curve

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Secp256k1 is the second concrete Curve implementation, grounded on
// github.com/decred/dcrd/dcrec/secp256k1/v4 (pulled in by
// hsiuhsiu-cb-mpc-go-exp via github.com/btcsuite/btcd/btcec/v2). It exists
// to prove the Noise core and handshake patterns are generic over Curve
// rather than hard-coded to Curve25519, per spec.md §9's "Feature-gated
// primitives" design note. It is not the curve the reference message-size
// table (§6) was computed against.
var Secp256k1 Curve = secp256k1Impl{}

type secp256k1Impl struct{}

func (secp256k1Impl) Name() string       { return "secp256k1" }
func (secp256k1Impl) ScalarLen() int     { return 32 }
func (secp256k1Impl) CompressedLen() int { return 33 }
func (secp256k1Impl) CoordLen() int      { return 32 }

type kScalar struct{ s *secp256k1.ModNScalar }

func (s kScalar) Bytes() []byte {
	b := s.s.Bytes()
	return b[:]
}

type kPoint struct{ j secp256k1.JacobianPoint }

// DecodeScalar reduces buf modulo the group order; every 32-byte string
// therefore decodes to a valid scalar (the clamping convention for this
// curve is "reduce mod n" rather than Curve25519's bit-twiddling, but the
// invariant — infallible decode — is the same).
func (secp256k1Impl) DecodeScalar(buf []byte) (Scalar, error) {
	if len(buf) != 32 {
		return nil, fmt.Errorf("secp256k1: scalar must be 32 bytes, got %d", len(buf))
	}
	var s secp256k1.ModNScalar
	s.SetByteSlice(buf)
	return kScalar{&s}, nil
}

func (secp256k1Impl) ScalarAdd(a, b Scalar) Scalar {
	var out secp256k1.ModNScalar
	out.Add2(a.(kScalar).s, b.(kScalar).s)
	return kScalar{&out}
}

func (secp256k1Impl) ScalarSub(a, b Scalar) Scalar {
	var neg secp256k1.ModNScalar
	neg.Set(b.(kScalar).s).Negate()
	var out secp256k1.ModNScalar
	out.Add2(a.(kScalar).s, &neg)
	return kScalar{&out}
}

func (secp256k1Impl) ScalarMul(a, b Scalar) Scalar {
	var out secp256k1.ModNScalar
	out.Mul2(a.(kScalar).s, b.(kScalar).s)
	return kScalar{&out}
}

func (secp256k1Impl) ScalarInvert(a Scalar) Scalar {
	var out secp256k1.ModNScalar
	out.Set(a.(kScalar).s)
	out.InverseNonConst()
	return kScalar{&out}
}

func (secp256k1Impl) BasePoint() Point {
	one := new(secp256k1.ModNScalar).SetInt(1)
	var j secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(one, &j)
	j.ToAffine()
	return kPoint{j}
}

func (secp256k1Impl) ScalarBaseMult(s Scalar) Point {
	var j secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(s.(kScalar).s, &j)
	j.ToAffine()
	return kPoint{j}
}

func (secp256k1Impl) ScalarMult(s Scalar, p Point) Point {
	in := p.(kPoint).j
	var j secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(s.(kScalar).s, &in, &j)
	j.ToAffine()
	return kPoint{j}
}

func (secp256k1Impl) Add(p, q Point) Point {
	pj, qj := p.(kPoint).j, q.(kPoint).j
	var j secp256k1.JacobianPoint
	secp256k1.AddNonConst(&pj, &qj, &j)
	j.ToAffine()
	return kPoint{j}
}

// Compress encodes the point as 0x02/0x03 || x, the standard SEC1
// compressed form, matching secp256k1.PublicKey.SerializeCompressed.
func (secp256k1Impl) Compress(p Point) []byte {
	j := p.(kPoint).j
	pub := secp256k1.NewPublicKey(&j.X, &j.Y)
	return pub.SerializeCompressed()
}

func (secp256k1Impl) Decompress(buf []byte) (Point, error) {
	pub, err := secp256k1.ParsePubKey(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPoint, err)
	}
	var j secp256k1.JacobianPoint
	pub.AsJacobian(&j)
	return kPoint{j}, nil
}

// XCoordinate returns the point's affine x-coordinate, the encoding BIP-340
// style Schnorr schemes over secp256k1 use as the commitment value.
func (secp256k1Impl) XCoordinate(p Point) []byte {
	j := p.(kPoint).j
	x := j.X
	x.Normalize()
	b := x.Bytes()
	return b[:]
}
