// Package curve defines the elliptic-curve primitive the Noise core and
// Schnorr signatures are built over, and provides two concrete
// implementations so that neither the core nor the handshake patterns ever
// hard-code a specific curve (spec.md §9, "Feature-gated primitives").
//
// A Scalar is an element of the curve's scalar field; a Point is an element
// of its prime-order subgroup. Decoding a Scalar from bytes is infallible
// under clamping (the high/low bits of the input are forced into the
// subgroup's valid range, so every 32-byte string decodes to *some* valid
// scalar). Decoding a Point is fallible: compressed encodings that aren't
// the image of a canonical point are rejected with ErrBadPoint.
package curve

import "errors"

// ErrBadPoint is returned when a compressed point encoding does not
// decompress to a point on the curve's prime-order subgroup.
var ErrBadPoint = errors.New("curve: invalid point encoding")

// Scalar is an opaque field element. Curve implementations type-assert
// Scalar values they receive back to their own concrete type; passing a
// Scalar produced by one Curve implementation to another is a programmer
// error and will panic.
type Scalar interface {
	// Bytes returns the curve's canonical encoding of the scalar:
	// little-endian for Curve25519, big-endian for secp256k1.
	Bytes() []byte
}

// Point is an opaque group element in compressed form once serialized via
// a Curve's Compress method.
type Point interface{}

// Curve is the trait family every concrete curve implements. It covers
// scalar field arithmetic (needed by Schnorr, §4.8), point group operations
// (needed by the Noise DH step, §4.2/§4.3), and the byte lengths a wire
// layout built on this curve needs (§4.1).
type Curve interface {
	// Name identifies the curve for logging and configuration.
	Name() string

	// ScalarLen, CompressedLen and CoordLen are this curve's named byte
	// lengths (spec.md §3: scalar = 32, compressed = 32, coord = 32 for
	// the reference Curve25519 parameterization; a secp256k1-class curve
	// reports its own, generally different, lengths).
	ScalarLen() int
	CompressedLen() int
	CoordLen() int

	// DecodeScalar clamps buf into a valid scalar. Infallible: clamping
	// guarantees every byte string of ScalarLen decodes to something.
	DecodeScalar(buf []byte) (Scalar, error)

	// ScalarAdd, ScalarSub, ScalarMul and ScalarInvert are the scalar
	// field operations. ScalarSub is required by Schnorr sign (§4.8) and
	// is not present in every revision of the source (spec.md §9).
	ScalarAdd(a, b Scalar) Scalar
	ScalarSub(a, b Scalar) Scalar
	ScalarMul(a, b Scalar) Scalar
	ScalarInvert(a Scalar) Scalar

	// BasePoint returns the canonical generator.
	BasePoint() Point

	// ScalarBaseMult computes s*G.
	ScalarBaseMult(s Scalar) Point

	// ScalarMult computes s*P; this is the Diffie-Hellman primitive.
	ScalarMult(s Scalar, p Point) Point

	// Add computes the group sum of two points.
	Add(p, q Point) Point

	// Compress serializes a point to its canonical compressed encoding.
	Compress(p Point) []byte

	// Decompress parses a compressed encoding, failing with ErrBadPoint if
	// it is not the image of a canonical point (invariant 4, spec.md §3).
	Decompress(buf []byte) (Point, error)

	// XCoordinate projects a point to its x-coordinate, used as the
	// Schnorr commitment encoding (§4.8).
	XCoordinate(p Point) []byte
}
