// Package schnorr implements a generic-curve Schnorr signature (spec.md
// §4.8), generalizing the teacher's internal/crypto Ed25519 command
// signatures over the curve.Curve interface so the same signature scheme
// runs over either configured curve.
package schnorr

import (
	"errors"
	"fmt"

	"github.com/coinstash/vru-mesh/internal/curve"
	"golang.org/x/crypto/sha3"
)

// ErrVerifyFailed is returned when a signature does not verify.
var ErrVerifyFailed = errors.New("schnorr: signature verification failed")

// Signature is a curve Schnorr signature: the commitment's x-coordinate
// followed by the response scalar.
type Signature struct {
	Rx []byte
	S  curve.Scalar
}

// Bytes encodes a Signature as r_x (coord-len) ‖ s (scalar-len), spec.md
// §4.8's "Signature encoding".
func (sig Signature) Bytes() []byte {
	return append(append([]byte{}, sig.Rx...), sig.S.Bytes()...)
}

// Decode parses a Bytes()-encoded signature for curve c.
func Decode(c curve.Curve, buf []byte) (Signature, error) {
	want := c.CoordLen() + c.ScalarLen()
	if len(buf) != want {
		return Signature{}, fmt.Errorf("schnorr: signature must be %d bytes, got %d", want, len(buf))
	}
	rx := append([]byte{}, buf[:c.CoordLen()]...)
	s, err := c.DecodeScalar(buf[c.CoordLen():])
	if err != nil {
		return Signature{}, fmt.Errorf("schnorr: decode response scalar: %w", err)
	}
	return Signature{Rx: rx, S: s}, nil
}

// Sign produces a Schnorr signature over msg under sk, using seed as the
// per-signature nonce k. The caller must supply fresh randomness for seed
// on every call — nonce reuse across two different messages leaks sk.
func Sign(c curve.Curve, sk curve.Scalar, msg []byte, seed []byte) (Signature, error) {
	k, err := c.DecodeScalar(seed)
	if err != nil {
		return Signature{}, fmt.Errorf("schnorr: decode nonce seed: %w", err)
	}
	q := c.ScalarBaseMult(k)
	rx := c.XCoordinate(q)

	h, err := challengeScalar(c, rx, msg)
	if err != nil {
		return Signature{}, err
	}

	s := c.ScalarSub(k, c.ScalarMul(sk, h))
	return Signature{Rx: rx, S: s}, nil
}

// Verify checks a Schnorr signature against pk and msg.
func Verify(c curve.Curve, pk curve.Point, msg []byte, sig Signature) error {
	h, err := challengeScalar(c, sig.Rx, msg)
	if err != nil {
		return err
	}

	q := c.Add(c.ScalarMult(h, pk), c.ScalarBaseMult(sig.S))
	if !bytesEqual(c.XCoordinate(q), sig.Rx) {
		return ErrVerifyFailed
	}
	return nil
}

// challengeScalar computes D(r_x ‖ msg) and decodes it as a scalar, where D
// is SHA3-256 (spec.md §4.8 leaves the hash family unspecified beyond
// "output size equals the scalar size").
func challengeScalar(c curve.Curve, rx, msg []byte) (curve.Scalar, error) {
	sum := sha3.Sum256(append(append([]byte{}, rx...), msg...))
	h, err := c.DecodeScalar(sum[:c.ScalarLen()])
	if err != nil {
		return nil, fmt.Errorf("schnorr: decode challenge scalar: %w", err)
	}
	return h, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
