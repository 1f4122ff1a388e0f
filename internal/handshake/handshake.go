// Package handshake implements the XK and XX Noise-style handshake
// patterns (spec.md §4.3, §4.4), each extended to mix a lattice KEM
// alongside the curve DH at every asymmetric step. Every pattern drives a
// noise.SymmetricState through a fixed sequence of mixes, encrypts and
// decrypts, and on completion splits into a pair of record-layer
// internal/cipher.Cipher — one per direction.
//
// Steps are split the way the teacher's internal/peer.Handshaker splits
// dialer/listener logic into separate functions per step: each step is its
// own Go type whose only exported methods advance to the next step, so a
// step cannot be skipped. The step values of one handshake share a single
// *noise.SymmetricState that each call mutates in place; a step called a
// second time is not detected and mixes into that shared state again.
package handshake

import (
	"errors"
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/noise"
)

// ProtocolName is mixed in as the Noise protocol name at the start of
// every handshake (spec.md §4.3: "both sides absorb the literal string
// 'vru'").
const ProtocolName = "vru"

// RecordAssociatedData is the associated data the datagram codec (C7)
// uses for every record it seals; defined here since it is part of this
// package's external interface contract (spec.md §6).
var RecordAssociatedData = []byte("vru")

var (
	// ErrMacMismatch is returned when a decrypt's authenticator fails.
	// Terminal for the handshake (spec.md §7.1).
	ErrMacMismatch = errors.New("handshake: mac mismatch")

	// ErrIdentityMismatch is returned when the peer's static public key
	// does not hash to the Identity the initiator anchored on
	// (spec.md §7.3).
	ErrIdentityMismatch = errors.New("handshake: peer identity mismatch")

	// ErrInvalidLength is returned when a wire message is not exactly
	// the expected fixed length (spec.md §7.4).
	ErrInvalidLength = errors.New("handshake: invalid message length")
)

// Config fixes the curve and KEM the handshake runs over. Both peers of a
// session must agree on the same Config out of band.
type Config struct {
	Curve curve.Curve
}

// Cipher is the pair of per-direction record ciphers a handshake produces,
// plus the handshake hash used for channel binding (spec.md §3's
// "Cipher" and §6's "32-byte handshake hash").
type Cipher struct {
	Send          *cipher.Cipher
	Receive       *cipher.Cipher
	HandshakeHash noise.Hash
}

// split turns a finished SymmetricState into a Cipher, swapping the two
// derived keys when swap is true (the responder's send/receive halves are
// the initiator's receive/send, per spec.md §4.3 step 5).
func split(state *noise.SymmetricState, swap bool, rotor cipher.Rotor, rotateInterval uint64) Cipher {
	keyA, keyB, ck := state.Split()
	if swap {
		keyA, keyB = keyB, keyA
	}
	return Cipher{
		Send:          cipher.New(keyA, [cipher.KeySize]byte(ck), rotor, rotateInterval),
		Receive:       cipher.New(keyB, [cipher.KeySize]byte(ck), rotor, rotateInterval),
		HandshakeHash: state.Hash(),
	}
}

// dh computes the compressed Diffie-Hellman output of a local scalar
// against a peer point, the value noise.SymmetricState.MixSharedSecret
// absorbs for every DH step.
func dh(c curve.Curve, scalar curve.Scalar, peer curve.Point) []byte {
	return c.Compress(c.ScalarMult(scalar, peer))
}

// ephemeralKeypair generates an ephemeral hybrid keypair from a 96-byte
// handshake seed using the same primitive as static identity keys
// (spec.md §6: "seed: 96 bytes ... per handshake (ephemeral curve+lattice
// generation)").
func ephemeralKeypair(c curve.Curve, seed [identity.SeedLen]byte) (identity.PublicKey, identity.SecretKey, error) {
	return identity.Generate(c, seed)
}

// checkLen is the runtime const-assertion spec.md §9 describes in place of
// type-level length arithmetic: every wire message has exactly one valid
// length, checked at the framing boundary.
func checkLen(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s expected %d bytes, got %d", ErrInvalidLength, name, want, got)
	}
	return nil
}
