package handshake

import (
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
	"github.com/coinstash/vru-mesh/internal/noise"
)

// XK implements spec.md §4.3: the initiator knows the responder's static
// public key ahead of time (out of band) and anchors the handshake on its
// Identity fingerprint, re-verifying the fingerprint once the responder's
// static key is transmitted on the wire in message 3.
//
// Each step is its own type; the only exported methods on a step type move
// the handshake forward and return the next step (or, on the final step,
// the completed Cipher), so a step cannot be skipped. All step values of
// one handshake share a single *noise.SymmetricState that every call
// mutates in place; calling a step's method a second time is not detected
// and mixes into that shared state again.

// XKInitiatorStart is the handshake's entry point on the initiator side.
type XKInitiatorStart struct {
	cfg         Config
	state       *noise.SymmetricState
	localStatic hybridKeypair
	peerStatic  identity.PublicKey
	peerID      identity.Identity
}

type hybridKeypair struct {
	pub identity.PublicKey
	sec identity.SecretKey
}

// NewXKInitiator begins an XK handshake. peerStatic is the responder's
// full static public key, known to the caller out of band; peerIdentity is
// the fingerprint the caller is trusting peerStatic against (normally
// peerStatic.Fingerprint(), but kept separate so callers that pinned a
// bare Identity string can pass it through unchanged).
func NewXKInitiator(cfg Config, localStatic identity.PublicKey, localSecret identity.SecretKey, peerStatic identity.PublicKey, peerIdentity identity.Identity) *XKInitiatorStart {
	state := noise.New(ProtocolName)
	state.MixHash(peerIdentity[:])
	return &XKInitiatorStart{
		cfg:         cfg,
		state:       state,
		localStatic: hybridKeypair{pub: localStatic, sec: localSecret},
		peerStatic:  peerStatic,
		peerID:      peerIdentity,
	}
}

// XKInitiatorSentM0 is the state after emitting message 0.
type XKInitiatorSentM0 struct {
	base  *XKInitiatorStart
	eph   hybridKeypair
	state *noise.SymmetricState
}

// Message0 samples an ephemeral hybrid keypair, mixes it and the DH against
// the peer's known static point into the transcript, and emits m0.
func (s *XKInitiatorStart) Message0(ephemeralSeed [identity.SeedLen]byte) ([]byte, *XKInitiatorSentM0, error) {
	eph, err := newHybridKeypair(s.cfg.Curve, ephemeralSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("xk initiator m0: %w", err)
	}

	s.state.MixHash(s.cfg.Curve.Compress(eph.pub.Point))
	s.state.MixHash(eph.pub.KEMKey.Bytes())

	s.state.MixSharedSecret(dh(s.cfg.Curve, eph.sec.Scalar, s.peerStatic.Point))

	tag, err := s.state.EncryptAndHash(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("xk initiator m0: %w", err)
	}

	msg := append(append(s.cfg.Curve.Compress(eph.pub.Point), eph.pub.KEMKey.Bytes()...), tag...)
	return msg, &XKInitiatorSentM0{base: s, eph: eph, state: s.state}, nil
}

// XKInitiatorRecvM1 is the state after consuming message 1.
type XKInitiatorRecvM1 struct {
	base      *XKInitiatorStart
	eph       hybridKeypair
	peerEph   curve.Point
	peerEphKEM kem.PublicKey
	state     *noise.SymmetricState
}

// ConsumeMessage1 parses and authenticates m1.
func (s *XKInitiatorSentM0) ConsumeMessage1(msg []byte) (*XKInitiatorRecvM1, error) {
	c := s.base.cfg.Curve
	want := c.CompressedLen() + kem.PublicKeyLen + kem.CiphertextLen + 16
	if err := checkLen("xk m1", len(msg), want); err != nil {
		return nil, err
	}

	off := 0
	eEBytes := msg[off : off+c.CompressedLen()]
	off += c.CompressedLen()
	eKBytes := msg[off : off+kem.PublicKeyLen]
	off += kem.PublicKeyLen
	ct := msg[off : off+kem.CiphertextLen]
	off += kem.CiphertextLen
	tag := msg[off:]

	peerEph, err := c.Decompress(eEBytes)
	if err != nil {
		return nil, fmt.Errorf("xk initiator consume m1: %w", err)
	}
	peerEphKEM, err := kem.DecodePublicKey(eKBytes)
	if err != nil {
		return nil, fmt.Errorf("xk initiator consume m1: %w", err)
	}

	s.state.MixHash(eEBytes)
	s.state.MixHash(eKBytes)

	s.state.MixSharedSecret(dh(c, s.eph.sec.Scalar, peerEph))

	var ctArr [kem.CiphertextLen]byte
	copy(ctArr[:], ct)
	ss := kem.Decapsulate(s.eph.sec.KEMSecret, ctArr)
	s.state.MixSharedSecret(ss[:])

	s.state.MixHash(ct)

	if _, err := s.state.DecryptAndHash(tag); err != nil {
		return nil, fmt.Errorf("xk initiator consume m1: %w: %v", ErrMacMismatch, err)
	}

	return &XKInitiatorRecvM1{base: s.base, eph: s.eph, peerEph: peerEph, peerEphKEM: peerEphKEM, state: s.state}, nil
}

// XKInitiatorSentM2 is the state after emitting message 2.
type XKInitiatorSentM2 struct {
	base  *XKInitiatorStart
	eph   hybridKeypair
	state *noise.SymmetricState
}

// Message2 encrypts the initiator's static key, encapsulates kemEncSeed
// against the responder's ephemeral KEM key, and emits m2.
func (s *XKInitiatorRecvM1) Message2(kemEncSeed [kem.EncapsulationSeedLen]byte) ([]byte, *XKInitiatorSentM2, error) {
	c := s.base.cfg.Curve
	staticBytes := append(c.Compress(s.base.localStatic.pub.Point), s.base.localStatic.pub.KEMKey.Bytes()...)
	ct1enc, err := s.state.EncryptAndHash(staticBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("xk initiator m2: %w", err)
	}

	s.state.MixSharedSecret(dh(c, s.base.localStatic.sec.Scalar, s.peerEph))

	ct, ss := kem.Encapsulate(kemEncSeed, s.peerEphKEM)

	ct2enc, err := s.state.EncryptAndHash(ct[:])
	if err != nil {
		return nil, nil, fmt.Errorf("xk initiator m2: %w", err)
	}
	s.state.MixSharedSecret(ss[:])

	tag, err := s.state.EncryptAndHash(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("xk initiator m2: %w", err)
	}

	msg := append(append(ct1enc, ct2enc...), tag...)
	return msg, &XKInitiatorSentM2{base: s.base, eph: s.eph, state: s.state}, nil
}

// XKInitiatorRecvM3 is the state after consuming message 3.
type XKInitiatorRecvM3 struct {
	base       *XKInitiatorStart
	peerStatic identity.PublicKey
	state      *noise.SymmetricState
}

// ConsumeMessage3 parses the responder's static key, verifies it hashes to
// the anchored Identity, and authenticates m3.
func (s *XKInitiatorSentM2) ConsumeMessage3(msg []byte) (*XKInitiatorRecvM3, error) {
	c := s.base.cfg.Curve
	staticLen := c.CompressedLen() + kem.PublicKeyLen
	ct3enc := msg[:staticLen+16]
	rest := msg[staticLen+16:]
	ct4enc := rest[:kem.CiphertextLen+16]
	tag := rest[kem.CiphertextLen+16:]

	staticPlain, err := s.state.DecryptAndHash(ct3enc)
	if err != nil {
		return nil, fmt.Errorf("xk initiator consume m3: %w: %v", ErrMacMismatch, err)
	}
	peerPoint, err := c.Decompress(staticPlain[:c.CompressedLen()])
	if err != nil {
		return nil, fmt.Errorf("xk initiator consume m3: %w", err)
	}
	peerKEMPub, err := kem.DecodePublicKey(staticPlain[c.CompressedLen():])
	if err != nil {
		return nil, fmt.Errorf("xk initiator consume m3: %w", err)
	}
	peerStatic := identity.PublicKey{Curve: c, Point: peerPoint, KEMKey: peerKEMPub}

	if peerStatic.Fingerprint() != s.base.peerID {
		return nil, ErrIdentityMismatch
	}

	s.state.MixSharedSecret(dh(c, s.eph.sec.Scalar, peerPoint))

	ctPlain, err := s.state.DecryptAndHash(ct4enc)
	if err != nil {
		return nil, fmt.Errorf("xk initiator consume m3: %w: %v", ErrMacMismatch, err)
	}
	var ctArr [kem.CiphertextLen]byte
	copy(ctArr[:], ctPlain)
	ss := kem.Decapsulate(s.base.localStatic.sec.KEMSecret, ctArr)
	s.state.MixSharedSecret(ss[:])

	if _, err := s.state.DecryptAndHash(tag); err != nil {
		return nil, fmt.Errorf("xk initiator consume m3: %w: %v", ErrMacMismatch, err)
	}

	return &XKInitiatorRecvM3{base: s.base, peerStatic: peerStatic, state: s.state}, nil
}

// Message4 encapsulates kemEncSeed against the responder's static KEM
// key, seals the application payload, and finishes the handshake into a
// Cipher.
func (s *XKInitiatorRecvM3) Message4(payload []byte, rotor cipher.Rotor, rotateInterval uint64, kemEncSeed [kem.EncapsulationSeedLen]byte) ([]byte, Cipher, error) {
	ct, ss := kem.Encapsulate(kemEncSeed, s.peerStatic.KEMKey)

	ctEnc, err := s.state.EncryptAndHash(ct[:])
	if err != nil {
		return nil, Cipher{}, fmt.Errorf("xk initiator m4: %w", err)
	}
	s.state.MixSharedSecret(ss[:])
	payloadEnc, err := s.state.EncryptAndHash(payload)
	if err != nil {
		return nil, Cipher{}, fmt.Errorf("xk initiator m4: %w", err)
	}

	msg := append(ctEnc, payloadEnc...)
	return msg, split(s.state, false, rotor, rotateInterval), nil
}

func newHybridKeypair(c curve.Curve, seed [identity.SeedLen]byte) (hybridKeypair, error) {
	pub, sec, err := ephemeralKeypair(c, seed)
	if err != nil {
		return hybridKeypair{}, err
	}
	return hybridKeypair{pub: pub, sec: sec}, nil
}
