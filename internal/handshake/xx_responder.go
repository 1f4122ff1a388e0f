package handshake

import (
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
	"github.com/coinstash/vru-mesh/internal/noise"
)

// XXResponderStart is the handshake's entry point on the responder side of
// an XX (mutual discovery) handshake.
type XXResponderStart struct {
	cfg          Config
	localStatic  hybridKeypair
	peerIDAnchor identity.Identity
}

// NewXXResponder begins an XX handshake as the responding side.
func NewXXResponder(cfg Config, localStatic identity.PublicKey, localSecret identity.SecretKey, peerIDAnchor identity.Identity) *XXResponderStart {
	return &XXResponderStart{
		cfg:          cfg,
		localStatic:  hybridKeypair{pub: localStatic, sec: localSecret},
		peerIDAnchor: peerIDAnchor,
	}
}

// XXResponderRecvM1 is the state after consuming message 1.
type XXResponderRecvM1 struct {
	base       *XXResponderStart
	peerEph    curve.Point
	peerEphKEM kem.PublicKey
	state      *noise.SymmetricState
}

// ConsumeMessage1 parses the initiator's bare ephemeral hybrid key.
func (s *XXResponderStart) ConsumeMessage1(msg []byte) (*XXResponderRecvM1, error) {
	c := s.cfg.Curve
	want := c.CompressedLen() + kem.PublicKeyLen
	if err := checkLen("xx m1", len(msg), want); err != nil {
		return nil, err
	}

	state := noise.New(ProtocolName + "XX")
	eEBytes := msg[:c.CompressedLen()]
	eKBytes := msg[c.CompressedLen():]

	peerEph, err := c.Decompress(eEBytes)
	if err != nil {
		return nil, fmt.Errorf("xx responder consume m1: %w", err)
	}
	peerEphKEM, err := kem.DecodePublicKey(eKBytes)
	if err != nil {
		return nil, fmt.Errorf("xx responder consume m1: %w", err)
	}

	state.MixHash(eEBytes)
	state.MixHash(eKBytes)

	return &XXResponderRecvM1{base: s, peerEph: peerEph, peerEphKEM: peerEphKEM, state: state}, nil
}

// XXResponderSentM2 is the state after emitting message 2.
type XXResponderSentM2 struct {
	base    *XXResponderStart
	eph     hybridKeypair
	peerEph curve.Point
	state   *noise.SymmetricState
}

// Message2 emits "eKct, [P], e, ee, s, es". kemEncSeed seeds the
// encapsulation against the peer's ephemeral KEM key.
func (s *XXResponderRecvM1) Message2(ephemeralSeed [identity.SeedLen]byte, p []byte, kemEncSeed [kem.EncapsulationSeedLen]byte) ([]byte, *XXResponderSentM2, error) {
	c := s.base.cfg.Curve

	ct1, ss1 := kem.Encapsulate(kemEncSeed, s.peerEphKEM)
	s.state.MixHash(ct1[:])
	s.state.MixSharedSecret(ss1[:])

	Penc, err := s.state.EncryptAndHash(p)
	if err != nil {
		return nil, nil, fmt.Errorf("xx responder m2: %w", err)
	}

	eph, err := newHybridKeypair(c, ephemeralSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("xx responder m2: %w", err)
	}
	s.state.MixHash(c.Compress(eph.pub.Point))
	s.state.MixHash(eph.pub.KEMKey.Bytes())

	s.state.MixSharedSecret(dh(c, eph.sec.Scalar, s.peerEph))

	staticBytes := append(c.Compress(s.base.localStatic.pub.Point), s.base.localStatic.pub.KEMKey.Bytes()...)
	Senc, err := s.state.EncryptAndHash(staticBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("xx responder m2: %w", err)
	}

	s.state.MixSharedSecret(dh(c, s.base.localStatic.sec.Scalar, s.peerEph))

	msg := append(append(append(ct1[:], Penc...), c.Compress(eph.pub.Point)...), append(eph.pub.KEMKey.Bytes(), Senc...)...)
	return msg, &XXResponderSentM2{base: s.base, eph: eph, peerEph: s.peerEph, state: s.state}, nil
}

// XXResponderRecvM3 is the state after consuming message 3.
type XXResponderRecvM3 struct {
	base       *XXResponderStart
	eph        hybridKeypair
	peerStatic identity.PublicKey
	state      *noise.SymmetricState
}

// ConsumeMessage3 parses "eKct, [Q], sKct, s, se, [R]" and returns the two
// opaque application payloads carried in it.
func (s *XXResponderSentM2) ConsumeMessage3(msg []byte) (q, r []byte, next *XXResponderRecvM3, err error) {
	c := s.base.cfg.Curve
	off := 0

	ct2 := msg[off : off+kem.CiphertextLen]
	off += kem.CiphertextLen
	s.state.MixHash(ct2)
	var ct2Arr [kem.CiphertextLen]byte
	copy(ct2Arr[:], ct2)
	ss2 := kem.Decapsulate(s.eph.sec.KEMSecret, ct2Arr)
	s.state.MixSharedSecret(ss2[:])

	staticLen := c.CompressedLen() + kem.PublicKeyLen
	fixedTail := (kem.CiphertextLen + 16) + (staticLen + 16)
	qLen := len(msg) - off - fixedTail
	if qLen < 16 {
		return nil, nil, nil, fmt.Errorf("%w: xx m3 too short", ErrInvalidLength)
	}
	Qenc := msg[off : off+qLen]
	off += qLen

	Q, derr := s.state.DecryptAndHash(Qenc)
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("xx responder consume m3: %w: %v", ErrMacMismatch, derr)
	}

	ct3enc := msg[off : off+kem.CiphertextLen+16]
	off += kem.CiphertextLen + 16
	ct3Plain, derr := s.state.DecryptAndHash(ct3enc)
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("xx responder consume m3: %w: %v", ErrMacMismatch, derr)
	}
	var ct3Arr [kem.CiphertextLen]byte
	copy(ct3Arr[:], ct3Plain)
	ss3 := kem.Decapsulate(s.base.localStatic.sec.KEMSecret, ct3Arr)
	s.state.MixSharedSecret(ss3[:])

	Senc := msg[off : off+staticLen+16]
	off += staticLen + 16
	staticPlain, derr := s.state.DecryptAndHash(Senc)
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("xx responder consume m3: %w: %v", ErrMacMismatch, derr)
	}
	peerPoint, derr := c.Decompress(staticPlain[:c.CompressedLen()])
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("xx responder consume m3: %w", derr)
	}
	peerKEMPub, derr := kem.DecodePublicKey(staticPlain[c.CompressedLen():])
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("xx responder consume m3: %w", derr)
	}
	peerStatic := identity.PublicKey{Curve: c, Point: peerPoint, KEMKey: peerKEMPub}

	if !s.base.peerIDAnchor.IsZero() && peerStatic.Fingerprint() != s.base.peerIDAnchor {
		return nil, nil, nil, ErrIdentityMismatch
	}

	s.state.MixSharedSecret(dh(c, s.eph.sec.Scalar, peerPoint))

	Renc := msg[off:]
	R, derr := s.state.DecryptAndHash(Renc)
	if derr != nil {
		return nil, nil, nil, fmt.Errorf("xx responder consume m3: %w: %v", ErrMacMismatch, derr)
	}

	return Q, R, &XXResponderRecvM3{base: s.base, eph: s.eph, peerStatic: peerStatic, state: s.state}, nil
}

// Message4 emits "sKct, [S]" and finishes the handshake. kemEncSeed
// seeds the encapsulation against the peer's static KEM key.
func (s *XXResponderRecvM3) Message4(payloadS []byte, rotor cipher.Rotor, rotateInterval uint64, kemEncSeed [kem.EncapsulationSeedLen]byte) ([]byte, Cipher, error) {
	ct, ss := kem.Encapsulate(kemEncSeed, s.peerStatic.KEMKey)
	ctEnc, err := s.state.EncryptAndHash(ct[:])
	if err != nil {
		return nil, Cipher{}, fmt.Errorf("xx responder m4: %w", err)
	}
	s.state.MixSharedSecret(ss[:])

	Senc, err := s.state.EncryptAndHash(payloadS)
	if err != nil {
		return nil, Cipher{}, fmt.Errorf("xx responder m4: %w", err)
	}

	msg := append(ctEnc, Senc...)
	return msg, split(s.state, true, rotor, rotateInterval), nil
}
