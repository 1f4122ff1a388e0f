package handshake

import (
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
	"github.com/coinstash/vru-mesh/internal/noise"
)

// XKResponderStart is the handshake's entry point on the responder side.
// The responder needs no advance knowledge of the initiator — XK only
// requires the initiator to know the responder ahead of time.
type XKResponderStart struct {
	cfg         Config
	state       *noise.SymmetricState
	localStatic hybridKeypair
}

// NewXKResponder begins an XK handshake as the known-key side. The
// responder's own Identity (localStatic.Fingerprint()) is mixed into the
// transcript the same way the initiator mixes the anchor it already holds.
func NewXKResponder(cfg Config, localStatic identity.PublicKey, localSecret identity.SecretKey) *XKResponderStart {
	state := noise.New(ProtocolName)
	state.MixHash(localStatic.Fingerprint().Bytes())
	return &XKResponderStart{
		cfg:         cfg,
		state:       state,
		localStatic: hybridKeypair{pub: localStatic, sec: localSecret},
	}
}

// XKResponderRecvM0 is the state after consuming message 0.
type XKResponderRecvM0 struct {
	base       *XKResponderStart
	peerEph    curve.Point
	peerEphKEM kem.PublicKey
	state      *noise.SymmetricState
}

// ConsumeMessage0 parses and authenticates m0.
func (s *XKResponderStart) ConsumeMessage0(msg []byte) (*XKResponderRecvM0, error) {
	c := s.cfg.Curve
	want := c.CompressedLen() + kem.PublicKeyLen + 16
	if err := checkLen("xk m0", len(msg), want); err != nil {
		return nil, err
	}

	off := 0
	eEBytes := msg[off : off+c.CompressedLen()]
	off += c.CompressedLen()
	eKBytes := msg[off : off+kem.PublicKeyLen]
	off += kem.PublicKeyLen
	tag := msg[off:]

	peerEph, err := c.Decompress(eEBytes)
	if err != nil {
		return nil, fmt.Errorf("xk responder consume m0: %w", err)
	}
	peerEphKEM, err := kem.DecodePublicKey(eKBytes)
	if err != nil {
		return nil, fmt.Errorf("xk responder consume m0: %w", err)
	}

	s.state.MixHash(eEBytes)
	s.state.MixHash(eKBytes)

	s.state.MixSharedSecret(dh(c, s.localStatic.sec.Scalar, peerEph))

	if _, err := s.state.DecryptAndHash(tag); err != nil {
		return nil, fmt.Errorf("xk responder consume m0: %w: %v", ErrMacMismatch, err)
	}

	return &XKResponderRecvM0{base: s, peerEph: peerEph, peerEphKEM: peerEphKEM, state: s.state}, nil
}

// XKResponderSentM1 is the state after emitting message 1.
type XKResponderSentM1 struct {
	base       *XKResponderStart
	eph        hybridKeypair
	peerEph    curve.Point
	state      *noise.SymmetricState
}

// Message1 samples the responder's ephemeral keypair, mixes the
// ephemeral-ephemeral DH and a KEM encapsulation (under kemEncSeed)
// against the initiator's ephemeral KEM key, and emits m1.
func (s *XKResponderRecvM0) Message1(ephemeralSeed [identity.SeedLen]byte, kemEncSeed [kem.EncapsulationSeedLen]byte) ([]byte, *XKResponderSentM1, error) {
	c := s.base.cfg.Curve
	eph, err := newHybridKeypair(c, ephemeralSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder m1: %w", err)
	}

	s.state.MixHash(c.Compress(eph.pub.Point))
	s.state.MixHash(eph.pub.KEMKey.Bytes())

	s.state.MixSharedSecret(dh(c, eph.sec.Scalar, s.peerEph))

	ct, ss := kem.Encapsulate(kemEncSeed, s.peerEphKEM)
	s.state.MixSharedSecret(ss[:])

	s.state.MixHash(ct[:])

	tag, err := s.state.EncryptAndHash(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder m1: %w", err)
	}

	msg := append(append(c.Compress(eph.pub.Point), eph.pub.KEMKey.Bytes()...), append(ct[:], tag...)...)
	return msg, &XKResponderSentM1{base: s.base, eph: eph, peerEph: s.peerEph, state: s.state}, nil
}

// XKResponderRecvM2 is the state after consuming message 2.
type XKResponderRecvM2 struct {
	base       *XKResponderStart
	eph        hybridKeypair
	peerEph    curve.Point
	peerStatic identity.PublicKey
	state      *noise.SymmetricState
}

// ConsumeMessage2 decrypts the initiator's static key and a KEM
// ciphertext encapsulated against the responder's ephemeral KEM key.
func (s *XKResponderSentM1) ConsumeMessage2(msg []byte) (*XKResponderRecvM2, error) {
	c := s.base.cfg.Curve
	staticLen := c.CompressedLen() + kem.PublicKeyLen
	ct1enc := msg[:staticLen+16]
	rest := msg[staticLen+16:]
	ct2enc := rest[:kem.CiphertextLen+16]
	tag := rest[kem.CiphertextLen+16:]

	staticPlain, err := s.state.DecryptAndHash(ct1enc)
	if err != nil {
		return nil, fmt.Errorf("xk responder consume m2: %w: %v", ErrMacMismatch, err)
	}
	peerPoint, err := c.Decompress(staticPlain[:c.CompressedLen()])
	if err != nil {
		return nil, fmt.Errorf("xk responder consume m2: %w", err)
	}
	peerKEMPub, err := kem.DecodePublicKey(staticPlain[c.CompressedLen():])
	if err != nil {
		return nil, fmt.Errorf("xk responder consume m2: %w", err)
	}
	peerStatic := identity.PublicKey{Curve: c, Point: peerPoint, KEMKey: peerKEMPub}

	s.state.MixSharedSecret(dh(c, s.eph.sec.Scalar, peerPoint))

	ctPlain, err := s.state.DecryptAndHash(ct2enc)
	if err != nil {
		return nil, fmt.Errorf("xk responder consume m2: %w: %v", ErrMacMismatch, err)
	}
	var ctArr [kem.CiphertextLen]byte
	copy(ctArr[:], ctPlain)
	ss := kem.Decapsulate(s.eph.sec.KEMSecret, ctArr)
	s.state.MixSharedSecret(ss[:])

	if _, err := s.state.DecryptAndHash(tag); err != nil {
		return nil, fmt.Errorf("xk responder consume m2: %w: %v", ErrMacMismatch, err)
	}

	return &XKResponderRecvM2{base: s.base, eph: s.eph, peerEph: s.peerEph, peerStatic: peerStatic, state: s.state}, nil
}

// XKResponderSentM3 is the state after emitting message 3.
type XKResponderSentM3 struct {
	base       *XKResponderStart
	peerStatic identity.PublicKey
	state      *noise.SymmetricState
}

// Message3 encrypts the responder's static key, encapsulates kemEncSeed
// against the initiator's static KEM key, and emits m3.
func (s *XKResponderRecvM2) Message3(kemEncSeed [kem.EncapsulationSeedLen]byte) ([]byte, *XKResponderSentM3, error) {
	c := s.base.cfg.Curve
	staticBytes := append(c.Compress(s.base.localStatic.pub.Point), s.base.localStatic.pub.KEMKey.Bytes()...)
	ct3enc, err := s.state.EncryptAndHash(staticBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder m3: %w", err)
	}

	s.state.MixSharedSecret(dh(c, s.base.localStatic.sec.Scalar, s.peerEph))

	ct, ss := kem.Encapsulate(kemEncSeed, s.peerStatic.KEMKey)

	ct4enc, err := s.state.EncryptAndHash(ct[:])
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder m3: %w", err)
	}
	s.state.MixSharedSecret(ss[:])

	tag, err := s.state.EncryptAndHash(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder m3: %w", err)
	}

	msg := append(append(ct3enc, ct4enc...), tag...)
	return msg, &XKResponderSentM3{base: s.base, peerStatic: s.peerStatic, state: s.state}, nil
}

// ConsumeMessage4 decapsulates the initiator's final KEM ciphertext,
// recovers the application payload, and finishes the handshake into a
// Cipher (swapped relative to the initiator's, per spec.md §4.3 step 5).
func (s *XKResponderSentM3) ConsumeMessage4(msg []byte, rotor cipher.Rotor, rotateInterval uint64) ([]byte, Cipher, error) {
	ctEnc := msg[:kem.CiphertextLen+16]
	payloadEnc := msg[kem.CiphertextLen+16:]

	ctPlain, err := s.state.DecryptAndHash(ctEnc)
	if err != nil {
		return nil, Cipher{}, fmt.Errorf("xk responder consume m4: %w: %v", ErrMacMismatch, err)
	}
	var ctArr [kem.CiphertextLen]byte
	copy(ctArr[:], ctPlain)
	ss := kem.Decapsulate(s.base.localStatic.sec.KEMSecret, ctArr)
	s.state.MixSharedSecret(ss[:])

	payload, err := s.state.DecryptAndHash(payloadEnc)
	if err != nil {
		return nil, Cipher{}, fmt.Errorf("xk responder consume m4: %w: %v", ErrMacMismatch, err)
	}

	return payload, split(s.state, true, rotor, rotateInterval), nil
}
