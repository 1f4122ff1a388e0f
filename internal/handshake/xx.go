package handshake

import (
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
	"github.com/coinstash/vru-mesh/internal/noise"
)

// XX implements spec.md §4.4: mutual discovery. Neither side needs to know
// the other's static key ahead of time; each learns the other's key over
// the wire and, if the caller supplied an expected Identity to pin against
// (peerIDAnchor), the received key is checked against it the same way
// XK checks the responder's key against the initiator's anchor. A zero
// Identity disables the check, matching true trust-on-first-use XX.

// XXInitiatorStart is the handshake's entry point on the initiator side.
type XXInitiatorStart struct {
	cfg          Config
	state        *noise.SymmetricState
	localStatic  hybridKeypair
	peerIDAnchor identity.Identity
}

// NewXXInitiator begins an XX handshake.
func NewXXInitiator(cfg Config, localStatic identity.PublicKey, localSecret identity.SecretKey, peerIDAnchor identity.Identity) *XXInitiatorStart {
	return &XXInitiatorStart{
		cfg:          cfg,
		state:        noise.New(ProtocolName + "XX"),
		localStatic:  hybridKeypair{pub: localStatic, sec: localSecret},
		peerIDAnchor: peerIDAnchor,
	}
}

// XXInitiatorSentM1 is the state after emitting message 1 ("e").
type XXInitiatorSentM1 struct {
	base  *XXInitiatorStart
	eph   hybridKeypair
	state *noise.SymmetricState
}

// Message1 emits the initiator's bare ephemeral hybrid public key.
func (s *XXInitiatorStart) Message1(ephemeralSeed [identity.SeedLen]byte) ([]byte, *XXInitiatorSentM1, error) {
	eph, err := newHybridKeypair(s.cfg.Curve, ephemeralSeed)
	if err != nil {
		return nil, nil, fmt.Errorf("xx initiator m1: %w", err)
	}
	s.state.MixHash(s.cfg.Curve.Compress(eph.pub.Point))
	s.state.MixHash(eph.pub.KEMKey.Bytes())

	msg := append(s.cfg.Curve.Compress(eph.pub.Point), eph.pub.KEMKey.Bytes()...)
	return msg, &XXInitiatorSentM1{base: s, eph: eph, state: s.state}, nil
}

// XXInitiatorRecvM2 is the state after consuming message 2.
type XXInitiatorRecvM2 struct {
	base       *XXInitiatorStart
	eph        hybridKeypair
	peerEph    curve.Point
	peerEphKEM kem.PublicKey
	peerStatic identity.PublicKey
	payloadP   []byte
	state      *noise.SymmetricState
}

// ConsumeMessage2 parses "eKct, [P], e, ee, s, es".
func (s *XXInitiatorSentM1) ConsumeMessage2(msg []byte) (*XXInitiatorRecvM2, error) {
	c := s.base.cfg.Curve
	off := 0

	ct1 := msg[off : off+kem.CiphertextLen]
	off += kem.CiphertextLen
	s.state.MixHash(ct1)
	var ct1Arr [kem.CiphertextLen]byte
	copy(ct1Arr[:], ct1)
	ssKEM1 := kem.Decapsulate(s.eph.sec.KEMSecret, ct1Arr)
	s.state.MixSharedSecret(ssKEM1[:])

	// [P]'s ciphertext length is unknown up front; the wire layout fixes
	// everything else, so P's length is recovered by subtracting the
	// known-length fields (e_R, its encapsulated static key) from the
	// total message length.
	fixedTail := c.CompressedLen() + kem.PublicKeyLen + (c.CompressedLen() + kem.PublicKeyLen + 16)
	pLen := len(msg) - off - fixedTail
	if pLen < 16 {
		return nil, fmt.Errorf("%w: xx m2 too short", ErrInvalidLength)
	}
	Penc := msg[off : off+pLen]
	off += pLen

	P, err := s.state.DecryptAndHash(Penc)
	if err != nil {
		return nil, fmt.Errorf("xx initiator consume m2: %w: %v", ErrMacMismatch, err)
	}

	eRBytes := msg[off : off+c.CompressedLen()]
	off += c.CompressedLen()
	eRKEMBytes := msg[off : off+kem.PublicKeyLen]
	off += kem.PublicKeyLen

	peerEph, err := c.Decompress(eRBytes)
	if err != nil {
		return nil, fmt.Errorf("xx initiator consume m2: %w", err)
	}
	peerEphKEM, err := kem.DecodePublicKey(eRKEMBytes)
	if err != nil {
		return nil, fmt.Errorf("xx initiator consume m2: %w", err)
	}
	s.state.MixHash(eRBytes)
	s.state.MixHash(eRKEMBytes)

	s.state.MixSharedSecret(dh(c, s.eph.sec.Scalar, peerEph))

	Senc := msg[off:]
	staticPlain, err := s.state.DecryptAndHash(Senc)
	if err != nil {
		return nil, fmt.Errorf("xx initiator consume m2: %w: %v", ErrMacMismatch, err)
	}
	peerStaticPoint, err := c.Decompress(staticPlain[:c.CompressedLen()])
	if err != nil {
		return nil, fmt.Errorf("xx initiator consume m2: %w", err)
	}
	peerStaticKEM, err := kem.DecodePublicKey(staticPlain[c.CompressedLen():])
	if err != nil {
		return nil, fmt.Errorf("xx initiator consume m2: %w", err)
	}
	peerStatic := identity.PublicKey{Curve: c, Point: peerStaticPoint, KEMKey: peerStaticKEM}

	if !s.base.peerIDAnchor.IsZero() && peerStatic.Fingerprint() != s.base.peerIDAnchor {
		return nil, ErrIdentityMismatch
	}

	s.state.MixSharedSecret(dh(c, s.eph.sec.Scalar, peerStaticPoint))

	return &XXInitiatorRecvM2{
		base: s.base, eph: s.eph, peerEph: peerEph, peerEphKEM: peerEphKEM,
		peerStatic: peerStatic, payloadP: P, state: s.state,
	}, nil
}

// PayloadP returns the opaque application payload the responder sent
// alongside its ephemeral key in message 2.
func (s *XXInitiatorRecvM2) PayloadP() []byte { return s.payloadP }

// XXInitiatorSentM3 is the state after emitting message 3.
type XXInitiatorSentM3 struct {
	base  *XXInitiatorStart
	eph   hybridKeypair
	state *noise.SymmetricState
}

// Message3 emits "eKct, [Q], sKct, s, se, [R]". kemEncSeedQ seeds the
// encapsulation against the peer's ephemeral KEM key; kemEncSeedS seeds
// the encapsulation against the peer's static KEM key.
func (s *XXInitiatorRecvM2) Message3(q, r []byte, kemEncSeedQ, kemEncSeedS [kem.EncapsulationSeedLen]byte) ([]byte, *XXInitiatorSentM3, error) {
	c := s.base.cfg.Curve

	ct2, ssKEM2 := kem.Encapsulate(kemEncSeedQ, s.peerEphKEM)
	s.state.MixHash(ct2[:])
	s.state.MixSharedSecret(ssKEM2[:])

	Qenc, err := s.state.EncryptAndHash(q)
	if err != nil {
		return nil, nil, fmt.Errorf("xx initiator m3: %w", err)
	}

	ct3, ssKEM3 := kem.Encapsulate(kemEncSeedS, s.peerStatic.KEMKey)
	ct3enc, err := s.state.EncryptAndHash(ct3[:])
	if err != nil {
		return nil, nil, fmt.Errorf("xx initiator m3: %w", err)
	}
	s.state.MixSharedSecret(ssKEM3[:])

	staticBytes := append(c.Compress(s.base.localStatic.pub.Point), s.base.localStatic.pub.KEMKey.Bytes()...)
	Senc, err := s.state.EncryptAndHash(staticBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("xx initiator m3: %w", err)
	}

	s.state.MixSharedSecret(dh(c, s.base.localStatic.sec.Scalar, s.peerEph))

	Renc, err := s.state.EncryptAndHash(r)
	if err != nil {
		return nil, nil, fmt.Errorf("xx initiator m3: %w", err)
	}

	msg := append(append(append(append(ct2[:], Qenc...), ct3enc...), Senc...), Renc...)
	return msg, &XXInitiatorSentM3{base: s.base, eph: s.eph, state: s.state}, nil
}

// Message4Result is what ConsumeMessage4 recovers.
type Message4Result struct {
	Cipher   Cipher
	PayloadS []byte
}

// ConsumeMessage4 parses "sKct, [S]" and finishes the handshake.
func (s *XXInitiatorSentM3) ConsumeMessage4(msg []byte, rotor cipher.Rotor, rotateInterval uint64) (Message4Result, error) {
	ct4enc := msg[:kem.CiphertextLen+16]
	Senc := msg[kem.CiphertextLen+16:]

	ctPlain, err := s.state.DecryptAndHash(ct4enc)
	if err != nil {
		return Message4Result{}, fmt.Errorf("xx initiator consume m4: %w: %v", ErrMacMismatch, err)
	}
	var ctArr [kem.CiphertextLen]byte
	copy(ctArr[:], ctPlain)
	ss := kem.Decapsulate(s.base.localStatic.sec.KEMSecret, ctArr)
	s.state.MixSharedSecret(ss[:])

	S, err := s.state.DecryptAndHash(Senc)
	if err != nil {
		return Message4Result{}, fmt.Errorf("xx initiator consume m4: %w: %v", ErrMacMismatch, err)
	}

	return Message4Result{Cipher: split(s.state, false, rotor, rotateInterval), PayloadS: S}, nil
}
