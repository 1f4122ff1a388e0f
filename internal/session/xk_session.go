package session

import (
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/handshake"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
)

// NewXKInitiatorSession wraps an XK handshake (spec.md §4.3) as a four-level
// session graph: each handshake message is one Session step, with no
// application payload carried on the final message so every step's
// Receive/Send length is fixed for the lifetime of the graph, as §4.9's
// typestate step function requires. done receives the completed Cipher
// once the graph reaches End.
func NewXKInitiatorSession(cfg handshake.Config, localStatic identity.PublicKey, localSecret identity.SecretKey, peerStatic identity.PublicKey, peerID identity.Identity, ephemeralSeed [identity.SeedLen]byte, kemSeedM2, kemSeedM4 [kem.EncapsulationSeedLen]byte, rotor cipher.Rotor, rotateInterval uint64, done func(handshake.Cipher)) Session {
	start := handshake.NewXKInitiator(cfg, localStatic, localSecret, peerStatic, peerID)
	return &xkInitM0{start: start, cfg: cfg, seed: ephemeralSeed, kemSeedM2: kemSeedM2, kemSeedM4: kemSeedM4, rotor: rotor, rotateInterval: rotateInterval, done: done}
}

type xkInitM0 struct {
	start          *handshake.XKInitiatorStart
	cfg            handshake.Config
	seed           [identity.SeedLen]byte
	kemSeedM2      [kem.EncapsulationSeedLen]byte
	kemSeedM4      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkInitM0) ReceiveLen() int { return 0 }
func (s *xkInitM0) SendLen() int {
	return s.cfg.Curve.CompressedLen() + kem.PublicKeyLen + 16
}
func (s *xkInitM0) End() bool { return false }
func (s *xkInitM0) Step(incoming []byte) ([]byte, Session, error) {
	msg, next, err := s.start.Message0(s.seed)
	if err != nil {
		return nil, nil, fmt.Errorf("xk session m0: %w", err)
	}
	return msg, &xkInitM1{sent: next, cfg: s.cfg, kemSeedM2: s.kemSeedM2, kemSeedM4: s.kemSeedM4, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkInitM1 struct {
	sent           *handshake.XKInitiatorSentM0
	cfg            handshake.Config
	kemSeedM2      [kem.EncapsulationSeedLen]byte
	kemSeedM4      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkInitM1) ReceiveLen() int {
	return s.cfg.Curve.CompressedLen() + kem.PublicKeyLen + kem.CiphertextLen + 16
}
func (s *xkInitM1) SendLen() int { return 0 }
func (s *xkInitM1) End() bool    { return false }
func (s *xkInitM1) Step(incoming []byte) ([]byte, Session, error) {
	next, err := s.sent.ConsumeMessage1(incoming)
	if err != nil {
		return nil, nil, fmt.Errorf("xk session m1: %w", err)
	}
	return nil, &xkInitM2{recv: next, cfg: s.cfg, kemSeedM2: s.kemSeedM2, kemSeedM4: s.kemSeedM4, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkInitM2 struct {
	recv           *handshake.XKInitiatorRecvM1
	cfg            handshake.Config
	kemSeedM2      [kem.EncapsulationSeedLen]byte
	kemSeedM4      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkInitM2) ReceiveLen() int { return 0 }
func (s *xkInitM2) SendLen() int {
	staticLen := s.cfg.Curve.CompressedLen() + kem.PublicKeyLen
	return staticLen + 16 + kem.CiphertextLen + 16 + 16
}
func (s *xkInitM2) End() bool { return false }
func (s *xkInitM2) Step(incoming []byte) ([]byte, Session, error) {
	msg, next, err := s.recv.Message2(s.kemSeedM2)
	if err != nil {
		return nil, nil, fmt.Errorf("xk session m2: %w", err)
	}
	return msg, &xkInitM3{sent: next, cfg: s.cfg, kemSeedM4: s.kemSeedM4, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkInitM3 struct {
	sent           *handshake.XKInitiatorSentM2
	cfg            handshake.Config
	kemSeedM4      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkInitM3) ReceiveLen() int {
	staticLen := s.cfg.Curve.CompressedLen() + kem.PublicKeyLen
	return staticLen + 16 + kem.CiphertextLen + 16
}
func (s *xkInitM3) SendLen() int { return 0 }
func (s *xkInitM3) End() bool    { return false }
func (s *xkInitM3) Step(incoming []byte) ([]byte, Session, error) {
	next, err := s.sent.ConsumeMessage3(incoming)
	if err != nil {
		return nil, nil, fmt.Errorf("xk session m3: %w", err)
	}
	return nil, &xkInitM4{recv: next, kemSeedM4: s.kemSeedM4, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkInitM4 struct {
	recv           *handshake.XKInitiatorRecvM3
	kemSeedM4      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkInitM4) ReceiveLen() int { return 0 }
func (s *xkInitM4) SendLen() int    { return kem.CiphertextLen + 16 + 16 }
func (s *xkInitM4) End() bool       { return false }
func (s *xkInitM4) Step(incoming []byte) ([]byte, Session, error) {
	msg, hcipher, err := s.recv.Message4(nil, s.rotor, s.rotateInterval, s.kemSeedM4)
	if err != nil {
		return nil, nil, fmt.Errorf("xk session m4: %w", err)
	}
	if s.done != nil {
		s.done(hcipher)
	}
	return msg, End{}, nil
}
