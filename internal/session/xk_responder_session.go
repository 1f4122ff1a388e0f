package session

import (
	"fmt"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/handshake"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
)

// NewXKResponderSession mirrors NewXKInitiatorSession on the responder side.
func NewXKResponderSession(cfg handshake.Config, localStatic identity.PublicKey, localSecret identity.SecretKey, ephemeralSeed [identity.SeedLen]byte, kemSeedM1, kemSeedM3 [kem.EncapsulationSeedLen]byte, rotor cipher.Rotor, rotateInterval uint64, done func(handshake.Cipher)) Session {
	start := handshake.NewXKResponder(cfg, localStatic, localSecret)
	return &xkRespM0{start: start, cfg: cfg, seed: ephemeralSeed, kemSeedM1: kemSeedM1, kemSeedM3: kemSeedM3, rotor: rotor, rotateInterval: rotateInterval, done: done}
}

type xkRespM0 struct {
	start          *handshake.XKResponderStart
	cfg            handshake.Config
	seed           [identity.SeedLen]byte
	kemSeedM1      [kem.EncapsulationSeedLen]byte
	kemSeedM3      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkRespM0) ReceiveLen() int {
	return s.cfg.Curve.CompressedLen() + kem.PublicKeyLen + 16
}
func (s *xkRespM0) SendLen() int { return 0 }
func (s *xkRespM0) End() bool    { return false }
func (s *xkRespM0) Step(incoming []byte) ([]byte, Session, error) {
	next, err := s.start.ConsumeMessage0(incoming)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder session m0: %w", err)
	}
	return nil, &xkRespM1{recv: next, cfg: s.cfg, seed: s.seed, kemSeedM1: s.kemSeedM1, kemSeedM3: s.kemSeedM3, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkRespM1 struct {
	recv           *handshake.XKResponderRecvM0
	cfg            handshake.Config
	seed           [identity.SeedLen]byte
	kemSeedM1      [kem.EncapsulationSeedLen]byte
	kemSeedM3      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkRespM1) ReceiveLen() int { return 0 }
func (s *xkRespM1) SendLen() int {
	return s.cfg.Curve.CompressedLen() + kem.PublicKeyLen + kem.CiphertextLen + 16
}
func (s *xkRespM1) End() bool { return false }
func (s *xkRespM1) Step(incoming []byte) ([]byte, Session, error) {
	msg, next, err := s.recv.Message1(s.seed, s.kemSeedM1)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder session m1: %w", err)
	}
	return msg, &xkRespM2{sent: next, cfg: s.cfg, kemSeedM3: s.kemSeedM3, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkRespM2 struct {
	sent           *handshake.XKResponderSentM1
	cfg            handshake.Config
	kemSeedM3      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkRespM2) ReceiveLen() int {
	staticLen := s.cfg.Curve.CompressedLen() + kem.PublicKeyLen
	return staticLen + 16 + kem.CiphertextLen + 16 + 16
}
func (s *xkRespM2) SendLen() int { return 0 }
func (s *xkRespM2) End() bool    { return false }
func (s *xkRespM2) Step(incoming []byte) ([]byte, Session, error) {
	next, err := s.sent.ConsumeMessage2(incoming)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder session m2: %w", err)
	}
	return nil, &xkRespM3{recv: next, cfg: s.cfg, kemSeedM3: s.kemSeedM3, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkRespM3 struct {
	recv           *handshake.XKResponderRecvM2
	cfg            handshake.Config
	kemSeedM3      [kem.EncapsulationSeedLen]byte
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkRespM3) ReceiveLen() int { return 0 }
func (s *xkRespM3) SendLen() int {
	staticLen := s.cfg.Curve.CompressedLen() + kem.PublicKeyLen
	return staticLen + 16 + kem.CiphertextLen + 16
}
func (s *xkRespM3) End() bool { return false }
func (s *xkRespM3) Step(incoming []byte) ([]byte, Session, error) {
	msg, next, err := s.recv.Message3(s.kemSeedM3)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder session m3: %w", err)
	}
	return msg, &xkRespM4{sent: next, rotor: s.rotor, rotateInterval: s.rotateInterval, done: s.done}, nil
}

type xkRespM4 struct {
	sent           *handshake.XKResponderSentM3
	rotor          cipher.Rotor
	rotateInterval uint64
	done           func(handshake.Cipher)
}

func (s *xkRespM4) ReceiveLen() int { return kem.CiphertextLen + 16 + 16 }
func (s *xkRespM4) SendLen() int    { return 0 }
func (s *xkRespM4) End() bool       { return false }
func (s *xkRespM4) Step(incoming []byte) ([]byte, Session, error) {
	_, hcipher, err := s.sent.ConsumeMessage4(incoming, s.rotor, s.rotateInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("xk responder session m4: %w", err)
	}
	if s.done != nil {
		s.done(hcipher)
	}
	return nil, End{}, nil
}
