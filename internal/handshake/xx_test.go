package handshake

import (
	"bytes"
	"testing"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
)

func TestXXHandshakeRoundTrip(t *testing.T) {
	c := curve.Curve25519
	cfg := Config{Curve: c}

	initStaticPub, initStaticSec, err := identity.Generate(c, seedFill(0x50))
	if err != nil {
		t.Fatalf("initiator static Generate() error = %v", err)
	}
	respStaticPub, respStaticSec, err := identity.Generate(c, seedFill(0x60))
	if err != nil {
		t.Fatalf("responder static Generate() error = %v", err)
	}

	initiator := NewXXInitiator(cfg, initStaticPub, initStaticSec, identity.ZeroIdentity)
	responder := NewXXResponder(cfg, respStaticPub, respStaticSec, identity.ZeroIdentity)

	m1, initAfterM1, err := initiator.Message1(seedFill(0x70))
	if err != nil {
		t.Fatalf("Message1() error = %v", err)
	}

	respAfterM1, err := responder.ConsumeMessage1(m1)
	if err != nil {
		t.Fatalf("ConsumeMessage1() error = %v", err)
	}

	payloadP := []byte("responder hello")
	m2, respAfterM2, err := respAfterM1.Message2(seedFill(0x80), payloadP, kemSeedFill(0x81))
	if err != nil {
		t.Fatalf("Message2() error = %v", err)
	}

	initAfterM2, err := initAfterM1.ConsumeMessage2(m2)
	if err != nil {
		t.Fatalf("ConsumeMessage2() error = %v", err)
	}
	if !bytes.Equal(initAfterM2.PayloadP(), payloadP) {
		t.Errorf("PayloadP() = %q, want %q", initAfterM2.PayloadP(), payloadP)
	}

	payloadQ := []byte("initiator q")
	payloadR := []byte("initiator r")
	m3, initAfterM3, err := initAfterM2.Message3(payloadQ, payloadR, kemSeedFill(0x82), kemSeedFill(0x83))
	if err != nil {
		t.Fatalf("Message3() error = %v", err)
	}

	q, r, respAfterM3, err := respAfterM2.ConsumeMessage3(m3)
	if err != nil {
		t.Fatalf("ConsumeMessage3() error = %v", err)
	}
	if !bytes.Equal(q, payloadQ) {
		t.Errorf("recovered Q = %q, want %q", q, payloadQ)
	}
	if !bytes.Equal(r, payloadR) {
		t.Errorf("recovered R = %q, want %q", r, payloadR)
	}

	payloadS := []byte("responder s")
	m4, respCipher, err := respAfterM3.Message4(payloadS, cipher.NoRotor{}, 0, kemSeedFill(0x84))
	if err != nil {
		t.Fatalf("Message4() error = %v", err)
	}

	result, err := initAfterM3.ConsumeMessage4(m4, cipher.NoRotor{}, 0)
	if err != nil {
		t.Fatalf("ConsumeMessage4() error = %v", err)
	}
	if !bytes.Equal(result.PayloadS, payloadS) {
		t.Errorf("recovered S = %q, want %q", result.PayloadS, payloadS)
	}

	if result.Cipher.HandshakeHash != respCipher.HandshakeHash {
		t.Error("initiator and responder handshake hashes do not match")
	}

	sealed, err := result.Cipher.Send.Seal([]byte("ad"), []byte("record"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	opened, err := respCipher.Receive.Open([]byte("ad"), sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(opened) != "record" {
		t.Errorf("cross-cipher record mismatch: got %q", opened)
	}
}

func TestXXHandshakeRejectsWrongIdentityAnchor(t *testing.T) {
	c := curve.Curve25519
	cfg := Config{Curve: c}

	initStaticPub, initStaticSec, _ := identity.Generate(c, seedFill(0x51))
	respStaticPub, respStaticSec, _ := identity.Generate(c, seedFill(0x61))
	wrongPub, _, _ := identity.Generate(c, seedFill(0x99))

	initiator := NewXXInitiator(cfg, initStaticPub, initStaticSec, wrongPub.Fingerprint())
	responder := NewXXResponder(cfg, respStaticPub, respStaticSec, identity.ZeroIdentity)

	m1, initAfterM1, err := initiator.Message1(seedFill(0x70))
	if err != nil {
		t.Fatalf("Message1() error = %v", err)
	}
	respAfterM1, err := responder.ConsumeMessage1(m1)
	if err != nil {
		t.Fatalf("ConsumeMessage1() error = %v", err)
	}
	m2, _, err := respAfterM1.Message2(seedFill(0x80), nil, kemSeedFill(0x81))
	if err != nil {
		t.Fatalf("Message2() error = %v", err)
	}

	if _, err := initAfterM1.ConsumeMessage2(m2); err == nil {
		t.Fatal("expected identity mismatch error")
	}
}
