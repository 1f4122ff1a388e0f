package handshake

import (
	"bytes"
	"testing"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
)

func seedFill(v byte) [identity.SeedLen]byte {
	var s [identity.SeedLen]byte
	for i := range s {
		s[i] = v + byte(i)
	}
	return s
}

func kemSeedFill(v byte) [kem.EncapsulationSeedLen]byte {
	var s [kem.EncapsulationSeedLen]byte
	for i := range s {
		s[i] = v + byte(i)
	}
	return s
}

func TestXKHandshakeRoundTrip(t *testing.T) {
	c := curve.Curve25519
	cfg := Config{Curve: c}

	initStaticPub, initStaticSec, err := identity.Generate(c, seedFill(0x10))
	if err != nil {
		t.Fatalf("initiator static Generate() error = %v", err)
	}
	respStaticPub, respStaticSec, err := identity.Generate(c, seedFill(0x20))
	if err != nil {
		t.Fatalf("responder static Generate() error = %v", err)
	}

	peerID := respStaticPub.Fingerprint()

	initiator := NewXKInitiator(cfg, initStaticPub, initStaticSec, respStaticPub, peerID)
	responder := NewXKResponder(cfg, respStaticPub, respStaticSec)

	m0, afterM0, err := initiator.Message0(seedFill(0x30))
	if err != nil {
		t.Fatalf("Message0() error = %v", err)
	}

	respAfterM0, err := responder.ConsumeMessage0(m0)
	if err != nil {
		t.Fatalf("ConsumeMessage0() error = %v", err)
	}

	m1, respAfterM1, err := respAfterM0.Message1(seedFill(0x40), kemSeedFill(0x41))
	if err != nil {
		t.Fatalf("Message1() error = %v", err)
	}

	afterM1, err := afterM0.ConsumeMessage1(m1)
	if err != nil {
		t.Fatalf("ConsumeMessage1() error = %v", err)
	}

	m2, afterM2, err := afterM1.Message2(kemSeedFill(0x42))
	if err != nil {
		t.Fatalf("Message2() error = %v", err)
	}

	respAfterM2, err := respAfterM1.ConsumeMessage2(m2)
	if err != nil {
		t.Fatalf("ConsumeMessage2() error = %v", err)
	}

	m3, respAfterM3, err := respAfterM2.Message3(kemSeedFill(0x43))
	if err != nil {
		t.Fatalf("Message3() error = %v", err)
	}

	afterM3, err := afterM2.ConsumeMessage3(m3)
	if err != nil {
		t.Fatalf("ConsumeMessage3() error = %v", err)
	}

	payload := []byte("hello post-quantum world")
	m4, initCipher, err := afterM3.Message4(payload, cipher.NoRotor{}, 0, kemSeedFill(0x44))
	if err != nil {
		t.Fatalf("Message4() error = %v", err)
	}

	recoveredPayload, respCipher, err := respAfterM3.ConsumeMessage4(m4, cipher.NoRotor{}, 0)
	if err != nil {
		t.Fatalf("ConsumeMessage4() error = %v", err)
	}

	if !bytes.Equal(recoveredPayload, payload) {
		t.Errorf("recovered payload = %q, want %q", recoveredPayload, payload)
	}

	if initCipher.HandshakeHash != respCipher.HandshakeHash {
		t.Error("initiator and responder handshake hashes do not match")
	}

	// Initiator's send half must be the responder's receive half and vice
	// versa (spec.md §4.3 step 5's swap).
	sealed, err := initCipher.Send.Seal([]byte("ad"), []byte("record"))
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

func TestXKHandshakeRejectsWrongIdentity(t *testing.T) {
	c := curve.Curve25519
	cfg := Config{Curve: c}

	initStaticPub, initStaticSec, _ := identity.Generate(c, seedFill(0x11))
	respStaticPub, respStaticSec, _ := identity.Generate(c, seedFill(0x22))
	wrongPub, _, _ := identity.Generate(c, seedFill(0x99))

	initiator := NewXKInitiator(cfg, initStaticPub, initStaticSec, respStaticPub, wrongPub.Fingerprint())
	responder := NewXKResponder(cfg, respStaticPub, respStaticSec)

	m0, afterM0, err := initiator.Message0(seedFill(0x30))
	if err != nil {
		t.Fatalf("Message0() error = %v", err)
	}
	respAfterM0, err := responder.ConsumeMessage0(m0)
	if err != nil {
		t.Fatalf("ConsumeMessage0() error = %v", err)
	}
	m1, respAfterM1, err := respAfterM0.Message1(seedFill(0x40), kemSeedFill(0x41))
	if err != nil {
		t.Fatalf("Message1() error = %v", err)
	}
	afterM1, err := afterM0.ConsumeMessage1(m1)
	if err != nil {
		t.Fatalf("ConsumeMessage1() error = %v", err)
	}
	m2, afterM2, err := afterM1.Message2(kemSeedFill(0x42))
	if err != nil {
		t.Fatalf("Message2() error = %v", err)
	}
	respAfterM2, err := respAfterM1.ConsumeMessage2(m2)
	if err != nil {
		t.Fatalf("ConsumeMessage2() error = %v", err)
	}
	m3, _, err := respAfterM2.Message3(kemSeedFill(0x43))
	if err != nil {
		t.Fatalf("Message3() error = %v", err)
	}

	if _, err := afterM2.ConsumeMessage3(m3); err == nil {
		t.Fatal("expected identity mismatch error")
	}
}
