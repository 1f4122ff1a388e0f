package session

import (
	"bytes"
	"io"
	"testing"

	"github.com/coinstash/vru-mesh/internal/cipher"
	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/handshake"
	"github.com/coinstash/vru-mesh/internal/identity"
	"github.com/coinstash/vru-mesh/internal/kem"
)

// echoOnce is a single-step session: it receives n bytes, sends them back
// upper-cased, and terminates.
type echoOnce struct{ n int }

func (e echoOnce) ReceiveLen() int { return e.n }
func (e echoOnce) SendLen() int    { return e.n }
func (e echoOnce) End() bool       { return false }
func (e echoOnce) Step(incoming []byte) ([]byte, Session, error) {
	out := make([]byte, len(incoming))
	for i, b := range incoming {
		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		out[i] = b
	}
	return out, End{}, nil
}

func TestChannelExecuteSingleStep(t *testing.T) {
	in := bytes.NewBufferString("hello")
	var out bytes.Buffer
	ch := NewChannel(in, &out)

	if err := ch.Execute(echoOnce{n: 5}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.String() != "HELLO" {
		t.Errorf("out = %q, want %q", out.String(), "HELLO")
	}
}

func TestChannelExecuteAttributesLevel(t *testing.T) {
	in := bytes.NewBuffer(nil) // empty: ReceiveLen > 0 but nothing to read
	var out bytes.Buffer
	ch := NewChannel(in, &out)

	err := ch.Execute(echoOnce{n: 5})
	if err == nil {
		t.Fatal("expected error reading past EOF")
	}
	stepErr, ok := err.(*StepError)
	if !ok {
		t.Fatalf("error type = %T, want *StepError", err)
	}
	if stepErr.Level != 0 {
		t.Errorf("Level = %d, want 0", stepErr.Level)
	}
}

type panicOnce struct{}

func (panicOnce) ReceiveLen() int { return 0 }
func (panicOnce) SendLen() int    { return 0 }
func (panicOnce) End() bool       { return false }
func (panicOnce) Step(incoming []byte) ([]byte, Session, error) {
	panic("boom")
}

func TestChannelExecuteAsyncRecoversPanic(t *testing.T) {
	ch := NewChannel(bytes.NewBuffer(nil), &bytes.Buffer{})
	err := <-ch.ExecuteAsync(panicOnce{}, nil)
	if err == nil {
		t.Fatal("expected ExecuteAsync to report the recovered panic as an error")
	}
}

func TestChannelExecuteEndIsIdentity(t *testing.T) {
	in := bytes.NewBuffer(nil)
	var out bytes.Buffer
	ch := NewChannel(in, &out)

	if err := ch.Execute(End{}); err != nil {
		t.Fatalf("Execute(End{}) error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("End{} wrote %d bytes, want 0", out.Len())
	}
}

func seedFill(b byte) [identity.SeedLen]byte {
	var s [identity.SeedLen]byte
	for i := range s {
		s[i] = b + byte(i)
	}
	return s
}

func ephSeedFill(b byte) [identity.SeedLen]byte { return seedFill(b) }

func kemSeedFill(b byte) [kem.EncapsulationSeedLen]byte {
	var s [kem.EncapsulationSeedLen]byte
	for i := range s {
		s[i] = b + byte(i)
	}
	return s
}

// TestXKHandshakeOverSessionGraph drives a full XK handshake (spec.md §4.3)
// as a session graph over a pair of connected pipes, exercising C1-C6's
// noise/cipher/handshake machinery underneath C10's step/executor
// abstraction.
func TestXKHandshakeOverSessionGraph(t *testing.T) {
	c := curve.Curve25519
	cfg := handshake.Config{Curve: c}

	initPub, initSec, err := identity.Generate(c, seedFill(0x10))
	if err != nil {
		t.Fatalf("initiator Generate() error = %v", err)
	}
	respPub, respSec, err := identity.Generate(c, seedFill(0x20))
	if err != nil {
		t.Fatalf("responder Generate() error = %v", err)
	}

	initToResp, respFromInit := io.Pipe()
	respToInit, initFromResp := io.Pipe()

	var initCipher, respCipher handshake.Cipher
	initSession := NewXKInitiatorSession(cfg, initPub, initSec, respPub, respPub.Fingerprint(), ephSeedFill(0x30), kemSeedFill(0x50), kemSeedFill(0x60), cipher.NoRotor{}, 0, func(c handshake.Cipher) { initCipher = c })
	respSession := NewXKResponderSession(cfg, respPub, respSec, ephSeedFill(0x40), kemSeedFill(0x70), kemSeedFill(0x80), cipher.NoRotor{}, 0, func(c handshake.Cipher) { respCipher = c })

	initChannel := NewChannel(initFromResp, initToResp)
	respChannel := NewChannel(respFromInit, respToInit)

	errs := make(chan error, 2)
	go func() { errs <- initChannel.Execute(initSession) }()
	go func() { errs <- respChannel.Execute(respSession) }()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}

	if initCipher.HandshakeHash != respCipher.HandshakeHash {
		t.Error("initiator and responder handshake hashes do not match")
	}

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
