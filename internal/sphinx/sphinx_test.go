package sphinx

import (
	"bytes"
	"testing"

	"github.com/coinstash/vru-mesh/internal/curve"
)

const testPayloadLen = 20

func scalarOf(c curve.Curve, v byte) curve.Scalar {
	buf := make([]byte, c.ScalarLen())
	for i := range buf {
		buf[i] = v + byte(i)
	}
	s, err := c.DecodeScalar(buf)
	if err != nil {
		panic(err)
	}
	return s
}

func TestThreeHopPacketRoundTrip(t *testing.T) {
	c := curve.Curve25519
	ad := []byte("vru")

	hopSecrets := []curve.Scalar{scalarOf(c, 0x10), scalarOf(c, 0x20), scalarOf(c, 0x30)}
	hopPublics := make([]curve.Point, len(hopSecrets))
	for i, sk := range hopSecrets {
		hopPublics[i] = c.ScalarBaseMult(sk)
	}

	session := scalarOf(c, 0x99)
	payloads := [][]byte{
		bytes.Repeat([]byte{0x01}, testPayloadLen),
		bytes.Repeat([]byte{0x02}, testPayloadLen),
		bytes.Repeat([]byte{0x00}, testPayloadLen), // exit hop's slot carries no "forward to" data
	}
	message := []byte("this is the onion's inner message, padded to a fixed size!!!!!")

	pkt, err := NewPacket(c, session, hopPublics, payloads, testPayloadLen, message, ad)
	if err != nil {
		t.Fatalf("NewPacket() error = %v", err)
	}

	cur := pkt
	var gotData [][]byte
	for i, sk := range hopSecrets {
		result, err := Process(c, sk, cur, len(hopSecrets), testPayloadLen, ad)
		if err != nil {
			t.Fatalf("Process() hop %d error = %v", i, err)
		}
		gotData = append(gotData, result.Data)
		if i < len(hopSecrets)-1 {
			if result.Exit {
				t.Fatalf("hop %d: unexpected exit", i)
			}
			cur = result.Forward
		} else {
			if !result.Exit {
				t.Fatalf("last hop: expected exit")
			}
			if !bytes.Equal(result.Data, payloads[2]) {
				t.Errorf("exit hop data = %x, want %x", result.Data, payloads[2])
			}
		}
	}

	if !bytes.Equal(gotData[0], payloads[0]) {
		t.Errorf("hop 0 data = %x, want %x", gotData[0], payloads[0])
	}
	if !bytes.Equal(gotData[1], payloads[1]) {
		t.Errorf("hop 1 data = %x, want %x", gotData[1], payloads[1])
	}
}

func TestProcessRejectsTamperedHMAC(t *testing.T) {
	c := curve.Curve25519
	ad := []byte("vru")

	sk := scalarOf(c, 0x40)
	pk := c.ScalarBaseMult(sk)
	session := scalarOf(c, 0x55)

	payloads := [][]byte{bytes.Repeat([]byte{0}, testPayloadLen)}
	pkt, err := NewPacket(c, session, []curve.Point{pk}, payloads, testPayloadLen, []byte("message"), ad)
	if err != nil {
		t.Fatalf("NewPacket() error = %v", err)
	}

	pkt.HMAC[0] ^= 0xFF
	if _, err := Process(c, sk, pkt, 1, testPayloadLen, ad); err == nil {
		t.Error("expected hmac mismatch error")
	}
}

func TestTauDeterministic(t *testing.T) {
	c := curve.Curve25519
	sk := scalarOf(c, 0x66)
	point := c.ScalarBaseMult(sk)

	a := Tau(c, point)
	b := Tau(c, point)
	if a != b {
		t.Error("Tau() is not deterministic")
	}
}
