package sphinx

import (
	"bytes"
	"testing"

	"github.com/coinstash/vru-mesh/internal/curve"
)

func TestPoolProcessesConcurrently(t *testing.T) {
	c := curve.Curve25519
	ad := []byte("vru")
	sk := scalarOf(c, 0x70)
	pk := c.ScalarBaseMult(sk)
	session := scalarOf(c, 0x71)

	const n = 8
	pool := NewPool(c, sk, 1, testPayloadLen, 3, nil)

	for i := 0; i < n; i++ {
		payloads := [][]byte{bytes.Repeat([]byte{byte(i)}, testPayloadLen)}
		pkt, err := NewPacket(c, session, []curve.Point{pk}, payloads, testPayloadLen, []byte("m"), ad)
		if err != nil {
			t.Fatalf("NewPacket() error = %v", err)
		}
		pool.Submit(i, Job{Packet: pkt, AD: ad})
	}

	go pool.Close()

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		r := <-pool.Results()
		if r.Err != nil {
			t.Fatalf("Result[%d] error = %v", r.Index, r.Err)
		}
		if !r.Output.Exit {
			t.Errorf("Result[%d]: expected exit", r.Index)
		}
		want := byte(r.Index)
		if r.Output.Data[0] != want {
			t.Errorf("Result[%d]: data[0] = %d, want %d", r.Index, r.Output.Data[0], want)
		}
		seen[r.Index] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct results, want %d", len(seen), n)
	}
}
