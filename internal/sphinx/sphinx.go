// Package sphinx implements the onion-packet construction and per-hop
// processing of spec.md §4.7, grounded on the key-derivation functions of
// original_source/vru-sphinx/src/sphinx.rs (τ, β, μ, ρ, π) and the
// reverse-fold construction / forward processing of
// original_source/vru-sphinx/src/packet.rs, re-expressed over this
// package's curve.Curve interface instead of vru-sphinx's generic Curve
// trait, and over runtime-sized slices instead of typenum-sized arrays
// (spec.md §9 rejects compile-time length arithmetic in favor of runtime
// checks, as internal/handshake's checkLen already does).
package sphinx

import (
	"crypto/hmac"
	"errors"
	"fmt"

	"github.com/coinstash/vru-mesh/internal/curve"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"
)

// MacLen is the width of the per-hop HMAC authenticator (§4.7's `M`).
const MacLen = 32

// SharedSecretLen is the width of a per-hop DH-derived shared secret.
const SharedSecretLen = 32

// ErrHMACMismatch is returned when a hop's recomputed HMAC does not match
// the one carried in the packet — the packet was corrupted, misrouted, or
// forged.
var ErrHMACMismatch = errors.New("sphinx: hmac mismatch")

// SharedSecret is a single hop's τ-derived DH shared secret.
type SharedSecret [SharedSecretLen]byte

// HopKeys holds a hop's τ-derived shared secret and the three sub-keys
// derived from it: μ (routing-info authentication), ρ (routing-info
// stream), π (inner message stream). The β blinding factor is computed
// separately by Blinding.
type HopKeys struct {
	Shared SharedSecret
	Mu     [32]byte
	Rho    [32]byte
	Pi     [32]byte
}

// Tau hashes a DH output into a shared secret (vru-sphinx's `tau`).
func Tau(c curve.Curve, point curve.Point) SharedSecret {
	return SharedSecret(sha3.Sum256(c.Compress(point)))
}

// Blinding computes the forward blinding scalar for a hop (vru-sphinx's
// `blinding`): a hash of the hop's current public point and its shared
// secret, decoded as a curve scalar.
func Blinding(c curve.Curve, point curve.Point, shared SharedSecret) (curve.Scalar, error) {
	h := sha3.New256()
	h.Write(c.Compress(point))
	h.Write(shared[:])
	scalar, err := c.DecodeScalar(h.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("sphinx: decode blinding scalar: %w", err)
	}
	return scalar, nil
}

func deriveKey(label string, shared SharedSecret) [32]byte {
	mac := hmac.New(sha3.New256, []byte(label))
	mac.Write(shared[:])
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

func deriveHopKeys(shared SharedSecret) HopKeys {
	return HopKeys{
		Shared: shared,
		Mu:     deriveKey("mu", shared),
		Rho:    deriveKey("rho", shared),
		Pi:     deriveKey("um", shared),
	}
}

// streamXOR XORs buf in place with the ChaCha20 keystream under key,
// starting at its first output byte.
func streamXOR(key [32]byte, buf []byte) error {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return fmt.Errorf("sphinx: init stream cipher: %w", err)
	}
	c.XORKeyStream(buf, buf)
	return nil
}

// keystreamAt returns n bytes of the ChaCha20 keystream under key starting
// at byteOffset — the Go analogue of vru-sphinx's SeekableKeyStream::seek_to,
// since chacha20.Cipher only seeks to 64-byte block boundaries.
func keystreamAt(key [32]byte, byteOffset, n int) ([]byte, error) {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("sphinx: init stream cipher: %w", err)
	}
	block := byteOffset / 64
	rem := byteOffset % 64
	c.SetCounter(uint32(block))
	buf := make([]byte, rem+n)
	c.XORKeyStream(buf, buf)
	return buf[rem:], nil
}

// PathKeys derives the per-hop shared secrets and the packet's leading
// group element α from a session scalar and the ordered hop public keys
// (spec.md §4.7's forward recurrence).
func PathKeys(c curve.Curve, session curve.Scalar, hops []curve.Point) (alpha curve.Point, perHop []HopKeys, err error) {
	alpha = c.ScalarBaseMult(session)
	x := session
	a := alpha

	perHop = make([]HopKeys, len(hops))
	for i, hop := range hops {
		dh := c.ScalarMult(x, hop)
		ss := Tau(c, dh)
		perHop[i] = deriveHopKeys(ss)

		b, err := Blinding(c, a, ss)
		if err != nil {
			return nil, nil, err
		}
		x = c.ScalarMul(x, b)
		a = c.ScalarBaseMult(x)
	}
	return alpha, perHop, nil
}

// Packet is a constructed onion packet: the fixed-width routing-info
// buffer, its authenticator, the leading group element, and the outer
// message (spec.md §4.7's `Packet = routing_info ‖ hmac ‖ message`, with
// α carried alongside since it is the value every hop needs to recompute
// its shared secret — spec.md's layout table omits it, an expansion this
// implementation makes explicit).
type Packet struct {
	Alpha       curve.Point
	RoutingInfo []byte
	HMAC        [MacLen]byte
	Message     []byte
}

// NewPacket builds a layered onion packet over hops, one opaque payload
// slot per hop (payloads[i] is hop i's slot, exactly payloadLen bytes),
// an outer message, and associated data bound into every hop's HMAC.
func NewPacket(c curve.Curve, session curve.Scalar, hops []curve.Point, payloads [][]byte, payloadLen int, message []byte, ad []byte) (*Packet, error) {
	n := len(hops)
	if len(payloads) != n {
		return nil, fmt.Errorf("sphinx: %d hops requires %d payload slots, got %d", n, n, len(payloads))
	}
	for i, p := range payloads {
		if len(p) != payloadLen {
			return nil, fmt.Errorf("sphinx: payload slot %d is %d bytes, want %d", i, len(p), payloadLen)
		}
	}

	alpha, perHop, err := PathKeys(c, session, hops)
	if err != nil {
		return nil, err
	}

	slotLen := payloadLen + MacLen
	routingInfo := make([]byte, n*slotLen)

	// Pre-seed the buffer with each hop's own ρ stream, seeked past the
	// slots it will itself XOR during the fold below, so that when a hop
	// later strips its outermost layer and shifts the buffer left, the
	// vacated tail is that hop's own keystream rather than zero — the
	// same right-shifted slot a sender who built the buffer one hop
	// shallower would have produced (vru-sphinx packet.rs's
	// AuthenticatedMessage::new first loop).
	for i := 0; i < n; i++ {
		stream, err := keystreamAt(perHop[i].Rho, slotLen*(n-i), (i+1)*slotLen)
		if err != nil {
			return nil, err
		}
		for j := range stream {
			routingInfo[j] ^= stream[j]
		}
	}

	hmacRunning := [MacLen]byte{}
	msg := append([]byte{}, message...)

	for i := n - 1; i >= 0; i-- {
		// Right-shift the routing buffer by one slot and write this hop's
		// (payload, running hmac) into slot 0.
		shifted := make([]byte, len(routingInfo))
		copy(shifted[slotLen:], routingInfo[:len(routingInfo)-slotLen])
		copy(shifted[0:payloadLen], payloads[i])
		copy(shifted[payloadLen:slotLen], hmacRunning[:])
		routingInfo = shifted

		if err := streamXOR(perHop[i].Rho, routingInfo); err != nil {
			return nil, err
		}
		if err := streamXOR(perHop[i].Pi, msg); err != nil {
			return nil, err
		}

		hmacRunning = computeHMAC(perHop[i].Mu, routingInfo, ad)
	}

	return &Packet{Alpha: alpha, RoutingInfo: routingInfo, HMAC: hmacRunning, Message: msg}, nil
}

func computeHMAC(key [32]byte, routingInfo, ad []byte) [MacLen]byte {
	mac := hmac.New(sha3.New256, key[:])
	mac.Write(routingInfo)
	mac.Write(ad)
	var out [MacLen]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// ProcessResult is the outcome of processing one hop of a Packet.
type ProcessResult struct {
	Data    []byte
	Forward *Packet
	Exit    bool
}

// Process authenticates and peels one layer off pkt at a node holding sk,
// returning either a packet to forward or, if the popped slot's HMAC is
// the all-zero exit sentinel, the final data and message (spec.md §4.7's
// node processing steps 1-5).
func Process(c curve.Curve, sk curve.Scalar, pkt *Packet, hopCount, payloadLen int, ad []byte) (ProcessResult, error) {
	ss := Tau(c, c.ScalarMult(sk, pkt.Alpha))
	keys := deriveHopKeys(ss)

	got := computeHMAC(keys.Mu, pkt.RoutingInfo, ad)
	if !hmac.Equal(got[:], pkt.HMAC[:]) {
		return ProcessResult{}, ErrHMACMismatch
	}

	routingInfo := append([]byte{}, pkt.RoutingInfo...)
	if err := streamXOR(keys.Rho, routingInfo); err != nil {
		return ProcessResult{}, err
	}

	message := append([]byte{}, pkt.Message...)
	if err := streamXOR(keys.Pi, message); err != nil {
		return ProcessResult{}, err
	}

	slotLen := payloadLen + MacLen
	data := append([]byte{}, routingInfo[:payloadLen]...)
	var nextHMAC [MacLen]byte
	copy(nextHMAC[:], routingInfo[payloadLen:slotLen])

	// Shift the buffer left by one slot (the popped slot already
	// consumed) and regenerate the vacated tail from this hop's own ρ
	// key rather than the sender's — the same self-service padding
	// reconstruction the pre-fill step in NewPacket sets up, so a node
	// never needs anything beyond its own shared secret to keep the
	// packet's width constant when forwarding.
	tailFill, err := keystreamAt(keys.Rho, hopCount*slotLen, slotLen)
	if err != nil {
		return ProcessResult{}, err
	}
	remaining := append([]byte{}, routingInfo[slotLen:]...)
	remaining = append(remaining, tailFill...)

	var zero [MacLen]byte
	if nextHMAC == zero {
		return ProcessResult{Data: data, Forward: nil, Exit: true}, nil
	}

	// A processing node has no session scalar, only α and its own sk; it
	// blinds the point it was given rather than a scalar it doesn't have:
	// b·α = b·(x·G) = (x·b)·G, the same forward-blinded group element the
	// sender would have computed as α_{i+1} (spec.md §4.7's recurrence).
	b, err := Blinding(c, pkt.Alpha, ss)
	if err != nil {
		return ProcessResult{}, err
	}
	nextAlpha := c.ScalarMult(b, pkt.Alpha)

	return ProcessResult{
		Data: data,
		Forward: &Packet{
			Alpha:       nextAlpha,
			RoutingInfo: remaining,
			HMAC:        nextHMAC,
			Message:     message,
		},
	}, nil
}
