// Package cipher implements the record-layer AEAD cipher the handshake's
// Split() keys feed into: a per-direction counter-nonce ChaCha20-Poly1305
// stream, with a pluggable rekey "rotor" hook. Grounded on the teacher's
// internal/crypto.SessionKey (direction-tagged nonce counters over
// ChaCha20-Poly1305) generalized with the rekey-rotor concept from
// vru-noise's CipherState/Rotor trait (state/cipher_state.rs,
// state/traits.rs), whose INTERVAL-triggered rotor.rotate call this
// package's Cipher.advance reproduces.
//
// spec.md §9 leaves open whether the two directions of a session should
// rekey in lockstep or independently; this package resolves it independently
// — a Cipher only ever advances its own counter and its own rotor, so the
// send and receive Cipher of a session rotate on their own schedules.
package cipher

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

// KeySize and NonceSize match the teacher's internal/crypto constants.
const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSize
	TagSize   = 16
)

// Rotor derives the next chaining key and record key from the current pair
// when a Cipher's message counter crosses a rotation interval. It is the Go
// analogue of vru-noise's Rotor trait, which mutates a chaining key and an
// AEAD key together rather than deriving a lone key from itself.
type Rotor interface {
	// Rotate returns the next (chainingKey, key) pair given the current
	// chaining key and the key being rotated out.
	Rotate(chainingKey, storedSecret [KeySize]byte) (newChainingKey, newKey [KeySize]byte)
}

// NoRotor never rekeys; a Cipher configured with it behaves like the
// teacher's SessionKey, which holds one key for the lifetime of a stream.
type NoRotor struct{}

func (NoRotor) Rotate(chainingKey, storedSecret [KeySize]byte) (newChainingKey, newKey [KeySize]byte) {
	return chainingKey, storedSecret
}

// HKDFRotor rekeys via the Rotor contract's two-output HKDF step:
// (new_chaining_key, new_key) := HKDF2(old_chaining_key, stored_secret).
// Like package noise's SymmetricState.Split it is a single HMAC extract
// followed by two expansions (see hkdfRotate for how its expansions are
// keyed), so rekeying is "derive the next epoch" rather than a distinct
// mechanism.
type HKDFRotor struct{}

func (HKDFRotor) Rotate(chainingKey, storedSecret [KeySize]byte) (newChainingKey, newKey [KeySize]byte) {
	return hkdfRotate(chainingKey, storedSecret)
}

// Cipher is one direction of a record-layer session: a key, the chaining
// key its rotor derives the next epoch from, a monotonic message counter
// used as the nonce, and a rotor that fires every RotateInterval messages.
// Safe for concurrent use.
type Cipher struct {
	mu             sync.Mutex
	key            [KeySize]byte
	chainingKey    [KeySize]byte
	counter        uint64
	rotor          Rotor
	rotateInterval uint64
	messagesSent   uint64
	bytesSent      uint64
}

// New builds a Cipher for one direction. chainingKey seeds the rotor's
// HKDF2 chain (the handshake's final chaining key, split per direction);
// rotateInterval of 0 disables rotation regardless of the rotor supplied.
func New(key, chainingKey [KeySize]byte, rotor Rotor, rotateInterval uint64) *Cipher {
	if rotor == nil {
		rotor = NoRotor{}
	}
	return &Cipher{key: key, chainingKey: chainingKey, rotor: rotor, rotateInterval: rotateInterval}
}

// Seal encrypts plaintext under the current key and counter-derived nonce,
// authenticating associatedData, and advances the counter (rotating the key
// if the interval was crossed).
func (c *Cipher) Seal(associatedData, plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: build aead: %w", err)
	}

	nonce := nonceFor(c.counter)
	ciphertext := aead.Seal(nil, nonce[:], plaintext, associatedData)

	c.bytesSent += uint64(len(plaintext))
	c.messagesSent++
	c.advance()

	return ciphertext, nil
}

// Open decrypts a record sealed with the matching counter value, then
// advances the counter. Records must arrive in order; spec.md's fixed-MTU
// datagram codec (internal/datagram) is responsible for any reordering
// tolerance above this layer.
func (c *Cipher) Open(associatedData, ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	aead, err := chacha20poly1305.New(c.key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: build aead: %w", err)
	}

	nonce := nonceFor(c.counter)
	plaintext, err := aead.Open(nil, nonce[:], ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("cipher: open record at counter %d: %w", c.counter, err)
	}

	c.advance()
	return plaintext, nil
}

// advance increments the counter and fires the rotor at the configured
// interval, mirroring CipherState::next.
func (c *Cipher) advance() {
	c.counter++
	if c.rotateInterval != 0 && c.counter%c.rotateInterval == 0 {
		c.chainingKey, c.key = c.rotor.Rotate(c.chainingKey, c.key)
	}
}

// Counter returns the next nonce counter value (for diagnostics/metrics).
func (c *Cipher) Counter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}

func nonceFor(counter uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.BigEndian.PutUint64(nonce[4:], counter)
	return nonce
}

// hkdfRotate implements HKDF2(chainingKey, storedSecret): a single HMAC
// extract into a temp key, then two chained HMAC expansions over a one-byte
// counter: the first keyed by the temp key, the second keyed by the first
// output. This differs from package noise's hkdfSplit, which keys every
// expansion with the temp key and feeds the previous output in as data.
// It is kept as its own function since the Rotor contract operates on a
// cipher's own chaining key, not the handshake's.
func hkdfRotate(chainingKey, storedSecret [KeySize]byte) (newChainingKey, newKey [KeySize]byte) {
	tempKey := hmacSum(chainingKey[:], storedSecret[:])
	out1 := hmacSum(tempKey[:], []byte{1})
	out2 := hmacSum(out1[:], []byte{2})
	return out1, out2
}

func hmacSum(key, data []byte) [KeySize]byte {
	mac := hmac.New(sha3.New256, key)
	mac.Write(data)
	var out [KeySize]byte
	mac.Sum(out[:0])
	return out
}
