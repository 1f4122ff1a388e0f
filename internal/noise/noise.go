// Package noise implements the Noise-style symmetric state engine the
// handshake patterns drive: a chaining key and transcript hash that absorb
// every DH/KEM output and handshake payload, plus the AEAD encrypt/decrypt
// calls those payloads are carried in. Grounded on
// vru-noise/src/state/symmetric_state.rs and cipher_state.rs — this port
// keeps the mix_hash/mix_key/mix_psk/split shape but drops the Rust
// generic-array/typenum machinery, since Go fixes the hash and AEAD choice
// to SHA3-256 and ChaCha20-Poly1305 (the same AEAD the teacher's
// internal/crypto.SessionKey already uses for its record cipher).
package noise

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/sha3"
)

// HashLen is the width of the chaining key and transcript hash.
const HashLen = 32

// KeyLen is the ChaCha20-Poly1305 key width.
const KeyLen = chacha20poly1305.KeySize

// ChainingKey accumulates keying material across the handshake.
type ChainingKey [HashLen]byte

// Hash is the running transcript hash (spec.md §4.1's mix_hash output).
type Hash [HashLen]byte

// SymmetricState is the mutable engine driving one handshake session. It is
// not safe for concurrent use; each handshake owns exactly one instance.
type SymmetricState struct {
	chainingKey ChainingKey
	hash        Hash
	hasKey      bool
	key         [KeyLen]byte
	nonce       uint64
}

// New initializes a SymmetricState from the handshake's protocol name
// (e.g. "vru_XK_25519+kyber768_chachapoly_sha3"), following the Noise
// convention: names that fit in HashLen are zero-padded, longer ones are
// hashed down.
func New(protocolName string) *SymmetricState {
	var h Hash
	name := []byte(protocolName)
	if len(name) <= HashLen {
		copy(h[:], name)
	} else {
		h = sha3.Sum256(name)
	}
	return &SymmetricState{chainingKey: ChainingKey(h), hash: h}
}

// Hash returns the current transcript hash, used as the handshake's channel
// binding value once the handshake completes.
func (s *SymmetricState) Hash() Hash { return s.hash }

// HasKey reports whether a cipher key has been established, i.e. whether
// EncryptAndHash actually encrypts or just passes through while mixing.
func (s *SymmetricState) HasKey() bool { return s.hasKey }

// MixHash folds data into the running transcript hash.
func (s *SymmetricState) MixHash(data []byte) {
	h := sha3.New256()
	h.Write(s.hash[:])
	h.Write(data)
	var out Hash
	h.Sum(out[:0])
	s.hash = out
}

// MixSharedSecret folds a DH or KEM shared secret into the chaining key and
// derives a fresh cipher key, resetting the nonce counter (spec.md §4.2's
// mix_shared_secret, generalizing mix_key to cover both DH and KEM
// outputs).
func (s *SymmetricState) MixSharedSecret(secret []byte) {
	outs := hkdfSplit(s.chainingKey, secret, 2)
	s.chainingKey = ChainingKey(outs[0])
	s.key = outs[1]
	s.hasKey = true
	s.nonce = 0
}

// MixPSK folds a pre-shared key into the chaining key, additionally mixing
// an intermediate value into the transcript hash the way
// SymmetricState::mix_psk does.
func (s *SymmetricState) MixPSK(psk []byte) {
	outs := hkdfSplit(s.chainingKey, psk, 3)
	s.chainingKey = ChainingKey(outs[0])
	s.MixHash(outs[1][:])
	s.key = outs[2]
	s.hasKey = true
	s.nonce = 0
}

// EncryptAndHash seals plaintext under the current key (transcript hash as
// associated data) and mixes the ciphertext into the transcript, or, before
// any key has been established, passes the payload through unencrypted
// while still mixing it in — exactly Noise's EncryptAndHash over an empty
// cipher key.
func (s *SymmetricState) EncryptAndHash(plaintext []byte) ([]byte, error) {
	if !s.hasKey {
		out := append([]byte(nil), plaintext...)
		s.MixHash(plaintext)
		return out, nil
	}

	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("noise: build aead: %w", err)
	}

	nonce := s.nonceBytes()
	ciphertext := aead.Seal(nil, nonce, plaintext, s.hash[:])
	s.nonce++
	s.MixHash(ciphertext)
	return ciphertext, nil
}

// DecryptAndHash is EncryptAndHash's inverse.
func (s *SymmetricState) DecryptAndHash(ciphertext []byte) ([]byte, error) {
	if !s.hasKey {
		out := append([]byte(nil), ciphertext...)
		s.MixHash(ciphertext)
		return out, nil
	}

	aead, err := chacha20poly1305.New(s.key[:])
	if err != nil {
		return nil, fmt.Errorf("noise: build aead: %w", err)
	}

	nonce := s.nonceBytes()
	plaintext, err := aead.Open(nil, nonce, ciphertext, s.hash[:])
	if err != nil {
		return nil, fmt.Errorf("noise: decrypt: %w", err)
	}
	s.nonce++
	s.MixHash(ciphertext)
	return plaintext, nil
}

func (s *SymmetricState) nonceBytes() []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[4:], s.nonce)
	return nonce
}

// Split finishes the handshake, deriving a send and a receive key purely
// from the final chaining key (spec.md §4.1's finish/split, mirroring
// SymmetricState::split), and returns that chaining key alongside them so
// the caller can seed each direction's own rekey rotor from it. The caller
// wraps these into record-layer ciphers (see internal/cipher); which key is
// "send" vs "receive" depends on the caller's role and is the handshake
// pattern's responsibility, not this package's.
func (s *SymmetricState) Split() (keyA, keyB [KeyLen]byte, chainingKey ChainingKey) {
	outs := hkdfSplit(s.chainingKey, nil, 2)
	return outs[0], outs[1], s.chainingKey
}

// hkdfSplit is Noise's HKDF(chaining_key, inputKeyMaterial, n): a single
// HMAC extract into a temp key, then n chained HMAC expansions, each
// keyed by the temp key over the previous output and a one-byte counter. This differs
// slightly from RFC 5869's HKDF-Expand (which derives all output bytes
// from one info string) but is the exact construction the Noise
// specification — and vru-noise's CipherState::split_2/split_3 — use.
func hkdfSplit(chainingKey ChainingKey, inputKeyMaterial []byte, n int) [][HashLen]byte {
	tempKey := hmacSum(chainingKey[:], inputKeyMaterial)

	outputs := make([][HashLen]byte, n)
	var prev []byte
	for i := 0; i < n; i++ {
		data := append(append([]byte{}, prev...), byte(i+1))
		out := hmacSum(tempKey[:], data)
		outputs[i] = out
		prev = out[:]
	}
	return outputs
}

func hmacSum(key, data []byte) [HashLen]byte {
	mac := hmac.New(sha3.New256, key)
	mac.Write(data)
	var out [HashLen]byte
	mac.Sum(out[:0])
	return out
}
