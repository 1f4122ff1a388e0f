// Package kem wraps a lattice-based key-encapsulation mechanism behind the
// opaque contract spec.md §3 describes: named byte lengths, a deterministic
// generate/encapsulate pair, and an infallible decapsulate that implements
// implicit rejection. The module never reaches into the lattice math
// itself — that primitive is treated as a black box, grounded on
// github.com/cloudflare/circl/kem/kyber/kyber768 (the same library
// FiloSottile-age composes with X25519 in its x25519Kyber768 recipient,
// found vendored in the retrieved cloudflared tree).
package kem

import (
	"fmt"

	"github.com/cloudflare/circl/kem/kyber/kyber768"
	"golang.org/x/crypto/sha3"
)

// Named byte lengths, per spec.md §3 and §6.
const (
	PairSeedLen          = kyber768.KeySeedSize          // 64
	EncapsulationSeedLen = kyber768.EncapsulationSeedSize // 32
	SharedSecretLen      = kyber768.SharedKeySize         // 32
	PublicKeyHashLen     = 32
	PublicKeyLen         = kyber768.PublicKeySize
	SecretKeyLen         = kyber768.PrivateKeySize
	CiphertextLen        = kyber768.CiphertextSize
)

// PublicKey is a packed Kyber768 public key plus its cached SHA3-256 hash
// (spec.md §3's public_key_hash), computed once at construction so callers
// of Hash (such as identity fingerprinting) need not re-hash.
// Encapsulate and Decapsulate do not use it.
type PublicKey struct {
	pk   *kyber768.PublicKey
	raw  [PublicKeyLen]byte
	hash [PublicKeyHashLen]byte
}

// SecretKey is a packed Kyber768 private key. Implicit rejection (spec.md
// §3, §5 invariant 5) is handled entirely inside circl's DecapsulateTo: an
// invalid ciphertext yields a pseudorandom but stable shared secret derived
// from a rejection seed folded into the packed private key, never an error.
type SecretKey struct {
	sk *kyber768.PrivateKey
}

func (pk PublicKey) Len() int      { return PublicKeyLen }
func (pk PublicKey) Bytes() []byte { return append([]byte(nil), pk.raw[:]...) }

// Hash returns the cached public-key hash.
func (pk PublicKey) Hash() [PublicKeyHashLen]byte { return pk.hash }

// DecodePublicKey unpacks a wire-format Kyber768 public key.
func DecodePublicKey(buf []byte) (PublicKey, error) {
	var out PublicKey
	if len(buf) != PublicKeyLen {
		return out, fmt.Errorf("kem: public key must be %d bytes, got %d", PublicKeyLen, len(buf))
	}
	pk := new(kyber768.PublicKey)
	pk.Unpack(buf)
	out.pk = pk
	copy(out.raw[:], buf)
	out.hash = sha3.Sum256(buf)
	return out, nil
}

// GenerateKeyPair deterministically derives a Kyber768 keypair from a
// 64-byte seed (spec.md §3: pair_seed = 64).
func GenerateKeyPair(seed [PairSeedLen]byte) (PublicKey, SecretKey) {
	pk, sk := kyber768.NewKeyFromSeed(seed[:])

	var raw [PublicKeyLen]byte
	pk.Pack(raw[:])

	return PublicKey{
		pk:   pk,
		raw:  raw,
		hash: sha3.Sum256(raw[:]),
	}, SecretKey{sk: sk}
}

// Encapsulate deterministically produces a ciphertext and shared secret
// against pk using a 32-byte seed (spec.md §3: encapsulation_seed = 32).
func Encapsulate(seed [EncapsulationSeedLen]byte, pk PublicKey) (ciphertext [CiphertextLen]byte, sharedSecret [SharedSecretLen]byte) {
	pk.pk.EncapsulateTo(ciphertext[:], sharedSecret[:], seed[:])
	return
}

// Decapsulate recovers the shared secret from a ciphertext. It never fails:
// a ciphertext that doesn't correspond to any encapsulation under sk yields
// a pseudorandom, but stable for a given (sk, ciphertext) pair, substitute
// via circl's implicit rejection.
func Decapsulate(sk SecretKey, ciphertext [CiphertextLen]byte) (sharedSecret [SharedSecretLen]byte) {
	sk.sk.DecapsulateTo(sharedSecret[:], ciphertext[:])
	return
}
