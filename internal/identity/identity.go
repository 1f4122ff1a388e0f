// Package identity provides hybrid classical+post-quantum node identities:
// a curve public key paired with a lattice KEM public key, bound together
// into a single fingerprint. The keygen/persist/load shape is carried over
// from the teacher's agent-identity package, but AgentID's flat 16-byte
// random value is replaced by a deterministic hybrid keypair (spec.md §3).
package identity

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/coinstash/vru-mesh/internal/curve"
	"github.com/coinstash/vru-mesh/internal/kem"
	"golang.org/x/crypto/sha3"
)

const (
	// SeedLen is the size of the deterministic keygen seed: 32 bytes for
	// the curve scalar plus 64 bytes for the KEM pair seed (spec.md §3).
	SeedLen = 32 + kem.PairSeedLen

	// IdentityLen is the size of the hybrid fingerprint (§3: 32-byte
	// SHA3-256 hash of the curve point and the KEM public-key hash).
	IdentityLen = 32

	identityFileName = "identity"
	secretFileName    = "identity_secret"

	// identityTag0 and identityTag1 tag the printable encoding so a pasted identity
	// can't be confused with some other base64 blob (§3: "externally
	// printable as base64 of 0xBEBE || compressed curve point || lattice
	// hash").
	identityTag0 = 0xBE
	identityTag1 = 0xBE
)

var (
	// ErrInvalidSeedLength is returned when a keygen seed is the wrong size.
	ErrInvalidSeedLength = errors.New("identity: seed must be identity.SeedLen bytes")

	// ErrInvalidEncoding is returned when a printable identity string
	// doesn't parse.
	ErrInvalidEncoding = errors.New("identity: invalid printable encoding")

	// ZeroIdentity is the uninitialized fingerprint.
	ZeroIdentity = Identity{}
)

// Identity is the 32-byte hybrid fingerprint of a PublicKey.
type Identity [IdentityLen]byte

// PublicKey is a node's externally-shared hybrid public key: a classical
// curve point plus a lattice KEM public key (spec.md §3).
type PublicKey struct {
	Curve  curve.Curve
	Point  curve.Point
	KEMKey kem.PublicKey
}

// SecretKey is a node's hybrid secret key, never shared. Store keeps only
// the seed on disk; the key is re-derived from that seed.
type SecretKey struct {
	Curve     curve.Curve
	Scalar    curve.Scalar
	KEMSecret kem.SecretKey
}

// Generate derives a hybrid keypair deterministically from a SeedLen-byte
// seed: the first 32 bytes clamp to a curve scalar, the remaining
// kem.PairSeedLen bytes derive the lattice keypair (§3).
func Generate(c curve.Curve, seed [SeedLen]byte) (PublicKey, SecretKey, error) {
	scalar, err := c.DecodeScalar(seed[:32])
	if err != nil {
		return PublicKey{}, SecretKey{}, fmt.Errorf("identity: derive curve scalar: %w", err)
	}

	var kemSeed [kem.PairSeedLen]byte
	copy(kemSeed[:], seed[32:])
	kemPub, kemSec := kem.GenerateKeyPair(kemSeed)

	point := c.ScalarBaseMult(scalar)

	pub := PublicKey{Curve: c, Point: point, KEMKey: kemPub}
	sec := SecretKey{Curve: c, Scalar: scalar, KEMSecret: kemSec}
	return pub, sec, nil
}

// GenerateRandom derives a hybrid keypair from a fresh crypto/rand seed.
func GenerateRandom(c curve.Curve) (PublicKey, SecretKey, error) {
	var seed [SeedLen]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return PublicKey{}, SecretKey{}, fmt.Errorf("identity: read random seed: %w", err)
	}
	return Generate(c, seed)
}

// Fingerprint computes the Identity for this public key: SHA3-256 over the
// compressed curve point concatenated with the KEM public-key hash (§3).
func (pk PublicKey) Fingerprint() Identity {
	h := sha3.New256()
	h.Write(pk.Curve.Compress(pk.Point))
	kemHash := pk.KEMKey.Hash()
	h.Write(kemHash[:])
	var out Identity
	h.Sum(out[:0])
	return out
}

// String renders the public key as spec.md §3's printable identity:
// base64 of 0xBEBE || compressed curve point || lattice hash.
func (pk PublicKey) String() string {
	kemHash := pk.KEMKey.Hash()
	buf := make([]byte, 0, 2+pk.Curve.CompressedLen()+len(kemHash))
	buf = append(buf, identityTag0, identityTag1)
	buf = append(buf, pk.Curve.Compress(pk.Point)...)
	buf = append(buf, kemHash[:]...)
	return base64.StdEncoding.EncodeToString(buf)
}

// ParsePublicKey decodes a printable identity produced by PublicKey.String.
// It does not recover the KEM public key itself (only its hash is carried
// in the printable form) — callers that need the full PublicKey must fetch
// it out of band and verify it against the returned Identity.
func ParsePublicKey(c curve.Curve, s string) (curve.Point, Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, ZeroIdentity, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	want := 2 + c.CompressedLen() + kem.PublicKeyHashLen
	if len(raw) != want {
		return nil, ZeroIdentity, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidEncoding, len(raw), want)
	}
	if raw[0] != identityTag0 || raw[1] != identityTag1 {
		return nil, ZeroIdentity, fmt.Errorf("%w: bad tag bytes", ErrInvalidEncoding)
	}

	compressed := raw[2 : 2+c.CompressedLen()]
	kemHash := raw[2+c.CompressedLen():]

	point, err := c.Decompress(compressed)
	if err != nil {
		return nil, ZeroIdentity, fmt.Errorf("identity: decompress curve point: %w", err)
	}

	h := sha3.New256()
	h.Write(compressed)
	h.Write(kemHash)
	var id Identity
	h.Sum(id[:0])
	return point, id, nil
}

// IsZero reports whether id is the uninitialized fingerprint.
func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// Equal reports whether two Identities match.
func (id Identity) Equal(other Identity) bool {
	return id == other
}

// Bytes returns the raw 32-byte fingerprint.
func (id Identity) Bytes() []byte {
	return id[:]
}

// String returns the hex-free base64 rendering of a bare Identity value
// (used for log lines, not the full printable public key).
func (id Identity) String() string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// Store persists the keygen seed and the printable public identity to
// dataDir, writing atomically the way the teacher's AgentID.Store does.
// Only the seed is kept on disk; PublicKey and SecretKey are re-derived
// from it on Load, so the two key materials can never drift apart.
func Store(dataDir string, seed [SeedLen]byte, pub PublicKey) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("identity: create data directory: %w", err)
	}

	idPath := filepath.Join(dataDir, identityFileName)
	if err := writeAtomic(idPath, []byte(pub.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("identity: store public identity: %w", err)
	}

	secPath := filepath.Join(dataDir, secretFileName)
	if err := writeAtomic(secPath, []byte(base64.StdEncoding.EncodeToString(seed[:])+"\n"), 0600); err != nil {
		return fmt.Errorf("identity: store secret seed: %w", err)
	}

	return nil
}

// Load reads a persisted seed from dataDir and re-derives the hybrid
// keypair against curve c.
func Load(dataDir string, c curve.Curve) (PublicKey, SecretKey, error) {
	secPath := filepath.Join(dataDir, secretFileName)
	data, err := os.ReadFile(secPath)
	if err != nil {
		if os.IsNotExist(err) {
			return PublicKey{}, SecretKey{}, fmt.Errorf("identity: not found at %s", secPath)
		}
		return PublicKey{}, SecretKey{}, fmt.Errorf("identity: read secret seed: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return PublicKey{}, SecretKey{}, fmt.Errorf("identity: decode secret seed: %w", err)
	}
	if len(raw) != SeedLen {
		return PublicKey{}, SecretKey{}, fmt.Errorf("%w: got %d bytes", ErrInvalidSeedLength, len(raw))
	}

	var seed [SeedLen]byte
	copy(seed[:], raw)
	return Generate(c, seed)
}

// LoadOrCreate loads an existing identity from dataDir, or generates and
// persists a new one if none exists, mirroring the teacher's
// AgentID.LoadOrCreate.
func LoadOrCreate(dataDir string, c curve.Curve) (PublicKey, SecretKey, bool, error) {
	pub, sec, err := Load(dataDir, c)
	if err == nil {
		return pub, sec, false, nil
	}
	if !strings.Contains(err.Error(), "not found") {
		return PublicKey{}, SecretKey{}, false, err
	}

	var seed [SeedLen]byte
	if _, err := io.ReadFull(rand.Reader, seed[:]); err != nil {
		return PublicKey{}, SecretKey{}, false, fmt.Errorf("identity: read random seed: %w", err)
	}

	pub, sec, err = Generate(c, seed)
	if err != nil {
		return PublicKey{}, SecretKey{}, false, err
	}
	if err := Store(dataDir, seed, pub); err != nil {
		return PublicKey{}, SecretKey{}, false, err
	}

	return pub, sec, true, nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Exists reports whether a persisted identity is present in dataDir.
func Exists(dataDir string) bool {
	_, err := os.Stat(filepath.Join(dataDir, identityFileName))
	return err == nil
}
