// Package config provides configuration parsing and validation for the
// vru-mesh core transport: which curve backs the handshakes, which rotor
// the record cipher uses and how often it rekeys, the Sphinx width
// parameters, and the log settings. The hash (SHA3-256), the AEAD
// (ChaCha20-Poly1305) and the record nonce encoding (big-endian counter)
// are fixed in code and are not selectable here. It is
// trimmed from the teacher's (postalsys-Muti-Metroo) much larger
// internal/config, which additionally configures listeners, peers, TLS,
// SOCKS5, routing and the rest of the node runtime — none of which this
// core transport owns (spec.md §1's OUT OF SCOPE, carried into SPEC_FULL.md
// §5's non-goals). The load/default/validate/parse shape and the
// environment-variable expansion are kept verbatim from the teacher.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suite selects the concrete primitives and operating parameters for one
// vru-mesh endpoint — spec.md §9's "feature-gated primitives" note, scoped
// to exactly the knobs the core transport has: which Curve backs the
// hybrid handshakes, which rotor and rekey interval the record cipher runs,
// the Sphinx width parameters, and the log settings.
type Suite struct {
	// Curve selects the classical DH group: "curve25519" or "secp256k1".
	Curve string `yaml:"curve"`

	// RotorInterval is the number of records a Cipher seals or opens
	// before its rotor fires. Zero disables rekeying.
	RotorInterval uint64 `yaml:"rotor_interval"`

	// Rotor selects the rekey strategy: "none" or "hkdf".
	Rotor string `yaml:"rotor"`

	// SphinxPayloadLen is the width, in bytes, of one hop's opaque
	// routing-info slot in a Sphinx packet.
	SphinxPayloadLen int `yaml:"sphinx_payload_len"`

	// SphinxMaxHops is the fixed path width N every Sphinx packet this
	// suite builds or processes is sized for.
	SphinxMaxHops int `yaml:"sphinx_max_hops"`

	// LogLevel and LogFormat configure internal/logging, matching the
	// teacher's agent-level logging knobs.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the suite's zero-configuration defaults.
func Default() *Suite {
	return &Suite{
		Curve:            "curve25519",
		RotorInterval:    0,
		Rotor:            "none",
		SphinxPayloadLen: 20,
		SphinxMaxHops:    5,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// Load reads and parses a Suite from a YAML file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse parses a Suite from YAML bytes, expanding ${VAR}/$VAR environment
// references first, defaulting unset fields, then validating.
func Parse(data []byte) (*Suite, error) {
	expanded := expandEnvVars(string(data))

	suite := Default()
	if err := yaml.Unmarshal([]byte(expanded), suite); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := suite.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return suite, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

// Validate checks that every field names a primitive or parameter this
// module actually implements.
func (s *Suite) Validate() error {
	var errs []string

	if !isValidCurve(s.Curve) {
		errs = append(errs, fmt.Sprintf("invalid curve: %s (must be curve25519 or secp256k1)", s.Curve))
	}
	if !isValidRotor(s.Rotor) {
		errs = append(errs, fmt.Sprintf("invalid rotor: %s (must be none or hkdf)", s.Rotor))
	}
	if s.SphinxPayloadLen < 1 {
		errs = append(errs, "sphinx_payload_len must be positive")
	}
	if s.SphinxMaxHops < 1 || s.SphinxMaxHops > 255 {
		errs = append(errs, "sphinx_max_hops must be between 1 and 255")
	}
	if !isValidLogLevel(s.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log_level: %s (must be debug, info, warn, or error)", s.LogLevel))
	}
	if !isValidLogFormat(s.LogFormat) {
		errs = append(errs, fmt.Sprintf("invalid log_format: %s (must be text or json)", s.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RotorRotateInterval reports the rotateInterval argument internal/cipher's
// Cipher constructor expects for this suite (0 when rotation is disabled).
func (s *Suite) RotorRotateInterval() uint64 {
	if s.Rotor == "none" {
		return 0
	}
	return s.RotorInterval
}

func isValidCurve(v string) bool {
	return v == "curve25519" || v == "secp256k1"
}

func isValidRotor(v string) bool {
	return v == "none" || v == "hkdf"
}

func isValidLogLevel(v string) bool {
	switch v {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(v string) bool {
	return v == "text" || v == "json"
}

// String renders the suite for diagnostic logging (never includes secrets
// — this type holds no key material, only primitive selection).
func (s *Suite) String() string {
	return fmt.Sprintf("curve=%s rotor=%s(%d) sphinx=%d-byte/%d-hop log=%s/%s",
		s.Curve, s.Rotor, s.RotorInterval, s.SphinxPayloadLen, s.SphinxMaxHops, s.LogLevel, s.LogFormat)
}
