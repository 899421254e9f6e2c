package models

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// DigestSize is the output size of every supported hash scheme.
const DigestSize = 32

// SaltSize is the length of a statement salt.
const SaltSize = 32

// Digest is a 256-bit hash value. Text form is 0x-prefixed lowercase hex.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// IsZero reports whether the digest was never set.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Compare orders digests by byte value.
func (d Digest) Compare(other Digest) int {
	return bytes.Compare(d[:], other[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a 0x-prefixed (or bare) hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return d, fmt.Errorf("decode digest: %w", err)
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

// Salt is the per-statement random blinding value. Text form is unpadded base64url.
type Salt [SaltSize]byte

func (s Salt) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Salt) UnmarshalText(text []byte) error {
	raw, err := base64.RawURLEncoding.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}
	if len(raw) != SaltSize {
		return fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(raw))
	}
	copy(s[:], raw)
	return nil
}

// Path addresses a statement inside a credential using JSON Pointer syntax.
type Path string

// Structural paths. Subject and schema are mandatory and can never be hidden.
const (
	PathSubjectID    Path = "/credentialSubject/id"
	PathSchemaID     Path = "/schemaRef"
	PathIssuer       Path = "/issuer"
	PathDelegationID Path = "/delegation/id"

	claimPathPrefix        = "/credentialSubject/"
	legitimationPathPrefix = "/legitimations/"
)

// SubjectIDKey is the credentialSubject member holding the subject identifier.
const SubjectIDKey = "id"

// MandatoryPaths lists the statements every verifiable credential must reveal.
var MandatoryPaths = []Path{PathSubjectID, PathSchemaID}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")
var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// PathForClaim returns the statement path of a top-level credentialSubject property.
func PathForClaim(key string) Path {
	return Path(claimPathPrefix + pointerEscaper.Replace(key))
}

// PathForLegitimation returns the statement path of the i-th legitimation.
func PathForLegitimation(i int) Path {
	return Path(legitimationPathPrefix + strconv.Itoa(i))
}

// ClaimKey returns the credentialSubject key for claim paths.
func (p Path) ClaimKey() (string, bool) {
	rest, ok := strings.CutPrefix(string(p), claimPathPrefix)
	if !ok || p == PathSubjectID {
		return "", false
	}
	return pointerUnescaper.Replace(rest), true
}

// IsMandatory reports whether the path may never be hidden.
func (p Path) IsMandatory() bool {
	for _, m := range MandatoryPaths {
		if p == m {
			return true
		}
	}
	return false
}

// HashScheme is the closed set of supported digest algorithms.
type HashScheme uint8

const (
	SchemeSHA256 HashScheme = iota + 1
	SchemeBLAKE2b256
)

// DefaultHashScheme is used when no scheme is configured.
const DefaultHashScheme = SchemeSHA256

func (s HashScheme) String() string {
	switch s {
	case SchemeSHA256:
		return "sha2-256"
	case SchemeBLAKE2b256:
		return "blake2b-256"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a supported scheme.
func (s HashScheme) Valid() bool {
	return s == SchemeSHA256 || s == SchemeBLAKE2b256
}

// ParseHashScheme maps a wire name to a scheme.
func ParseHashScheme(name string) (HashScheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sha2-256", "sha256":
		return SchemeSHA256, nil
	case "blake2b-256", "blake2b256":
		return SchemeBLAKE2b256, nil
	default:
		return 0, fmt.Errorf("unsupported hash algorithm %q", name)
	}
}

func (s HashScheme) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unsupported hash scheme %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText leaves unknown names as the invalid zero scheme so a presented
// proof still decodes and ParseProof can report it as a digest mismatch.
func (s *HashScheme) UnmarshalText(text []byte) error {
	parsed, err := ParseHashScheme(string(text))
	if err != nil {
		*s = 0
		return nil
	}
	*s = parsed
	return nil
}

// StatementDigest binds one statement path to its salt and salted digest.
type StatementDigest struct {
	Path   Path
	Salt   Salt
	Digest Digest
}
