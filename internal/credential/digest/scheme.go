package digest

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"

	"anchorcred/internal/credential/models"
)

// newHash returns a fresh hash for one of the closed set of schemes.
func newHash(scheme models.HashScheme) (hash.Hash, error) {
	switch scheme {
	case models.SchemeSHA256:
		return sha256.New(), nil
	case models.SchemeBLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unsupported hash scheme %d", scheme)
	}
}

// Sum hashes the concatenation of parts under scheme.
func Sum(scheme models.HashScheme, parts ...[]byte) (models.Digest, error) {
	var out models.Digest
	h, err := newHash(scheme)
	if err != nil {
		return out, err
	}
	for _, p := range parts {
		h.Write(p)
	}
	copy(out[:], h.Sum(nil))
	return out, nil
}
