// Package digest derives salted statement digests and the root commitment
// over them.
package digest

import (
	"crypto/rand"
	"fmt"
	"io"

	"anchorcred/internal/credential/canonical"
	"anchorcred/internal/credential/models"
)

// Statement is one path/value pair to be digested.
type Statement struct {
	Path  models.Path
	Value any
}

// Builder draws salts and computes statement digests.
type Builder struct {
	scheme models.HashScheme
	salts  io.Reader
}

// Option configures a Builder.
type Option func(*Builder)

// WithScheme selects the hash scheme. It must match the ledger-side scheme.
func WithScheme(scheme models.HashScheme) Option {
	return func(b *Builder) {
		b.scheme = scheme
	}
}

// WithSaltSource overrides crypto/rand. Only tests should use this.
func WithSaltSource(r io.Reader) Option {
	return func(b *Builder) {
		if r != nil {
			b.salts = r
		}
	}
}

// NewBuilder constructs a Builder with SHA-256 and crypto/rand by default.
func NewBuilder(opts ...Option) (*Builder, error) {
	b := &Builder{
		scheme: models.DefaultHashScheme,
		salts:  rand.Reader,
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.scheme.Valid() {
		return nil, fmt.Errorf("unsupported hash scheme %d", b.scheme)
	}
	return b, nil
}

// Scheme returns the configured hash scheme.
func (b *Builder) Scheme() models.HashScheme {
	return b.scheme
}

// Build salts and digests every statement of the claim plus the structural
// statements. Every statement yields exactly one digest; duplicate paths are
// rejected.
func (b *Builder) Build(claim models.Claim, structural []Statement) ([]models.StatementDigest, error) {
	statements, err := ClaimStatements(claim)
	if err != nil {
		return nil, err
	}
	statements = append(statements, structural...)

	seen := make(map[models.Path]struct{}, len(statements))
	out := make([]models.StatementDigest, 0, len(statements))
	for _, st := range statements {
		if _, dup := seen[st.Path]; dup {
			return nil, models.MalformedClaimError("duplicate statement path %s", st.Path)
		}
		seen[st.Path] = struct{}{}

		salt, err := b.newSalt()
		if err != nil {
			return nil, err
		}
		d, err := Of(b.scheme, st.Path, salt, st.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, models.StatementDigest{Path: st.Path, Salt: salt, Digest: d})
	}
	return out, nil
}

func (b *Builder) newSalt() (models.Salt, error) {
	var salt models.Salt
	if _, err := io.ReadFull(b.salts, salt[:]); err != nil {
		return salt, fmt.Errorf("draw salt: %w", err)
	}
	return salt, nil
}

// Of computes Hash(salt || canonical(path, value)).
func Of(scheme models.HashScheme, path models.Path, salt models.Salt, value any) (models.Digest, error) {
	encoded, err := canonical.Encode(path, value)
	if err != nil {
		return models.Digest{}, err
	}
	return Sum(scheme, salt[:], encoded)
}

// ClaimStatements turns a claim into its subject and property statements.
func ClaimStatements(claim models.Claim) ([]Statement, error) {
	if claim.SubjectID == "" {
		return nil, models.MalformedClaimError("claim has no subject id")
	}
	out := make([]Statement, 0, len(claim.Properties)+1)
	out = append(out, Statement{Path: models.PathSubjectID, Value: claim.SubjectID})
	for key, value := range claim.Properties {
		if key == "" {
			return nil, models.MalformedClaimError("claim property with empty name")
		}
		if key == models.SubjectIDKey {
			return nil, models.MalformedClaimError("claim property %q is reserved for the subject id", key)
		}
		out = append(out, Statement{Path: models.PathForClaim(key), Value: value})
	}
	return out, nil
}

// SchemaHash is the ledger-side identifier of a schema id.
func SchemaHash(scheme models.HashScheme, schemaID string) (models.Digest, error) {
	encoded, err := canonical.Value(schemaID)
	if err != nil {
		return models.Digest{}, err
	}
	return Sum(scheme, encoded)
}
