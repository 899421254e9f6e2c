package store

import (
	"context"
	"testing"
	"time"

	"anchorcred/internal/credential/models"
	"anchorcred/pkg/platform/sentinel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issued(id, issuer string, at time.Time) models.IssuedCredential {
	return models.IssuedCredential{
		Credential: models.Credential{
			ID:                id,
			Issuer:            issuer,
			CredentialSubject: map[string]any{"id": "did:example:alice", "name": "Alice"},
		},
		IssuedAt: at,
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, issued("cred:z1", "acme", t0)))
	require.NoError(t, s.Save(ctx, issued("cred:z2", "acme", t0.Add(time.Hour))))
	require.NoError(t, s.Save(ctx, issued("cred:z3", "other", t0)))
	assert.ErrorIs(t, s.Save(ctx, issued("cred:z1", "acme", t0)), sentinel.ErrConflict)

	t.Run("find returns a copy", func(t *testing.T) {
		got, err := s.FindByID(ctx, "cred:z1")
		require.NoError(t, err)
		got.Credential.CredentialSubject["name"] = "Mallory"

		again, err := s.FindByID(ctx, "cred:z1")
		require.NoError(t, err)
		assert.Equal(t, "Alice", again.Credential.CredentialSubject["name"])
	})

	t.Run("list by issuer newest first", func(t *testing.T) {
		list, err := s.ListByIssuer(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "cred:z2", list[0].Credential.ID)
	})

	t.Run("mark revoked keeps first timestamp", func(t *testing.T) {
		require.NoError(t, s.MarkRevoked(ctx, "cred:z3", t0))
		require.NoError(t, s.MarkRevoked(ctx, "cred:z3", t0.Add(time.Hour)))
		got, err := s.FindByID(ctx, "cred:z3")
		require.NoError(t, err)
		require.True(t, got.Revoked())
		assert.Equal(t, t0, *got.RevokedAt)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.FindByID(ctx, "cred:nope")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.ErrorIs(t, s.MarkRevoked(ctx, "cred:nope", t0), sentinel.ErrNotFound)
	})
}
