package digest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anchorcred/internal/credential/models"
	dErrors "anchorcred/pkg/domain-errors"
)

func aliceClaim() models.Claim {
	return models.Claim{
		SubjectID:  "did:example:alice",
		Properties: map[string]any{"name": "Alice", "age": 30},
	}
}

func TestBuildProducesOneDigestPerStatement(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	structural := []Statement{{Path: models.PathSchemaID, Value: "schema:person"}}
	statements, err := b.Build(aliceClaim(), structural)
	require.NoError(t, err)
	require.Len(t, statements, 4)

	salts := map[models.Salt]struct{}{}
	for _, st := range statements {
		want, err := Of(b.Scheme(), st.Path, st.Salt, valueFor(st.Path))
		require.NoError(t, err)
		assert.Equal(t, want, st.Digest, st.Path)
		salts[st.Salt] = struct{}{}
	}
	assert.Len(t, salts, 4, "salts must be independent")
}

func valueFor(p models.Path) any {
	switch p {
	case models.PathSubjectID:
		return "did:example:alice"
	case models.PathSchemaID:
		return "schema:person"
	case models.PathForClaim("name"):
		return "Alice"
	default:
		return 30
	}
}

func TestBuildRejectsDuplicatePaths(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)
	_, err = b.Build(aliceClaim(), []Statement{{Path: models.PathSubjectID, Value: "x"}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedClaim))
}

func TestBuildSurfacesSaltSourceFailure(t *testing.T) {
	b, err := NewBuilder(WithSaltSource(bytes.NewReader(make([]byte, models.SaltSize))))
	require.NoError(t, err)
	_, err = b.Build(aliceClaim(), nil)
	assert.ErrorContains(t, err, "draw salt")
}

func TestClaimStatementsValidation(t *testing.T) {
	_, err := ClaimStatements(models.Claim{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedClaim))

	_, err = ClaimStatements(models.Claim{SubjectID: "s", Properties: map[string]any{"id": "other"}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedClaim))

	_, err = ClaimStatements(models.Claim{SubjectID: "s", Properties: map[string]any{"": 1}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMalformedClaim))
}

func TestCommitIsOrderIndependent(t *testing.T) {
	d1 := models.Digest{1}
	d2 := models.Digest{2}
	d3 := models.Digest{3}
	for _, scheme := range []models.HashScheme{models.SchemeSHA256, models.SchemeBLAKE2b256} {
		a, err := Commit(scheme, []models.Digest{d3, d1, d2})
		require.NoError(t, err)
		b, err := Commit(scheme, []models.Digest{d2, d3, d1})
		require.NoError(t, err)
		assert.Equal(t, a, b)

		fewer, err := Commit(scheme, []models.Digest{d1, d2})
		require.NoError(t, err)
		assert.NotEqual(t, a, fewer)
	}
}

func TestSchemesDiffer(t *testing.T) {
	var salt models.Salt
	sha, err := Of(models.SchemeSHA256, models.PathSubjectID, salt, "x")
	require.NoError(t, err)
	blake, err := Of(models.SchemeBLAKE2b256, models.PathSubjectID, salt, "x")
	require.NoError(t, err)
	assert.NotEqual(t, sha, blake)

	_, err = Sum(models.HashScheme(0), []byte("x"))
	assert.Error(t, err)
	_, err = NewBuilder(WithScheme(models.HashScheme(9)))
	assert.Error(t, err)
}

func TestSaltChangesDigest(t *testing.T) {
	a, err := Of(models.SchemeSHA256, models.PathForClaim("age"), models.Salt{1}, 30)
	require.NoError(t, err)
	b, err := Of(models.SchemeSHA256, models.PathForClaim("age"), models.Salt{2}, 30)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRevealedStatementsIncludeStructuralMembers(t *testing.T) {
	cred := models.Credential{
		Issuer:            "did:example:issuer",
		SchemaRef:         "schema:person",
		CredentialSubject: map[string]any{"id": "did:example:alice", "age": 30},
		Delegation:        &models.DelegationRef{ID: "node-1"},
		Legitimations:     []string{"cred:zabc"},
	}
	var paths []models.Path
	for _, st := range RevealedStatements(cred) {
		paths = append(paths, st.Path)
	}
	assert.Equal(t, []models.Path{
		models.PathSubjectID,
		models.PathForClaim("age"),
		models.PathSchemaID,
		models.PathIssuer,
		models.PathDelegationID,
		models.PathForLegitimation(0),
	}, paths)
}
