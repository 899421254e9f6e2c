package jwttoken

import (
	"testing"
	"time"

	dErrors "anchorcred/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"anchorcred-test",
	"issuers",
)

const subject = "did:example:issuer-1"

func Test_GenerateIssuerToken(t *testing.T) {
	token, err := jwtService.GenerateIssuerToken(subject, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, subject, claims.Issuer())
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_GenerateIssuerToken_EmptySubject(t *testing.T) {
	_, err := jwtService.GenerateIssuerToken("  ", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateIssuerToken(subject, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "anchorcred-test", "verifiers")
	token, err := other.GenerateIssuerToken(subject, time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Authenticate(t *testing.T) {
	token, err := jwtService.GenerateIssuerToken(subject, time.Hour)
	require.NoError(t, err)

	issuer, err := jwtService.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, subject, issuer)
}
