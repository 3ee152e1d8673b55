package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "keyhaven/pkg/domain-errors"
)

func TestRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "keyhaven", "keyhaven-api")

	token, err := svc.GenerateAccessToken("user@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.AccountEmail)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewService("test-signing-key", "keyhaven", "keyhaven-api")

	token, err := svc.GenerateAccessToken("user@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestWrongKeyRejected(t *testing.T) {
	issuer := NewService("key-a", "keyhaven", "keyhaven-api")
	verifier := NewService("key-b", "keyhaven", "keyhaven-api")

	token, err := issuer.GenerateAccessToken("user@example.com", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestWrongAudienceRejected(t *testing.T) {
	issuer := NewService("key-a", "keyhaven", "other-api")
	verifier := NewService("key-a", "keyhaven", "keyhaven-api")

	token, err := issuer.GenerateAccessToken("user@example.com", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
}
