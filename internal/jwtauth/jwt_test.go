package jwtauth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syndic/internal/jwtauth"
	dErrors "syndic/pkg/domain-errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := jwtauth.NewService("signing-key", "syndic-test")

	token, err := svc.GenerateToken(101, time.Hour)
	require.NoError(t, err)

	ownerID, err := svc.ExtractOwnerID(token)
	require.NoError(t, err)
	assert.Equal(t, int64(101), ownerID)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := jwtauth.NewService("signing-key", "syndic-test")

	token, err := svc.GenerateToken(101, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ExtractOwnerID(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Contains(t, err.Error(), "expired")
}

func TestWrongSigningKeyRejected(t *testing.T) {
	token, err := jwtauth.NewService("key-one", "syndic-test").GenerateToken(101, time.Hour)
	require.NoError(t, err)

	_, err = jwtauth.NewService("key-two", "syndic-test").ExtractOwnerID(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := jwtauth.NewService("signing-key", "syndic-test")
	_, err := svc.ExtractOwnerID("not.a.token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
