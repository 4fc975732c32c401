package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syndic/internal/registry/session"
)

func TestGeneratePassword(t *testing.T) {
	p1, err := session.GeneratePassword(session.PasswordLength)
	require.NoError(t, err)
	p2, err := session.GeneratePassword(session.PasswordLength)
	require.NoError(t, err)

	assert.Len(t, p1, session.PasswordLength)
	assert.NotEqual(t, p1, p2)
	for _, r := range p1 {
		assert.True(t, (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			"password must stay alphanumeric for basic-auth transport")
	}
}

func TestHashIsDeterministicPerSalt(t *testing.T) {
	h1 := session.HashPassword("secret", "salt-a")
	h2 := session.HashPassword("secret", "salt-a")
	h3 := session.HashPassword("secret", "salt-b")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestGenerateSecretsVerifyRoundTrip(t *testing.T) {
	password, hash, salt, err := session.GenerateSecrets()
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	require.NotEmpty(t, salt)
	assert.NotContains(t, hash, password)

	assert.True(t, session.Verify(hash, salt, password))
	assert.False(t, session.Verify(hash, salt, "wrong"))
	assert.False(t, session.Verify(hash, "wrong-salt", password))
}
