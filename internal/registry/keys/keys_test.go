//go:debug rsa1024min=0

package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syndic/internal/registry/keys"
)

const testBits = 512

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := keys.GenerateKeyPair(testBits)
	require.NoError(t, err)

	payload := []byte("gateway certificate body")
	sig, err := keys.Sign(priv, payload)
	require.NoError(t, err)

	assert.True(t, keys.Verify(pub, payload, sig))
	assert.False(t, keys.Verify(pub, []byte("tampered"), sig))
	assert.False(t, keys.Verify(pub, payload, sig[:len(sig)-1]))

	otherPub, _, err := keys.GenerateKeyPair(testBits)
	require.NoError(t, err)
	assert.False(t, keys.Verify(otherPub, payload, sig))
}

func TestIsValidKey(t *testing.T) {
	pub, _, err := keys.GenerateKeyPair(testBits)
	require.NoError(t, err)

	assert.True(t, keys.IsValidKey(pub, testBits))
	assert.False(t, keys.IsValidKey(pub, 1024), "wrong modulus size must be rejected")
	assert.False(t, keys.IsValidKey("not a key", testBits))
	assert.False(t, keys.IsValidKey("", testBits))
}

func TestSignRejectsGarbageKey(t *testing.T) {
	_, err := keys.Sign("-----BEGIN NONSENSE-----", []byte("data"))
	assert.Error(t, err)
}
