package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
)

func TestIDCipher_RoundTrip(t *testing.T) {
	for _, algorithm := range []string{auth.CipherAESGCM, auth.CipherChaCha20Poly1305} {
		t.Run(algorithm, func(t *testing.T) {
			c, err := auth.NewIDCipher("secret", auth.CategorySession, algorithm)
			require.NoError(t, err)

			key, err := auth.NewCredentialKey()
			require.NoError(t, err)

			id, err := c.Encrypt(key)
			require.NoError(t, err)
			assert.True(t, auth.IsHex(id))
			assert.True(t, c.WellFormed(id))

			again, err := c.Encrypt(key)
			require.NoError(t, err)
			assert.NotEqual(t, id, again, "ids are randomized")

			plain, ok := c.Decrypt(id)
			require.True(t, ok)
			assert.Equal(t, key, plain)
		})
	}
}

func TestIDCipher_RejectsForeignIDs(t *testing.T) {
	sessions, err := auth.NewIDCipher("secret", auth.CategorySession, "")
	require.NoError(t, err)
	passwords, err := auth.NewIDCipher("secret", auth.CategoryPassword, "")
	require.NoError(t, err)
	otherSecret, err := auth.NewIDCipher("other", auth.CategorySession, "")
	require.NoError(t, err)

	id, err := sessions.Encrypt("key")
	require.NoError(t, err)

	_, ok := passwords.Decrypt(id)
	assert.False(t, ok, "category is bound to the id")

	_, ok = otherSecret.Decrypt(id)
	assert.False(t, ok, "secret is bound to the id")

	tampered := []byte(id)
	if tampered[len(tampered)-1] == '0' {
		tampered[len(tampered)-1] = '1'
	} else {
		tampered[len(tampered)-1] = '0'
	}
	_, ok = sessions.Decrypt(string(tampered))
	assert.False(t, ok)

	for _, bad := range []string{"", "abc", "zz", id[:len(id)-2]} {
		_, ok := sessions.Decrypt(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewIDCipher_Errors(t *testing.T) {
	_, err := auth.NewIDCipher("  ", auth.CategorySession, "")
	assert.Error(t, err)

	_, err = auth.NewIDCipher("secret", auth.CategorySession, "rot13")
	assert.Error(t, err)
}

func TestIsHex(t *testing.T) {
	assert.True(t, auth.IsHex("00aAfF99"))
	assert.False(t, auth.IsHex(""))
	assert.False(t, auth.IsHex("0g"))
	assert.False(t, auth.IsHex("12-34"))
}

func TestNewCredentialKey(t *testing.T) {
	a, err := auth.NewCredentialKey()
	require.NoError(t, err)
	b, err := auth.NewCredentialKey()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
