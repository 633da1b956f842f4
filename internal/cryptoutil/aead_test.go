package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("global:auth:strategy=JWT")

	envelope, err := Encrypt(plaintext, key)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, envelope)

	out, err := Decrypt(envelope, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := make([]byte, 32)
	wrongKey := make([]byte, 32)
	wrongKey[0] = 1

	envelope, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	_, err = Decrypt(envelope, wrongKey)
	assert.Error(t, err)
}

func TestDecryptTooShortEnvelope(t *testing.T) {
	key := make([]byte, 32)
	_, err := Decrypt([]byte("short"), key)
	assert.ErrorIs(t, err, ErrEnvelopeTooShort)
}

func TestEncryptNonceIsFresh(t *testing.T) {
	key := make([]byte, 32)
	a, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "two seals of the same plaintext must not collide")
}
