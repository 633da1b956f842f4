package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	k1 := DeriveKey("correct horse battery staple", salt)
	k2 := DeriveKey("correct horse battery staple", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestDeriveKeyDiffersBySaltAndPhrase(t *testing.T) {
	saltA, err := NewSalt()
	require.NoError(t, err)
	saltB, err := NewSalt()
	require.NoError(t, err)

	assert.NotEqual(t, DeriveKey("phrase one", saltA), DeriveKey("phrase one", saltB))
	assert.NotEqual(t, DeriveKey("phrase one", saltA), DeriveKey("phrase two", saltA))
}

func TestNewSaltIsRandomAndCorrectLength(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)

	assert.Len(t, a, SaltSize)
	assert.NotEqual(t, a, b)
}
