package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeypairDeterministic(t *testing.T) {
	phrase, err := NewPhrase()
	require.NoError(t, err)

	kp1, err := DeriveKeypair(phrase)
	require.NoError(t, err)
	kp2, err := DeriveKeypair(phrase)
	require.NoError(t, err)

	assert.Equal(t, kp1.PrivateKey, kp2.PrivateKey)
	assert.Equal(t, kp1.PublicKey, kp2.PublicKey)
	assert.Equal(t, kp1.Address, kp2.Address)
	assert.NotEmpty(t, kp1.Address)
}

func TestDeriveKeypairDiffersAcrossPhrases(t *testing.T) {
	p1, err := NewPhrase()
	require.NoError(t, err)
	p2, err := NewPhrase()
	require.NoError(t, err)

	kp1, err := DeriveKeypair(p1)
	require.NoError(t, err)
	kp2, err := DeriveKeypair(p2)
	require.NoError(t, err)

	assert.NotEqual(t, kp1.Address, kp2.Address)
}

func TestDeriveKeypairRejectsInvalidPhrase(t *testing.T) {
	_, err := DeriveKeypair("not a valid mnemonic phrase at all here today")
	assert.Error(t, err)
}

func TestPublicKeyFromPrivateMatchesDerivedKeypair(t *testing.T) {
	phrase, err := NewPhrase()
	require.NoError(t, err)
	kp, err := DeriveKeypair(phrase)
	require.NoError(t, err)

	assert.Equal(t, kp.PublicKey, PublicKeyFromPrivate(kp.PrivateKey))
	assert.Equal(t, kp.Address, AddressFromPublicKey(kp.PublicKey))
}
