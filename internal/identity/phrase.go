// Package identity implements SPEC_FULL.md §4.B: phrase validation,
// normalization and deterministic keypair derivation from a 12-word BIP39
// recovery phrase.
package identity

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/text/unicode/norm"

	"github.com/sharme-dev/sharme/internal/sharmeerrors"
)

// WordCount is the number of words a sharme recovery phrase must contain.
const WordCount = 12

// Normalize applies NFKD normalization, lowercases, and joins the phrase's
// words with single spaces, per SPEC_FULL.md §4.B.
func Normalize(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		words[i] = norm.NFKD.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

// ValidatePhrase rejects a phrase with the wrong word count, unknown words,
// or an invalid BIP39 checksum.
func ValidatePhrase(phrase string) error {
	normalized := Normalize(phrase)
	words := strings.Fields(normalized)
	if len(words) != WordCount {
		return sharmeerrors.New(sharmeerrors.InvalidPhrase, "expected 12 words")
	}
	if !bip39.IsMnemonicValid(normalized) {
		return sharmeerrors.New(sharmeerrors.InvalidPhrase, "invalid checksum or unknown word")
	}
	return nil
}

// NewPhrase generates a fresh 12-word (128-bit entropy) BIP39 phrase.
func NewPhrase() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}
