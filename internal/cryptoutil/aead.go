package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"errors"
	"io"
)

// ErrEnvelopeTooShort is returned by Decrypt when the input is shorter than
// a nonce plus the GCM tag.
var ErrEnvelopeTooShort = errors.New("cryptoutil: envelope too short")

// Encrypt seals plaintext under key with a fresh random nonce, returning the
// envelope nonce(12) ‖ ciphertext ‖ tag(16) described in SPEC_FULL.md §6.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(crand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails if the envelope is
// too short for its nonce/tag or if authentication fails under key.
func Decrypt(envelope, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(envelope) < ns+gcm.Overhead() {
		return nil, ErrEnvelopeTooShort
	}
	nonce, ciphertext := envelope[:ns], envelope[ns:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
