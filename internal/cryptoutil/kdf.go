// Package cryptoutil implements the crypto primitives of SPEC_FULL.md §4.A:
// the Argon2id KDF, the AES-256-GCM envelope, secp256k1 signing, and address
// derivation. Parameters are pinned constants, not configurable at runtime,
// matching the OWASP-2024 baseline used across this codebase's wallet
// lineage.
package cryptoutil

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize is the length in bytes of the KDF salt.
	SaltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
)

// NewSalt returns SaltSize fresh random bytes from the OS CSPRNG.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// DeriveKey derives a 32-byte AES-256 key from phrase and salt using
// Argon2id with the pinned parameters. Deterministic given the same inputs.
func DeriveKey(phrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(phrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
