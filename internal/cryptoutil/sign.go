package cryptoutil

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// Sign signs SHA-256(bytes) with privkey (32 bytes) and returns a compact
// recoverable signature as hex, per SPEC_FULL.md §4.A.
func Sign(data, privkey []byte) (string, error) {
	priv := secp256k1.PrivKeyFromBytes(privkey)
	digest := sha256.Sum256(data)
	sig := ecdsa.SignCompact(priv, digest[:], false)
	return hex.EncodeToString(sig), nil
}

// Verify recovers the public key from signature over SHA-256(bytes) and
// checks that its derived address matches address.
func Verify(data []byte, signatureHex string, address string) bool {
	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(data)
	pub, _, err := ecdsa.RecoverCompact(sigBytes, digest[:])
	if err != nil {
		return false
	}
	recovered := AddressFromPublicKey(pub.SerializeUncompressed())
	return recovered == address
}
