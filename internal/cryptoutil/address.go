package cryptoutil

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
)

// AddressFromPublicKey derives the canonical wallet address from an
// uncompressed secp256k1 public key (65 bytes, leading 0x04 prefix),
// matching the archive's canonical address form: base58 of the first 20
// bytes of SHA-256(pubkey without the leading prefix byte).
func AddressFromPublicKey(uncompressedPub []byte) string {
	body := uncompressedPub
	if len(body) == 65 && body[0] == 0x04 {
		body = body[1:]
	}
	sum := sha256.Sum256(body)
	return base58.Encode(sum[:20])
}
