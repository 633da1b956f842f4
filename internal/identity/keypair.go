package identity

import (
	"crypto/hmac"
	"crypto/sha512"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip39"

	"github.com/sharme-dev/sharme/internal/cryptoutil"
)

// domainSeparator fixes the HMAC key used to derive the signing scalar from
// a BIP39 seed, so this derivation can never collide with another scheme
// that might derive a different key from the same seed bytes.
const domainSeparator = "sharme identity v1"

// Keypair is the deterministic secp256k1 identity derived from a recovery
// phrase: a 32-byte private scalar, 65-byte uncompressed public key, and the
// canonical wallet address.
type Keypair struct {
	PrivateKey []byte
	PublicKey  []byte
	Address    string
}

// DeriveKeypair is a pure function of the normalized phrase text: it is
// deterministic given the same phrase and requires no external derivation
// path or account index (SPEC_FULL.md §4.B — one wallet per phrase).
func DeriveKeypair(phrase string) (*Keypair, error) {
	if err := ValidatePhrase(phrase); err != nil {
		return nil, err
	}
	normalized := Normalize(phrase)
	seed := bip39.NewSeed(normalized, "")

	mac := hmac.New(sha512.New, []byte(domainSeparator))
	mac.Write(seed)
	digest := mac.Sum(nil)

	priv := secp256k1.PrivKeyFromBytes(digest[:32])
	pub := priv.PubKey()
	pubBytes := pub.SerializeUncompressed()

	return &Keypair{
		PrivateKey: priv.Serialize(),
		PublicKey:  pubBytes,
		Address:    cryptoutil.AddressFromPublicKey(pubBytes),
	}, nil
}

// PublicKeyFromPrivate recomputes the uncompressed public key for privkey,
// so the push pipeline can tag uploads without re-deriving from the phrase.
func PublicKeyFromPrivate(privkey []byte) []byte {
	priv := secp256k1.PrivKeyFromBytes(privkey)
	return priv.PubKey().SerializeUncompressed()
}

// AddressFromPublicKey derives the canonical wallet address from an
// uncompressed public key.
func AddressFromPublicKey(pub []byte) string {
	return cryptoutil.AddressFromPublicKey(pub)
}
