package syncengine

import (
	"context"
	"sort"

	"github.com/sharme-dev/sharme/internal/sharmeerrors"
)

// IdentityDownloadCapBytes is the identity download cap from
// SPEC_FULL.md §6.
const IdentityDownloadCapBytes = 16 * 1024

// IdentityRecord is the salt + encrypted private key fetched from the
// archive for a given wallet address.
type IdentityRecord struct {
	Salt                 string
	EncryptedPrivateKey []byte
}

// FetchIdentity selects, among the identity-typed shards for address, the
// one whose transaction id sorts greatest; block height and timestamps are
// not compared. It reads Salt from that shard's tags and downloads its data
// under the identity cap. This is a single-object
// critical path: it fails loudly rather than skipping, per SPEC_FULL.md
// §4.G/§7. A legacy identity record without a Salt tag returns
// NotInitialized rather than guessing a salt (SPEC_FULL.md §9 note c).
func (e *Engine) FetchIdentity(ctx context.Context, address string) (*IdentityRecord, error) {
	hits, err := e.Archive.QueryShards(ctx, address)
	if err != nil {
		return nil, err
	}

	var identities []string // tx ids of identity-typed hits, in query order
	saltByTx := map[string]string{}
	for _, hit := range hits {
		if hit.Type != "identity" {
			continue
		}
		identities = append(identities, hit.TxID)
		saltByTx[hit.TxID] = hit.Salt
	}
	if len(identities) == 0 {
		return nil, sharmeerrors.New(sharmeerrors.NotInitialized, "no identity record found for wallet")
	}
	sort.Sort(sort.Reverse(sort.StringSlice(identities)))
	newest := identities[0]
	salt := saltByTx[newest]
	if salt == "" {
		return nil, sharmeerrors.New(sharmeerrors.NotInitialized, "identity record missing salt")
	}

	data, err := e.Archive.Download(ctx, newest, IdentityDownloadCapBytes)
	if err != nil {
		return nil, sharmeerrors.Wrap(sharmeerrors.NetworkUnavailable, "download identity record", err)
	}
	return &IdentityRecord{Salt: salt, EncryptedPrivateKey: data}, nil
}
