package syncengine

import (
	"context"
	"strconv"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/shard"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/sharme-dev/sharme/pkg/logging"
)

// PullDownloadCapBytes is the pull guardrail from SPEC_FULL.md §6: larger
// than the 90 KiB creation budget to tolerate encryption overhead growth.
const PullDownloadCapBytes = 100 * 1024

// Pull implements SPEC_FULL.md §4.G's pull+reconstruct pipeline: query
// shards for this wallet and replay every delta and snapshot shard in
// ascending version order from version 1 (a snapshot is never used as a
// starting point), downloading and verifying each shard. A shard that fails size, signature,
// decryption, or parsing is skipped, never aborting the whole pull.
func (e *Engine) Pull(ctx context.Context) error {
	hits, err := e.Archive.QueryShards(ctx, e.ID.Address)
	if err != nil {
		return err
	}

	// No explicit snapshot-creation path exists yet (SPEC_FULL.md §9 open
	// question a): replay always starts from delta version 1.
	var maxVersion int
	for _, hit := range hits {
		if hit.Type != "delta" && hit.Type != "snapshot" {
			continue
		}

		plaintext, ok := e.downloadAndVerifyShard(ctx, hit)
		if !ok {
			continue // skip: batch path never aborts on one bad shard
		}

		parsed, err := shard.Deserialize(plaintext)
		if err != nil {
			logging.Sugar().Warnw("pull: skipping unparsable shard", "tx", hit.TxID, "error", err)
			continue
		}

		if err := e.applyShard(parsed); err != nil {
			logging.Sugar().Warnw("pull: skipping shard with bad op", "tx", hit.TxID, "error", err)
			continue
		}
		if hit.Version > maxVersion {
			maxVersion = hit.Version
		}
	}

	if maxVersion > 0 {
		if err := e.Store.SetMeta(store.MetaCurrentVersion, strconv.Itoa(maxVersion)); err != nil {
			return err
		}
	}
	return nil
}

// downloadAndVerifyShard downloads hit's data under the pull cap, verifies
// its signature against the tagged wallet, and decrypts it. Returns
// ok=false on any failure (size, signature, decryption), which the caller
// treats as "skip this shard".
func (e *Engine) downloadAndVerifyShard(ctx context.Context, hit archive.ShardHit) ([]byte, bool) {
	envelope, err := e.Archive.Download(ctx, hit.TxID, PullDownloadCapBytes)
	if err != nil {
		logging.Sugar().Warnw("pull: download failed, skipping", "tx", hit.TxID, "error", err)
		return nil, false
	}
	if !cryptoutil.Verify(envelope, hit.Signature, hit.Wallet) {
		logging.Sugar().Warnw("pull: signature invalid, skipping", "tx", hit.TxID)
		return nil, false
	}
	plaintext, err := cryptoutil.Decrypt(envelope, e.AESKey)
	if err != nil {
		logging.Sugar().Warnw("pull: decrypt failed, skipping", "tx", hit.TxID, "error", err)
		return nil, false
	}
	return plaintext, true
}

func (e *Engine) applyShard(s shard.Shard) error {
	for _, op := range s.Operations {
		switch {
		case op.Fact != nil:
			if err := e.Store.ReplaceFromReplay(store.Fact{
				ID: op.Fact.ID, Scope: op.Fact.Scope, Key: op.Fact.Key, Value: op.Fact.Value,
				Tags: op.Fact.Tags, Confidence: op.Fact.Confidence, SourceSession: op.Fact.SourceSession,
				Created: op.Fact.Created, LastConfirmed: op.Fact.LastConfirmed,
			}); err != nil {
				return err
			}
		case op.Key != "":
			if err := e.Store.DeleteFromReplay(op.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
