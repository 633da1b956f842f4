package syncengine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/shard"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/sharme-dev/sharme/pkg/logging"
)

// Push implements SPEC_FULL.md §4.G's fact push pipeline: it snapshots
// dirty facts and pending deletes, packs them into chunked delta shards,
// and uploads them in ascending version order. On any upload failure it
// aborts without advancing meta or clearing dirty state, so the next tick
// retries the whole batch.
func (e *Engine) Push(ctx context.Context) error {
	dirty, err := e.Store.GetDirtyFacts()
	if err != nil {
		return err
	}
	pending, err := e.Store.GetPendingDeletes()
	if err != nil {
		return err
	}
	if len(dirty) == 0 && len(pending) == 0 {
		return nil
	}

	ops := make([]shard.Op, 0, len(dirty)+len(pending))
	for _, f := range dirty {
		ops = append(ops, shard.UpsertOp(toShardFact(f)))
	}
	for _, p := range pending {
		ops = append(ops, shard.DeleteOp(p.Key))
	}

	currentStr, _, err := e.Store.GetMeta(store.MetaCurrentVersion)
	if err != nil {
		return err
	}
	current, _ := strconv.Atoi(currentStr)
	startVersion := uint32(current + 1)

	shardIDSeed := fmt.Sprintf("%s-%d", e.ID.Address, time.Now().Unix())
	shards := shard.CreateChunkedShards(ops, startVersion, shardIDSeed)

	var lastVersion uint32
	for _, s := range shards {
		if err := e.uploadShard(ctx, s); err != nil {
			return err // abort: local meta/dirty untouched, next tick retries everything
		}
		lastVersion = s.ShardVersion
	}

	if err := e.Store.ClearDirtyState(); err != nil {
		return err
	}
	if err := e.Store.SetMeta(store.MetaCurrentVersion, strconv.Itoa(int(lastVersion))); err != nil {
		return err
	}
	if err := e.Store.SetMeta(store.MetaLastPushedVersion, strconv.Itoa(int(lastVersion))); err != nil {
		return err
	}
	logging.Sugar().Infow("push complete", "shards", len(shards), "last_version", lastVersion)
	return nil
}

func toShardFact(f store.Fact) shard.Fact {
	return shard.Fact{
		ID: f.ID, Scope: f.Scope, Key: f.Key, Value: f.Value, Tags: f.Tags,
		Confidence: f.Confidence, SourceSession: f.SourceSession,
		Created: f.Created, LastConfirmed: f.LastConfirmed, AccessCount: f.AccessCount,
	}
}

// uploadShard serializes, encrypts, signs, and uploads a single shard,
// tagging it per the archive tag schema (SPEC_FULL.md §6).
func (e *Engine) uploadShard(ctx context.Context, s shard.Shard) error {
	plaintext, err := shard.Serialize(s)
	if err != nil {
		return err
	}
	envelope, err := cryptoutil.Encrypt(plaintext, e.aesKey())
	if err != nil {
		return err
	}
	sig, err := cryptoutil.Sign(envelope, e.ID.PrivateKey)
	if err != nil {
		return err
	}

	tags := map[string]string{
		"App-Name":     "sharme",
		"Wallet":       e.ID.Address,
		"Type":         "delta",
		"Version":      strconv.Itoa(int(s.ShardVersion)),
		"Timestamp":    strconv.FormatInt(time.Now().Unix(), 10),
		"Signature":    sig,
		"Content-Type": "application/octet-stream",
	}
	_, err = e.Upload.Upload(ctx, envelope, tags)
	return err
}

// aesKey returns the phrase-derived AES key cached on the Engine for this
// session. It is set by the caller (init/unlock flow) and never persisted.
func (e *Engine) aesKey() []byte { return e.AESKey }
