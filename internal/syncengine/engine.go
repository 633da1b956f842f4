package syncengine

import (
	"context"
	"sync"
	"time"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/sharme-dev/sharme/internal/upload"
	"github.com/sharme-dev/sharme/pkg/logging"
)

// Identity is the subset of a derived keypair the sync engine needs to
// sign uploads and tag them with its wallet address, without re-deriving
// from the recovery phrase on every tick (SPEC_FULL.md §4.B).
type Identity struct {
	PrivateKey []byte
	PublicKey  []byte
	Address    string
}

// Engine owns the two background ticks described in SPEC_FULL.md §5: the
// fact-push tick and the conversation-watch tick. It borrows the local
// store for the duration of each tick and owns no cyclic reference back to
// it.
type Engine struct {
	Store   *store.Store
	Archive *archive.Client
	Upload  upload.Backend
	ID      Identity
	Watcher Watcher

	// AESKey is the phrase-derived AES-256 key used to encrypt/decrypt
	// shards and conversation segments for this session. It is held only
	// in memory, set by the caller during init/unlock, and never
	// persisted (SPEC_FULL.md §4.B).
	AESKey []byte

	PushInterval  time.Duration
	WatchInterval time.Duration

	pushBusy sync.Mutex
	watchBusy sync.Mutex
}

// New builds an Engine with the given collaborators.
func New(st *store.Store, ac *archive.Client, ub upload.Backend, id Identity, w Watcher, pushInterval, watchInterval time.Duration) *Engine {
	return &Engine{
		Store: st, Archive: ac, Upload: ub, ID: id, Watcher: w,
		PushInterval: pushInterval, WatchInterval: watchInterval,
	}
}

// Run starts both periodic ticks and blocks until ctx is cancelled. An
// in-flight tick is allowed to complete; overlapping executions of the
// same task are coalesced via a per-task try-lock rather than queued.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		e.tickLoop(ctx, e.PushInterval, &e.pushBusy, func(tctx context.Context) {
			if err := e.Push(tctx); err != nil {
				logging.Sugar().Warnw("push tick failed", "error", err)
			}
		})
	}()

	go func() {
		defer wg.Done()
		e.tickLoop(ctx, e.WatchInterval, &e.watchBusy, func(tctx context.Context) {
			if err := e.SyncConversations(tctx); err != nil {
				logging.Sugar().Warnw("conversation watch tick failed", "error", err)
			}
		})
	}()

	wg.Wait()
}

// tickLoop fires fn every interval until ctx is done, skipping a firing if
// the previous one (guarded by busy) is still running.
func (e *Engine) tickLoop(ctx context.Context, interval time.Duration, busy *sync.Mutex, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !busy.TryLock() {
				continue // previous tick still running: coalesce
			}
			fn(ctx)
			busy.Unlock()
		}
	}
}
