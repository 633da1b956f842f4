package syncengine

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/identity"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	uploads []fakeUpload
	failAt  int // index (0-based) at which Upload starts failing; -1 never fails
}

type fakeUpload struct {
	data []byte
	tags map[string]string
}

var errSimulatedUpload = errors.New("simulated upload failure")

func (b *fakeBackend) Upload(ctx context.Context, data []byte, tags map[string]string) (string, error) {
	if b.failAt >= 0 && len(b.uploads) >= b.failAt {
		return "", errSimulatedUpload
	}
	txID := "tx-" + strconv.Itoa(len(b.uploads))
	b.uploads = append(b.uploads, fakeUpload{data: data, tags: tags})
	return txID, nil
}

func newTestEngine(t *testing.T) (*Engine, *fakeBackend) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	phrase := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	kp, err := identity.DeriveKeypair(phrase)
	require.NoError(t, err)
	aesKey := make([]byte, 32)

	backend := &fakeBackend{failAt: -1}
	e := New(st, nil, backend, Identity{PrivateKey: kp.PrivateKey, PublicKey: kp.PublicKey, Address: kp.Address}, nil, time.Hour, time.Hour)
	e.AESKey = aesKey
	return e, backend
}

func TestPushNoOpWhenNothingDirty(t *testing.T) {
	e, backend := newTestEngine(t)
	require.NoError(t, e.Push(t.Context()))
	assert.Empty(t, backend.uploads)
}

func TestPushUploadsDirtyFactsAndAdvancesVersion(t *testing.T) {
	e, backend := newTestEngine(t)
	require.NoError(t, e.Store.UpsertFact(store.Fact{ID: "1", Scope: "global", Key: "k1", Value: "v1"}))
	require.NoError(t, e.Store.UpsertFact(store.Fact{ID: "2", Scope: "global", Key: "k2", Value: "v2"}))

	require.NoError(t, e.Push(t.Context()))
	assert.NotEmpty(t, backend.uploads)

	dirty, err := e.Store.GetDirtyFacts()
	require.NoError(t, err)
	assert.Empty(t, dirty, "push clears dirty state on success")

	v, ok, err := e.Store.GetMeta(store.MetaCurrentVersion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	lastPushed, ok, err := e.Store.GetMeta(store.MetaLastPushedVersion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, v, lastPushed)
}

func TestPushUploadedShardIsSignedAndEncrypted(t *testing.T) {
	e, backend := newTestEngine(t)
	require.NoError(t, e.Store.UpsertFact(store.Fact{ID: "1", Scope: "global", Key: "k", Value: "v"}))
	require.NoError(t, e.Push(t.Context()))
	require.NotEmpty(t, backend.uploads)

	up := backend.uploads[0]
	assert.Equal(t, "sharme", up.tags["App-Name"])
	assert.Equal(t, "delta", up.tags["Type"])
	assert.Equal(t, e.ID.Address, up.tags["Wallet"])
	assert.NotEmpty(t, up.tags["Signature"])

	assert.True(t, cryptoutil.Verify(up.data, up.tags["Signature"], e.ID.Address))
	plaintext, err := cryptoutil.Decrypt(up.data, e.AESKey)
	require.NoError(t, err)
	assert.Contains(t, string(plaintext), "k")
}

func TestPushAbortsOnUploadFailureLeavingDirtyStateIntact(t *testing.T) {
	e, backend := newTestEngine(t)
	backend.failAt = 0
	require.NoError(t, e.Store.UpsertFact(store.Fact{ID: "1", Scope: "global", Key: "k", Value: "v"}))

	err := e.Push(t.Context())
	require.Error(t, err)

	dirty, err2 := e.Store.GetDirtyFacts()
	require.NoError(t, err2)
	assert.Len(t, dirty, 1, "a failed push must not clear dirty state")

	_, ok, err3 := e.Store.GetMeta(store.MetaCurrentVersion)
	require.NoError(t, err3)
	assert.False(t, ok, "a failed push must not advance meta")
}
