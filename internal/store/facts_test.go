package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertFactThenGet(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.UpsertFact(Fact{
		ID: "1", Scope: "global", Key: "global:auth:strategy", Value: "JWT", Tags: []string{"auth", "decision"},
	}))

	f, err := st.GetFact("global:auth:strategy")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "JWT", f.Value)
	assert.ElementsMatch(t, []string{"auth", "decision"}, f.Tags)
	assert.True(t, f.Dirty)
	assert.Equal(t, 1.0, f.Confidence)
}

func TestUpsertFactPreservesCreatedAcrossReplace(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "k", Value: "v1"}))
	first, err := st.GetFact("k")
	require.NoError(t, err)

	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "k", Value: "v2"}))
	second, err := st.GetFact("k")
	require.NoError(t, err)

	assert.Equal(t, first.Created, second.Created)
	assert.Equal(t, "v2", second.Value)
}

func TestUpsertFactClearsPendingDelete(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "k", Value: "v"}))
	require.NoError(t, st.DeleteFact("k"))

	pending, err := st.GetPendingDeletes()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "k", Value: "v2"}))
	pending, err = st.GetPendingDeletes()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteFactIsIdempotentAndTombstones(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.DeleteFact("never-existed"))
	require.NoError(t, st.DeleteFact("never-existed"))

	pending, err := st.GetPendingDeletes()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "never-existed", pending[0].Key)
}

func TestGetDirtyFactsAndClearDirtyState(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "k1", Value: "v"}))
	require.NoError(t, st.UpsertFact(Fact{ID: "2", Scope: "global", Key: "k2", Value: "v"}))
	require.NoError(t, st.DeleteFact("k2"))

	dirty, err := st.GetDirtyFacts()
	require.NoError(t, err)
	assert.Len(t, dirty, 1)

	pending, err := st.GetPendingDeletes()
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, st.ClearDirtyState())

	dirty, err = st.GetDirtyFacts()
	require.NoError(t, err)
	assert.Empty(t, dirty)
	pending, err = st.GetPendingDeletes()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIncrementAccessCount(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "k", Value: "v"}))
	require.NoError(t, st.IncrementAccessCount("k"))
	require.NoError(t, st.IncrementAccessCount("k"))

	f, err := st.GetFact("k")
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.AccessCount)
}

func TestReplayFunctionsBypassDirtyTracking(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.ReplaceFromReplay(Fact{ID: "1", Scope: "global", Key: "k", Value: "v", Created: "t0", LastConfirmed: "t0"}))

	f, err := st.GetFact("k")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.False(t, f.Dirty)

	require.NoError(t, st.DeleteFromReplay("k"))
	f, err = st.GetFact("k")
	require.NoError(t, err)
	assert.Nil(t, f)

	pending, err := st.GetPendingDeletes()
	require.NoError(t, err)
	assert.Empty(t, pending, "replay deletes never queue a tombstone")
}

func TestGetFactsByScopeIncludesGlobal(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.UpsertFact(Fact{ID: "1", Scope: "global", Key: "g", Value: "v"}))
	require.NoError(t, st.UpsertFact(Fact{ID: "2", Scope: "project:foo", Key: "p", Value: "v"}))

	facts, err := st.GetFactsByScope("project:foo")
	require.NoError(t, err)
	assert.Len(t, facts, 2)

	facts, err = st.GetFactsByScope("project:bar")
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}
