package syncengine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sharme-dev/sharme/internal/archive"
	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/identity"
	"github.com/sharme-dev/sharme/internal/shard"
	"github.com/sharme-dev/sharme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeArchive stands up a GraphQL endpoint returning a fixed transaction
// list and a data endpoint serving a map of txID -> bytes, so Pull can be
// exercised end to end without a real archive.
func fakeArchive(t *testing.T, gqlTags []map[string]string, blobs map[string][]byte) *archive.Client {
	t.Helper()
	gql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type edge struct {
			Node struct {
				ID   string `json:"id"`
				Tags []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"tags"`
			} `json:"node"`
		}
		var edges []edge
		for i, tags := range gqlTags {
			var e edge
			e.Node.ID = tags["__id"]
			if e.Node.ID == "" {
				e.Node.ID = "tx" + string(rune('0'+i))
			}
			for k, v := range tags {
				if k == "__id" {
					continue
				}
				e.Node.Tags = append(e.Node.Tags, struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				}{Name: k, Value: v})
			}
			edges = append(edges, e)
		}
		resp := map[string]any{
			"data": map[string]any{
				"transactions": map[string]any{
					"pageInfo": map[string]any{"hasNextPage": false},
					"edges":    edges,
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(gql.Close)

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		txID := r.URL.Path[len("/"):]
		blob, ok := blobs[txID]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(blob)
	}))
	t.Cleanup(data.Close)

	return archive.New([]string{gql.URL}, []string{data.URL}, 5*time.Second)
}

func TestPullAppliesValidShardsAndAdvancesVersion(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	phrase := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	kp, err := identity.DeriveKeypair(phrase)
	require.NoError(t, err)
	aesKey := make([]byte, 32)

	s := shard.Shard{
		ShardVersion: 1,
		ShardID:      "shard-1",
		Type:         shard.TypeDelta,
		Operations: []shard.Op{
			shard.UpsertOp(shard.Fact{ID: "1", Scope: "global", Key: "k1", Value: "v1", Created: "t0", LastConfirmed: "t0"}),
		},
	}
	plaintext, err := shard.Serialize(s)
	require.NoError(t, err)
	envelope, err := cryptoutil.Encrypt(plaintext, aesKey)
	require.NoError(t, err)
	sig, err := cryptoutil.Sign(envelope, kp.PrivateKey)
	require.NoError(t, err)

	ac := fakeArchive(t, []map[string]string{
		{
			"__id": "tx1", "App-Name": "sharme", "Wallet": kp.Address, "Type": "delta",
			"Version": "1", "Signature": sig,
		},
	}, map[string][]byte{"tx1": envelope})

	e := New(st, ac, nil, Identity{PrivateKey: kp.PrivateKey, PublicKey: kp.PublicKey, Address: kp.Address}, nil, time.Hour, time.Hour)
	e.AESKey = aesKey

	require.NoError(t, e.Pull(t.Context()))

	f, err := st.GetFact("k1")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, "v1", f.Value)
	assert.False(t, f.Dirty, "facts applied via replay are never marked dirty")

	v, ok, err := st.GetMeta(store.MetaCurrentVersion)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestPullSkipsShardWithBadSignatureWithoutAborting(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	phrase := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	kp, err := identity.DeriveKeypair(phrase)
	require.NoError(t, err)
	aesKey := make([]byte, 32)

	s := shard.Shard{ShardVersion: 1, ShardID: "shard-1", Type: shard.TypeDelta, Operations: []shard.Op{
		shard.UpsertOp(shard.Fact{ID: "1", Scope: "global", Key: "k1", Value: "v1"}),
	}}
	plaintext, err := shard.Serialize(s)
	require.NoError(t, err)
	envelope, err := cryptoutil.Encrypt(plaintext, aesKey)
	require.NoError(t, err)

	ac := fakeArchive(t, []map[string]string{
		{"__id": "tx1", "App-Name": "sharme", "Wallet": kp.Address, "Type": "delta", "Version": "1", "Signature": "deadbeef"},
	}, map[string][]byte{"tx1": envelope})

	e := New(st, ac, nil, Identity{PrivateKey: kp.PrivateKey, PublicKey: kp.PublicKey, Address: kp.Address}, nil, time.Hour, time.Hour)
	e.AESKey = aesKey

	require.NoError(t, e.Pull(t.Context()))

	f, err := st.GetFact("k1")
	require.NoError(t, err)
	assert.Nil(t, f, "a shard with an invalid signature must be skipped, not applied")

	_, ok, err := st.GetMeta(store.MetaCurrentVersion)
	require.NoError(t, err)
	assert.False(t, ok, "version must not advance when the only shard was rejected")
}
