package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryConversationChunksFiltersAndSorts(t *testing.T) {
	edges := []gqlEdge{
		{Node: txNode("c-s1-2", map[string]string{
			"App-Name": "sharme", "Wallet": "w", "Type": "conversation", "Client": "claude-code",
			"Project": "p1", "Session": "s1", "Offset": "10", "Count": "5", "Chunk": "2/2", "Timestamp": "200", "Signature": "s",
		})},
		{Node: txNode("c-s1-1", map[string]string{
			"App-Name": "sharme", "Wallet": "w", "Type": "conversation", "Client": "claude-code",
			"Project": "p1", "Session": "s1", "Offset": "10", "Count": "5", "Chunk": "1/2", "Timestamp": "100", "Signature": "s",
		})},
		{Node: txNode("c-s0", map[string]string{
			"App-Name": "sharme", "Wallet": "w", "Type": "conversation", "Client": "cursor",
			"Project": "p1", "Session": "s0", "Offset": "0", "Count": "3", "Chunk": "1/1", "Timestamp": "50", "Signature": "s",
		})},
		{Node: txNode("c-bad-client", map[string]string{
			"App-Name": "sharme", "Wallet": "w", "Type": "conversation", "Client": "other-ide",
			"Project": "p1", "Session": "s1", "Offset": "0", "Count": "1", "Chunk": "1/1", "Timestamp": "1", "Signature": "s",
		})},
		{Node: txNode("c-no-sig", map[string]string{
			"App-Name": "sharme", "Wallet": "w", "Type": "conversation", "Client": "claude-code",
			"Project": "p1", "Session": "s1", "Offset": "0", "Count": "1", "Chunk": "1/1", "Timestamp": "1",
		})},
		{Node: txNode("c-bad-chunk", map[string]string{
			"App-Name": "sharme", "Wallet": "w", "Type": "conversation", "Client": "claude-code",
			"Project": "p1", "Session": "s1", "Offset": "0", "Count": "1", "Chunk": "3/2", "Timestamp": "1", "Signature": "s",
		})},
	}
	srv := gqlServer(t, edges)
	client := New([]string{srv.URL}, nil, 5*time.Second)

	hits, err := client.QueryConversationChunks(t.Context(), "w")
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "c-s0", hits[0].TxID)
	assert.Equal(t, "c-s1-1", hits[1].TxID)
	assert.Equal(t, "c-s1-2", hits[2].TxID)
	assert.Equal(t, 1, hits[1].ChunkIndex)
	assert.Equal(t, 2, hits[1].ChunkTotal)
}

func TestQueryShareReturnsNewestByTimestamp(t *testing.T) {
	edges := []gqlEdge{
		{Node: txNode("old", map[string]string{
			"App-Name": "sharme", "Type": "conversation-share", "Share-Id": "sid-1",
			"Wallet": "w", "Signature": "sig-old", "Timestamp": "100",
		})},
		{Node: txNode("new", map[string]string{
			"App-Name": "sharme", "Type": "conversation-share", "Share-Id": "sid-1",
			"Wallet": "w", "Signature": "sig-new", "Timestamp": "200",
		})},
	}
	srv := gqlServer(t, edges)
	client := New([]string{srv.URL}, nil, 5*time.Second)

	hit, ok, err := client.QueryShare(t.Context(), "sid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", hit.TxID)
	assert.Equal(t, "sig-new", hit.Signature)
}

func TestQueryShareNotFound(t *testing.T) {
	srv := gqlServer(t, nil)
	client := New([]string{srv.URL}, nil, 5*time.Second)

	_, ok, err := client.QueryShare(t.Context(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
