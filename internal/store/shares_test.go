package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedConversationImportIdempotent(t *testing.T) {
	st := openTestStore(t)

	has, err := st.HasSharedConversationImport("sid-1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, st.SaveSharedConversationImport(SharedConversationImport{
		ShareID: "sid-1", ConversationID: "conv-1", RawPayload: "{}",
	}))
	has, err = st.HasSharedConversationImport("sid-1")
	require.NoError(t, err)
	assert.True(t, has)

	// Second redemption of the same share id is a no-op: the first row wins.
	require.NoError(t, st.SaveSharedConversationImport(SharedConversationImport{
		ShareID: "sid-1", ConversationID: "conv-2", RawPayload: "{different}",
	}))

	imports, err := st.GetSharedConversationImports()
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, "conv-1", imports[0].ConversationID)
}
