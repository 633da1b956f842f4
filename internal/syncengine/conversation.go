package syncengine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sharme-dev/sharme/internal/cryptoutil"
	"github.com/sharme-dev/sharme/internal/shard"
	"github.com/sharme-dev/sharme/internal/store"
)

// segmentPayload is the plaintext JSON encrypted once per conversation push
// (SPEC_FULL.md §4.H).
type segmentPayload struct {
	ConversationID string    `json:"conversationId"`
	Client         string    `json:"client"`
	Project        string    `json:"project"`
	Session        string    `json:"session"`
	Offset         int       `json:"offset"`
	Count          int       `json:"count"`
	Messages       []Message `json:"messages"`
}

// SyncConversations runs the per-conversation push protocol for every
// conversation the watcher currently reports.
func (e *Engine) SyncConversations(ctx context.Context) error {
	convs, err := e.Watcher.Conversations(ctx)
	if err != nil {
		return err
	}
	for _, c := range convs {
		if err := e.PushConversation(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// PushConversation implements the per-conversation push protocol of
// SPEC_FULL.md §4.H: read the offset cursor, take the message tail since
// it, encrypt+sign once, split into chunks, upload all chunks, and only
// then advance the cursor.
func (e *Engine) PushConversation(ctx context.Context, c Conversation) error {
	offsetKey := store.ConversationOffsetKey(c.Client, c.ID)
	offsetStr, _, err := e.Store.GetMeta(offsetKey)
	if err != nil {
		return err
	}
	lastSynced, _ := strconv.Atoi(offsetStr)

	if lastSynced >= len(c.Messages) {
		return nil
	}
	tail := c.Messages[lastSynced:]

	payload := segmentPayload{
		ConversationID: c.ID, Client: c.Client, Project: c.Project, Session: c.ID,
		Offset: lastSynced, Count: len(tail), Messages: tail,
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	envelope, err := cryptoutil.Encrypt(plaintext, e.AESKey)
	if err != nil {
		return err
	}
	sig, err := cryptoutil.Sign(envelope, e.ID.PrivateKey)
	if err != nil {
		return err
	}

	chunks := shard.SplitSegment(envelope)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	for i, chunk := range chunks {
		tags := map[string]string{
			"App-Name":     "sharme",
			"Wallet":       e.ID.Address,
			"Type":         "conversation",
			"Client":       c.Client,
			"Project":      c.Project,
			"Session":      c.ID,
			"Offset":       strconv.Itoa(lastSynced),
			"Count":        strconv.Itoa(len(tail)),
			"Chunk":        fmt.Sprintf("%d/%d", i+1, len(chunks)),
			"Timestamp":    ts,
			"Signature":    sig, // of the full ciphertext, replicated on every chunk
			"Content-Type": "application/octet-stream",
		}
		if _, err := e.Upload.Upload(ctx, chunk, tags); err != nil {
			return err // abort: cursor only advances once every chunk succeeds
		}
	}

	return e.Store.SetMeta(offsetKey, strconv.Itoa(len(c.Messages)))
}
