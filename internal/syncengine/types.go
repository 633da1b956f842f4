// Package syncengine implements SPEC_FULL.md §4.G and §4.H: the push/pull/replay
// engine for facts, and per-session incremental conversation
// synchronization.
package syncengine

import "context"

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is a normalized transcript as emitted by the (external,
// out-of-scope per SPEC_FULL.md §1) transcript watcher.
type Conversation struct {
	ID        string    `json:"id"`
	Client    string    `json:"client"` // "cursor" | "claude-code"
	Project   string    `json:"project"`
	StartedAt string    `json:"startedAt"`
	UpdatedAt string    `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// Watcher emits conversations known to have changed. This repository ships
// only a trivial in-memory adapter for tests (see StaticWatcher); the real
// transcript-file watcher is an external collaborator out of scope here.
type Watcher interface {
	Conversations(ctx context.Context) ([]Conversation, error)
}

// StaticWatcher returns a fixed slice of conversations on every call,
// sufficient to drive conversation-sync tests without a real transcript
// source.
type StaticWatcher struct {
	Convs []Conversation
}

func (w StaticWatcher) Conversations(ctx context.Context) ([]Conversation, error) {
	return w.Convs, nil
}
