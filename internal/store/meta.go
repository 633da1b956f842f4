package store

import (
	"database/sql"
	"errors"
)

// Reserved meta keys, per SPEC_FULL.md §3.
const (
	MetaCurrentVersion    = "current_version"
	MetaLastPushedVersion = "last_pushed_version"
	MetaCreated           = "created"
	MetaWalletAddress     = "wallet_address"
)

// ConversationOffsetKey builds the reserved meta key tracking a per-session
// push cursor.
func ConversationOffsetKey(client, session string) string {
	return "conversation_offset:" + client + ":" + session
}

// GetMeta returns the value for key, or "", false if unset.
func (s *Store) GetMeta(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetMeta upserts key=value in the meta KV.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	return err
}
