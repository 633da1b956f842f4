package store

import (
	"database/sql"
	"errors"
	"time"
)

// SharedConversationImport records a redeemed share token, keyed by its
// share id, so a second redemption of the same token is a no-op
// (SPEC_FULL.md §4.I).
type SharedConversationImport struct {
	ShareID        string
	ConversationID string
	ImportedAt     string
	RawPayload     string
}

// HasSharedConversationImport reports whether shareID has already been
// redeemed on this device.
func (s *Store) HasSharedConversationImport(shareID string) (bool, error) {
	var x int
	err := s.db.QueryRow(`SELECT 1 FROM shared_conversation_imports WHERE share_id = ?`, shareID).Scan(&x)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// SaveSharedConversationImport records entry. Idempotent: redeeming the
// same share id twice leaves the first import in place.
func (s *Store) SaveSharedConversationImport(entry SharedConversationImport) error {
	if entry.ImportedAt == "" {
		entry.ImportedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO shared_conversation_imports (share_id, conversation_id, imported_at, raw_payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(share_id) DO NOTHING
	`, entry.ShareID, entry.ConversationID, entry.ImportedAt, entry.RawPayload)
	return err
}

// GetSharedConversationImports returns every redeemed share import.
func (s *Store) GetSharedConversationImports() ([]SharedConversationImport, error) {
	rows, err := s.db.Query(`SELECT share_id, conversation_id, imported_at, raw_payload FROM shared_conversation_imports`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SharedConversationImport
	for rows.Next() {
		var e SharedConversationImport
		if err := rows.Scan(&e.ShareID, &e.ConversationID, &e.ImportedAt, &e.RawPayload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
