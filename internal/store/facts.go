package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Fact is the local-store row, including the local-only Dirty flag never
// transmitted to the archive (SPEC_FULL.md §3).
type Fact struct {
	ID            string
	Scope         string
	Key           string
	Value         string
	Tags          []string
	Confidence    float64
	SourceSession string
	Created       string
	LastConfirmed string
	AccessCount   int64
	Dirty         bool
}

// UpsertFact inserts or replaces a fact by Key, marks it dirty, and clears
// any pending-delete tombstone for the same key, in a single transaction.
// Created is preserved across a replace; LastConfirmed always advances to
// now when the caller leaves it empty.
func (s *Store) UpsertFact(f Fact) error {
	tags, err := json.Marshal(f.Tags)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if f.Created == "" {
		f.Created = now
	}
	if f.LastConfirmed == "" {
		f.LastConfirmed = now
	}
	if f.Confidence == 0 {
		f.Confidence = 1.0
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existingCreated string
	err = tx.QueryRow(`SELECT created FROM facts WHERE key = ?`, f.Key).Scan(&existingCreated)
	switch {
	case err == nil:
		f.Created = existingCreated // created never changes after insertion
	case errors.Is(err, sql.ErrNoRows):
		// new fact, keep f.Created as set above
	default:
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO facts (id, scope, key, value, tags, confidence, source_session, created, last_confirmed, access_count, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT access_count FROM facts WHERE key = ?), 0), 1)
		ON CONFLICT(key) DO UPDATE SET
			id=excluded.id, scope=excluded.scope, value=excluded.value, tags=excluded.tags,
			confidence=excluded.confidence, source_session=excluded.source_session,
			last_confirmed=excluded.last_confirmed, dirty=1
	`, f.ID, f.Scope, f.Key, f.Value, string(tags), f.Confidence, f.SourceSession, f.Created, f.LastConfirmed, f.Key)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM pending_deletes WHERE key = ?`, f.Key); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteFact removes key from facts (if present) and inserts a
// pending-delete tombstone. Idempotent: deleting an absent key still
// records the tombstone so the next push emits the delete op.
func (s *Store) DeleteFact(key string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM facts WHERE key = ?`, key); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO pending_deletes (key, deleted_at) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET deleted_at=excluded.deleted_at
	`, key, now); err != nil {
		return err
	}
	return tx.Commit()
}

// GetFact returns the fact stored under key, or nil if absent.
func (s *Store) GetFact(key string) (*Fact, error) {
	row := s.db.QueryRow(`SELECT id, scope, key, value, tags, confidence, source_session, created, last_confirmed, access_count, dirty FROM facts WHERE key = ?`, key)
	f, err := scanFact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// GetAllFacts returns every fact ordered by last_confirmed descending.
func (s *Store) GetAllFacts() ([]Fact, error) {
	rows, err := s.db.Query(`SELECT id, scope, key, value, tags, confidence, source_session, created, last_confirmed, access_count, dirty FROM facts ORDER BY last_confirmed DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

// GetFactsByScope returns facts whose scope equals scope or "global".
func (s *Store) GetFactsByScope(scope string) ([]Fact, error) {
	rows, err := s.db.Query(`SELECT id, scope, key, value, tags, confidence, source_session, created, last_confirmed, access_count, dirty FROM facts WHERE scope = ? OR scope = 'global' ORDER BY last_confirmed DESC`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

// GetDirtyFacts returns every fact with dirty=1.
func (s *Store) GetDirtyFacts() ([]Fact, error) {
	rows, err := s.db.Query(`SELECT id, scope, key, value, tags, confidence, source_session, created, last_confirmed, access_count, dirty FROM facts WHERE dirty = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFacts(rows)
}

// PendingDelete is a queued tombstone awaiting the next push.
type PendingDelete struct {
	Key       string
	DeletedAt string
}

// GetPendingDeletes returns all queued tombstones.
func (s *Store) GetPendingDeletes() ([]PendingDelete, error) {
	rows, err := s.db.Query(`SELECT key, deleted_at FROM pending_deletes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PendingDelete
	for rows.Next() {
		var p PendingDelete
		if err := rows.Scan(&p.Key, &p.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClearDirtyState zeroes every fact's dirty flag and empties pending
// deletes in one transaction. Must never overlap a concurrent upsert that
// sets dirty=1 (SPEC_FULL.md §4.D) — callers serialize this through the
// sync engine's single-flight push lock.
func (s *Store) ClearDirtyState() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`UPDATE facts SET dirty = 0`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM pending_deletes`); err != nil {
		return err
	}
	return tx.Commit()
}

// IncrementAccessCount bumps the access_count for key by one.
func (s *Store) IncrementAccessCount(key string) error {
	_, err := s.db.Exec(`UPDATE facts SET access_count = access_count + 1 WHERE key = ?`, key)
	return err
}

// ReplaceFromReplay writes a reconstructed fact from pull replay with
// dirty=0, overwriting any existing row for the same key.
func (s *Store) ReplaceFromReplay(f Fact) error {
	tags, err := json.Marshal(f.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO facts (id, scope, key, value, tags, confidence, source_session, created, last_confirmed, access_count, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
		ON CONFLICT(key) DO UPDATE SET
			id=excluded.id, scope=excluded.scope, value=excluded.value, tags=excluded.tags,
			confidence=excluded.confidence, source_session=excluded.source_session,
			created=excluded.created, last_confirmed=excluded.last_confirmed, dirty=0
	`, f.ID, f.Scope, f.Key, f.Value, string(tags), f.Confidence, f.SourceSession, f.Created, f.LastConfirmed)
	return err
}

// DeleteFromReplay removes key from facts without queuing a tombstone,
// used when applying a delete op during pull replay.
func (s *Store) DeleteFromReplay(key string) error {
	_, err := s.db.Exec(`DELETE FROM facts WHERE key = ?`, key)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFact(row scannable) (*Fact, error) {
	var f Fact
	var tags string
	var dirty int
	if err := row.Scan(&f.ID, &f.Scope, &f.Key, &f.Value, &tags, &f.Confidence, &f.SourceSession, &f.Created, &f.LastConfirmed, &f.AccessCount, &dirty); err != nil {
		return nil, err
	}
	f.Dirty = dirty != 0
	_ = json.Unmarshal([]byte(tags), &f.Tags)
	return &f, nil
}

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var out []Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}
