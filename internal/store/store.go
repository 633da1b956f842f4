// Package store implements SPEC_FULL.md §4.D: the local fact table, dirty
// tracking, pending-delete tombstones, the meta KV, and the
// shared-conversation-import ledger. Backed by SQLite (pure-Go driver, no
// cgo) in WAL journal mode with foreign keys enforced.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sharme-dev/sharme/pkg/logging"
)

// Store is a handle to the local SQLite database. It is opened once per
// process and closed on shutdown; the sync engine borrows it for the
// duration of a tick but owns no state of its own.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id             TEXT NOT NULL,
	scope          TEXT NOT NULL,
	key            TEXT NOT NULL UNIQUE,
	value          TEXT NOT NULL,
	tags           TEXT NOT NULL DEFAULT '[]',
	confidence     REAL NOT NULL DEFAULT 1.0,
	source_session TEXT,
	created        TEXT NOT NULL,
	last_confirmed TEXT NOT NULL,
	access_count   INTEGER NOT NULL DEFAULT 0,
	dirty          INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_facts_scope ON facts(scope);
CREATE INDEX IF NOT EXISTS idx_facts_dirty ON facts(dirty);

CREATE TABLE IF NOT EXISTS pending_deletes (
	key        TEXT PRIMARY KEY,
	deleted_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shared_conversation_imports (
	share_id        TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	imported_at     TEXT NOT NULL,
	raw_payload     TEXT NOT NULL
);
`

// Open opens (creating if absent) the SQLite database at path, enables WAL
// journaling and foreign key enforcement, and ensures the schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1) // serialize writers through a single connection; see SPEC_FULL §5

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign_keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logging.Sugar().Infow("store opened", "path", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
