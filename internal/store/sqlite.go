package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

// SQLite is an OffsetStore backed by a single-row SQLite table, so the
// polling offset survives restarts and redeploys.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the offset database at path.
// The database uses WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes).
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis),
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS poll_offset (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		next_offset INTEGER NOT NULL,
		updated_at  TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Load implements OffsetStore.
func (s *SQLite) Load() (int64, error) {
	var offset int64
	err := s.db.QueryRow("SELECT next_offset FROM poll_offset WHERE id = 1").Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("store: load offset: %w", err)
	}
	return offset, nil
}

// Save implements OffsetStore.
func (s *SQLite) Save(offset int64) error {
	_, err := s.db.Exec(`INSERT INTO poll_offset (id, next_offset, updated_at)
		VALUES (1, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(id) DO UPDATE SET next_offset = excluded.next_offset, updated_at = excluded.updated_at`,
		offset)
	if err != nil {
		return fmt.Errorf("store: save offset: %w", err)
	}
	return nil
}

// Close implements OffsetStore.
func (s *SQLite) Close() error {
	return s.db.Close()
}
