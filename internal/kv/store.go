// Package kv provides the local durable key-value store backing offline
// queues and read-through snapshots.
package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sgtlogistica/tripcore/internal/apperr"
)

// Store is the persistence surface the core depends on. Implementations
// must survive process restarts; the mobile shells back it with on-device
// storage.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent.
	Get(key string) (string, bool, error)

	// Set writes the value for key, overwriting any previous value.
	Set(key, value string) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error

	// Close releases the underlying storage.
	Close() error
}

// SQLiteStore implements Store on a single-file SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the device database under dataDir.
// The database is opened with WAL mode and a single writer, matching
// SQLite's concurrency model.
func Open(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, apperr.Wrap(apperr.ErrLocalStore, "create data directory", err)
	}

	dbPath := filepath.Join(dataDir, "tripcore.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrLocalStore, "open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrLocalStore, "enable WAL mode", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrLocalStore, "set busy timeout", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY CHECK(length(key) > 0),
		value      TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.ErrLocalStore, "create kv table", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the stored value for key.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.ErrLocalStore, fmt.Sprintf("get %q", key), err)
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *SQLiteStore) Set(key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.Exec(query, key, value, time.Now().Unix()); err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, fmt.Sprintf("set %q", key), err)
	}
	return nil
}

// Remove deletes the key if present.
func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return apperr.Wrap(apperr.ErrLocalStore, fmt.Sprintf("remove %q", key), err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
