package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteBackend persists cache entries in a single SQLite table so stale
// fallback survives process restarts. Rows are not deleted on expiry; Purge
// removes entries long past any useful staleness window.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend prepares the schema and returns a backend over db. The
// caller owns the *sql.DB (and the driver registration).
func NewSQLiteBackend(db *sql.DB) (*SQLiteBackend, error) {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cache_entries (
    key TEXT PRIMARY KEY,
    payload BLOB NOT NULL,
    stored_at DATETIME NOT NULL,
    ttl_seconds INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_stored_at ON cache_entries(stored_at);
`)
	if err != nil {
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, key string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, payload, stored_at, ttl_seconds
		FROM cache_entries
		WHERE key = ?
	`, key)

	var entry Entry
	err := row.Scan(&entry.Key, &entry.Payload, &entry.StoredAt, &entry.TTLSeconds)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read cache entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteBackend) Put(ctx context.Context, key string, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, stored_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at,
			ttl_seconds = excluded.ttl_seconds
	`, key, []byte(entry.Payload), entry.StoredAt, entry.TTLSeconds)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Purge deletes entries stored more than maxAge ago and reports how many
// rows were removed.
func (s *SQLiteBackend) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return res.RowsAffected()
}
