package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetCache returns a cached HTTP response body, or nil when absent or expired.
func (db *DB) GetCache(key string) ([]byte, error) {
	type cacheRow struct {
		ExpiresAt sql.NullTime `db:"expires_at"`
		Data      []byte       `db:"data"`
	}

	var row cacheRow
	err := db.Get(&row, db.Rebind("SELECT data, expires_at FROM http_cache WHERE key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if row.ExpiresAt.Valid && db.now().After(row.ExpiresAt.Time) {
		_, _ = db.Exec(db.Rebind("DELETE FROM http_cache WHERE key = ?"), key)
		return nil, nil
	}

	return row.Data, nil
}

func (db *DB) SetCache(key string, data []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := db.now().Add(ttl)
		expiresAt = &t
	}

	_, err := db.Exec(db.Rebind(`
		INSERT INTO http_cache (key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`), key, data, expiresAt)
	return err
}
