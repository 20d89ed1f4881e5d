package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/songpipe/internal/domain"
)

const identifierColumns = `natural_key, key_type, resolved_identifier, source, title, contributors,
	metadata, raw_payload, not_found, fetched_at, updated_at`

// IdentifierKey is the cache key of a recording-level lookup.
func IdentifierKey(isrc string) string {
	return domain.KeyTypeISRC + ":" + isrc
}

// WorkKey is the cache key of a work-level record.
func WorkKey(iswc string) string {
	return domain.KeyTypeISWC + ":" + iswc
}

// GetIdentifier returns the cached record for key, or nil when absent.
func (db *DB) GetIdentifier(ctx context.Context, key string) (*domain.IdentifierRecord, error) {
	var rec domain.IdentifierRecord
	err := db.GetContext(ctx, &rec, db.Rebind(`SELECT `+identifierColumns+` FROM external_identifier_cache WHERE natural_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identifier %s: %w", key, err)
	}
	return &rec, nil
}

// PutIdentifier upserts a resolution result. Degraded results are refused.
func (db *DB) PutIdentifier(ctx context.Context, rec *domain.IdentifierRecord) error {
	if rec.Degraded {
		return fmt.Errorf("refusing to cache degraded result for %s", rec.NaturalKey)
	}
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		return putIdentifier(ctx, tx, rec, db.now())
	})
}

func putIdentifier(ctx context.Context, tx *sqlx.Tx, rec *domain.IdentifierRecord, now time.Time) error {
	if rec.NaturalKey == "" {
		return fmt.Errorf("identifier record has no natural key")
	}
	if rec.KeyType == "" {
		rec.KeyType = domain.KeyTypeISRC
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = now
	}
	rec.UpdatedAt = now

	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO external_identifier_cache (`+identifierColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (natural_key) DO UPDATE SET
			key_type = excluded.key_type,
			resolved_identifier = excluded.resolved_identifier,
			source = excluded.source,
			title = excluded.title,
			contributors = excluded.contributors,
			metadata = excluded.metadata,
			raw_payload = excluded.raw_payload,
			not_found = excluded.not_found,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at
	`), rec.NaturalKey, rec.KeyType, rec.ResolvedIdentifier, rec.Source, rec.Title, rec.Contributors,
		rec.Metadata, rec.RawPayload, rec.NotFound, rec.FetchedAt, rec.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("failed to upsert identifier %s: %w", rec.NaturalKey, err))
	}
	return nil
}
