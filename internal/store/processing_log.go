package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/songpipe/internal/domain"
)

// appendLog inserts a processing_log row. Rows are never updated.
func appendLog(ctx context.Context, tx *sqlx.Tx, e *domain.LogEntry, now time.Time) error {
	if e.Metadata == nil {
		e.Metadata = domain.JSONMap{}
	}
	e.CreatedAt = now
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO processing_log (run_id, track_id, stage, outcome, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), e.RunID, e.TrackID, e.Stage, e.Outcome, e.Message, e.Metadata, now)
	if err != nil {
		return classify(fmt.Errorf("failed to append processing log: %w", err))
	}
	return nil
}

// AppendLog records an entry outside a stage transition, e.g. a constraint
// violation the processor chose to log and move past.
func (db *DB) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		return appendLog(ctx, tx, e, db.now())
	})
}

// TrackLog returns a track's history, oldest first.
func (db *DB) TrackLog(ctx context.Context, trackID string) ([]*domain.LogEntry, error) {
	var out []*domain.LogEntry
	err := db.SelectContext(ctx, &out, db.Rebind(`
		SELECT id, run_id, track_id, stage, outcome, message, metadata, created_at
		FROM processing_log WHERE track_id = ? ORDER BY id ASC
	`), trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to read processing log: %w", err)
	}
	return out, nil
}

// OutcomeCount is the number of log rows per (stage, outcome).
type OutcomeCount struct {
	Stage   domain.Stage   `db:"stage" json:"stage"`
	Outcome domain.Outcome `db:"outcome" json:"outcome"`
	Count   int            `db:"n" json:"count"`
}

// OutcomesSince aggregates the processing log from a point in time.
func (db *DB) OutcomesSince(ctx context.Context, since time.Time) ([]OutcomeCount, error) {
	var out []OutcomeCount
	err := db.SelectContext(ctx, &out, db.Rebind(`
		SELECT stage, outcome, COUNT(*) AS n FROM processing_log
		WHERE created_at >= ? GROUP BY stage, outcome ORDER BY stage, outcome
	`), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate processing log: %w", err)
	}
	return out, nil
}
