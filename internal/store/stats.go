package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
)

// Read-only queries backing the integrity report.

const sampleSize = 5

// Finding is a count of offending rows plus a few example track ids.
type Finding struct {
	Count   int      `json:"count"`
	Samples []string `json:"samples,omitempty"`
}

func (db *DB) StageCounts(ctx context.Context) (map[domain.Stage]int, error) {
	var rows []struct {
		Stage domain.Stage `db:"stage"`
		N     int          `db:"n"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT stage, COUNT(*) AS n FROM track_pipeline_state GROUP BY stage`); err != nil {
		return nil, fmt.Errorf("failed to count stages: %w", err)
	}
	out := make(map[domain.Stage]int, len(rows))
	for _, r := range rows {
		out[r.Stage] = r.N
	}
	return out, nil
}

// TableCounts returns row counts of every pipeline table.
func (db *DB) TableCounts(ctx context.Context) (map[string]int, error) {
	queries := map[string]string{
		constants.TracksTable:        `SELECT COUNT(*) FROM track_pipeline_state`,
		constants.IdentifierTable:    `SELECT COUNT(*) FROM external_identifier_cache`,
		constants.AlignmentsTable:    `SELECT COUNT(*) FROM alignment_records`,
		constants.TranslationsTable:  `SELECT COUNT(*) FROM translation_records`,
		constants.ProcessingLogTable: `SELECT COUNT(*) FROM processing_log`,
		constants.CacheTable:         `SELECT COUNT(*) FROM http_cache`,
	}
	out := make(map[string]int, len(queries))
	for table, q := range queries {
		var n int
		if err := db.GetContext(ctx, &n, q); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

// find runs a COUNT and a sample query over the same FROM/WHERE fragment.
// Fragments are fixed strings defined in this file.
func (db *DB) find(ctx context.Context, idColumn, fromWhere string, args ...any) (Finding, error) {
	var f Finding
	if err := db.GetContext(ctx, &f.Count, db.Rebind(`SELECT COUNT(*) `+fromWhere), args...); err != nil {
		return f, err
	}
	if f.Count == 0 {
		return f, nil
	}
	sampleArgs := append(append([]any{}, args...), sampleSize)
	if err := db.SelectContext(ctx, &f.Samples, db.Rebind(`SELECT `+idColumn+` `+fromWhere+` ORDER BY `+idColumn+` LIMIT ?`), sampleArgs...); err != nil {
		return f, err
	}
	return f, nil
}

// MissingAlignments: tracks past alignment without an alignment record.
func (db *DB) MissingAlignments(ctx context.Context) (Finding, error) {
	return db.find(ctx, "t.track_id", `FROM track_pipeline_state t
		WHERE t.stage IN (?, ?)
		AND NOT EXISTS (SELECT 1 FROM alignment_records a WHERE a.track_id = t.track_id)`,
		domain.StageAlignmentComplete, domain.StageTranslationsReady)
}

// BelowQuorum: translation-ready tracks with fewer languages than quorum.
func (db *DB) BelowQuorum(ctx context.Context, quorum int) (Finding, error) {
	return db.find(ctx, "t.track_id", `FROM track_pipeline_state t
		WHERE t.stage = ?
		AND (SELECT COUNT(*) FROM translation_records r WHERE r.track_id = t.track_id) < ?`,
		domain.StageTranslationsReady, quorum)
}

// ISWCFoundWithoutISWC: tracks on the found branch with a null ISWC.
func (db *DB) ISWCFoundWithoutISWC(ctx context.Context) (Finding, error) {
	return db.find(ctx, "t.track_id", `FROM track_pipeline_state t
		WHERE t.stage = ? AND (t.iswc IS NULL OR t.iswc = '')`, domain.StageISWCFound)
}

// ISWCNotCached: tracks carrying an ISWC that the identifier cache does not
// back up.
func (db *DB) ISWCNotCached(ctx context.Context) (Finding, error) {
	return db.find(ctx, "t.track_id", `FROM track_pipeline_state t
		WHERE t.iswc IS NOT NULL AND t.iswc <> ''
		AND NOT EXISTS (SELECT 1 FROM external_identifier_cache c
			WHERE c.natural_key = 'isrc:' || t.isrc AND c.resolved_identifier = t.iswc)`)
}

// LineCountMismatches: translations whose line count differs from the
// alignment they were derived from.
func (db *DB) LineCountMismatches(ctx context.Context) (Finding, error) {
	return db.find(ctx, "r.track_id", `FROM translation_records r
		JOIN alignment_records a ON a.track_id = r.track_id
		WHERE r.line_count <> a.line_count`)
}

// ExpiredLeases: leases past their expiry, left by a crashed worker.
func (db *DB) ExpiredLeases(ctx context.Context) (Finding, error) {
	return db.find(ctx, "t.track_id", `FROM track_pipeline_state t
		WHERE t.lease_owner IS NOT NULL AND t.lease_expires_at < ?`, db.now())
}

// ExhaustedNotFailed: tracks whose retry budget is spent but which were
// never marked failed, i.e. the last attempt was interrupted.
func (db *DB) ExhaustedNotFailed(ctx context.Context) (Finding, error) {
	return db.find(ctx, "t.track_id", `FROM track_pipeline_state t
		WHERE t.retry_count >= ? AND t.stage NOT IN (?, ?)`,
		constants.MaxRetries, domain.StageFailed, domain.StageTranslationsReady)
}

// SweepInterrupted moves tracks whose final attempt never reported an
// outcome to failed, once their lease is free. It returns how many moved.
func (db *DB) SweepInterrupted(ctx context.Context, runID string) (int, error) {
	var ids []string
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		now := db.now()
		if err := tx.SelectContext(ctx, &ids, tx.Rebind(`
			SELECT track_id FROM track_pipeline_state
			WHERE retry_count >= ? AND stage NOT IN (?, ?)
			AND (lease_owner IS NULL OR lease_expires_at < ?)
		`), constants.MaxRetries, domain.StageFailed, domain.StageTranslationsReady, now); err != nil {
			return fmt.Errorf("failed to find interrupted tracks: %w", err)
		}
		for _, id := range ids {
			t, err := getTrack(ctx, tx, tx.Rebind, id)
			if err != nil {
				return err
			}
			msg := "final attempt interrupted before reporting an outcome"
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE track_pipeline_state SET stage = ?, last_error_message = ?, last_error_stage = ?,
					lease_owner = NULL, lease_expires_at = NULL, updated_at = ?
				WHERE track_id = ?
			`), domain.StageFailed, msg, t.Stage, now, id); err != nil {
				return classify(fmt.Errorf("failed to fail interrupted track: %w", err))
			}
			if err := appendLog(ctx, tx, &domain.LogEntry{
				RunID:    runID,
				TrackID:  id,
				Stage:    t.Stage,
				Outcome:  domain.OutcomeFailed,
				Message:  msg,
				Metadata: domain.JSONMap{"retry_count": t.RetryCount, "terminal": true},
			}, now); err != nil {
				return err
			}
		}
		return nil
	})
	return len(ids), err
}

// OpenTrack is a lightweight view of a non-terminal track used to classify
// why it is not moving.
type OpenTrack struct {
	TrackID        string       `db:"track_id"`
	Stage          domain.Stage `db:"stage"`
	RetryCount     int          `db:"retry_count"`
	HasISRC        bool         `db:"has_isrc"`
	HasSourceAudio bool         `db:"has_source_audio"`
	HasAudio       bool         `db:"has_audio"`
	HasLyrics      bool         `db:"has_lyrics"`
	HasAlignment   bool         `db:"has_alignment"`
	LeaseOwner     *string      `db:"lease_owner"`
	LeaseExpiresAt *time.Time   `db:"lease_expires_at"`
}

// LeaseActive reports whether someone currently holds the track.
func (o *OpenTrack) LeaseActive(now time.Time) bool {
	return o.LeaseOwner != nil && o.LeaseExpiresAt != nil && o.LeaseExpiresAt.After(now)
}

func (db *DB) OpenTracks(ctx context.Context) ([]OpenTrack, error) {
	var out []OpenTrack
	err := db.SelectContext(ctx, &out, db.Rebind(`
		SELECT t.track_id, t.stage, t.retry_count,
			(t.isrc <> '') AS has_isrc,
			(t.source_audio_url <> '') AS has_source_audio,
			(t.audio_url <> '') AS has_audio,
			(t.lyrics <> '') AS has_lyrics,
			EXISTS (SELECT 1 FROM alignment_records a WHERE a.track_id = t.track_id) AS has_alignment,
			t.lease_owner, t.lease_expires_at
		FROM track_pipeline_state t
		WHERE t.stage NOT IN (?, ?)
		ORDER BY t.track_id
	`), domain.StageFailed, domain.StageTranslationsReady)
	if err != nil {
		return nil, fmt.Errorf("failed to list open tracks: %w", err)
	}
	return out, nil
}

// Now exposes the store clock so reports agree with lease arithmetic.
func (db *DB) Now() time.Time {
	return db.now()
}
