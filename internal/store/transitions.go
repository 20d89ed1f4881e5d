package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
)

// MarkAttempting records the start of an attempt before any external call:
// last_attempted_at is set, retry_count incremented and error fields cleared.
// A crash mid-call therefore shows up as an attempt without an outcome.
func (db *DB) MarkAttempting(ctx context.Context, trackID, owner string) (*domain.Track, error) {
	var track *domain.Track
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		now := db.now()
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE track_pipeline_state SET
				last_attempted_at = ?,
				updated_at = ?,
				retry_count = retry_count + 1,
				last_error_message = NULL,
				last_error_stage = NULL
			WHERE track_id = ? AND lease_owner = ? AND retry_count < ?
		`), now, now, trackID, owner, constants.MaxRetries)
		if err != nil {
			return classify(fmt.Errorf("failed to mark attempting: %w", err))
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("track %s: %w", trackID, ErrLeaseLost)
		}
		track, err = getTrack(ctx, tx, tx.Rebind, trackID)
		return err
	})
	return track, err
}

// Success describes a completed stage.
type Success struct {
	TrackID string
	Owner   string
	RunID   string
	From    domain.Stage
	Next    domain.Stage
	Payload *domain.Payload
}

// MarkSuccess writes the stage payload, advances the stage, resets the
// per-stage retry budget, releases the lease and appends a success log row,
// all in one transaction. The advance is guarded by the expected current
// stage so a track can never move backwards or be advanced twice.
func (db *DB) MarkSuccess(ctx context.Context, s Success) error {
	if !domain.CanAdvance(s.From, s.Next) || s.Next == domain.StageFailed {
		return fmt.Errorf("transition %s -> %s: %w", s.From, s.Next, ErrStageConflict)
	}
	p := s.Payload
	if p == nil {
		p = &domain.Payload{}
	}

	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		now := db.now()

		if p.Fields != nil {
			if err := applyFields(ctx, tx, s.TrackID, p.Fields); err != nil {
				return err
			}
		}
		if p.Identifier != nil {
			if !p.Identifier.Degraded {
				if err := putIdentifier(ctx, tx, p.Identifier, now); err != nil {
					return err
				}
			}
			if iswc := p.Identifier.ISWC(); iswc != "" {
				if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE track_pipeline_state SET iswc = ? WHERE track_id = ?`), iswc, s.TrackID); err != nil {
					return classify(fmt.Errorf("failed to set iswc: %w", err))
				}
			}
		}
		if p.Alignment != nil {
			p.Alignment.TrackID = s.TrackID
			if err := putAlignment(ctx, tx, p.Alignment, now); err != nil {
				return err
			}
		}
		for _, tr := range p.Translations {
			tr.TrackID = s.TrackID
			if err := putTranslation(ctx, tx, tr, now); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE track_pipeline_state SET
				stage = ?,
				retry_count = 0,
				lease_owner = NULL,
				lease_expires_at = NULL,
				updated_at = ?
			WHERE track_id = ? AND stage = ? AND (lease_owner IS NULL OR lease_owner = ?)
		`), s.Next, now, s.TrackID, s.From, s.Owner)
		if err != nil {
			return classify(fmt.Errorf("failed to advance stage: %w", err))
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("track %s not at %s: %w", s.TrackID, s.From, ErrStageConflict)
		}

		meta := domain.JSONMap{"from": s.From, "to": s.Next}
		for k, v := range p.Metadata {
			meta[k] = v
		}
		msg := p.Message
		if msg == "" {
			msg = fmt.Sprintf("advanced to %s", s.Next)
		}
		return appendLog(ctx, tx, &domain.LogEntry{
			RunID:    s.RunID,
			TrackID:  s.TrackID,
			Stage:    s.From,
			Outcome:  domain.OutcomeSuccess,
			Message:  msg,
			Metadata: meta,
		}, now)
	})
}

// Failure describes a failed attempt.
type Failure struct {
	TrackID  string
	Owner    string
	RunID    string
	Stage    domain.Stage
	Message  string
	Metadata domain.JSONMap
}

// MarkFailure records the error, moves the track to failed once its retry
// budget is spent, releases the lease and appends a failed log row. The
// resulting track state is returned.
func (db *DB) MarkFailure(ctx context.Context, f Failure) (*domain.Track, error) {
	var track *domain.Track
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		now := db.now()
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE track_pipeline_state SET
				last_error_message = ?,
				last_error_stage = ?,
				stage = CASE WHEN retry_count >= ? THEN ? ELSE stage END,
				lease_owner = NULL,
				lease_expires_at = NULL,
				updated_at = ?
			WHERE track_id = ? AND stage = ? AND (lease_owner IS NULL OR lease_owner = ?)
		`), f.Message, f.Stage, constants.MaxRetries, domain.StageFailed, now, f.TrackID, f.Stage, f.Owner)
		if err != nil {
			return classify(fmt.Errorf("failed to mark failure: %w", err))
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("track %s not at %s: %w", f.TrackID, f.Stage, ErrStageConflict)
		}

		track, err = getTrack(ctx, tx, tx.Rebind, f.TrackID)
		if err != nil {
			return err
		}

		meta := domain.JSONMap{"retry_count": track.RetryCount, "terminal": track.Stage == domain.StageFailed}
		for k, v := range f.Metadata {
			meta[k] = v
		}
		return appendLog(ctx, tx, &domain.LogEntry{
			RunID:    f.RunID,
			TrackID:  f.TrackID,
			Stage:    f.Stage,
			Outcome:  domain.OutcomeFailed,
			Message:  f.Message,
			Metadata: meta,
		}, now)
	})
	return track, err
}

// MarkSkipped releases a claimed track that turned out not to be ready and
// logs why. No attempt is counted.
func (db *DB) MarkSkipped(ctx context.Context, trackID, owner, runID string, stage domain.Stage, reason string) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		now := db.now()
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE track_pipeline_state SET lease_owner = NULL, lease_expires_at = NULL
			WHERE track_id = ? AND lease_owner = ?
		`), trackID, owner); err != nil {
			return fmt.Errorf("failed to release skipped track: %w", err)
		}
		return appendLog(ctx, tx, &domain.LogEntry{
			RunID:   runID,
			TrackID: trackID,
			Stage:   stage,
			Outcome: domain.OutcomeSkipped,
			Message: reason,
		}, now)
	})
}

// Requeue is the operator reset. The track returns to the given stage, or to
// the stage it last failed at, with a fresh retry budget. manual_reset_count
// records how often this happened.
func (db *DB) Requeue(ctx context.Context, trackID string, to domain.Stage, runID string) (*domain.Track, error) {
	var track *domain.Track
	err := db.inTx(ctx, func(tx *sqlx.Tx) error {
		current, err := getTrack(ctx, tx, tx.Rebind, trackID)
		if err != nil {
			return err
		}

		target := to
		if target == "" && current.LastErrorStage != nil {
			target = domain.Stage(*current.LastErrorStage)
		}
		if target == "" {
			target = current.Stage
		}
		if !target.Valid() || target == domain.StageFailed {
			return fmt.Errorf("cannot requeue %s to %q", trackID, target)
		}

		now := db.now()
		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE track_pipeline_state SET
				stage = ?,
				retry_count = 0,
				manual_reset_count = manual_reset_count + 1,
				last_error_message = NULL,
				last_error_stage = NULL,
				lease_owner = NULL,
				lease_expires_at = NULL,
				updated_at = ?
			WHERE track_id = ?
		`), target, now, trackID); err != nil {
			return classify(fmt.Errorf("failed to requeue: %w", err))
		}

		if err := appendLog(ctx, tx, &domain.LogEntry{
			RunID:    runID,
			TrackID:  trackID,
			Stage:    target,
			Outcome:  domain.OutcomeRequeued,
			Message:  fmt.Sprintf("requeued from %s", current.Stage),
			Metadata: domain.JSONMap{"from": current.Stage, "previous_retry_count": current.RetryCount},
		}, now); err != nil {
			return err
		}

		track, err = getTrack(ctx, tx, tx.Rebind, trackID)
		return err
	})
	return track, err
}
