package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
)

// Eligibility is a step precondition: the stages a track may be in plus
// auxiliary requirements on its columns.
type Eligibility struct {
	Stages             []domain.Stage
	RequireISRC        bool
	RequireSourceAudio bool
	RequireAudio       bool
	RequireLyrics      bool
	RequireAlignment   bool
	MaxRetries         int
}

func (e Eligibility) maxRetries() int {
	if e.MaxRetries > 0 {
		return e.MaxRetries
	}
	return constants.MaxRetries
}

// where renders the predicate. Only fixed column checks are spliced in;
// every value is a bind parameter.
func (e Eligibility) where(now time.Time, includeLease bool) (string, []any, error) {
	if len(e.Stages) == 0 {
		return "", nil, fmt.Errorf("eligibility has no stages")
	}
	stages := make([]string, len(e.Stages))
	for i, s := range e.Stages {
		stages[i] = string(s)
	}

	conds := []string{"stage IN (?)", "retry_count < ?"}
	args := []any{stages, e.maxRetries()}
	if e.RequireISRC {
		conds = append(conds, "isrc <> ''")
	}
	if e.RequireSourceAudio {
		conds = append(conds, "source_audio_url <> ''")
	}
	if e.RequireAudio {
		conds = append(conds, "audio_url <> ''")
	}
	if e.RequireLyrics {
		conds = append(conds, "TRIM(lyrics) <> ''")
	}
	if e.RequireAlignment {
		conds = append(conds, "EXISTS (SELECT 1 FROM alignment_records a WHERE a.track_id = track_pipeline_state.track_id)")
	}
	if includeLease {
		conds = append(conds, "(lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at < ?)")
		args = append(args, now)
	}

	query, args, err := sqlx.In(strings.Join(conds, " AND "), args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand eligibility: %w", err)
	}
	return query, args, nil
}

// FindEligible returns up to limit tracks satisfying e whose lease is free,
// oldest updated_at first. It does not claim them.
func (db *DB) FindEligible(ctx context.Context, e Eligibility, limit int) ([]*domain.Track, error) {
	where, args, err := e.where(db.now(), true)
	if err != nil {
		return nil, err
	}
	args = append(args, limit)
	query := db.Rebind(`SELECT ` + trackColumns + ` FROM track_pipeline_state WHERE ` + where +
		` ORDER BY updated_at ASC, track_id ASC LIMIT ?`)
	return selectTracks(ctx, db.DB, query, args...)
}

// CountEligible counts tracks satisfying e, ignoring leases.
func (db *DB) CountEligible(ctx context.Context, e Eligibility) (int, error) {
	where, args, err := e.where(db.now(), false)
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM track_pipeline_state WHERE `+where), args...); err != nil {
		return 0, fmt.Errorf("failed to count eligible tracks: %w", err)
	}
	return n, nil
}

// ClaimEligible selects candidates like FindEligible and leases each one to
// owner with a conditional update. Only tracks whose update took effect are
// returned, so two orchestrators never hold the same track.
func (db *DB) ClaimEligible(ctx context.Context, e Eligibility, limit int, owner string, ttl time.Duration) ([]*domain.Track, error) {
	if owner == "" {
		return nil, fmt.Errorf("lease owner is required")
	}
	candidates, err := db.FindEligible(ctx, e, limit)
	if err != nil {
		return nil, err
	}

	claimed := make([]*domain.Track, 0, len(candidates))
	for _, t := range candidates {
		now := db.now()
		expires := now.Add(ttl)
		res, err := db.ExecContext(ctx, db.Rebind(`
			UPDATE track_pipeline_state SET lease_owner = ?, lease_expires_at = ?
			WHERE track_id = ? AND stage = ? AND retry_count < ?
				AND (lease_owner IS NULL OR lease_expires_at IS NULL OR lease_expires_at < ?)
		`), owner, expires, t.TrackID, t.Stage, e.maxRetries(), now)
		if err != nil {
			return claimed, fmt.Errorf("failed to claim track %s: %w", t.TrackID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim track %s: %w", t.TrackID, err)
		}
		if n != 1 {
			continue
		}
		t.LeaseOwner = &owner
		t.LeaseExpiresAt = &expires
		claimed = append(claimed, t)
	}
	return claimed, nil
}

// ReleaseLease drops owner's lease on a track without touching anything else.
func (db *DB) ReleaseLease(ctx context.Context, trackID, owner string) error {
	_, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE track_pipeline_state SET lease_owner = NULL, lease_expires_at = NULL
		WHERE track_id = ? AND lease_owner = ?
	`), trackID, owner)
	if err != nil {
		return fmt.Errorf("failed to release lease on %s: %w", trackID, err)
	}
	return nil
}
