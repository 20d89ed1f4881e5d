package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/songpipe/internal/domain"
)

const trackColumns = `track_id, isrc, title, artist, recording_mbid, duration_ms, source_audio_url,
	audio_url, lyrics, iswc, stage, retry_count, manual_reset_count, last_error_message,
	last_error_stage, lease_owner, lease_expires_at, created_at, updated_at, last_attempted_at`

// NewTrack describes a track entering the pipeline from upstream discovery.
type NewTrack struct {
	TrackID        string
	ISRC           string
	Title          string
	Artist         string
	DurationMS     int
	SourceAudioURL string
	Lyrics         string
}

// EnqueueTrack inserts a discovered track. Re-enqueueing an existing track
// only fills descriptive fields that are still empty; its stage is kept.
func (db *DB) EnqueueTrack(ctx context.Context, t NewTrack) error {
	if strings.TrimSpace(t.TrackID) == "" {
		return fmt.Errorf("track id is required")
	}
	now := db.now()

	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO track_pipeline_state (track_id, isrc, title, artist, duration_ms, source_audio_url,
			lyrics, stage, retry_count, manual_reset_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT (track_id) DO UPDATE SET
			isrc = CASE WHEN track_pipeline_state.isrc = '' THEN excluded.isrc ELSE track_pipeline_state.isrc END,
			title = CASE WHEN track_pipeline_state.title = '' THEN excluded.title ELSE track_pipeline_state.title END,
			artist = CASE WHEN track_pipeline_state.artist = '' THEN excluded.artist ELSE track_pipeline_state.artist END,
			source_audio_url = CASE WHEN track_pipeline_state.source_audio_url = '' THEN excluded.source_audio_url ELSE track_pipeline_state.source_audio_url END,
			lyrics = CASE WHEN TRIM(track_pipeline_state.lyrics) = '' THEN excluded.lyrics ELSE track_pipeline_state.lyrics END
	`), t.TrackID, strings.ToUpper(strings.TrimSpace(t.ISRC)), t.Title, t.Artist, t.DurationMS,
		t.SourceAudioURL, nonBlank(t.Lyrics), domain.StageDiscovered, now, now)
	if err != nil {
		return classify(fmt.Errorf("failed to enqueue track %s: %w", t.TrackID, err))
	}
	return nil
}

func (db *DB) GetTrack(ctx context.Context, trackID string) (*domain.Track, error) {
	return getTrack(ctx, db.DB, db.Rebind, trackID)
}

// ListTracks returns tracks at the given stage, oldest first. An empty stage
// lists every track.
func (db *DB) ListTracks(ctx context.Context, stage domain.Stage, limit int) ([]*domain.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM track_pipeline_state`
	var args []any
	if stage != "" {
		query += ` WHERE stage = ?`
		args = append(args, stage)
	}
	query += ` ORDER BY updated_at ASC, track_id ASC LIMIT ?`
	args = append(args, limit)
	return selectTracks(ctx, db.DB, db.Rebind(query), args...)
}

func getTrack(ctx context.Context, q sqlx.QueryerContext, rebind func(string) string, trackID string) (*domain.Track, error) {
	var t domain.Track
	err := sqlx.GetContext(ctx, q, &t, rebind(`SELECT `+trackColumns+` FROM track_pipeline_state WHERE track_id = ?`), trackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track %s: %w", trackID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track %s: %w", trackID, err)
	}
	return &t, nil
}

func selectTracks(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]*domain.Track, error) {
	var tracks []*domain.Track
	if err := sqlx.SelectContext(ctx, q, &tracks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select tracks: %w", err)
	}
	return tracks, nil
}

func applyFields(ctx context.Context, tx *sqlx.Tx, trackID string, f *domain.TrackFields) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE track_pipeline_state SET
			title = COALESCE(NULLIF(?, ''), title),
			artist = COALESCE(NULLIF(?, ''), artist),
			recording_mbid = COALESCE(NULLIF(?, ''), recording_mbid),
			duration_ms = COALESCE(NULLIF(?, 0), duration_ms),
			lyrics = COALESCE(NULLIF(?, ''), lyrics),
			audio_url = COALESCE(NULLIF(?, ''), audio_url)
		WHERE track_id = ?
	`), f.Title, f.Artist, f.RecordingMBID, f.DurationMS, nonBlank(f.Lyrics), f.AudioURL, trackID)
	if err != nil {
		return classify(fmt.Errorf("failed to update track fields: %w", err))
	}
	return nil
}

// nonBlank maps whitespace-only text to the empty string.
func nonBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}
