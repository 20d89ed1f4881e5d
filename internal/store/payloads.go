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

func (db *DB) GetAlignment(ctx context.Context, trackID string) (*domain.Alignment, error) {
	var a domain.Alignment
	err := db.GetContext(ctx, &a, db.Rebind(`
		SELECT track_id, words, characters, lines, line_count, overall_loss, provider, created_at, updated_at
		FROM alignment_records WHERE track_id = ?
	`), trackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alignment for %s: %w", trackID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alignment: %w", err)
	}
	return &a, nil
}

// Re-runs replace the alignment wholesale.
func putAlignment(ctx context.Context, tx *sqlx.Tx, a *domain.Alignment, now time.Time) error {
	a.LineCount = len(a.Lines)
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO alignment_records (track_id, words, characters, lines, line_count, overall_loss, provider, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (track_id) DO UPDATE SET
			words = excluded.words,
			characters = excluded.characters,
			lines = excluded.lines,
			line_count = excluded.line_count,
			overall_loss = excluded.overall_loss,
			provider = excluded.provider,
			updated_at = excluded.updated_at
	`), a.TrackID, a.Words, a.Characters, a.Lines, a.LineCount, a.OverallLoss, a.Provider, now, now)
	if err != nil {
		return classify(fmt.Errorf("failed to upsert alignment: %w", err))
	}
	return nil
}

// SaveTranslation stores one language as soon as it is produced, so a
// partial run keeps the languages it paid for.
func (db *DB) SaveTranslation(ctx context.Context, tr *domain.Translation) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		return putTranslation(ctx, tx, tr, db.now())
	})
}

func putTranslation(ctx context.Context, tx *sqlx.Tx, tr *domain.Translation, now time.Time) error {
	tr.LineCount = len(tr.Lines)
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO translation_records (track_id, language_code, lines, line_count, confidence_score,
			source_language, provider, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (track_id, language_code) DO UPDATE SET
			lines = excluded.lines,
			line_count = excluded.line_count,
			confidence_score = excluded.confidence_score,
			source_language = excluded.source_language,
			provider = excluded.provider,
			updated_at = excluded.updated_at
	`), tr.TrackID, tr.LanguageCode, tr.Lines, tr.LineCount, tr.ConfidenceScore, tr.SourceLanguage, tr.Provider, now, now)
	if err != nil {
		return classify(fmt.Errorf("failed to upsert translation %s/%s: %w", tr.TrackID, tr.LanguageCode, err))
	}
	return nil
}

func (db *DB) ListTranslations(ctx context.Context, trackID string) ([]*domain.Translation, error) {
	var out []*domain.Translation
	err := db.SelectContext(ctx, &out, db.Rebind(`
		SELECT track_id, language_code, lines, line_count, confidence_score, source_language, provider, created_at, updated_at
		FROM translation_records WHERE track_id = ? ORDER BY language_code
	`), trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	return out, nil
}

// TranslatedLanguages returns the set of languages already stored for a track.
func (db *DB) TranslatedLanguages(ctx context.Context, trackID string) (map[string]bool, error) {
	var langs []string
	if err := db.SelectContext(ctx, &langs, db.Rebind(`SELECT language_code FROM translation_records WHERE track_id = ?`), trackID); err != nil {
		return nil, fmt.Errorf("failed to list translated languages: %w", err)
	}
	out := make(map[string]bool, len(langs))
	for _, l := range langs {
		out[l] = true
	}
	return out, nil
}
