package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stage is a node of the pipeline DAG.
type Stage string

const (
	StageDiscovered        Stage = "discovered"
	StageMetadataResolved  Stage = "metadata_resolved"
	StageISWCFound         Stage = "iswc_found"
	StageISWCFailed        Stage = "iswc_failed"
	StageAudioDownloaded   Stage = "audio_downloaded"
	StageAlignmentComplete Stage = "alignment_complete"
	StageTranslationsReady Stage = "translations_ready"
	StageFailed            Stage = "failed"
)

var stageRank = map[Stage]int{
	StageDiscovered:        0,
	StageMetadataResolved:  1,
	StageISWCFound:         2,
	StageISWCFailed:        2,
	StageAudioDownloaded:   3,
	StageAlignmentComplete: 4,
	StageTranslationsReady: 5,
	StageFailed:            6,
}

// Stages lists every stage in DAG order, terminal failure last.
func Stages() []Stage {
	return []Stage{
		StageDiscovered,
		StageMetadataResolved,
		StageISWCFound,
		StageISWCFailed,
		StageAudioDownloaded,
		StageAlignmentComplete,
		StageTranslationsReady,
		StageFailed,
	}
}

func (s Stage) Valid() bool {
	_, ok := stageRank[s]
	return ok
}

// Rank orders stages along the DAG. Both ISWC branches share a rank.
func (s Stage) Rank() int {
	if r, ok := stageRank[s]; ok {
		return r
	}
	return -1
}

func (s Stage) Terminal() bool {
	return s == StageFailed || s == StageTranslationsReady
}

// CanAdvance reports whether moving from one stage to another is a forward
// transition. Failure is reachable from every non-terminal stage.
func CanAdvance(from, to Stage) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	return to.Rank() > from.Rank()
}

func ParseStage(s string) (Stage, error) {
	st := Stage(strings.TrimSpace(strings.ToLower(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// Outcome of one processing attempt as recorded in the processing log.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeRequeued Outcome = "requeued"
)

// Track is one row of track_pipeline_state.
type Track struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	TrackID          string     `json:"track_id" db:"track_id"`
	ISRC             string     `json:"isrc" db:"isrc"`
	Title            string     `json:"title" db:"title"`
	Artist           string     `json:"artist" db:"artist"`
	RecordingMBID    string     `json:"recording_mbid,omitempty" db:"recording_mbid"`
	DurationMS       int        `json:"duration_ms" db:"duration_ms"`
	SourceAudioURL   string     `json:"source_audio_url,omitempty" db:"source_audio_url"`
	AudioURL         string     `json:"audio_url,omitempty" db:"audio_url"`
	Lyrics           string     `json:"lyrics,omitempty" db:"lyrics"`
	ISWC             *string    `json:"iswc,omitempty" db:"iswc"`
	Stage            Stage      `json:"stage" db:"stage"`
	RetryCount       int        `json:"retry_count" db:"retry_count"`
	ManualResetCount int        `json:"manual_reset_count" db:"manual_reset_count"`
	LastErrorMessage *string    `json:"last_error_message,omitempty" db:"last_error_message"`
	LastErrorStage   *string    `json:"last_error_stage,omitempty" db:"last_error_stage"`
	LeaseOwner       *string    `json:"lease_owner,omitempty" db:"lease_owner"`
	LeaseExpiresAt   *time.Time `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	LastAttemptedAt  *time.Time `json:"last_attempted_at,omitempty" db:"last_attempted_at"`
}

func (t *Track) HasISWC() bool {
	return t.ISWC != nil && *t.ISWC != ""
}

// LyricLines splits the stored lyrics into lines, dropping blank ones.
func (t *Track) LyricLines() []string {
	return SplitLines(t.Lyrics)
}

// SplitLines returns the non-blank, trimmed lines of text.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// IdentifierRecord is a cached resolution result keyed by a provider's
// natural identifier (an ISRC for recording lookups).
type IdentifierRecord struct { //nolint:govet
	NaturalKey         string       `json:"natural_key" db:"natural_key"`
	KeyType            string       `json:"key_type" db:"key_type"`
	ResolvedIdentifier *string      `json:"resolved_identifier,omitempty" db:"resolved_identifier"`
	Source             string       `json:"source" db:"source"`
	Title              string       `json:"title" db:"title"`
	Contributors       Contributors `json:"contributors" db:"contributors"`
	Metadata           JSONMap      `json:"metadata" db:"metadata"`
	RawPayload         RawJSON      `json:"raw_payload,omitempty" db:"raw_payload"`
	NotFound           bool         `json:"not_found" db:"not_found"`
	FetchedAt          time.Time    `json:"fetched_at" db:"fetched_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`

	// Degraded marks a not-found result produced while at least one
	// provider failed. Such results are never cached.
	Degraded bool `json:"-" db:"-"`
}

// Identifier record key types: recording-level lookups by ISRC, work-level
// records by ISWC.
const (
	KeyTypeISRC = "isrc"
	KeyTypeISWC = "iswc"
)

// NormalizeISWC strips whitespace, dots and dashes and uppercases the code,
// so "T-123.456.789-0" becomes "T1234567890".
func NormalizeISWC(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		switch r {
		case ' ', '\t', '\n', '\r', '.', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r *IdentifierRecord) ISWC() string {
	if r == nil || r.ResolvedIdentifier == nil {
		return ""
	}
	return *r.ResolvedIdentifier
}

type AlignedWord struct {
	Text  string  `json:"text" validate:"required"`
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtefield=Start"`
	Loss  float64 `json:"loss"`
}

type AlignedChar struct {
	Text  string  `json:"text"`
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtefield=Start"`
}

type AlignedLine struct {
	Index     int     `json:"index"`
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	WordCount int     `json:"word_count"`
}

// Alignment is the forced-alignment result for one track.
type Alignment struct { //nolint:govet
	TrackID     string       `json:"track_id" db:"track_id"`
	Words       AlignedWords `json:"words" db:"words"`
	Characters  AlignedChars `json:"characters" db:"characters"`
	Lines       AlignedLines `json:"lines" db:"lines"`
	LineCount   int          `json:"line_count" db:"line_count"`
	OverallLoss float64      `json:"overall_loss" db:"overall_loss"`
	Provider    string       `json:"provider" db:"provider"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// LineTexts returns the aligned line texts in order.
func (a *Alignment) LineTexts() []string {
	out := make([]string, len(a.Lines))
	for i, l := range a.Lines {
		out[i] = l.Text
	}
	return out
}

// Translation is one (track, language) translation.
type Translation struct { //nolint:govet
	TrackID         string      `json:"track_id" db:"track_id"`
	LanguageCode    string      `json:"language_code" db:"language_code"`
	Lines           StringSlice `json:"lines" db:"lines"`
	LineCount       int         `json:"line_count" db:"line_count"`
	ConfidenceScore float64     `json:"confidence_score" db:"confidence_score"`
	SourceLanguage  string      `json:"source_language" db:"source_language"`
	Provider        string      `json:"provider" db:"provider"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// LogEntry is an append-only processing_log row.
type LogEntry struct { //nolint:govet
	ID        int64     `json:"id" db:"id"`
	RunID     string    `json:"run_id" db:"run_id"`
	TrackID   string    `json:"track_id" db:"track_id"`
	Stage     Stage     `json:"stage" db:"stage"`
	Outcome   Outcome   `json:"outcome" db:"outcome"`
	Message   string    `json:"message" db:"message"`
	Metadata  JSONMap   `json:"metadata" db:"metadata"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TrackFields carries descriptive fields discovered by a stage. Empty values
// leave the stored column untouched.
type TrackFields struct {
	Title         string
	Artist        string
	RecordingMBID string
	DurationMS    int
	Lyrics        string
	AudioURL      string
}

// Payload is everything a successful stage writes together with its stage
// advance.
type Payload struct {
	Fields       *TrackFields
	Identifier   *IdentifierRecord
	Alignment    *Alignment
	Translations []*Translation
	Message      string
	Metadata     JSONMap
}
