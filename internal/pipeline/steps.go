package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/logger"
	"github.com/cesargomez89/songpipe/internal/lyrics"
	"github.com/cesargomez89/songpipe/internal/musicbrainz"
	"github.com/cesargomez89/songpipe/internal/objectstore"
	"github.com/cesargomez89/songpipe/internal/resolver"
	"github.com/cesargomez89/songpipe/internal/store"
	"github.com/cesargomez89/songpipe/internal/tagging"
)

type ISWCResolver interface {
	Resolve(ctx context.Context, q resolver.Query) (*domain.IdentifierRecord, error)
}

type AudioFetcher interface {
	Fetch(ctx context.Context, rawURL string, max int64) (*objectstore.Audio, error)
}

type LyricsAligner interface {
	Align(ctx context.Context, audioURL string, lines []string) (*domain.Alignment, error)
}

type LineTranslator interface {
	Translate(ctx context.Context, lines []string, target, source string) (*domain.Translation, error)
}

// PayloadStore is the read side the translate step needs, plus per-language
// persistence. *store.DB implements it.
type PayloadStore interface {
	GetAlignment(ctx context.Context, trackID string) (*domain.Alignment, error)
	TranslatedLanguages(ctx context.Context, trackID string) (map[string]bool, error)
	SaveTranslation(ctx context.Context, tr *domain.Translation) error
}

// Deps are the collaborators of the five steps. Metadata and Lyrics may be
// nil; the matching lookups are then skipped.
type Deps struct {
	Payloads   PayloadStore
	Metadata   musicbrainz.ClientInterface
	Lyrics     lyrics.Source
	Resolver   ISWCResolver
	Audio      AudioFetcher
	Objects    objectstore.Store
	Aligner    LyricsAligner
	Translator LineTranslator

	SourceLanguage  string
	TargetLanguages []string
	Quorum          int
	MaxAudioBytes   int64

	Logger *logger.Logger
}

// Steps returns the pipeline steps in DAG order.
func Steps(d Deps) []*Step {
	if d.Logger == nil {
		d.Logger = logger.Default()
	}
	if d.Quorum <= 0 {
		d.Quorum = constants.TranslationQuorum
	}
	if d.MaxAudioBytes <= 0 {
		d.MaxAudioBytes = constants.MaxAudioBytes
	}
	w := &workers{Deps: d, log: d.Logger.WithComponent("steps")}

	pre := preconditions()
	return []*Step{
		{
			Name:     constants.StepResolveMetadata,
			Eligible: pre[constants.StepResolveMetadata],
			Work:     w.resolveMetadata,
		},
		{
			Name:     constants.StepResolveISWC,
			Eligible: pre[constants.StepResolveISWC],
			Work:     w.resolveISWC,
		},
		{
			Name:     constants.StepDownloadAudio,
			Eligible: pre[constants.StepDownloadAudio],
			Work:     w.downloadAudio,
			Limiter:  rate.NewLimiter(rate.Limit(constants.DownloadRPS), 1),
		},
		{
			Name:     constants.StepAlignLyrics,
			Eligible: pre[constants.StepAlignLyrics],
			Ready: func(t *domain.Track) string {
				if len(t.LyricLines()) == 0 {
					return "lyrics are blank"
				}
				return ""
			},
			Work: w.alignLyrics,
		},
		{
			Name:     constants.StepTranslateLyrics,
			Eligible: pre[constants.StepTranslateLyrics],
			Work:     w.translateLyrics,
		},
	}
}

func preconditions() map[string]store.Eligibility {
	return map[string]store.Eligibility{
		constants.StepResolveMetadata: {Stages: []domain.Stage{domain.StageDiscovered}},
		constants.StepResolveISWC:     {Stages: []domain.Stage{domain.StageMetadataResolved}, RequireISRC: true},
		constants.StepDownloadAudio: {
			Stages:             []domain.Stage{domain.StageISWCFound, domain.StageISWCFailed},
			RequireSourceAudio: true,
		},
		constants.StepAlignLyrics: {
			Stages:        []domain.Stage{domain.StageAudioDownloaded},
			RequireAudio:  true,
			RequireLyrics: true,
		},
		constants.StepTranslateLyrics: {
			Stages:           []domain.Stage{domain.StageAlignmentComplete},
			RequireAlignment: true,
		},
	}
}

// Precondition pairs a step name with its eligibility.
type Precondition struct {
	Step     string
	Eligible store.Eligibility
}

// Preconditions returns every step's eligibility in DAG order, without
// needing the step collaborators.
func Preconditions() []Precondition {
	pre := preconditions()
	out := make([]Precondition, 0, len(pre))
	for _, name := range StepNames() {
		out = append(out, Precondition{Step: name, Eligible: pre[name]})
	}
	return out
}

// StepNames lists the step names in DAG order.
func StepNames() []string {
	return []string{
		constants.StepResolveMetadata,
		constants.StepResolveISWC,
		constants.StepDownloadAudio,
		constants.StepAlignLyrics,
		constants.StepTranslateLyrics,
	}
}

type workers struct {
	Deps
	log *logger.Logger
}

func lastAttempt(t *domain.Track) bool {
	return t.RetryCount >= constants.MaxRetries
}

func (w *workers) resolveMetadata(ctx context.Context, t *domain.Track) (*Result, error) {
	fields := &domain.TrackFields{}
	meta := domain.JSONMap{}
	title, artist, duration := t.Title, t.Artist, t.DurationMS

	if w.Metadata != nil && (t.ISRC != "" || t.RecordingMBID != "") {
		rec, err := w.Metadata.GetRecording(ctx, t.RecordingMBID, t.ISRC)
		if err != nil {
			return nil, fmt.Errorf("musicbrainz: %w", err)
		}
		if rec != nil {
			meta["metadata"] = constants.SourceMusicBrainz
			meta["recording_mbid"] = rec.RecordingID
			if t.RecordingMBID == "" {
				fields.RecordingMBID = rec.RecordingID
			}
			if title == "" {
				title = rec.Title
				fields.Title = rec.Title
			}
			if artist == "" {
				artist = rec.Artist
				fields.Artist = rec.Artist
			}
			if duration == 0 && rec.Duration > 0 {
				duration = rec.Duration
				fields.DurationMS = rec.Duration
			}
		}
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("no title known for track")
	}

	if strings.TrimSpace(t.Lyrics) == "" && w.Lyrics != nil {
		text, err := w.Lyrics.Search(ctx, artist, title, duration)
		switch {
		case errors.Is(err, lyrics.ErrLyricsNotFound):
			meta["lyrics"] = "not found"
		case err != nil:
			return nil, fmt.Errorf("lyrics: %w", err)
		default:
			fields.Lyrics = lyrics.Normalize(text)
			meta["lyrics"] = constants.SourceLRCLib
		}
	}

	return &Result{
		Next:    domain.StageMetadataResolved,
		Payload: &domain.Payload{Fields: fields, Metadata: meta},
	}, nil
}

func (w *workers) resolveISWC(ctx context.Context, t *domain.Track) (*Result, error) {
	rec, err := w.Resolver.Resolve(ctx, resolver.Query{ISRC: t.ISRC, Title: t.Title, Performer: t.Artist})
	if err != nil {
		return nil, err
	}

	if iswc := rec.ISWC(); iswc != "" {
		return &Result{
			Next: domain.StageISWCFound,
			Payload: &domain.Payload{
				Identifier: rec,
				Message:    fmt.Sprintf("ISWC %s from %s", iswc, rec.Source),
				Metadata:   domain.JSONMap{"iswc": iswc, "source": rec.Source},
			},
		}, nil
	}

	if rec.Degraded && !lastAttempt(t) {
		return nil, fmt.Errorf("no ISWC found while a provider was unavailable")
	}
	return &Result{
		Next: domain.StageISWCFailed,
		Payload: &domain.Payload{
			Identifier: rec,
			Message:    "no ISWC found",
			Metadata:   domain.JSONMap{"degraded": rec.Degraded},
		},
	}, nil
}

func (w *workers) downloadAudio(ctx context.Context, t *domain.Track) (*Result, error) {
	audio, err := w.Audio.Fetch(ctx, t.SourceAudioURL, w.MaxAudioBytes)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	digest, err := objectstore.HashReader(bytes.NewReader(audio.Data))
	if err != nil {
		return nil, err
	}
	key := objectstore.AudioKey(t.TrackID, audio.Ext)
	url, err := w.Objects.Put(ctx, key, bytes.NewReader(audio.Data), int64(len(audio.Data)), audio.ContentType)
	if err != nil {
		return nil, fmt.Errorf("store audio: %w", err)
	}

	fields := &domain.TrackFields{AudioURL: url}
	meta := domain.JSONMap{
		"audio_url":    url,
		"bytes":        len(audio.Data),
		"content_type": audio.ContentType,
		"sha256":       digest,
	}

	if strings.TrimSpace(t.Lyrics) == "" {
		text, err := tagging.EmbeddedLyrics(audio.Data)
		switch {
		case err != nil && !errors.Is(err, tagging.ErrUnsupportedFormat):
			w.log.Warn("Failed to read embedded lyrics", "track_id", t.TrackID, "error", err)
		case text != "":
			fields.Lyrics = lyrics.Normalize(text)
			meta["lyrics"] = constants.SourceEmbedded
		}
	}

	return &Result{
		Next:    domain.StageAudioDownloaded,
		Payload: &domain.Payload{Fields: fields, Metadata: meta},
	}, nil
}

func (w *workers) alignLyrics(ctx context.Context, t *domain.Track) (*Result, error) {
	al, err := w.Aligner.Align(ctx, t.AudioURL, t.LyricLines())
	if err != nil {
		return nil, err
	}
	return &Result{
		Next: domain.StageAlignmentComplete,
		Payload: &domain.Payload{
			Alignment: al,
			Metadata:  domain.JSONMap{"line_count": al.LineCount, "overall_loss": al.OverallLoss},
		},
	}, nil
}

// translateLyrics translates the aligned lines into every configured
// language not stored yet. Each language is saved as soon as it arrives;
// the stage advances once the quorum is stored.
func (w *workers) translateLyrics(ctx context.Context, t *domain.Track) (*Result, error) {
	al, err := w.Payloads.GetAlignment(ctx, t.TrackID)
	if err != nil {
		return nil, err
	}
	lines := al.LineTexts()

	stored, err := w.Payloads.TranslatedLanguages(ctx, t.TrackID)
	if err != nil {
		return nil, err
	}
	source := normalizeLanguage(w.SourceLanguage)
	have := make(map[string]bool, len(stored))
	for lang := range stored {
		if lang = normalizeLanguage(lang); lang != "" && lang != source {
			have[lang] = true
		}
	}

	var errs []error
	added := []string{}
	for _, target := range w.TargetLanguages {
		lang := normalizeLanguage(target)
		if lang == "" || have[lang] || lang == source {
			continue
		}
		tr, err := w.Translator.Translate(ctx, lines, lang, source)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		tr.TrackID = t.TrackID
		if err := w.Payloads.SaveTranslation(ctx, tr); err != nil {
			return nil, err
		}
		have[lang] = true
		added = append(added, lang)
	}

	if len(have) < w.Quorum {
		if len(errs) == 0 {
			return nil, fmt.Errorf("translation quorum not reached (%d/%d): not enough target languages", len(have), w.Quorum)
		}
		return nil, fmt.Errorf("translation quorum not reached (%d/%d): %w", len(have), w.Quorum, errors.Join(errs...))
	}
	if len(errs) > 0 {
		w.log.Warn("Some translations failed", "track_id", t.TrackID, "error", errors.Join(errs...))
	}
	return &Result{
		Next: domain.StageTranslationsReady,
		Payload: &domain.Payload{
			Message:  fmt.Sprintf("%d languages stored", len(have)),
			Metadata: domain.JSONMap{"added": added, "languages": len(have)},
		},
	}, nil
}

func normalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
