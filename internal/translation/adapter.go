// Package translation translates aligned lyric lines, one target language
// per call, keeping the line count and order intact.
package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cesargomez89/songpipe/internal/domain"
)

var ErrLineCountMismatch = errors.New("translation: line count mismatch")

// ErrEmptyTranslation is returned when no line received a usable translation.
var ErrEmptyTranslation = errors.New("translation: no line was translated")

// Translator translates lines into target. The result must have one entry
// per input line.
type Translator interface {
	TranslateLines(ctx context.Context, lines []string, target, source string) ([]string, error)
	Name() string
}

type Adapter struct {
	translator Translator
}

func NewAdapter(t Translator) *Adapter {
	return &Adapter{translator: t}
}

// Translate returns the translation of lines into target. Blank source lines
// stay blank; every other line maps to exactly one output line.
func (a *Adapter) Translate(ctx context.Context, lines []string, target, source string) (*domain.Translation, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	source = strings.ToLower(strings.TrimSpace(source))
	if target == "" {
		return nil, fmt.Errorf("translation: empty target language")
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("translation: no lines")
	}

	out, err := a.translator.TranslateLines(ctx, lines, target, source)
	if err != nil {
		return nil, err
	}
	if len(out) != len(lines) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrLineCountMismatch, len(lines), len(out))
	}

	translated := make([]string, len(out))
	for i := range out {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		translated[i] = strings.TrimSpace(out[i])
	}

	score := Confidence(lines, translated)
	if score == 0 {
		return nil, ErrEmptyTranslation
	}
	return &domain.Translation{
		LanguageCode:    target,
		Lines:           translated,
		LineCount:       len(translated),
		ConfidenceScore: score,
		SourceLanguage:  source,
		Provider:        a.translator.Name(),
	}, nil
}

// Confidence is the fraction of non-blank source lines whose translation is
// neither empty nor a placeholder. A text without non-blank lines scores 1.
func Confidence(source, translated []string) float64 {
	total, good := 0, 0
	for i, s := range source {
		if strings.TrimSpace(s) == "" {
			continue
		}
		total++
		if i < len(translated) && !IsPlaceholder(translated[i]) {
			good++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(good) / float64(total)
}

var placeholders = map[string]bool{
	"":               true,
	"...":            true,
	"…":              true,
	"-":              true,
	"?":              true,
	"n/a":            true,
	"todo":           true,
	"untranslated":   true,
	"[untranslated]": true,
	"[translation]":  true,
	"null":           true,
}

// IsPlaceholder reports whether s is empty or a filler a model emits
// instead of a translation.
func IsPlaceholder(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if placeholders[s] {
		return true
	}
	return strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") && strings.Contains(s, "translat")
}
