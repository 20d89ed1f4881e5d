// Package lyrics fetches plain lyrics for a recording and normalizes them
// into the line structure used by alignment and translation.
package lyrics

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var ErrLyricsNotFound = errors.New("lyrics not found")

// Source finds plain lyrics for a recording.
type Source interface {
	Search(ctx context.Context, artist, title string, durationMS int) (string, error)
}

// MultiSource tries each source in order and returns the first hit.
type MultiSource []Source

func (ms MultiSource) Search(ctx context.Context, artist, title string, durationMS int) (string, error) {
	var errs []error
	for _, s := range ms {
		text, err := s.Search(ctx, artist, title, durationMS)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil && !errors.Is(err, ErrLyricsNotFound) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "", ErrLyricsNotFound
}

var (
	sectionHeader = regexp.MustCompile(`^\s*[\[(](?i:verse|chorus|pre-chorus|bridge|intro|outro|hook|refrain|interlude|instrumental)[^\])]*[\])]\s*$`)
	lrcTimestamp  = regexp.MustCompile(`\[\d{1,2}:\d{2}(?:[.:]\d{1,3})?\]`)
)

// Normalize strips section headers and LRC timestamps, trims each line and
// drops blank lines. The result has one lyric line per text line.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if sectionHeader.MatchString(line) {
			continue
		}
		line = lrcTimestamp.ReplaceAllString(line, "")
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
