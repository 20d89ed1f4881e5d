package alignment

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
)

// AudioOpener opens stored audio by URL.
type AudioOpener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Aligner is the provider call, implemented by *Client.
type Aligner interface {
	Align(ctx context.Context, filename string, audio io.Reader, text string) (*Response, error)
}

type Adapter struct {
	aligner Aligner
	audio   AudioOpener
}

func NewAdapter(aligner Aligner, audio AudioOpener) *Adapter {
	return &Adapter{aligner: aligner, audio: audio}
}

// Align aligns lines against the audio at audioURL and returns the full
// alignment record with per-line timings.
func (a *Adapter) Align(ctx context.Context, audioURL string, lines []string) (*domain.Alignment, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("alignment: no lyric lines")
	}
	rc, err := a.audio.Open(ctx, audioURL)
	if err != nil {
		return nil, fmt.Errorf("alignment: open audio: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	resp, err := a.aligner.Align(ctx, filename(audioURL), rc, strings.Join(lines, "\n"))
	if err != nil {
		return nil, err
	}

	mapped := MapLines(lines, resp.Words)
	return &domain.Alignment{
		Words:       resp.Words,
		Characters:  resp.Characters,
		Lines:       mapped,
		LineCount:   len(mapped),
		OverallLoss: resp.Loss,
		Provider:    constants.SourceElevenLabs,
	}, nil
}

func filename(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return "audio"
}
