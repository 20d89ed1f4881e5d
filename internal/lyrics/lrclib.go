package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

// LRCLib queries lrclib.net's exact-match endpoint.
type LRCLib struct {
	http    *httpclient.Client
	baseURL string
}

func NewLRCLib(baseURL string, hc *http.Client, opts ...httpclient.Option) *LRCLib {
	return &LRCLib{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpclient.NewClient(hc, constants.LRCLibRPS, 2, append([]httpclient.Option{httpclient.WithUserAgent("songpipe/1.0")}, opts...)...),
	}
}

type lrclibResponse struct {
	ID           int    `json:"id"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

func (l *LRCLib) Search(ctx context.Context, artist, title string, durationMS int) (string, error) {
	if artist == "" || title == "" {
		return "", ErrLyricsNotFound
	}
	q := url.Values{}
	q.Set("artist_name", artist)
	q.Set("track_name", title)
	if durationMS > 0 {
		q.Set("duration", strconv.Itoa(durationMS/1000))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/api/get?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("lrclib: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return "", ErrLyricsNotFound
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("lrclib: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var body lrclibResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("lrclib: failed to decode response: %w", err)
	}
	if body.Instrumental {
		return "", ErrLyricsNotFound
	}

	text := body.PlainLyrics
	if strings.TrimSpace(text) == "" {
		text = body.SyncedLyrics
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrLyricsNotFound
	}
	return text, nil
}
