package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

const DefaultUserAgent = "songpipe/1.0 (https://github.com/cesargomez89/songpipe)"

type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient builds a client limited to MusicBrainz's one request per second.
func NewClient(baseURL string, hc *http.Client, opts ...httpclient.Option) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpclient.NewClient(hc, constants.MusicBrainzRPS, 1, append([]httpclient.Option{httpclient.WithUserAgent(DefaultUserAgent)}, opts...)...),
	}
}

func (c *Client) GetRecording(ctx context.Context, recordingID, isrc string) (*RecordingMetadata, error) {
	if recordingID != "" {
		return c.GetRecordingByMBID(ctx, recordingID)
	}
	return c.GetRecordingByISRC(ctx, isrc)
}

func (c *Client) GetRecordingByISRC(ctx context.Context, isrc string) (*RecordingMetadata, error) {
	if isrc == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/recording?query=isrc:%s&inc=artists+releases+isrcs&fmt=json&limit=1", c.baseURL, url.QueryEscape(isrc))

	var result searchResponse
	found, err := c.getJSON(ctx, u, &result)
	if err != nil || !found {
		return nil, err
	}

	if len(result.Recordings) == 0 {
		return nil, nil
	}

	meta := toMetadata(&result.Recordings[0])
	if meta.ISRC == "" || !containsFold(result.Recordings[0].ISRCs, isrc) {
		meta.ISRC = isrc
	}
	return meta, nil
}

func (c *Client) GetRecordingByMBID(ctx context.Context, mbid string) (*RecordingMetadata, error) {
	if mbid == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/recording/%s?inc=artists+releases+artist-credits+isrcs&fmt=json", c.baseURL, url.PathEscape(mbid))

	var rec recording
	found, err := c.getJSON(ctx, u, &rec)
	if err != nil || !found {
		return nil, err
	}
	return toMetadata(&rec), nil
}

// getJSON decodes a 200 response into v. A 404 reports found=false.
func (c *Client) getJSON(ctx context.Context, u string, v any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return false, nil
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return false, fmt.Errorf("musicbrainz: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return true, nil
}

func toMetadata(rec *recording) *RecordingMetadata {
	meta := &RecordingMetadata{
		RecordingID: rec.ID,
		Title:       rec.Title,
		Duration:    rec.Length,
	}

	if len(rec.ISRCs) > 0 {
		meta.ISRC = rec.ISRCs[0]
	}

	if len(rec.ArtistCredit) > 0 {
		meta.Artist = joinCredits(rec.ArtistCredit)
		meta.Artists = make([]string, len(rec.ArtistCredit))
		for i, ac := range rec.ArtistCredit {
			meta.Artists[i] = ac.Artist.Name
		}
	}

	if rel := selectRelease(rec.Releases); rel != nil {
		meta.Album = rel.Title
		meta.ReleaseDate = rel.Date
	}
	return meta
}

// joinCredits renders an artist credit the way MusicBrainz displays it,
// e.g. "A feat. B".
func joinCredits(credits []artistCredit) string {
	var b strings.Builder
	for _, ac := range credits {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(ac.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

// selectRelease prefers an official release, falling back to the first one.
func selectRelease(releases []release) *release {
	if len(releases) == 0 {
		return nil
	}
	for i := range releases {
		if strings.EqualFold(releases[i].Status, "official") {
			return &releases[i]
		}
	}
	return &releases[0]
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

type searchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Releases     []release      `json:"releases"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ISRCs        []string       `json:"isrcs"`
	Length       int            `json:"length"`
}

type release struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Date   string `json:"date"`
}

type artistCredit struct {
	Name       string `json:"name"`
	Artist     artist `json:"artist"`
	JoinPhrase string `json:"joinphrase"`
}

type artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RecordingMetadata struct {
	RecordingID string
	Title       string
	Artist      string
	Artists     []string
	Album       string
	ReleaseDate string
	ISRC        string
	Duration    int // milliseconds
}
