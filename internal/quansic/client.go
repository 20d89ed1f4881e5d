// Package quansic talks to the recording enrichment service that fronts
// Quansic. It is the primary ISWC source.
package quansic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

type Client struct {
	http     *httpclient.Client
	baseURL  string
	validate *validator.Validate
}

func NewClient(baseURL string, hc *http.Client, opts ...httpclient.Option) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		http:     httpclient.NewClient(hc, constants.QuansicRPS, 1, opts...),
		validate: validator.New(),
	}
}

type Person struct {
	Name string `json:"name"`
	IPI  string `json:"ipi"`
	ISNI string `json:"isni"`
	Role string `json:"role"`
}

// Recording is the enrichment result for one ISRC.
type Recording struct {
	ISRC       string          `json:"isrc" validate:"required"`
	Title      string          `json:"title"`
	DurationMS int             `json:"duration_ms"`
	ISWC       string          `json:"iswc"`
	WorkTitle  string          `json:"work_title"`
	Artists    []Person        `json:"artists"`
	Composers  []Person        `json:"composers"`
	Raw        json.RawMessage `json:"-"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Work is the enrichment result for one ISWC.
type Work struct {
	ISWC           string          `json:"iswc" validate:"required"`
	Title          string          `json:"title"`
	Contributors   []Person        `json:"contributors"`
	RecordingCount int             `json:"recording_count"`
	Raw            json.RawMessage `json:"-"`
}

// WorkByISRC returns the recording with its work, or nil when the service
// knows nothing about the ISRC.
func (c *Client) WorkByISRC(ctx context.Context, isrc string) (*Recording, error) {
	data, err := c.post(ctx, "/enrich-recording", map[string]string{"isrc": isrc})
	if err != nil || data == nil {
		return nil, err
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("quansic: failed to decode recording: %w", err)
	}
	if err := c.validate.Struct(&rec); err != nil {
		return nil, fmt.Errorf("quansic: invalid recording: %w", err)
	}
	rec.ISWC = domain.NormalizeISWC(rec.ISWC)
	rec.Raw = data
	return &rec, nil
}

// WorkByISWC returns the work-level record with its contributors, or nil
// when the service does not know the ISWC.
func (c *Client) WorkByISWC(ctx context.Context, iswc string) (*Work, error) {
	data, err := c.post(ctx, "/enrich-work", map[string]string{"iswc": iswc})
	if err != nil || data == nil {
		return nil, err
	}

	var w Work
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("quansic: failed to decode work: %w", err)
	}
	if err := c.validate.Struct(&w); err != nil {
		return nil, fmt.Errorf("quansic: invalid work: %w", err)
	}
	w.ISWC = domain.NormalizeISWC(w.ISWC)
	w.Raw = data
	return &w, nil
}

// post sends a JSON request and unwraps the {success, data, error}
// envelope. A nil result with a nil error means not found.
func (c *Client) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", constants.MimeTypeJSON)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("quansic: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, nil
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("quansic: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("quansic: failed to decode response: %w", err)
	}
	if !out.Success {
		if isNotFound(out.Error) {
			return nil, nil
		}
		return nil, fmt.Errorf("quansic: %s", out.Error)
	}
	if len(out.Data) == 0 || string(out.Data) == "null" {
		return nil, nil
	}
	return out.Data, nil
}

func isNotFound(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no recording") || strings.Contains(msg, "no work")
}
