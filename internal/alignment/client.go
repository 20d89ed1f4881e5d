// Package alignment produces word and line timings for lyrics by forced
// alignment against the track's audio.
package alignment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/domain"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

const (
	alignPath    = "/v1/forced-alignment"
	headerAPIKey = "xi-api-key"
)

var ErrMissingAPIKey = errors.New("alignment: missing api key")

// Response is the provider's alignment result.
type Response struct {
	Characters []domain.AlignedChar `json:"characters" validate:"dive"`
	Words      []domain.AlignedWord `json:"words" validate:"required,min=1,dive"`
	Loss       float64              `json:"loss" validate:"gte=0"`
}

// Client calls an ElevenLabs-compatible forced alignment endpoint.
type Client struct {
	http     *httpclient.Client
	baseURL  string
	apiKey   string
	validate *validator.Validate
}

func NewClient(baseURL, apiKey string, hc *http.Client, opts ...httpclient.Option) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: constants.AudioHTTPTimeout}
	}
	return &Client{
		http:     httpclient.NewClient(hc, constants.AlignmentRPS, 1, opts...),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		validate: validator.New(),
	}
}

// Align uploads audio and its transcript.
func (c *Client) Align(ctx context.Context, filename string, audio io.Reader, text string) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("alignment: empty transcript")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	field, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("alignment: create file field: %w", err)
	}
	if _, err := io.Copy(field, audio); err != nil {
		return nil, fmt.Errorf("alignment: copy audio: %w", err)
	}
	if err := writer.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("alignment: write text field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("alignment: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+alignPath, body)
	if err != nil {
		return nil, fmt.Errorf("alignment: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(headerAPIKey, c.apiKey)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("alignment: http request: %w", err)
	}
	if err := httpclient.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("alignment: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var parsed Response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("alignment: decode response: %w", err)
	}
	if err := c.validate.Struct(&parsed); err != nil {
		return nil, fmt.Errorf("alignment: invalid response: %w", err)
	}
	return &parsed, nil
}
