package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/cesargomez89/songpipe/internal/constants"
	"github.com/cesargomez89/songpipe/internal/httpclient"
)

// Source opens audio by URL: s3:// through the bucket, file:// from disk
// and http(s) by download.
type Source struct {
	s3    *S3
	local *Local
	http  *httpclient.Client
}

func NewSource(s3 *S3, local *Local, hc *http.Client) *Source {
	if hc == nil {
		hc = &http.Client{Timeout: constants.AudioHTTPTimeout}
	}
	return &Source{s3: s3, local: local, http: httpclient.NewClient(hc, 0, 1)}
}

func (s *Source) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid audio url %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "s3":
		if s.s3 == nil {
			return nil, fmt.Errorf("s3 storage not configured for %s", rawURL)
		}
		return s.s3.Open(ctx, rawURL)
	case "file":
		if s.local == nil {
			return nil, fmt.Errorf("local storage not configured for %s", rawURL)
		}
		return s.local.Open(ctx, rawURL)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.http.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%s: %w", rawURL, ErrNotFound)
		}
		if err := httpclient.CheckStatus(resp); err != nil {
			return nil, err
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("unsupported audio url scheme %q", u.Scheme)
	}
}

// Audio is a fully read audio file.
type Audio struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Fetch reads the audio at rawURL into memory, refusing files larger than
// max bytes, and works out its type from the content.
func (s *Source) Fetch(ctx context.Context, rawURL string, max int64) (*Audio, error) {
	rc, err := s.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("audio exceeds %d bytes", max)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio at %s is empty", rawURL)
	}

	ct, ext := DetectAudio(data, rawURL)
	return &Audio{Data: data, ContentType: ct, Ext: ext}, nil
}

// DetectAudio identifies the container from magic bytes, falling back to the
// URL's extension.
func DetectAudio(data []byte, rawURL string) (contentType, ext string) {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return constants.MimeTypeFLAC, constants.ExtFLAC
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return constants.MimeTypeMP3, constants.ExtMP3
	case len(data) > 12 && string(data[4:8]) == "ftyp":
		return constants.MimeTypeMP4, constants.ExtM4A
	case len(data) > 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return constants.MimeTypeWAV, constants.ExtWAV
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
			ct := mime.TypeByExtension(ext)
			if ct == "" {
				ct = "application/octet-stream"
			}
			return ct, ext
		}
	}
	return http.DetectContentType(data), ""
}
