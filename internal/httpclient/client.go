package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/cesargomez89/songpipe/internal/constants"
)

// StatusError is returned for a non-2xx response that was not retried away.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a later attempt may succeed.
func (e *StatusError) Temporary() bool {
	return retryable(e.StatusCode)
}

// Client wraps an http.Client with a per-provider token bucket and
// automatic retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	retries    int
	retryBase  time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRetries sets the total number of attempts. Values below one mean a
// single attempt.
func WithRetries(n int, base time.Duration) Option {
	return func(c *Client) {
		c.retries = max(n, 1)
		c.retryBase = base
	}
}

// WithRateLimit replaces the limiter. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = newLimiter(rps, burst) }
}

func newLimiter(rps float64, burst int) *rate.Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// NewClient creates a client allowing rps requests per second with the
// given burst. A non-positive rps disables limiting.
func NewClient(httpClient *http.Client, rps float64, burst int, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	c := &Client{
		httpClient: httpClient,
		limiter:    newLimiter(rps, burst),
		retries:    constants.DefaultRetryCount,
		retryBase:  constants.DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes an HTTP request with rate limiting and retries. Network errors
// and 429/502/503/504 responses are retried with linear backoff, honouring
// Retry-After. The request body is replayed through GetBody.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			req.Body = body
		}

		backoffWait := time.Duration(attempt+1) * c.retryBase
		resp, err := c.httpClient.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
		case retryable(resp.StatusCode):
			if retryAfter := parseRetryAfter(resp); retryAfter > backoffWait {
				backoffWait = retryAfter
			}
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
			_ = resp.Body.Close()
		default:
			return resp, nil
		}

		if attempt == c.retries-1 {
			break
		}
		timer := time.NewTimer(backoffWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// CheckStatus turns a non-2xx response into a StatusError, closing the body.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return &StatusError{StatusCode: resp.StatusCode, Body: readSnippet(resp.Body)}
}

// GetUnderlyingClient returns the underlying *http.Client.
func (c *Client) GetUnderlyingClient() *http.Client {
	return c.httpClient
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(data)
}

// parseRetryAfter reads a Retry-After header and returns the duration to wait.
func parseRetryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		return time.Until(t)
	}
	return 0
}
