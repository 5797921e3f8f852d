// Package swpc retrieves the SWPC 3-day forecast text product.
package swpc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/kp-forecast-etl/internal/domain"
	"github.com/couchcryptid/kp-forecast-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// maxDocumentBytes bounds how much of a response body is read.
const maxDocumentBytes = 1 << 20

// Options configures the source client.
type Options struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	RateLimit  float64 // requests per second
}

// Client fetches the forecast document over HTTP. Rate-limited (429) and
// server error (5xx) responses are retried a bounded number of times with
// exponential backoff; exhausting the retries yields ErrSourceUnavailable.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      clockwork.Clock
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a source client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &Client{
		url:        opts.URL,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		clock:      clockwork.NewRealClock(),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
		logger:     logger,
		metrics:    metrics,
	}
}

// Probe reports whether the document exists. Only a 404 is treated as
// unavailable; any other final status counts as available.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.get(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s returned 404", domain.ErrSourceUnavailable, c.url)
	}
	return nil
}

// Fetch downloads the document and splits it into lines.
func (c *Client) Fetch(ctx context.Context) (domain.RawTable, error) {
	resp, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrSourceUnavailable, c.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}
	return domain.SplitLines(string(body)), nil
}

// get performs a GET with rate limiting and bounded retries. The returned
// response has a status that is neither 429 nor 5xx.
func (c *Client) get(ctx context.Context) (*http.Response, error) {
	var lastErr error
	backoff := min(c.backoff, c.maxBackoff)
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if !c.sleep(ctx, c.delay(backoff, lastErr)) {
				return nil, ctx.Err()
			}
			backoff = retry.NextBackoff(backoff, c.maxBackoff)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", "kp-forecast-etl/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.metrics.FetchAttempts.WithLabelValues("error").Inc()
			c.logger.Warn("source request failed", "url", c.url, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}

		c.metrics.FetchAttempts.WithLabelValues(statusClass(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))
			resp.Body.Close()
			c.logger.Warn("source not ready, retrying",
				"url", c.url,
				"status", resp.StatusCode,
				"attempt", attempt+1,
				"max_retries", c.maxRetries,
			)
			lastErr = &statusError{code: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After")}
			continue
		}
		return resp, nil
	}

	return nil, fmt.Errorf("%w: %s: gave up after %d attempts: %v",
		domain.ErrSourceUnavailable, c.url, c.maxRetries+1, lastErr)
}

// delay returns the wait before the next retry: the server's Retry-After
// when it sent one, capped at maxBackoff, else the current backoff.
func (c *Client) delay(backoff time.Duration, lastErr error) time.Duration {
	if se, ok := lastErr.(*statusError); ok && se.retryAfter != "" {
		if secs, err := strconv.Atoi(se.retryAfter); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, c.maxBackoff)
		}
	}
	return backoff
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(d):
		return true
	}
}

type statusError struct {
	code       int
	retryAfter string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d", e.code)
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code == http.StatusNotFound:
		return "404"
	case code == http.StatusTooManyRequests:
		return "429"
	case code >= 500:
		return "5xx"
	default:
		return "other"
	}
}
