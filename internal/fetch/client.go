// Package fetch retrieves remote spreadsheets and GeoJSON documents with a
// per-request timeout, bounded retries for transient failures and an
// optional response cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/joeblew999/plat-risk/internal/observability"
)

// Config controls request behaviour.
type Config struct {
	Timeout    time.Duration
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration
	UserAgent  string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Timeout:    15 * time.Second,
		Retries:    2,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 4 * time.Second,
		UserAgent:  "plat-risk/0.1",
	}
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client fetches remote documents.
type Client struct {
	http    *http.Client
	cfg     Config
	cache   Cache
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a fetch client. cache may be nil to disable caching.
func NewClient(cfg Config, cache Cache, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		cache:   cache,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
		metrics: metrics,
	}
}

// SetClock swaps the clock used for retry backoff.
func (c *Client) SetClock(clk clockwork.Clock) {
	c.clock = clk
}

// Get returns the full body of url, serving from the cache when possible.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, url); ok {
			c.metrics.FetchCache.WithLabelValues("hit").Inc()
			return body, nil
		}
		c.metrics.FetchCache.WithLabelValues("miss").Inc()
	}

	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, url, body)
	}
	return body, nil
}

// Stream returns the response body of url for incremental reading.
// The caller must close it.
func (c *Client) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	start := c.clock.Now()
	defer func() {
		c.metrics.FetchDuration.Observe(c.clock.Since(start).Seconds())
	}()

	backoff := c.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			c.metrics.FetchRequests.WithLabelValues("retry").Inc()
			c.logger.Debug("retrying fetch", "url", url, "attempt", attempt, "error", lastErr)
			if !c.sleep(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff = nextBackoff(backoff, c.cfg.MaxBackoff)
		}

		resp, err := c.attempt(ctx, url)
		if err == nil {
			c.metrics.FetchRequests.WithLabelValues("success").Inc()
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}
	c.metrics.FetchRequests.WithLabelValues("error").Inc()
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// retryable reports whether err is worth another attempt: transport errors,
// 429 and 5xx are; other statuses and cancellation are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
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

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
