package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ppiankov/discussed/internal/cache"
	"github.com/ppiankov/discussed/internal/model"
)

// retryBackoff is the first retry delay; each later attempt doubles it
var retryBackoff = 500 * time.Millisecond

// ErrDisallowed is returned when robots.txt forbids the request
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
}

// Client performs outbound GETs for providers: rate limited per host,
// retried on transient failures and read through the response cache
type Client struct {
	httpClient    *http.Client
	userAgent     string
	maxBytes      int64
	attempts      int
	limiter       *Limiter
	robots        *RobotsChecker
	cacher        *cache.Cacher
	cacheDuration time.Duration
}

// Option configures a Client
type Option func(*Client)

// WithLimiter waits on limiter before every request
func WithLimiter(limiter *Limiter) Option {
	return func(c *Client) { c.limiter = limiter }
}

// WithCache reads responses through cacher, storing them for duration
func WithCache(cacher *cache.Cacher, duration time.Duration) Option {
	return func(c *Client) {
		c.cacher = cacher
		c.cacheDuration = duration
	}
}

// New creates a client from the HTTP configuration
func New(cfg model.HTTPConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		attempts:  attempts,
	}

	if cfg.RespectRobots {
		c.robots = NewRobotsChecker(c.httpClient, cfg.UserAgent)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get retrieves rawURL, serving it from the cache when one is configured.
// The cache key is the full request URL.
func (c *Client) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if c.cacher == nil {
		return c.getWithRetry(ctx, rawURL, accept)
	}
	return c.cacher.Call(ctx, rawURL, c.cacheDuration, func(ctx context.Context) ([]byte, error) {
		return c.getWithRetry(ctx, rawURL, accept)
	})
}

// getWithRetry retries 429, 5xx and transport failures with exponential backoff
func (c *Client) getWithRetry(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		if delay > 0 && c.limiter != nil {
			c.limiter.SetMinDelay(rawURL, delay)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, rawURL); err != nil {
				return nil, err
			}
		}

		body, err := c.get(ctx, rawURL, accept)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == c.attempts || ctx.Err() != nil {
			break
		}

		backoff := time.Duration(1<<(attempt-1)) * retryBackoff
		log.Debug().Err(err).Str("url", rawURL).Int("attempt", attempt).Dur("backoff", backoff).Msg("Retrying request")
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	reader := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// isRetryable reports whether a request failure is worth another attempt
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
