package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client downloads schedule files over HTTP with retries and rate limiting.
type Client struct {
	httpClient  *http.Client
	limiter     *RateLimiter
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

type Options struct {
	Timeout     time.Duration
	RateLimit   int
	MaxAttempts int
}

func NewClient(opts Options, log *zap.Logger) *Client {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		limiter:     NewRateLimiter(opts.RateLimit),
		maxAttempts: opts.MaxAttempts,
		backoff:     250 * time.Millisecond,
		log:         log,
	}
}

// Download fetches rawURL and returns the body. 429 and 5xx responses are
// retried with exponential backoff; other failures return immediately.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "*/*")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.log.Warn("download failed", zap.String("url", rawURL), zap.Int("attempt", attempt), zap.Error(err))
			if err := c.sleep(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < c.maxAttempts {
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
				c.log.Warn("download retry", zap.String("url", rawURL), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt))
				if err := c.sleep(ctx, attempt); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("download %s: status=%d", rawURL, resp.StatusCode)
		}

		c.log.Debug("downloaded", zap.String("url", rawURL), zap.Int("bytes", len(body)))
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("download failed")
	}
	return nil, fmt.Errorf("download %s: %w", rawURL, lastErr)
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	d := c.backoff*time.Duration(1<<(attempt-1)) + time.Duration(rand.Intn(100))*time.Millisecond
	if c.backoff == 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
