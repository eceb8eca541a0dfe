package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client decorates an AIClient with rate limiting, bounded retries and
// request logging.
type Client struct {
	next       AIClient
	model      string
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
	}
}

// WithBackoff sets the base delay; attempt n waits n times this value.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

// WithTimeout bounds each attempt. Zero leaves the call unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = NewLimiter(requestsPerMinute, burst)
	}
}

// NewLimiter converts a per-minute budget to a token bucket. A non-positive
// rate yields nil, meaning unlimited.
func NewLimiter(requestsPerMinute int, burst int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
}

// WithLimiter shares a limiter across clients.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "ai_client")
	}
}

func NewClient(next AIClient, model string, opts ...Option) *Client {
	c := &Client{
		next:       next,
		model:      model,
		maxRetries: 2,
		backoff:    time.Second,
		logger:     slog.Default().With("component", "ai_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	limit := "unlimited"
	if c.limiter != nil {
		limit = fmt.Sprintf("%v req/s", c.limiter.Limit())
	}
	c.logger.Debug("AI client initialized",
		"model", c.model,
		"max_retries", c.maxRetries,
		"rate_limit", limit)

	return c
}

func (c *Client) Model() string { return c.model }

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	requestID := uuid.NewString()
	startTime := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Error("rate limit wait failed",
				"request_id", requestID,
				"error", err)
			return "", fmt.Errorf("rate limit wait failed: %w", err)
		}
		c.logger.Debug("rate limit passed",
			"request_id", requestID,
			"wait_duration_ms", time.Since(startTime).Milliseconds())
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.backoff
			c.logger.Debug("retry backoff",
				"request_id", requestID,
				"attempt", attempt,
				"backoff_seconds", backoff.Seconds())

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.logger.Warn("request cancelled during backoff",
					"request_id", requestID,
					"attempt", attempt)
				return "", ctx.Err()
			}
		}

		attemptStart := time.Now()
		response, err := c.attempt(ctx, prompt)
		attemptDuration := time.Since(attemptStart)

		if err == nil {
			c.logger.Info("API request successful",
				"request_id", requestID,
				"model", c.model,
				"attempt", attempt,
				"duration_ms", attemptDuration.Milliseconds(),
				"response_length", len(response),
				"total_duration_ms", time.Since(startTime).Milliseconds())
			return response, nil
		}

		lastErr = err

		if !c.shouldRetry(ctx, err) {
			c.logger.Error("API request failed with non-retryable error",
				"request_id", requestID,
				"model", c.model,
				"attempt", attempt,
				"duration_ms", attemptDuration.Milliseconds(),
				"error", err)
			return "", err
		}

		c.logger.Warn("API request failed, will retry",
			"request_id", requestID,
			"model", c.model,
			"attempt", attempt,
			"duration_ms", attemptDuration.Milliseconds(),
			"error", err)
	}

	c.logger.Error("API request failed after max retries",
		"request_id", requestID,
		"model", c.model,
		"max_retries", c.maxRetries,
		"total_duration_ms", time.Since(startTime).Milliseconds(),
		"last_error", lastErr)

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// shouldRetry treats a per-attempt timeout as transient while the caller's
// context is still live.
func (c *Client) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if c.timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isRetryable(err)
}

func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	if c.timeout <= 0 {
		return c.next.Complete(ctx, prompt)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Complete(attemptCtx, prompt)
}
