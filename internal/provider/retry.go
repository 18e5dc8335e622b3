package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

// RetryConfig configures retry behavior for outbound GitHub writes.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries int

	// InitialBackoff is the initial backoff duration.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	// Default: 30 seconds
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	// Default: 2
	BackoffMultiplier float64

	// RatePerSecond paces attempts across all sends. Negative disables pacing.
	// Default: 1
	RatePerSecond float64

	// Burst is the number of attempts allowed before pacing applies.
	// Default: 5
	Burst int
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		RatePerSecond:     1,
		Burst:             5,
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *RetryConfig) ApplyDefaults() {
	defaults := DefaultRetryConfig()

	if c.MaxRetries == 0 {
		c.MaxRetries = defaults.MaxRetries
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = defaults.RatePerSecond
	}
	if c.Burst == 0 {
		c.Burst = defaults.Burst
	}
}

func (c *RetryConfig) limiter() *rate.Limiter {
	if c.RatePerSecond < 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(c.RatePerSecond), c.Burst)
}

// Retrying wraps send with exponential backoff and write pacing. Rate-limit
// responses wait for the reported reset, capped at MaxBackoff.
func Retrying(send channel.Sender, cfg RetryConfig, logger *logging.Logger) channel.Sender {
	cfg.ApplyDefaults()
	limiter := cfg.limiter()
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}
	return func(ctx context.Context, list command.List) error {
		return retryOperation(ctx, &cfg, limiter, logger, func() error {
			return send(ctx, list)
		})
	}
}

// retryOperation retries an operation with exponential backoff.
func retryOperation(ctx context.Context, config *RetryConfig, limiter *rate.Limiter, log *logging.Logger, operation func() error) error {
	var lastErr error
	backoff := config.InitialBackoff
	startTime := time.Now()

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("operation canceled: %w", err)
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Info(ctx, "send recovered after retries",
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(startTime)),
				)
			}
			return nil
		}
		lastErr = err

		if !isRetryableError(err) {
			log.Debug(ctx, "send error is not retryable",
				zap.Error(err),
				zap.Int("status_code", statusFromError(err)),
			)
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		if isRateLimitError(err) {
			backoff = rateLimitBackoff(err, config.MaxBackoff)
			log.Info(ctx, "GitHub rate limit hit, adjusting backoff",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", config.MaxRetries+1),
				zap.Duration("backoff", backoff),
			)
		} else {
			log.Info(ctx, "retrying send after transient error",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", config.MaxRetries+1),
				zap.Error(err),
				zap.Int("status_code", statusFromError(err)),
				zap.Duration("backoff", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation canceled: %w", ctx.Err())
		case <-time.After(backoff):
			nextBackoff := time.Duration(float64(backoff) * config.BackoffMultiplier)
			if nextBackoff > config.MaxBackoff {
				nextBackoff = config.MaxBackoff
			}
			backoff = nextBackoff
		}
	}

	log.Warn(ctx, "send failed after all retries exhausted",
		zap.Int("total_attempts", config.MaxRetries+1),
		zap.Duration("total_time", time.Since(startTime)),
		zap.Error(lastErr),
		zap.Int("status_code", statusFromError(lastErr)),
	)
	return fmt.Errorf("send failed after %d retries: %w", config.MaxRetries, lastErr)
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

// isRetryableError checks if a send error is retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if isRateLimitError(err) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch code := ghErr.Response.StatusCode; code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity:
			return false
		default:
			return code >= 500 && code < 600
		}
	}

	// Network errors, timeouts, etc. are typically retryable
	return true
}

// isRateLimitError reports primary and secondary rate-limit failures.
func isRateLimitError(err error) bool {
	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	return errors.As(err, &rle) || errors.As(err, &abuse)
}

// rateLimitBackoff calculates the wait for a rate-limit error. It respects
// the reported reset or retry-after when available.
func rateLimitBackoff(err error, maxBackoff time.Duration) time.Duration {
	backoff := time.Minute

	var rle *github.RateLimitError
	var abuse *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rle) && !rle.Rate.Reset.Time.IsZero():
		backoff = time.Until(rle.Rate.Reset.Time) + time.Second
	case errors.As(err, &abuse) && abuse.RetryAfter != nil:
		backoff = *abuse.RetryAfter
	}

	if backoff <= 0 {
		backoff = time.Second
	}
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// statusFromError extracts the HTTP status code carried by a GitHub error.
func statusFromError(err error) int {
	var rle *github.RateLimitError
	if errors.As(err, &rle) && rle.Response != nil {
		return rle.Response.StatusCode
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) && abuse.Response != nil {
		return abuse.Response.StatusCode
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}
