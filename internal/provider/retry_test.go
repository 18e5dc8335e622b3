package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

func ghError(code int) error {
	req, _ := http.NewRequest(http.MethodPost, "https://api.github.com/repos/o/r/dispatches", nil)
	return &github.ErrorResponse{Response: &http.Response{StatusCode: code, Request: req}}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad gateway", ghError(http.StatusBadGateway), true},
		{"too many requests", ghError(http.StatusTooManyRequests), true},
		{"unknown 5xx", ghError(599), true},
		{"not found", ghError(http.StatusNotFound), false},
		{"validation", ghError(http.StatusUnprocessableEntity), false},
		{"wrapped forbidden", fmt.Errorf("put: %w", ghError(http.StatusForbidden)), false},
		{"primary rate limit", &github.RateLimitError{}, true},
		{"secondary rate limit", &github.AbuseRateLimitError{}, true},
		{"permanent", permanent(errors.New("bad key")), false},
		{"canceled", fmt.Errorf("x: %w", context.Canceled), false},
		{"network", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestRateLimitBackoff(t *testing.T) {
	maxBackoff := 5 * time.Second

	reset := &github.RateLimitError{Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(time.Hour)}}}
	assert.Equal(t, maxBackoff, rateLimitBackoff(reset, maxBackoff))

	after := 2 * time.Second
	assert.Equal(t, after, rateLimitBackoff(&github.AbuseRateLimitError{RetryAfter: &after}, maxBackoff))

	past := &github.RateLimitError{Rate: github.Rate{Reset: github.Timestamp{Time: time.Now().Add(-time.Hour)}}}
	assert.Equal(t, time.Second, rateLimitBackoff(past, maxBackoff))

	assert.Equal(t, maxBackoff, rateLimitBackoff(&github.RateLimitError{}, maxBackoff))
}

func TestRetrying_ExhaustsAttempts(t *testing.T) {
	tl := logging.NewTestLogger()
	attempts := 0
	send := Retrying(func(context.Context, command.List) error {
		attempts++
		return ghError(http.StatusServiceUnavailable)
	}, fastRetry(), tl.Logger)

	err := send(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, http.StatusServiceUnavailable, statusFromError(err))

	tl.AssertLogged(t, zapcore.InfoLevel, "retrying send after transient error")
	tl.AssertLogged(t, zapcore.WarnLevel, "send failed after all retries exhausted")
}

func TestRetrying_Recovers(t *testing.T) {
	tl := logging.NewTestLogger()
	attempts := 0
	send := Retrying(func(context.Context, command.List) error {
		attempts++
		if attempts < 2 {
			return errors.New("connection reset")
		}
		return nil
	}, fastRetry(), tl.Logger)

	require.NoError(t, send(context.Background(), nil))
	assert.Equal(t, 2, attempts)
	tl.AssertLogged(t, zapcore.InfoLevel, "send recovered after retries")
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	send := Retrying(func(context.Context, command.List) error {
		cancel()
		return errors.New("transient")
	}, cfg, nil)

	err := send(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryConfig_ApplyDefaults(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5}
	cfg.ApplyDefaults()
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
	assert.Equal(t, 1.0, cfg.RatePerSecond)
	assert.Equal(t, 5, cfg.Burst)
}
