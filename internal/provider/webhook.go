package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/ghsock/internal/config"
	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

// DefaultWebhookPath is where deliveries are accepted when unset.
const DefaultWebhookPath = "/webhook"

// WebhookConfig configures SourceWebhook.
type WebhookConfig struct {
	// Addr is the listen address, such as ":8080".
	Addr string
	// Path receives deliveries. Default: /webhook
	Path string
	// Secret validates X-Hub-Signature-256.
	Secret config.Secret
	// EventType filters repository_dispatch deliveries. Empty accepts all.
	EventType string
	// Key names the client_payload field carrying the batch.
	Key string
}

const webhookInstrumentationName = "github.com/fyrsmithlabs/ghsock/internal/provider"

// webhookSource keeps the batch carried by the most recent accepted
// delivery. Seek never blocks on the network.
type webhookSource struct {
	cfg    WebhookConfig
	owner  string
	echo   *echo.Echo
	logger *logging.Logger

	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter

	mu     sync.Mutex
	latest command.List

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newWebhookSource(cfg WebhookConfig, owner string, logger *logging.Logger) (*webhookSource, error) {
	if !cfg.Secret.IsSet() {
		return nil, errors.New("webhook secret is required")
	}
	if cfg.Path == "" {
		cfg.Path = DefaultWebhookPath
	}
	if cfg.Key == "" {
		cfg.Key = "commands"
	}

	s := &webhookSource{
		cfg:      cfg,
		owner:    owner,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
	s.initMetrics()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(s.instrument)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.POST(cfg.Path, s.handleDelivery)
	s.echo = e
	return s, nil
}

func (s *webhookSource) initMetrics() {
	meter := otel.Meter(webhookInstrumentationName)
	var err error
	s.requests, err = meter.Int64Counter("ghsock.webhook.requests",
		metric.WithDescription("Webhook deliveries by event and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create webhook request counter", zap.Error(err))
	}
	s.duration, err = meter.Float64Histogram("ghsock.webhook.duration",
		metric.WithDescription("Webhook delivery handling time"),
		metric.WithUnit("s"),
	)
	if err != nil {
		s.logger.Warn(context.Background(), "failed to create webhook duration histogram", zap.Error(err))
	}
}

// instrument logs and records every request.
func (s *webhookSource) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		elapsed := time.Since(start)
		req := c.Request()
		status := c.Response().Status

		attrs := metric.WithAttributes(
			attribute.String("event", github.WebHookType(req)),
			attribute.Int("status", status),
		)
		if s.requests != nil {
			s.requests.Add(req.Context(), 1, attrs)
		}
		if s.duration != nil {
			s.duration.Record(req.Context(), elapsed.Seconds(), attrs)
		}

		s.logger.Debug(req.Context(), "webhook request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("delivery", github.DeliveryID(req)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	}
}

// limiter returns the per-client limiter: one request per second with a
// burst of ten.
func (s *webhookSource) limiter(ip string) *rate.Limiter {
	s.limitMu.Lock()
	defer s.limitMu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = rate.NewLimiter(rate.Limit(1), 10)
		s.limiters[ip] = l
	}
	return l
}

func (s *webhookSource) handleDelivery(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()

	ip := c.RealIP()
	if !s.limiter(ip).Allow() {
		s.logger.Warn(ctx, "webhook rate limit exceeded", zap.String("ip", ip))
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	payload, err := github.ValidatePayload(req, []byte(s.cfg.Secret.Value()))
	if err != nil {
		s.logger.Warn(ctx, "invalid webhook signature", zap.Error(err))
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}
	event, err := github.ParseWebHook(github.WebHookType(req), payload)
	if err != nil {
		s.logger.Warn(ctx, "failed to parse webhook", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	list, ok, err := s.batchOf(ctx, event)
	if err != nil {
		s.logger.Warn(ctx, "rejecting webhook batch", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !ok {
		return c.JSON(http.StatusOK, map[string]string{"status": "ignored"})
	}

	s.mu.Lock()
	s.latest = list
	s.mu.Unlock()
	s.logger.Info(ctx, "webhook batch accepted",
		zap.String("event", github.WebHookType(req)),
		zap.Strings("commands", list.Commands()),
	)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// batchOf extracts a batch from a delivery. ok is false for events that do
// not carry one.
func (s *webhookSource) batchOf(ctx context.Context, event any) (command.List, bool, error) {
	switch e := event.(type) {
	case *github.RepositoryDispatchEvent:
		if s.cfg.EventType != "" && e.GetAction() != s.cfg.EventType {
			return nil, false, nil
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(e.ClientPayload, &fields); err != nil {
			return nil, false, fmt.Errorf("client_payload: %w", err)
		}
		raw, found := fields[s.cfg.Key]
		if !found {
			return nil, false, nil
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false, fmt.Errorf("client_payload.%s: %w", s.cfg.Key, err)
		}
		list, err := command.ParseList(text)
		if err != nil {
			return nil, false, fmt.Errorf("client_payload.%s: %w", s.cfg.Key, err)
		}
		return list, true, nil

	case *github.ReleaseEvent:
		switch e.GetAction() {
		case "published", "edited", "released":
			return parseBodies(ctx, s.logger, []string{e.GetRelease().GetBody()}), true, nil
		}

	case *github.IssuesEvent:
		if s.owner != "" && e.GetIssue().GetUser().GetLogin() != s.owner {
			return nil, false, nil
		}
		switch e.GetAction() {
		case "opened", "edited":
			return parseBodies(ctx, s.logger, []string{e.GetIssue().GetBody()}), true, nil
		}
	}
	return nil, false, nil
}

func (s *webhookSource) Seek(context.Context, map[string]string) (channel.SeekResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return channel.SeekResult{Commands: s.latest}, nil
}

// serve listens on Addr until ctx is done.
func (s *webhookSource) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.echo.Listener = ln
	s.logger.Info(ctx, "receiving webhooks", zap.String("addr", ln.Addr().String()), zap.String("path", s.cfg.Path))

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "webhook server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutdownCtx)
	}()
	return nil
}
