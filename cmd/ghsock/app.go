package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ghsock/internal/config"
	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/internal/provider"
	"github.com/fyrsmithlabs/ghsock/internal/secrets"
	"github.com/fyrsmithlabs/ghsock/internal/telemetry"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	inst   *telemetry.Instruments
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromSettings(cfg.Logging, cfg.Observability.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	logCfg.Output.OTEL = tel.Enabled()
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	inst, err := telemetry.NewInstruments(tel)
	if err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	if reason := tel.Degraded(); reason != "" {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", reason))
	}
	return &app{cfg: cfg, logger: logger, tel: tel, inst: inst}, nil
}

// close flushes telemetry and logs. Errors are not actionable at exit.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.tel.Shutdown(ctx)
	_ = a.logger.Sync()
}

// observer logs channel events and records them as Prometheus metrics.
func (a *app) observer() channel.Observer {
	return channel.Observers(
		channel.NewLogObserver(a.logger.Underlying().Named("channel")),
		channel.NewMetrics(),
	)
}

// channelOptions returns the options shared by every client channel.
func (a *app) channelOptions() ([]channel.Option, error) {
	opts := []channel.Option{
		channel.WithMinInterval(a.cfg.Channel.MinInterval.Duration()),
		channel.WithObserver(a.observer()),
	}
	if a.cfg.Channel.Preface != "" {
		preface, err := command.ParseList(a.cfg.Channel.Preface)
		if err != nil {
			return nil, fmt.Errorf("channel.preface: %w", err)
		}
		opts = append(opts, channel.WithPreface(preface))
	}
	return opts, nil
}

func (a *app) seeker(ctx context.Context) (channel.Seeker, error) {
	if a.cfg.Source.Kind == "" {
		return nil, errors.New("no source configured (set source.kind)")
	}
	seek, err := provider.NewSeeker(ctx, sourceConfig(a.cfg.Source), a.logger)
	if err != nil {
		return nil, err
	}
	return a.inst.Seeker(a.cfg.Source.Kind, seek), nil
}

func (a *app) sender(ctx context.Context) (channel.Sender, error) {
	if a.cfg.Sink.Kind == "" {
		return nil, errors.New("no sink configured (set sink.kind)")
	}
	send, err := provider.NewSender(ctx, sinkConfig(a.cfg.Sink, a.cfg.Retry), a.logger)
	if err != nil {
		return nil, err
	}
	if a.cfg.Sink.ScanSecrets {
		allowlist, err := secrets.LoadAllowlist(a.cfg.Sink.Allowlist)
		if err != nil {
			return nil, fmt.Errorf("sink.allowlist: %w", err)
		}
		send = secrets.Guard(send, allowlist, a.logger.Named("secrets"))
	}
	return a.inst.Sender(a.cfg.Sink.Kind, send), nil
}

// serveMetrics exposes /metrics while a command polls. It returns a stop
// function, which is a no-op when no address is configured.
func (a *app) serveMetrics(ctx context.Context) func() {
	addr := a.cfg.Observability.MetricsAddr
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn(ctx, "metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	a.logger.Debug(ctx, "serving metrics", zap.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func gitHub(g config.GitHubConfig) provider.GitHub {
	return provider.GitHub{Owner: g.Owner, Repo: g.Repo, Token: g.Token, BaseURL: g.BaseURL}
}

func sourceConfig(s config.SourceConfig) provider.SourceConfig {
	return provider.SourceConfig{
		Kind:   provider.SourceKind(s.Kind),
		GitHub: gitHub(s.GitHub),
		Issues: s.Issues,
		Path:   s.Path,
		Webhook: provider.WebhookConfig{
			Addr:      s.Webhook.Addr,
			Path:      s.Webhook.Path,
			Secret:    s.Webhook.Secret,
			EventType: s.Webhook.EventType,
			Key:       s.Webhook.Key,
		},
	}
}

func sinkConfig(s config.SinkConfig, r config.RetryConfig) provider.SinkConfig {
	return provider.SinkConfig{
		Kind:      provider.SinkKind(s.Kind),
		GitHub:    gitHub(s.GitHub),
		Env:       s.Env,
		EventType: s.EventType,
		Key:       s.Key,
		Path:      s.Path,
		Parallel:  s.Parallel,
		Retry: provider.RetryConfig{
			MaxRetries:        r.MaxRetries,
			InitialBackoff:    r.InitialBackoff.Duration(),
			MaxBackoff:        r.MaxBackoff.Duration(),
			BackoffMultiplier: r.BackoffMultiplier,
			RatePerSecond:     r.RatePerSecond,
			Burst:             r.Burst,
		},
	}
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validateSlot checks op and tag before they become a command name. An
// empty op is allowed and means no operation.
func validateSlot(op, tag string) error {
	if op != "" && !namePattern.MatchString(op) {
		return fmt.Errorf("invalid --op %q: use letters, digits, '-' or '_'", op)
	}
	if !namePattern.MatchString(tag) {
		return fmt.Errorf("invalid --tag %q: use letters, digits, '-' or '_'", tag)
	}
	return nil
}
