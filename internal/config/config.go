// Package config provides configuration loading for ghsock.
//
// Settings come from a YAML file and GHSOCK_* environment variables. See
// LoadWithFile for precedence and file rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete ghsock configuration.
type Config struct {
	Channel       ChannelConfig       `koanf:"channel"`
	Source        SourceConfig        `koanf:"source"`
	Sink          SinkConfig          `koanf:"sink"`
	Retry         RetryConfig         `koanf:"retry"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ChannelConfig holds polling settings.
type ChannelConfig struct {
	MinInterval Duration `koanf:"min_interval"`
	// Preface is wire text prepended to every outbound batch.
	Preface string `koanf:"preface"`
	// PersistFile keeps carry-over metadata between runs. Empty disables it.
	PersistFile string `koanf:"persist_file"`
}

// GitHubConfig identifies a repository and its credentials.
type GitHubConfig struct {
	Owner   string `koanf:"owner"`
	Repo    string `koanf:"repo"`
	Token   Secret `koanf:"token"`
	BaseURL string `koanf:"base_url"`
}

// SourceConfig selects where inbound commands are read from.
type SourceConfig struct {
	// Kind is release, issues, install, file or webhook. Empty disables
	// reading.
	Kind    string        `koanf:"kind"`
	GitHub  GitHubConfig  `koanf:"github"`
	Issues  int           `koanf:"issues"`
	Path    string        `koanf:"path"`
	Webhook WebhookConfig `koanf:"webhook"`
}

// WebhookConfig configures the webhook receiver.
type WebhookConfig struct {
	Addr      string `koanf:"addr"`
	Path      string `koanf:"path"`
	Secret    Secret `koanf:"secret"`
	EventType string `koanf:"event_type"`
	Key       string `koanf:"key"`
}

// SinkConfig selects where outbound commands are written.
type SinkConfig struct {
	// Kind is secret, dispatch or file. Empty disables writing.
	Kind      string       `koanf:"kind"`
	GitHub    GitHubConfig `koanf:"github"`
	Env       string       `koanf:"env"`
	EventType string       `koanf:"event_type"`
	Key       string       `koanf:"key"`
	Path      string       `koanf:"path"`
	Parallel  int          `koanf:"parallel"`

	// ScanSecrets refuses outbound batches that carry credentials.
	ScanSecrets bool `koanf:"scan_secrets"`
	// Allowlist is a gitleaks-style TOML file of patterns the scan ignores.
	Allowlist string `koanf:"allowlist"`
}

// RetryConfig tunes retries of outbound GitHub writes. Zero values use the
// sink defaults.
type RetryConfig struct {
	MaxRetries        int      `koanf:"max_retries"`
	InitialBackoff    Duration `koanf:"initial_backoff"`
	MaxBackoff        Duration `koanf:"max_backoff"`
	BackoffMultiplier float64  `koanf:"backoff_multiplier"`
	RatePerSecond     float64  `koanf:"rate_per_second"`
	Burst             int      `koanf:"burst"`
}

// LoggingConfig holds the logging settings exposed to users.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds metrics and tracing settings.
type ObservabilityConfig struct {
	ServiceName string `koanf:"service_name"`
	// MetricsAddr serves Prometheus metrics while polling. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// EnableTelemetry exports traces and metrics over OTLP.
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	TraceSampleRate float64 `koanf:"trace_sample_rate"`
}

var (
	sourceKinds = map[string]bool{"": true, "release": true, "issues": true, "install": true, "file": true, "webhook": true}
	sinkKinds   = map[string]bool{"": true, "secret": true, "dispatch": true, "file": true}
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if !sourceKinds[c.Source.Kind] {
		errs = append(errs, fmt.Errorf("source.kind %q is not one of release, issues, install, file, webhook", c.Source.Kind))
	}
	if !sinkKinds[c.Sink.Kind] {
		errs = append(errs, fmt.Errorf("sink.kind %q is not one of secret, dispatch, file", c.Sink.Kind))
	}
	errs = append(errs, c.Source.validate()...)
	errs = append(errs, c.Sink.validate()...)
	if c.Source.Issues < 0 {
		errs = append(errs, fmt.Errorf("source.issues must be >= 0, got %d", c.Source.Issues))
	}
	if c.Channel.MinInterval.Duration() <= 0 {
		errs = append(errs, errors.New("channel.min_interval must be > 0"))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", c.Retry.MaxRetries))
	}
	if c.Retry.BackoffMultiplier < 0 {
		errs = append(errs, fmt.Errorf("retry.backoff_multiplier must be >= 0, got %v", c.Retry.BackoffMultiplier))
	}
	if p := c.Observability.OTLPProtocol; p != "grpc" && p != "http/protobuf" {
		errs = append(errs, fmt.Errorf("observability.otlp_protocol must be 'grpc' or 'http/protobuf', got %q", p))
	}
	if r := c.Observability.TraceSampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.trace_sample_rate must be between 0 and 1, got %v", r))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (s SourceConfig) validate() []error {
	var errs []error
	switch s.Kind {
	case "release", "issues":
		if s.GitHub.Owner == "" || s.GitHub.Repo == "" {
			errs = append(errs, fmt.Errorf("source.github.owner and source.github.repo are required for %s", s.Kind))
		}
	case "install":
		if s.GitHub.Owner == "" {
			errs = append(errs, errors.New("source.github.owner is required for install"))
		}
		if !s.GitHub.Token.IsSet() {
			errs = append(errs, errors.New("source.github.token is required for install"))
		}
	case "file":
		if s.Path == "" {
			errs = append(errs, errors.New("source.path is required for file"))
		}
	case "webhook":
		if s.Webhook.Addr == "" {
			errs = append(errs, errors.New("source.webhook.addr is required for webhook"))
		}
		if !s.Webhook.Secret.IsSet() {
			errs = append(errs, errors.New("source.webhook.secret is required for webhook"))
		}
	}
	return errs
}

func (s SinkConfig) validate() []error {
	var errs []error
	switch s.Kind {
	case "secret", "dispatch":
		if s.GitHub.Owner == "" || s.GitHub.Repo == "" {
			errs = append(errs, fmt.Errorf("sink.github.owner and sink.github.repo are required for %s", s.Kind))
		}
		if !s.GitHub.Token.IsSet() {
			errs = append(errs, fmt.Errorf("sink.github.token is required for %s", s.Kind))
		}
		if s.Kind == "secret" && s.Env == "" {
			errs = append(errs, errors.New("sink.env is required for secret"))
		}
	case "file":
		if s.Path == "" {
			errs = append(errs, errors.New("sink.path is required for file"))
		}
	}
	if s.Parallel < 0 {
		errs = append(errs, fmt.Errorf("sink.parallel must be >= 0, got %d", s.Parallel))
	}
	return errs
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Channel.MinInterval == 0 {
		cfg.Channel.MinInterval = Duration(time.Second)
	}
	if cfg.Source.Kind == "issues" && cfg.Source.Issues == 0 {
		cfg.Source.Issues = 1
	}
	if cfg.Source.Kind == "webhook" {
		if cfg.Source.Webhook.Path == "" {
			cfg.Source.Webhook.Path = "/webhook"
		}
		if cfg.Source.Webhook.EventType == "" {
			cfg.Source.Webhook.EventType = "ghsock"
		}
		if cfg.Source.Webhook.Key == "" {
			cfg.Source.Webhook.Key = "commands"
		}
	}
	if cfg.Sink.Kind == "dispatch" {
		if cfg.Sink.EventType == "" {
			cfg.Sink.EventType = "ghsock"
		}
		if cfg.Sink.Key == "" {
			cfg.Sink.Key = "commands"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "ghsock"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.TraceSampleRate == 0 {
		cfg.Observability.TraceSampleRate = 1
	}
}
