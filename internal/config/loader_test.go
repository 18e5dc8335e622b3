package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temporary directory and returns the
// config directory inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "ghsock")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return configDir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	// WriteFile is subject to umask
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Failed to chmod test config: %v", err)
	}
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `channel:
  min_interval: 250ms
source:
  kind: release
  github:
    owner: octo
    repo: board
    token: ghp_source
sink:
  kind: dispatch
  github:
    owner: octo
    repo: board
    token: ghp_sink
retry:
  max_retries: 5
  initial_backoff: 2s
logging:
  level: debug
  format: json
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Channel.MinInterval.Duration() != 250*time.Millisecond {
		t.Errorf("Channel.MinInterval = %v, want 250ms", cfg.Channel.MinInterval.Duration())
	}
	if cfg.Source.Kind != "release" || cfg.Source.GitHub.Owner != "octo" || cfg.Source.GitHub.Repo != "board" {
		t.Errorf("Source = %+v, want release of octo/board", cfg.Source)
	}
	if cfg.Source.GitHub.Token.Value() != "ghp_source" {
		t.Error("Source.GitHub.Token was not loaded")
	}
	if cfg.Sink.EventType != "ghsock" || cfg.Sink.Key != "commands" {
		t.Errorf("Sink dispatch defaults = %q/%q, want ghsock/commands", cfg.Sink.EventType, cfg.Sink.Key)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.InitialBackoff.Duration() != 2*time.Second {
		t.Errorf("Retry = %+v, want 5 retries from 2s", cfg.Retry)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoadWithFile_WebhookSource(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `source:
  kind: webhook
  webhook:
    addr: ":8080"
sink:
  kind: file
  path: /tmp/board.txt
  scan_secrets: true
`, 0600)
	t.Setenv("GHSOCK_SOURCE_WEBHOOK_SECRET", "hook-secret")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	hook := cfg.Source.Webhook
	if hook.Addr != ":8080" {
		t.Errorf("Webhook.Addr = %q, want :8080", hook.Addr)
	}
	if hook.Secret.Value() != "hook-secret" {
		t.Errorf("Webhook.Secret not loaded from environment")
	}
	if hook.Path != "/webhook" || hook.EventType != "ghsock" || hook.Key != "commands" {
		t.Errorf("Webhook defaults = %q %q %q, want /webhook ghsock commands", hook.Path, hook.EventType, hook.Key)
	}
	if !cfg.Sink.ScanSecrets {
		t.Error("Sink.ScanSecrets = false, want true")
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `source:
  kind: release
  github:
    owner: yaml-owner
    repo: board
`, 0600)

	t.Setenv("GHSOCK_SOURCE_KIND", "issues")
	t.Setenv("GHSOCK_SOURCE_ISSUES", "3")
	t.Setenv("GHSOCK_SOURCE_GITHUB_OWNER", "env-owner")
	t.Setenv("GHSOCK_SINK_GITHUB_TOKEN", "ghp_env")
	t.Setenv("GHSOCK_CHANNEL_MIN_INTERVAL", "5s")
	t.Setenv("GHSOCK_OBSERVABILITY_METRICS_ADDR", ":9464")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.Source.Kind != "issues" {
		t.Errorf("Source.Kind = %q, want issues", cfg.Source.Kind)
	}
	if cfg.Source.Issues != 3 {
		t.Errorf("Source.Issues = %d, want 3", cfg.Source.Issues)
	}
	if cfg.Source.GitHub.Owner != "env-owner" {
		t.Errorf("Source.GitHub.Owner = %q, want env-owner", cfg.Source.GitHub.Owner)
	}
	if cfg.Source.GitHub.Repo != "board" {
		t.Errorf("Source.GitHub.Repo = %q, want board from YAML", cfg.Source.GitHub.Repo)
	}
	if cfg.Sink.GitHub.Token.Value() != "ghp_env" {
		t.Error("Sink.GitHub.Token was not loaded from the environment")
	}
	if cfg.Channel.MinInterval.Duration() != 5*time.Second {
		t.Errorf("Channel.MinInterval = %v, want 5s", cfg.Channel.MinInterval.Duration())
	}
	if cfg.Observability.MetricsAddr != ":9464" {
		t.Errorf("Observability.MetricsAddr = %q, want :9464", cfg.Observability.MetricsAddr)
	}
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.Channel.MinInterval.Duration() != time.Second {
		t.Errorf("Channel.MinInterval = %v, want 1s", cfg.Channel.MinInterval.Duration())
	}
	if cfg.Source.Kind != "" || cfg.Sink.Kind != "" {
		t.Errorf("expected no source or sink by default, got %q/%q", cfg.Source.Kind, cfg.Sink.Kind)
	}
	if cfg.Observability.ServiceName != "ghsock" {
		t.Errorf("Observability.ServiceName = %q, want ghsock", cfg.Observability.ServiceName)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "source: [unclosed", 0600)

	if _, err := LoadWithFile(path); err == nil {
		t.Fatal("LoadWithFile() error = nil, want YAML error")
	}
}

func TestLoadWithFile_Validation(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `source:
  kind: carrier-pigeon
sink:
  kind: fax
`, 0600)

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() error = nil, want validation error")
	}
	for _, want := range []string{"source.kind", "sink.kind"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadWithFile_PathTraversal(t *testing.T) {
	setupTestHome(t)

	if _, err := LoadWithFile("/tmp/ghsock-config.yaml"); err == nil {
		t.Fatal("LoadWithFile() accepted a path outside the allowed directories")
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "source:\n  kind: file\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Fatalf("LoadWithFile() error = %v, want permission error", err)
	}
}

func TestLoadWithFile_ReadOnlyAllowed(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "source:\n  kind: file\n  path: /tmp/inbox\n", 0400)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.Source.Path != "/tmp/inbox" {
		t.Errorf("Source.Path = %q, want /tmp/inbox", cfg.Source.Path)
	}
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	dir := setupTestHome(t)
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	path := writeConfig(t, dir, big, 0600)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("LoadWithFile() error = %v, want size error", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"GHSOCK_CHANNEL_MIN_INTERVAL":       "channel.min_interval",
		"GHSOCK_SOURCE_GITHUB_TOKEN":        "source.github.token",
		"GHSOCK_SINK_GITHUB_BASE_URL":       "sink.github.base_url",
		"GHSOCK_SINK_EVENT_TYPE":            "sink.event_type",
		"GHSOCK_SINK_SCAN_SECRETS":          "sink.scan_secrets",
		"GHSOCK_SOURCE_WEBHOOK_SECRET":      "source.webhook.secret",
		"GHSOCK_SOURCE_WEBHOOK_EVENT_TYPE":  "source.webhook.event_type",
		"GHSOCK_RETRY_BACKOFF_MULTIPLIER":   "retry.backoff_multiplier",
		"GHSOCK_OBSERVABILITY_SERVICE_NAME": "observability.service_name",
		"GHSOCK_UNKNOWN":                    "unknown",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	info, err := os.Stat(filepath.Join(home, ".config", "ghsock"))
	if err != nil {
		t.Fatalf("config dir not created: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0700 {
		t.Errorf("config dir perm = %v, want 0700", info.Mode().Perm())
	}
}

func TestLoadWithFile_TelemetrySettings(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `observability:
  enable_telemetry: true
  otlp_endpoint: otel.internal:4318
  otlp_protocol: http/protobuf
  trace_sample_rate: 0.25
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	obs := cfg.Observability
	if !obs.EnableTelemetry || obs.OTLPEndpoint != "otel.internal:4318" || obs.OTLPProtocol != "http/protobuf" || obs.TraceSampleRate != 0.25 {
		t.Errorf("Observability = %+v", obs)
	}

	t.Setenv("GHSOCK_OBSERVABILITY_OTLP_PROTOCOL", "carrier")
	if _, err := LoadWithFile(path); err == nil || !strings.Contains(err.Error(), "otlp_protocol") {
		t.Errorf("LoadWithFile() error = %v, want otlp_protocol error", err)
	}
}

func TestConfig_ValidateCredentials(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"release without repo", func(c *Config) { c.Source = SourceConfig{Kind: "release", GitHub: GitHubConfig{Owner: "octo"}} }, "source.github.repo"},
		{"install without token", func(c *Config) { c.Source = SourceConfig{Kind: "install", GitHub: GitHubConfig{Owner: "octo"}} }, "source.github.token"},
		{"file source without path", func(c *Config) { c.Source = SourceConfig{Kind: "file"} }, "source.path"},
		{"dispatch without token", func(c *Config) {
			c.Sink = SinkConfig{Kind: "dispatch", GitHub: GitHubConfig{Owner: "octo", Repo: "board"}}
		}, "sink.github.token"},
		{"secret without env", func(c *Config) {
			c.Sink = SinkConfig{Kind: "secret", GitHub: GitHubConfig{Owner: "octo", Repo: "board", Token: "t"}}
		}, "sink.env"},
		{"file sink without path", func(c *Config) { c.Sink = SinkConfig{Kind: "file"} }, "sink.path"},
		{"webhook without secret", func(c *Config) {
			c.Source = SourceConfig{Kind: "webhook", Webhook: WebhookConfig{Addr: ":8080"}}
		}, "source.webhook.secret"},
		{"webhook without addr", func(c *Config) { c.Source = SourceConfig{Kind: "webhook"} }, "source.webhook.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.Source = SourceConfig{Kind: "install", GitHub: GitHubConfig{Owner: "octo", Token: "t"}}
	cfg.Sink = SinkConfig{Kind: "secret", Env: "ghsock", GitHub: GitHubConfig{Owner: "octo", Repo: "board", Token: "t"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}
