package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/ghsock/internal/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults enabled", func(*Config) {}, ""},
		{"disabled skips checks", func(c *Config) { *c = Config{} }, ""},
		{"no endpoint", func(c *Config) { c.Endpoint = "" }, "endpoint is required"},
		{"no version", func(c *Config) { c.ServiceVersion = "" }, "service name and version"},
		{"bad protocol", func(c *Config) { c.Protocol = "udp" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Endpoint = "otel.example.com:4317" }, "insecure export"},
		{"tls remote", func(c *Config) { c.Endpoint = "otel.example.com:4317"; c.Insecure = false }, ""},
		{"rate above one", func(c *Config) { c.SampleRate = 1.5 }, "sample rate"},
		{"negative interval", func(c *Config) { c.MetricInterval = -time.Second }, "metric interval"},
		{"metrics off", func(c *Config) { c.MetricInterval = 0 }, ""},
		{"no shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestIsLocal(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":           true,
		"127.0.0.1:4317":           true,
		"127.0.0.53":               true,
		"[::1]:4317":               true,
		"::1":                      true,
		"http://localhost:4318/":   true,
		"otel.example.com:4317":    false,
		"https://otel.example.com": false,
		"10.0.0.5:4317":            false,
		"localhost.example.com":    false,
	}
	for endpoint, want := range tests {
		assert.Equal(t, want, isLocal(endpoint), endpoint)
	}
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "otel:4318", hostPort("https://otel:4318"))
	assert.Equal(t, "otel:4318", hostPort("http://otel:4318/"))
	assert.Equal(t, "otel:4318", hostPort("otel:4318"))
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(config.ObservabilityConfig{
		ServiceName:     "ghsock-ci",
		EnableTelemetry: true,
		OTLPEndpoint:    "otel.example.com:4318",
		OTLPProtocol:    ProtocolHTTP,
		TraceSampleRate: 0.5,
	}, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "otel.example.com:4318", cfg.Endpoint)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.Equal(t, "ghsock-ci", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.5, cfg.SampleRate)
	assert.False(t, cfg.Insecure, "remote endpoints use TLS")
	assert.NoError(t, cfg.Validate())

	local := FromSettings(config.ObservabilityConfig{OTLPEndpoint: "localhost:4317"}, "")
	assert.True(t, local.Insecure)
	assert.Equal(t, "0.1.0", local.ServiceVersion)
	assert.Equal(t, 1.0, local.SampleRate)
}
