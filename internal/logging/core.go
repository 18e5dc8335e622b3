package logging

import (
	"errors"
	"os"
	"sort"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = encodeLevel
	if format == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// encodeLevel prints TraceLevel as "trace" instead of "Level(-2)".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// newCore tees stderr and the OpenTelemetry bridge, then applies sampling.
// A nil provider silently drops the OTEL output.
func newCore(cfg *Config, provider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core
	if cfg.Output.Stderr {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), cfg.Level))
	}
	if cfg.Output.OTEL && provider != nil {
		name := cfg.Fields["service"]
		if name == "" {
			name = "ghsock"
		}
		cores = append(cores, otelzap.NewCore(name, otelzap.WithLoggerProvider(provider)))
	}
	if len(cores) == 0 {
		return nil, errors.New("at least one output must be enabled and available")
	}
	return sampled(zapcore.NewTee(cores...), cfg.Sampling), nil
}

// sampled gives every configured level its own sampler. Levels without an
// entry, and everything from Error up, pass through untouched.
func sampled(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled || len(cfg.Levels) == 0 {
		return core
	}

	levels := make([]zapcore.Level, 0, len(cfg.Levels))
	for l := range cfg.Levels {
		if l < zapcore.ErrorLevel {
			levels = append(levels, l)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	sampledSet := make(map[zapcore.Level]bool, len(levels))
	cores := make([]zapcore.Core, 0, len(levels)+1)
	for _, l := range levels {
		s := cfg.Levels[l]
		sampledSet[l] = true
		cores = append(cores, zapcore.NewSamplerWithOptions(
			&onlyLevels{Core: core, allow: func(x zapcore.Level) bool { return x == l }},
			cfg.Tick, s.Initial, s.Thereafter,
		))
	}
	cores = append(cores, &onlyLevels{Core: core, allow: func(x zapcore.Level) bool { return !sampledSet[x] }})
	return zapcore.NewTee(cores...)
}

// onlyLevels restricts a core to the levels allow accepts.
type onlyLevels struct {
	zapcore.Core
	allow func(zapcore.Level) bool
}

func (c *onlyLevels) Enabled(l zapcore.Level) bool {
	return c.allow(l) && c.Core.Enabled(l)
}

func (c *onlyLevels) With(fields []zapcore.Field) zapcore.Core {
	return &onlyLevels{Core: c.Core.With(fields), allow: c.allow}
}

func (c *onlyLevels) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.allow(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}
