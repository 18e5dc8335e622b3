// Package logging is ghsock's structured logger: zap with context-aware
// methods, a Trace level, redaction and per-level sampling, optionally
// teed into an OpenTelemetry LoggerProvider through otelzap.
//
// Logs go to stderr. Stdout carries command output (`ghsock get` prints the
// answer there), so the two never mix.
//
//	cfg, err := logging.FromSettings(c.Logging, c.Observability.ServiceName)
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	defer logger.Sync()
//
//	ctx = logging.WithOpID(ctx, op)
//	ctx = logging.WithCommand(ctx, op+"__reply")
//	logger.Info(ctx, "command delivered", zap.Duration("waited", d))
//
// The entry carries op.id, command, and trace_id/span_id when a span is
// active.
//
// # Redaction
//
// Values under keys such as token or authorization become "[REDACTED]".
// String values that look like GitHub tokens, bearer headers or PEM private
// keys become "[REDACTED:pattern]", wherever they appear. Prefer the Secret
// helper for config.Secret values.
//
// # Sampling
//
// Each level below Error has its own sampler (Trace keeps 1 per second,
// Info 100 then 1 in 10). Error and above are never sampled.
package logging
