package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	opKey ctxKey = iota
	commandKey
	loggerKey
)

// Operation ids are uuid hex and commands are op__tag, both of which match.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ContextFields returns the correlation fields carried by ctx: the active
// span, then op.id and command.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if op := OpIDFromContext(ctx); op != "" {
		fields = append(fields, zap.String("op.id", op))
	}
	if c := CommandFromContext(ctx); c != "" {
		fields = append(fields, zap.String("command", c))
	}
	return fields
}

func withID(ctx context.Context, key ctxKey, what, id string) context.Context {
	if !idPattern.MatchString(id) {
		panic(fmt.Sprintf("logging: invalid %s %q", what, id))
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithOpID tags ctx with an operation id. It panics on ids that are empty,
// longer than 128 bytes, or outside [A-Za-z0-9_-].
func WithOpID(ctx context.Context, op string) context.Context {
	return withID(ctx, opKey, "op id", op)
}

func OpIDFromContext(ctx context.Context) string { return idFrom(ctx, opKey) }

// WithCommand tags ctx with a command name. Same rules as WithOpID.
func WithCommand(ctx context.Context, command string) context.Context {
	return withID(ctx, commandKey, "command", command)
}

func CommandFromContext(ctx context.Context) string { return idFrom(ctx, commandKey) }

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return newNop()
}
