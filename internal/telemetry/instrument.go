package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

const scope = "github.com/fyrsmithlabs/ghsock"

// Span names.
const (
	SpanSeek = "ghsock.seek"
	SpanSend = "ghsock.send"
)

// Instruments traces and counts provider round trips.
type Instruments struct {
	tracer   oteltrace.Tracer
	seeks    metric.Int64Counter
	seekTime metric.Float64Histogram
	sends    metric.Int64Counter
	sendTime metric.Float64Histogram
	commands metric.Int64Counter
}

// NewInstruments creates the tracer and meter instruments. A nil or
// disabled Telemetry yields no-op instruments from the global providers.
func NewInstruments(t *Telemetry) (*Instruments, error) {
	meter := t.Meter(scope)
	in := &Instruments{tracer: t.Tracer(scope)}

	var err error
	if in.seeks, err = meter.Int64Counter("ghsock.seeks",
		metric.WithDescription("Source polls")); err != nil {
		return nil, fmt.Errorf("seeks counter: %w", err)
	}
	if in.seekTime, err = meter.Float64Histogram("ghsock.seek.duration",
		metric.WithDescription("Source poll latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("seek histogram: %w", err)
	}
	if in.sends, err = meter.Int64Counter("ghsock.sends",
		metric.WithDescription("Sink writes")); err != nil {
		return nil, fmt.Errorf("sends counter: %w", err)
	}
	if in.sendTime, err = meter.Float64Histogram("ghsock.send.duration",
		metric.WithDescription("Sink write latency"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("send histogram: %w", err)
	}
	if in.commands, err = meter.Int64Counter("ghsock.commands",
		metric.WithDescription("Commands read or written")); err != nil {
		return nil, fmt.Errorf("commands counter: %w", err)
	}
	return in, nil
}

// Seeker wraps s with a span and metrics per poll.
func (in *Instruments) Seeker(kind string, s channel.Seeker) channel.Seeker {
	return func(ctx context.Context, persist map[string]string) (channel.SeekResult, error) {
		kindAttr := attribute.String("source.kind", kind)
		ctx, span := in.tracer.Start(ctx, SpanSeek, oteltrace.WithAttributes(kindAttr))
		defer span.End()

		start := time.Now()
		res, err := s(ctx, persist)
		attrs := metric.WithAttributes(kindAttr, attribute.Bool("error", err != nil))
		in.seeks.Add(ctx, 1, attrs)
		in.seekTime.Record(ctx, time.Since(start).Seconds(), attrs)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
		in.commands.Add(ctx, int64(len(res.Commands)), metric.WithAttributes(kindAttr, attribute.String("direction", "in")))
		span.SetAttributes(
			attribute.Int("commands", len(res.Commands)),
			attribute.Int64("delay_ms", res.Delay.Milliseconds()),
		)
		return res, nil
	}
}

// Sender wraps s with a span and metrics per batch.
func (in *Instruments) Sender(kind string, s channel.Sender) channel.Sender {
	return func(ctx context.Context, list command.List) error {
		kindAttr := attribute.String("sink.kind", kind)
		ctx, span := in.tracer.Start(ctx, SpanSend, oteltrace.WithAttributes(
			kindAttr,
			attribute.Int("commands", len(list)),
			attribute.StringSlice("command.names", list.Commands()),
		))
		defer span.End()

		start := time.Now()
		err := s(ctx, list)
		attrs := metric.WithAttributes(kindAttr, attribute.Bool("error", err != nil))
		in.sends.Add(ctx, 1, attrs)
		in.sendTime.Record(ctx, time.Since(start).Seconds(), attrs)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		in.commands.Add(ctx, int64(len(list)), metric.WithAttributes(kindAttr, attribute.String("direction", "out")))
		return nil
	}
}
