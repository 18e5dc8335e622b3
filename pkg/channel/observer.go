package channel

import (
	"time"

	"go.uber.org/zap"
)

// EventKind names a point in a channel's lifecycle.
type EventKind string

const (
	// EventWait fires when an Access registers a waiter.
	EventWait EventKind = "wait"
	// EventResolve fires when a delivery resolves a waiter.
	EventResolve EventKind = "resolve"
	// EventDeliver fires once per successful poll.
	EventDeliver EventKind = "deliver"
	// EventSend fires after each Sender call.
	EventSend EventKind = "send"
	// EventSeekError fires when the Seeker or Mapper fails.
	EventSeekError EventKind = "seek_error"
	// EventFinish fires once when the channel closes.
	EventFinish EventKind = "finish"
)

// Event describes one lifecycle step.
type Event struct {
	Kind    EventKind
	Command string
	// Count is the batch size for deliver and send events, and the number
	// of rejected waiters for finish events.
	Count int
	// Delay is the pause before the next poll, for deliver events.
	Delay  time.Duration
	Reason string
	Err    error
}

// Observer receives lifecycle events. Observe is called without channel
// locks held and may call back into the channel.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}

type multiObserver []Observer

func (m multiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// Observers fans each event out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type logObserver struct {
	logger *zap.Logger
}

// NewLogObserver logs every event to logger. Failures log at warn, the
// rest at debug.
func NewLogObserver(logger *zap.Logger) Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logObserver{logger: logger}
}

func (o *logObserver) Observe(e Event) {
	fields := []zap.Field{zap.String("event", string(e.Kind))}
	if e.Command != "" {
		fields = append(fields, zap.String("command", e.Command))
	}
	switch e.Kind {
	case EventDeliver:
		fields = append(fields, zap.Int("commands", e.Count), zap.Duration("next_poll", e.Delay))
	case EventSend:
		fields = append(fields, zap.Int("commands", e.Count))
	case EventFinish:
		fields = append(fields, zap.String("reason", e.Reason), zap.Int("rejected", e.Count))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
		o.logger.Warn("channel event failed", fields...)
		return
	}
	o.logger.Debug("channel event", fields...)
}
