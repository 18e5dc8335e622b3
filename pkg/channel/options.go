package channel

import (
	"context"
	"maps"
	"time"

	"github.com/fyrsmithlabs/ghsock/pkg/command"
)

// SeekResult is one poll of the backing store.
type SeekResult struct {
	// Commands is the current inbound batch.
	Commands command.List
	// Delay is the pause the provider suggests before the next poll.
	Delay time.Duration
	// Persist is merged into the channel's carry-over metadata.
	Persist map[string]string
}

// Seeker pulls the current inbound batch. persist holds carry-over metadata
// from earlier polls, such as a conditional-fetch cursor. A Seeker returns
// an error only for conditions that should end the channel; recoverable
// provider states return the previous batch with a suitable delay.
type Seeker func(ctx context.Context, persist map[string]string) (SeekResult, error)

// Sender publishes an outbound batch. Retrying is the Sender's concern.
type Sender func(ctx context.Context, list command.List) error

// Mapper transforms each inbound batch before delivery.
type Mapper func(command.List) (command.List, error)

// DefaultMinInterval is the shortest pause between polls unless overridden.
const DefaultMinInterval = 100 * time.Millisecond

type options struct {
	sender      Sender
	seeker      Seeker
	mapper      Mapper
	preface     command.List
	minInterval time.Duration
	persist     map[string]string
	observer    Observer
}

func defaultOptions() options {
	return options{
		mapper:      identity,
		minInterval: DefaultMinInterval,
		persist:     map[string]string{},
		observer:    nopObserver{},
	}
}

func identity(l command.List) (command.List, error) {
	return l, nil
}

// Option configures a Client at construction or through Update.
type Option func(*options)

// WithSender sets the outbound Sender. Nil removes it.
func WithSender(s Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithSeeker sets the inbound Seeker. Nil removes it and stops polling.
func WithSeeker(s Seeker) Option {
	return func(o *options) { o.seeker = s }
}

// WithMapper sets the inbound transform. Nil restores the identity.
func WithMapper(m Mapper) Option {
	return func(o *options) {
		if m == nil {
			m = identity
		}
		o.mapper = m
	}
}

// WithPreface sets the batch prepended to every send.
func WithPreface(l command.List) Option {
	return func(o *options) { o.preface = command.Concat(l) }
}

// WithMinInterval sets the shortest pause between polls.
func WithMinInterval(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.minInterval = d
	}
}

// WithPersist seeds the carry-over metadata, for example from the value a
// previous session's Finish returned.
func WithPersist(p map[string]string) Option {
	return func(o *options) {
		o.persist = maps.Clone(p)
		if o.persist == nil {
			o.persist = map[string]string{}
		}
	}
}

// WithObserver sets the lifecycle hook. Nil disables it.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			obs = nopObserver{}
		}
		o.observer = obs
	}
}
