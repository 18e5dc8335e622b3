package channel

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

var tracer = otel.Tracer("ghsock/channel")

type result struct {
	tree tree.Tree
	err  error
}

// Client is the polling side of a channel.
type Client struct {
	ctx context.Context

	mu      sync.Mutex
	opts    options
	ins     map[string]tree.Tree
	waiters map[string]chan result
	running bool
	done    bool
	reason  string
	closed  chan struct{}
}

// NewClient creates a client and, when a Seeker is configured, starts its
// poll loop. Cancelling ctx finishes the channel; a nil ctx never does.
func NewClient(ctx context.Context, opts ...Option) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &Client{
		ctx:     ctx,
		opts:    defaultOptions(),
		ins:     make(map[string]tree.Tree),
		waiters: make(map[string]chan result),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}

	c.mu.Lock()
	c.startLocked()
	c.mu.Unlock()

	context.AfterFunc(ctx, func() {
		c.Finish(ctx.Err().Error())
	})
	return c
}

// Update hot-swaps options. Setting a Seeker on an idle channel starts
// polling. Removing it stops polling after the current iteration and rejects
// pending waiters with ErrNoSeeker; the channel stays open for sending and
// for a later Seeker. A finished channel stays finished.
func (c *Client) Update(opts ...Option) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return fmt.Errorf("update: %w: %s", ErrChannelClosed, c.reason)
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	if c.opts.seeker == nil {
		for cmd, ch := range c.waiters {
			delete(c.waiters, cmd)
			ch <- result{err: fmt.Errorf("access %s: %w", cmd, ErrNoSeeker)}
		}
	}
	c.startLocked()
	return nil
}

func (c *Client) startLocked() {
	if c.done || c.running || c.opts.seeker == nil {
		return
	}
	c.running = true
	go c.run()
}

// Access waits for the next delivery of cmd. It never answers from values
// delivered before the call; use Latest for those.
func (c *Client) Access(ctx context.Context, cmd string) (tree.Tree, error) {
	c.mu.Lock()
	if c.opts.seeker == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("access %s: %w", cmd, ErrNoSeeker)
	}
	if c.done {
		err := c.closedErrLocked(cmd)
		c.mu.Unlock()
		return nil, err
	}
	if _, exists := c.waiters[cmd]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("access %s: %w", cmd, ErrDuplicateWaiter)
	}
	ch := make(chan result, 1)
	c.waiters[cmd] = ch
	observer := c.opts.observer
	c.mu.Unlock()

	observer.Observe(Event{Kind: EventWait, Command: cmd})

	select {
	case r := <-ch:
		return r.tree, r.err
	case <-ctx.Done():
		c.mu.Lock()
		if c.waiters[cmd] == ch {
			delete(c.waiters, cmd)
		}
		c.mu.Unlock()
		// A delivery may have landed between the cancel and the lock.
		select {
		case r := <-ch:
			return r.tree, r.err
		default:
			return nil, fmt.Errorf("access %s: %w", cmd, ctx.Err())
		}
	}
}

// SendToServer publishes the preface followed by list in one Sender call.
// A Sender failure is returned to the caller and leaves the channel open.
func (c *Client) SendToServer(ctx context.Context, list command.List) error {
	c.mu.Lock()
	if c.done {
		err := fmt.Errorf("send: %w: %s", ErrChannelClosed, c.reason)
		c.mu.Unlock()
		return err
	}
	sender := c.opts.sender
	batch := command.Concat(c.opts.preface, list)
	observer := c.opts.observer
	c.mu.Unlock()

	if sender == nil {
		return fmt.Errorf("send: %w", ErrNoSender)
	}

	err := sender(ctx, batch)
	observer.Observe(Event{Kind: EventSend, Count: len(batch), Err: err})
	if err != nil {
		return &ProviderError{Op: "send", Err: err}
	}
	return nil
}

// Finish closes the channel, rejects every pending waiter with reason and
// returns the carry-over metadata for reuse in a later session. Calls after
// the first only return the metadata.
func (c *Client) Finish(reason string) map[string]string {
	c.mu.Lock()
	first := !c.done
	var rejected int
	if first {
		rejected = c.closeLocked(reason, func(cmd string) error {
			return fmt.Errorf("%w: %s: %s", ErrChannelClosed, cmd, reason)
		})
	}
	persist := maps.Clone(c.opts.persist)
	observer := c.opts.observer
	c.mu.Unlock()

	if first {
		observer.Observe(Event{Kind: EventFinish, Reason: reason, Count: rejected})
	}
	return persist
}

// Latest returns the most recent delivered value of cmd.
func (c *Client) Latest(cmd string) (tree.Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.ins[cmd]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Evict forgets the delivered value of cmd.
func (c *Client) Evict(cmd string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ins, cmd)
}

// Persist returns a copy of the carry-over metadata.
func (c *Client) Persist() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.opts.persist)
}

// Done is closed once the channel finishes.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Reason returns why the channel finished, or "" while it is open.
func (c *Client) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Client) closedErrLocked(cmd string) error {
	return fmt.Errorf("access %s: %w: %s", cmd, ErrChannelClosed, c.reason)
}

// closeLocked marks the channel done and rejects all waiters, returning how
// many were rejected.
func (c *Client) closeLocked(reason string, reject func(cmd string) error) int {
	c.done = true
	c.reason = reason
	close(c.closed)
	n := len(c.waiters)
	for cmd, ch := range c.waiters {
		ch <- result{err: reject(cmd)}
		delete(c.waiters, cmd)
	}
	return n
}

func (c *Client) run() {
	for {
		c.mu.Lock()
		if c.done || c.opts.seeker == nil {
			c.running = false
			c.mu.Unlock()
			return
		}
		seeker, mapper := c.opts.seeker, c.opts.mapper
		persist := maps.Clone(c.opts.persist)
		c.mu.Unlock()

		delay, ok := c.poll(seeker, mapper, persist)
		if !ok {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-c.closed:
			timer.Stop()
		}
	}
}

// poll runs one Seeker iteration and delivers its batch. It reports false
// when the loop must exit.
func (c *Client) poll(seeker Seeker, mapper Mapper, persist map[string]string) (time.Duration, bool) {
	ctx, span := tracer.Start(c.ctx, "channel.poll")
	defer span.End()

	res, err := seeker(ctx, persist)
	op := "seek"
	var list command.List
	if err == nil {
		op = "map"
		list, err = mapper(res.Commands)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(op, err)
		return 0, false
	}
	span.SetAttributes(attribute.Int("commands.count", len(list)))

	c.mu.Lock()
	if c.done {
		c.running = false
		c.mu.Unlock()
		return 0, false
	}
	maps.Copy(c.opts.persist, res.Persist)
	delay := max(res.Delay, c.opts.minInterval)
	var resolved []string
	for _, ct := range list {
		c.ins[ct.Command] = ct.Tree
		if ch, ok := c.waiters[ct.Command]; ok {
			delete(c.waiters, ct.Command)
			ch <- result{tree: ct.Tree.Clone()}
			resolved = append(resolved, ct.Command)
		}
	}
	observer := c.opts.observer
	c.mu.Unlock()

	for _, cmd := range resolved {
		observer.Observe(Event{Kind: EventResolve, Command: cmd})
	}
	observer.Observe(Event{Kind: EventDeliver, Count: len(list), Delay: delay})
	return delay, true
}

func (c *Client) fail(op string, err error) {
	c.mu.Lock()
	if c.done {
		c.running = false
		c.mu.Unlock()
		return
	}
	c.running = false
	rejected := c.closeLocked(err.Error(), func(cmd string) error {
		return &ProviderError{Op: op, Command: cmd, Err: err}
	})
	observer := c.opts.observer
	c.mu.Unlock()

	observer.Observe(Event{Kind: EventSeekError, Err: err})
	observer.Observe(Event{Kind: EventFinish, Reason: err.Error(), Count: rejected, Err: err})
}
