package channel

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

const (
	testInterval = time.Millisecond
	waitFor      = 2 * time.Second
	tick         = time.Millisecond
)

// store is an in-memory Seeker: each poll pops one queued batch, or
// returns an empty batch when the queue is empty.
type store struct {
	mu      sync.Mutex
	queue   []command.List
	err     error
	delay   time.Duration
	persist map[string]string
	seen    []map[string]string
	polls   int
}

func (s *store) push(l command.List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, l)
}

func (s *store) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *store) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *store) seek(_ context.Context, persist map[string]string) (SeekResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	s.seen = append(s.seen, persist)
	if s.err != nil {
		return SeekResult{}, s.err
	}
	res := SeekResult{Delay: s.delay, Persist: s.persist}
	if len(s.queue) > 0 {
		res.Commands = s.queue[0]
		s.queue = s.queue[1:]
	}
	return res, nil
}

// recorder collects observer events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind EventKind, cmd string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind && (cmd == "" || e.Command == cmd) {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// delivered counts deliver events that carried at least one command.
func (r *recorder) delivered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == EventDeliver && e.Count > 0 {
			n++
		}
	}
	return n
}

func one(cmd, key, value string) command.List {
	return command.List{{Command: cmd, Tree: tree.Tree{key: tree.String(value)}}}
}

type accessResult struct {
	tree tree.Tree
	err  error
}

func accessAsync(ctx context.Context, c *Client, cmd string) <-chan accessResult {
	out := make(chan accessResult, 1)
	go func() {
		t, err := c.Access(ctx, cmd)
		out <- accessResult{tree: t, err: err}
	}()
	return out
}
