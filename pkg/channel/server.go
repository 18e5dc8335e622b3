package channel

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

// Server answers from a fixed snapshot of inbound commands and collects
// outputs. It never waits.
type Server struct {
	mu    sync.RWMutex
	ins   map[string]tree.Tree
	order []string
	outs  map[string]tree.Tree
}

// NewServer indexes an inbound batch. When a command repeats, the later
// entry wins.
func NewServer(list command.List) *Server {
	s := &Server{outs: make(map[string]tree.Tree)}
	s.Update(list)
	return s
}

// ParseServer builds a Server from inbound wire text.
func ParseServer(text string) (*Server, error) {
	list, err := command.ParseList(text)
	if err != nil {
		return nil, fmt.Errorf("parse inbound commands: %w", err)
	}
	return NewServer(list), nil
}

// Update replaces the inbound snapshot. Outputs are kept.
func (s *Server) Update(list command.List) {
	ins := make(map[string]tree.Tree, len(list))
	order := make([]string, 0, len(list))
	for _, ct := range list {
		if _, seen := ins[ct.Command]; !seen {
			order = append(order, ct.Command)
		}
		ins[ct.Command] = ct.Tree
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ins = ins
	s.order = order
}

// Has reports whether cmd is in the snapshot.
func (s *Server) Has(cmd string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ins[cmd]
	return ok
}

// Get returns the tree for cmd or an error wrapping ErrMissingKey.
func (s *Server) Get(cmd string) (tree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.ins[cmd]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrMissingKey, cmd)
	}
	return t.Clone(), nil
}

// Commands lists inbound command names in first-seen order.
func (s *Server) Commands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// AddOutput records t as the output for cmd, replacing any earlier output.
func (s *Server) AddOutput(cmd string, t tree.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outs[cmd] = t.Clone()
}

// Output returns the accumulated outputs sorted by command.
func (s *Server) Output() command.List {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cmds := make([]string, 0, len(s.outs))
	for cmd := range s.outs {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)

	out := make(command.List, len(cmds))
	for i, cmd := range cmds {
		out[i] = command.Tree{Command: cmd, Tree: s.outs[cmd].Clone()}
	}
	return out
}
