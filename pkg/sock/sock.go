// Package sock is the caller-facing surface of a channel. It names a slot by
// operation id and tag and delegates everything else to the channel.
package sock

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

// QuitReason is the finish reason recorded by Client.Quit.
const QuitReason = "quit"

// Key derives the command for op and tag. An empty op becomes command.NoOp.
func Key(op, tag string) string {
	return command.Key(op, tag)
}

// NewOpID returns a fresh operation id. It is a UUID without hyphens, so
// commands built from it are also valid GitHub secret names.
func NewOpID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Client gets and gives trees through a polling channel.
type Client struct {
	ch *channel.Client
}

// NewClient wraps ch.
func NewClient(ch *channel.Client) *Client {
	return &Client{ch: ch}
}

// Get waits for the next delivery of op/tag.
func (c *Client) Get(ctx context.Context, op, tag string) (tree.Tree, error) {
	return c.ch.Access(ctx, Key(op, tag))
}

// Give sends t as op/tag.
func (c *Client) Give(ctx context.Context, op, tag string, t tree.Tree) error {
	return c.ch.SendToServer(ctx, command.List{{Command: Key(op, tag), Tree: t}})
}

// Quit finishes the channel and returns its carry-over metadata.
func (c *Client) Quit() map[string]string {
	return c.ch.Finish(QuitReason)
}

// Channel exposes the wrapped channel.
func (c *Client) Channel() *channel.Client {
	return c.ch
}

// Server reads a fixed snapshot and collects outputs.
type Server struct {
	ch *channel.Server
}

// NewServer wraps ch.
func NewServer(ch *channel.Server) *Server {
	return &Server{ch: ch}
}

// Get returns the inbound tree for op/tag.
func (s *Server) Get(op, tag string) (tree.Tree, error) {
	return s.ch.Get(Key(op, tag))
}

// Give records t as the output for op/tag.
func (s *Server) Give(op, tag string, t tree.Tree) {
	s.ch.AddOutput(Key(op, tag), t)
}

// Quit returns the accumulated outputs.
func (s *Server) Quit() command.List {
	return s.ch.Output()
}
