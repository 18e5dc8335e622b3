package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingKey indicates a command or a required collaborator is absent.
	ErrMissingKey = errors.New("missing")

	// ErrDuplicateWaiter indicates a second concurrent Access on one command.
	ErrDuplicateWaiter = errors.New("duplicate getter")

	// ErrChannelClosed indicates an operation after Finish.
	ErrChannelClosed = errors.New("channel closed")

	// ErrNoSeeker is returned by Access when no Seeker is configured.
	ErrNoSeeker = fmt.Errorf("%w seeker", ErrMissingKey)

	// ErrNoSender is returned by SendToServer when no Sender is configured.
	ErrNoSender = fmt.Errorf("%w sender", ErrMissingKey)
)

// ProviderError wraps a failure surfaced from a Seeker, Mapper or Sender.
type ProviderError struct {
	// Op is "seek", "map" or "send".
	Op string
	// Command is the pending command the failure was delivered to, if any.
	Command string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("channel: %s failed while awaiting %s: %v", e.Op, e.Command, e.Err)
	}
	return fmt.Sprintf("channel: %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
