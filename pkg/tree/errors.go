package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey indicates a builder was given the same key twice.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrReserved indicates a key or value contains wire syntax.
	ErrReserved = errors.New("reserved syntax")

	// ErrAmbiguous indicates a text leaf that decodes as a bool or bytes.
	ErrAmbiguous = errors.New("text decodes as another leaf kind")

	// ErrEmptySubtree indicates a nested tree with no leaves, which encodes
	// to nothing.
	ErrEmptySubtree = errors.New("empty subtree")
)

// SyntaxError describes wire text that cannot be decoded into a Tree.
type SyntaxError struct {
	Input  string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("tree: %s in %q", e.Reason, e.Input)
}
