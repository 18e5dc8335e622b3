package tree

import (
	"bytes"
	"errors"
	"fmt"
)

// Builder assembles a Tree bottom-up. The first error sticks and is
// returned by Build.
type Builder struct {
	t   Tree
	err error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{t: Tree{}}
}

// String adds a text leaf. Text that would decode as a bool or bytes
// ("true", ":AQID") is rejected; use Bool or Bytes.
func (b *Builder) String(key, value string) *Builder {
	if b.err == nil {
		if err := checkText(key, value); err != nil {
			b.err = err
		}
	}
	return b.set(key, String(value))
}

// Bool adds a boolean leaf.
func (b *Builder) Bool(key string, value bool) *Builder {
	return b.set(key, Bool(value))
}

// Bytes adds a binary leaf. The value is copied.
func (b *Builder) Bytes(key string, value []byte) *Builder {
	return b.set(key, Bytes(bytes.Clone(value)))
}

// Tree adds an existing tree as a subtree. The subtree is copied and must
// hold at least one leaf.
func (b *Builder) Tree(key string, sub Tree) *Builder {
	if b.err == nil {
		if err := validateSub(key, sub); err != nil {
			b.err = err
		}
	}
	return b.set(key, sub.Clone())
}

// Sub adds the result of another builder as a subtree.
func (b *Builder) Sub(key string, sub *Builder) *Builder {
	t, err := sub.Build()
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("subtree %q: %w", key, err)
		}
		return b
	}
	if len(t) == 0 && b.err == nil {
		b.err = fmt.Errorf("subtree %q: %w", key, ErrEmptySubtree)
	}
	return b.set(key, t)
}

// Build returns the assembled tree or the first error encountered.
func (b *Builder) Build() (Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.t.Clone(), nil
}

func (b *Builder) set(key string, n Node) *Builder {
	if b.err != nil {
		return b
	}
	if reservedKey(key) {
		b.err = fmt.Errorf("key %q: %w", key, ErrReserved)
		return b
	}
	if _, exists := b.t[key]; exists {
		b.err = fmt.Errorf("key %q: %w", key, ErrDuplicateKey)
		return b
	}
	b.t[key] = n
	return b
}

// validate checks a tree that did not come from a Builder. The root may be
// empty; nested trees may not.
func validate(t Tree) error {
	for k, v := range t {
		if reservedKey(k) {
			return fmt.Errorf("key %q: %w", k, ErrReserved)
		}
		switch n := v.(type) {
		case String:
			if err := checkText(k, string(n)); err != nil {
				return err
			}
		case Tree:
			if err := validateSub(k, n); err != nil {
				return err
			}
		case nil:
			return errors.New("nil node at " + k)
		}
	}
	return nil
}

func validateSub(key string, sub Tree) error {
	if len(sub) == 0 {
		return fmt.Errorf("subtree %q: %w", key, ErrEmptySubtree)
	}
	if err := validate(sub); err != nil {
		return fmt.Errorf("subtree %q: %w", key, err)
	}
	return nil
}

func checkText(key, value string) error {
	if reservedValue(value) {
		return fmt.Errorf("value of %q: %w", key, ErrReserved)
	}
	if ambiguousText(value) {
		return fmt.Errorf("value of %q: %w", key, ErrAmbiguous)
	}
	return nil
}

// Validate reports whether t survives an Encode/Decode round trip: keys and
// text leaves are free of wire syntax, no text leaf reads as a bool or
// bytes, and no nested tree is empty.
func Validate(t Tree) error {
	return validate(t)
}
