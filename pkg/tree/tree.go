package tree

import (
	"bytes"
	"sort"
	"strings"
)

// Node is one value in a Tree. The concrete types are String, Bool, Bytes
// and Tree.
type Node interface {
	node()
}

// String is a text leaf.
type String string

// Bool is a boolean leaf.
type Bool bool

// Bytes is a binary leaf.
type Bytes []byte

// Tree maps keys to nodes. Keys are unique within a node and trees must not
// contain cycles.
type Tree map[string]Node

func (String) node() {}
func (Bool) node()   {}
func (Bytes) node()  {}
func (Tree) node()   {}

// Get walks path and returns the node found there.
func (t Tree) Get(path ...string) (Node, bool) {
	var cur Node = t
	for _, seg := range path {
		sub, ok := cur.(Tree)
		if !ok {
			return nil, false
		}
		cur, ok = sub[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Text returns the text leaf at path.
func (t Tree) Text(path ...string) (string, bool) {
	n, ok := t.Get(path...)
	if !ok {
		return "", false
	}
	s, ok := n.(String)
	return string(s), ok
}

// Keys returns the keys of t in sorted order.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of t.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		switch n := v.(type) {
		case Tree:
			out[k] = n.Clone()
		case Bytes:
			out[k] = Bytes(bytes.Clone(n))
		default:
			out[k] = v
		}
	}
	return out
}

// Equal reports whether a and b hold the same keys and leaves.
// Nil and empty byte strings compare equal.
func Equal(a, b Tree) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !nodeEqual(av, bv) {
			return false
		}
	}
	return true
}

func nodeEqual(a, b Node) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Tree:
		bv, ok := b.(Tree)
		return ok && Equal(av, bv)
	}
	return a == nil && b == nil
}

// String renders t in wire form. It is equivalent to Encode.
func (t Tree) String() string {
	return Encode(t)
}

// reservedKey reports whether a key segment contains wire syntax.
func reservedKey(k string) bool {
	return k == "" || strings.ContainsAny(k, pathSep+pairSep+kvSep+querySep+listSep) || hasSpace(k)
}

// reservedValue reports whether a text leaf would break the wire syntax.
func reservedValue(v string) bool {
	return strings.ContainsAny(v, pairSep+querySep+listSep) || hasSpace(v)
}

func hasSpace(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
	}) >= 0
}
