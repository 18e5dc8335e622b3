package tree

import (
	"encoding/base64"
	"sort"
	"strings"
)

const (
	querySep = "#"
	pairSep  = "&"
	kvSep    = "="
	pathSep  = "."
	listSep  = "/"

	bytesMarker = ":"
)

// Reserved separators, exported for the command codec.
const (
	QuerySep = querySep
	ListSep  = listSep
)

var b64 = base64.RawURLEncoding

// Encode flattens t into its wire form. An empty tree encodes as "#".
func Encode(t Tree) string {
	pairs := make([]string, 0, len(t))
	flatten(t, nil, &pairs)
	sort.Strings(pairs)
	return querySep + strings.Join(pairs, pairSep)
}

func flatten(t Tree, prefix []string, out *[]string) {
	for k, v := range t {
		path := append(prefix[:len(prefix):len(prefix)], k)
		if sub, ok := v.(Tree); ok {
			flatten(sub, path, out)
			continue
		}
		if v == nil {
			continue
		}
		*out = append(*out, strings.Join(path, pathSep)+kvSep+encodeLeaf(v))
	}
}

func encodeLeaf(n Node) string {
	switch v := n.(type) {
	case String:
		return string(v)
	case Bool:
		if v {
			return "true"
		}
		return "false"
	case Bytes:
		return bytesMarker + b64.EncodeToString(v)
	}
	return ""
}

// Decode parses the wire form produced by Encode.
func Decode(s string) (Tree, error) {
	if !strings.HasPrefix(s, querySep) {
		return nil, &SyntaxError{Input: s, Reason: "missing leading " + querySep}
	}
	pairs := make(map[string]string)
	for _, pair := range strings.Split(s[len(querySep):], pairSep) {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, kvSep)
		if k == "" {
			return nil, &SyntaxError{Input: pair, Reason: "empty key"}
		}
		pairs[k] = v
	}
	return FromPairs(pairs)
}

// FromPairs builds a tree from dotted key paths to raw leaf values. Leaves
// are interpreted exactly as Decode interprets them. Shallow paths are placed
// before deep ones so a path that conflicts with an existing leaf or subtree
// is reported rather than overwritten.
func FromPairs(pairs map[string]string) (Tree, error) {
	type entry struct {
		key  string
		path []string
	}
	entries := make([]entry, 0, len(pairs))
	for k := range pairs {
		entries = append(entries, entry{key: k, path: strings.Split(k, pathSep)})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].path) != len(entries[j].path) {
			return len(entries[i].path) < len(entries[j].path)
		}
		return entries[i].key < entries[j].key
	})

	out := Tree{}
	for _, e := range entries {
		if err := insert(out, e.path, decodeLeaf(pairs[e.key])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func insert(root Tree, path []string, leaf Node) error {
	node := root
	for i, seg := range path {
		if seg == "" {
			return &SyntaxError{Input: strings.Join(path, pathSep), Reason: "empty path segment"}
		}
		if i == len(path)-1 {
			if _, isTree := node[seg].(Tree); isTree {
				return &SyntaxError{Input: strings.Join(path, pathSep), Reason: "leaf replaces subtree"}
			}
			node[seg] = leaf
			return nil
		}
		switch next := node[seg].(type) {
		case nil:
			sub := Tree{}
			node[seg] = sub
			node = sub
		case Tree:
			node = next
		default:
			return &SyntaxError{Input: strings.Join(path, pathSep), Reason: "subtree replaces leaf"}
		}
	}
	return nil
}

func decodeLeaf(v string) Node {
	if strings.HasPrefix(v, bytesMarker) {
		if raw, ok := decodeBytes(v[len(bytesMarker):]); ok {
			return raw
		}
	}
	switch v {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return String(v)
}

// ambiguousText reports whether a text leaf would decode as a different kind.
func ambiguousText(v string) bool {
	_, ok := decodeLeaf(v).(String)
	return !ok
}

// decodeBytes accepts base64url with or without padding. Text that merely
// starts with the marker falls through as a string.
func decodeBytes(s string) (Bytes, bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		ok := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '='
		if !ok {
			return nil, false
		}
	}
	raw, err := b64.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, false
	}
	return Bytes(raw), true
}
