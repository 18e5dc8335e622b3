// Package command addresses trees by command name and converts batches of
// them to and from the single text blob a backing store holds.
//
// A token is the command followed by its encoded tree, and a batch joins
// tokens with "/":
//
//	noop__name#foo=bar/op1__reply#data.ev=:ACID
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

// Separator joins the prefix and tag of a command name.
const Separator = "__"

// NoOp is the prefix used when a command has no operation id.
const NoOp = "noop"

// ErrFormat indicates malformed wire text.
var ErrFormat = errors.New("malformed command text")

// FormatError describes a token that could not be parsed.
type FormatError struct {
	Token string
	Err   error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", ErrFormat, e.Token, e.Err)
	}
	return fmt.Sprintf("%s %q", ErrFormat, e.Token)
}

// Unwrap supports errors.Is(err, ErrFormat) and errors.As for the cause.
func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrFormat, e.Err}
	}
	return []error{ErrFormat}
}

// Tree pairs a command name with its payload.
type Tree struct {
	Command string
	Tree    tree.Tree
}

// List is an ordered batch of commands, in wire order.
type List []Tree

// Key builds a command name from a prefix and tag. An empty prefix becomes
// NoOp.
func Key(prefix, tag string) string {
	if prefix == "" {
		prefix = NoOp
	}
	return prefix + Separator + tag
}

// Split separates a command name into its prefix and tag at the last
// separator. Prefixes may themselves contain the separator to encode a scope.
func Split(command string) (prefix, tag string, ok bool) {
	i := strings.LastIndex(command, Separator)
	if i < 0 {
		return "", command, false
	}
	return command[:i], command[i+len(Separator):], true
}

// ParseOne parses a single token. The command is everything before the first
// "#" and must not be empty.
func ParseOne(token string) (Tree, error) {
	i := strings.Index(token, tree.QuerySep)
	if i <= 0 {
		return Tree{}, &FormatError{Token: token}
	}
	t, err := tree.Decode(token[i:])
	if err != nil {
		return Tree{}, &FormatError{Token: token, Err: err}
	}
	return Tree{Command: token[:i], Tree: t}, nil
}

// ParseList parses a batch. Only the first whitespace-separated field of
// text is read, so a store body may carry trailing prose. Empty input yields
// an empty list.
func ParseList(text string) (List, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return List{}, nil
	}
	tokens := strings.Split(fields[0], tree.ListSep)
	out := make(List, 0, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		ct, err := ParseOne(token)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// FormatOne renders a single token.
func FormatOne(ct Tree) string {
	return ct.Command + tree.Encode(ct.Tree)
}

// Format renders a batch in list order.
func Format(list List) string {
	tokens := make([]string, len(list))
	for i, ct := range list {
		tokens[i] = FormatOne(ct)
	}
	return strings.Join(tokens, tree.ListSep)
}

// Concat returns a new list holding the entries of each list in order.
func Concat(lists ...List) List {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make(List, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Index maps each command to its tree. Later entries win.
func (l List) Index() map[string]tree.Tree {
	out := make(map[string]tree.Tree, len(l))
	for _, ct := range l {
		out[ct.Command] = ct.Tree
	}
	return out
}

// Commands returns the command names in list order.
func (l List) Commands() []string {
	out := make([]string, len(l))
	for i, ct := range l {
		out[i] = ct.Command
	}
	return out
}

// Validate checks that every entry would survive a Format/ParseList round trip.
func (l List) Validate() error {
	for _, ct := range l {
		if ct.Command == "" || strings.ContainsAny(ct.Command, tree.QuerySep+tree.ListSep) || strings.ContainsAny(ct.Command, " \t\r\n") {
			return &FormatError{Token: ct.Command, Err: errors.New("invalid command name")}
		}
		if err := tree.Validate(ct.Tree); err != nil {
			return &FormatError{Token: ct.Command, Err: err}
		}
	}
	return nil
}
