// Package tree defines the payload carried by one command: a nested mapping
// of string keys to text, boolean, byte-string or sub-tree leaves.
//
// # Wire format
//
// A tree is flattened into key paths and written as a URL-safe query:
//
//	#data.ev=:ACID&name=bar&ok=true
//
//   - `#` opens the query
//   - `&` separates key=value pairs
//   - `.` joins path segments of nested keys
//   - `:` marks a base64url (unpadded) encoded byte string
//
// Pairs are written in sorted key order so that encoding is deterministic.
// Decoding reads "true"/"false" back as Bool, and a value starting with `:`
// as Bytes only when the remainder is valid base64url; anything else stays
// text.
//
// # Building trees
//
// Tree literals work for trusted input:
//
//	t := tree.Tree{"foo": tree.String("bar")}
//
// Builder validates keys and values against the reserved syntax and reports
// duplicate keys instead of silently overwriting them:
//
//	t, err := tree.NewBuilder().
//	    String("name", "bar").
//	    Sub("data", tree.NewBuilder().Bytes("ev", raw)).
//	    Build()
package tree
