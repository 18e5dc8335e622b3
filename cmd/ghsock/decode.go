package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/ghsock/pkg/command"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode WIRE",
		Short: "Print wire text as JSON",
		Long: `Decode a command list, or a bare tree starting with '#', and print it as JSON.
Byte leaves are printed as standard base64.

Examples:
  ghsock decode 'op__reply#ok=true&data.ev=:ACCD/noop__name#foo=bar'
  ghsock decode '#a.b=1'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wire := strings.TrimSpace(args[0])

			var v any
			if strings.HasPrefix(wire, "#") {
				t, err := tree.Decode(wire)
				if err != nil {
					return fmt.Errorf("decode tree: %w", err)
				}
				v = treeJSON(t)
			} else {
				list, err := command.ParseList(wire)
				if err != nil {
					return fmt.Errorf("decode list: %w", err)
				}
				v = listJSON(list)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}

type commandJSON struct {
	Command string         `json:"command"`
	Tree    map[string]any `json:"tree"`
}

func listJSON(list command.List) []commandJSON {
	out := make([]commandJSON, 0, len(list))
	for _, ct := range list {
		out = append(out, commandJSON{Command: ct.Command, Tree: treeJSON(ct.Tree)})
	}
	return out
}

// treeJSON converts a tree to JSON-ready values. Bytes marshal as base64.
func treeJSON(t tree.Tree) map[string]any {
	out := make(map[string]any, len(t))
	for k, n := range t {
		switch v := n.(type) {
		case tree.String:
			out[k] = string(v)
		case tree.Bool:
			out[k] = bool(v)
		case tree.Bytes:
			out[k] = []byte(v)
		case tree.Tree:
			out[k] = treeJSON(v)
		}
	}
	return out
}
