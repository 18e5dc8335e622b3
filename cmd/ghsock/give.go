package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/sock"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

func newGiveCmd(configPath *string) *cobra.Command {
	var op, tag string
	var newOp bool

	cmd := &cobra.Command{
		Use:   "give --tag TAG [--op OP] [key=value...]",
		Short: "Send one command through the configured sink",
		Long: `Send one command through the configured sink and print its name.

Each argument is a dotted key path and a leaf value. "true" and "false" are
booleans and a leading ':' marks base64url bytes, exactly as on the wire.

Examples:
  # Send noop__name#foo=bar
  ghsock give --tag name foo=bar

  # Send a nested tree under a fresh operation id
  ghsock give --new-op --tag start repo.owner=octo repo.name=board dry=true`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if newOp {
				op = sock.NewOpID()
			}
			if err := validateSlot(op, tag); err != nil {
				return err
			}
			pairs, err := parsePairs(args)
			if err != nil {
				return err
			}
			t, err := tree.FromPairs(pairs)
			if err != nil {
				return fmt.Errorf("build tree: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			send, err := a.sender(ctx)
			if err != nil {
				return err
			}
			opts, err := a.channelOptions()
			if err != nil {
				return err
			}
			client := sock.NewClient(channel.NewClient(ctx, append(opts, channel.WithSender(send))...))
			defer client.Quit()

			key := sock.Key(op, tag)
			if op != "" {
				ctx = logging.WithOpID(ctx, op)
			}
			ctx = logging.WithCommand(ctx, key)
			if err := client.Give(ctx, op, tag, t); err != nil {
				return fmt.Errorf("give %s: %w", key, err)
			}
			a.logger.Info(ctx, "command sent", zap.String("sink", a.cfg.Sink.Kind))

			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "operation id (empty means no operation)")
	cmd.Flags().BoolVar(&newOp, "new-op", false, "generate a fresh operation id")
	cmd.Flags().StringVar(&tag, "tag", "", "command tag (required)")
	cmd.MarkFlagsMutuallyExclusive("op", "new-op")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

// parsePairs splits key=value arguments. A key may repeat; the last value
// wins, as on the wire.
func parsePairs(args []string) (map[string]string, error) {
	pairs := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q: want key=value", arg)
		}
		pairs[k] = v
	}
	return pairs, nil
}
