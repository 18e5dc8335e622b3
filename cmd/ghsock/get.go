package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ghsock/internal/logging"
	"github.com/fyrsmithlabs/ghsock/pkg/channel"
	"github.com/fyrsmithlabs/ghsock/pkg/sock"
	"github.com/fyrsmithlabs/ghsock/pkg/tree"
)

func newGetCmd(configPath *string) *cobra.Command {
	var op, tag string
	var timeout time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get --tag TAG [--op OP] [--timeout D]",
		Short: "Wait for one command from the configured source",
		Long: `Poll the configured source until the command arrives, then print its tree.

Polling is paced against the provider's rate window. Cache validators are
kept in channel.persist_file between runs when it is set.

Examples:
  # Wait for noop__name and print its wire text
  ghsock get --tag name

  # Give up after five minutes and print JSON
  ghsock get --op 3b0f6ad2c1e94f0e8a7d5c4b3a291807 --tag reply --timeout 5m --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateSlot(op, tag); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			seek, err := a.seeker(ctx)
			if err != nil {
				return err
			}
			opts, err := a.channelOptions()
			if err != nil {
				return err
			}
			persistPath := a.cfg.Channel.PersistFile
			persist, err := loadPersist(persistPath)
			if err != nil {
				return err
			}

			stopMetrics := a.serveMetrics(ctx)
			defer stopMetrics()

			opts = append(opts, channel.WithSeeker(seek), channel.WithPersist(persist))
			client := sock.NewClient(channel.NewClient(ctx, opts...))

			key := sock.Key(op, tag)
			waitCtx := logging.WithCommand(ctx, key)
			if op != "" {
				waitCtx = logging.WithOpID(waitCtx, op)
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
				defer cancel()
			}

			start := time.Now()
			t, getErr := client.Get(waitCtx, op, tag)
			final := client.Quit()
			if err := savePersist(persistPath, final); err != nil {
				a.logger.Warn(ctx, "failed to save persist file", zap.String("path", persistPath), zap.Error(err))
			}
			if getErr != nil {
				return fmt.Errorf("get %s: %w", key, getErr)
			}
			a.logger.Info(waitCtx, "command received", zap.Duration("waited", time.Since(start)))

			return printTree(cmd, t, asJSON)
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "operation id (empty means no operation)")
	cmd.Flags().StringVar(&tag, "tag", "", "command tag (required)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits until interrupted)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the tree as JSON")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func printTree(cmd *cobra.Command, t tree.Tree, asJSON bool) error {
	out := cmd.OutOrStdout()
	if !asJSON {
		_, err := fmt.Fprintln(out, tree.Encode(t))
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(treeJSON(t))
}
