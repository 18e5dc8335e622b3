// Package main implements the ghsock CLI, which exchanges commands with a
// remote peer through GitHub.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// version information (set via ldflags)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes the CLI until the command returns or the process is
// interrupted.
func run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// newRootCmd builds the command tree. Flags live on the commands, so every
// call starts from defaults.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ghsock",
		Short: "Exchange commands with a remote peer through GitHub",
		Long: `ghsock sends and receives small command trees over GitHub.

Outbound commands go to the configured sink (environment secrets, a
repository_dispatch event or a file). Inbound commands are polled from the
configured source (the latest release, open issues, an app installation or a
file) with rate-limit aware pacing.

Configuration is read from ~/.config/ghsock/config.yaml and GHSOCK_*
environment variables.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/ghsock/config.yaml)")

	root.AddCommand(
		newGiveCmd(&configPath),
		newGetCmd(&configPath),
		newDecodeCmd(),
		newConfigCmd(&configPath),
	)
	return root
}
