package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nellyag1/wavescape-portal222/internal/cli"
	"github.com/nellyag1/wavescape-portal222/internal/exitcode"
	"github.com/nellyag1/wavescape-portal222/internal/logging"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout))
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) int {
	return execute(ctx, newApp(in, out), args)
}

func execute(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		logging.Error(err.Error())
		return exitcode.FromError(err)
	}
	return exitcode.Success
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:     "wavescape",
		Short:   "WaveScape session orchestration client",
		Long:    "wavescape creates WaveScape analysis sessions, starts their pipeline stages and keeps their status up to date.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	// Bind the global flags to the config
	cli.BindFlags(root, a.cfg)

	// Set custom help template
	cli.SetCustomHelp(root)

	root.AddCommand(
		newListCmd(a),
		newShowCmd(a),
		newLogsCmd(a),
		newSitesCmd(a),
		newWatchCmd(a),
		newCreateCmd(a),
		newConfigureCmd(a),
		newImportSitesCmd(a),
		newUpdateSitesCmd(a),
		newValidateCmd(a),
		newRunCmd(a),
		newIterateCmd(a),
		newStopCmd(a),
		newMockServerCmd(a),
	)
	return root
}
