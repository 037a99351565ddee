// Package cli is the snippethost command line: a thin cobra layer over the
// parser registry.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	domainerrors "snippethost/internal/core/errors"
	"snippethost/internal/engine/registry"

	"github.com/spf13/cobra"
)

const versionString = "0.1.0"
const defaultConfigPath = "snippethost.toml"

const (
	exitOK           = 0
	exitError        = 1
	exitParseFailure = 2
)

// Run executes the command line in args and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, registryOpts ...registry.Option) int {
	rt := &runtime{stdout: stdout, stderr: stderr, registryOpts: registryOpts}
	defer rt.close()

	root := newRootCmd(rt)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, "error:", err)
	if domainerrors.IsCode(err, domainerrors.CodeParseFailure) {
		return exitParseFailure
	}
	return exitError
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "snippethost",
		Short:         "Load native scope parsers and run them over files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rt.cleanupLogs = configureLogging(rt.stderr, rt.verbose)
		},
	}

	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", defaultConfigPath, "path to config file")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newLoadCmd(rt))
	root.AddCommand(newAddParserCmd(rt))
	root.AddCommand(newParseCmd(rt))
	root.AddCommand(newListCmd(rt))
	root.AddCommand(newResolveCmd(rt))
	root.AddCommand(newVerifyCmd(rt))
	root.AddCommand(newHistoryCmd(rt))
	root.AddCommand(newWatchCmd(rt))
	root.AddCommand(newServeCmd(rt))
	root.AddCommand(newVersionCmd(rt))

	return root
}
