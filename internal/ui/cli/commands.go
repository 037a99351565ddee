package cli

import (
	"fmt"
	"strings"

	coreapp "snippethost/internal/core/app"
	"snippethost/internal/ui/report"

	"github.com/spf13/cobra"
)

func newLoadCmd(rt *runtime) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "load <library>",
		Short: "Load a parser library and print its registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := a.Host.GetOrLoadLibrary(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.stdout, "%s\t%s\n", entry.Path(), entry.Description())
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "description stored with a newly loaded library")
	return cmd
}

func newAddParserCmd(rt *runtime) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add-parser <library> <symbol>",
		Short: "Resolve a parser export, loading its library if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			binding, err := a.Host.GetOrAddParser(cmd.Context(), args[0], args[1], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.stdout, "%s\t%s\t%s\n", binding.Library().Path(), binding.Name(), binding.Description())
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "description stored with a newly resolved parser")
	return cmd
}

func newParseCmd(rt *runtime) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "parse <library> <symbol> <file>",
		Short: "Run a parser over a file and print its scopes",
		Long: `Run a parser over a file and print its scopes.

The library and parser are loaded on first use. Exit status is 2 when the
parser itself reports a failure and 1 for any other error.

Examples:
  snippethost parse libjson_scopes parse_json testdata/a.json
  snippethost parse ./lib/libyaml.so parse_yaml config.yaml --format yaml`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(outputFormat)
			if err != nil {
				return err
			}
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			result, err := a.ParseFile(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return report.WriteParseResult(rt.stdout, format, result)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", string(report.FormatJSON), "output format: json or yaml")
	return cmd
}

func newListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List preloaded libraries and their parsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(rt.stdout, report.RenderLibraries(a.Host.Libraries()))
			return nil
		},
	}
}

func newResolveCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <library>",
		Short: "Print the canonical path a library identifier resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			path, err := a.Host.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(rt.stdout, path)
			return nil
		},
	}
}

func newVerifyCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check plugin artifacts against the manifest checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rt.config()
			if err != nil {
				return err
			}
			issues, err := coreapp.VerifyPlugins(cfg.Registry.ManifestPath)
			if err != nil {
				return fmt.Errorf("plugin verification: %w", err)
			}
			if len(issues) == 0 {
				fmt.Fprintln(rt.stdout, "Plugin verification passed: all artifacts match manifest checksums and allowed ABI versions.")
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(rt.stdout, "%s: %s\n", issue.ArtifactPath, issue.Reason)
			}
			return fmt.Errorf("plugin verification failed: %d issues detected", len(issues))
		},
	}
}

func newHistoryCmd(rt *runtime) *cobra.Command {
	var limit int
	var tsv bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent parse runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			if a.History == nil {
				return fmt.Errorf("parse history is disabled (history.enabled=false)")
			}
			runs, err := a.History.Recent(limit)
			if err != nil {
				return err
			}
			if tsv {
				fmt.Fprint(rt.stdout, report.HistoryTSV(runs))
				return nil
			}
			fmt.Fprint(rt.stdout, report.RenderHistory(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&tsv, "tsv", false, "print tab-separated values")
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <library> <symbol> <path...>",
		Short: "Re-run a parser whenever watched files change",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			return a.Watch(cmd.Context(), args[0], args[1], args[2:], func(result coreapp.ParseResult, err error) {
				if err != nil {
					fmt.Fprintf(rt.stderr, "%s: %v\n", result.Input, err)
					return
				}
				fmt.Fprintf(rt.stdout, "%s: %d scopes in %s\n", result.Input, len(result.Scopes), result.Duration)
			})
		},
	}
}

func newServeCmd(rt *runtime) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /metrics and /health until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.open(cmd.Context())
			if err != nil {
				return err
			}
			if strings.TrimSpace(addr) == "" {
				addr = a.Config.Observability.Address
			}
			server := NewObservabilityServer(addr, coreapp.NewHealthService(a))
			if err := server.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()

			ctx, cancel := shutdownContext()
			defer cancel()
			return server.Stop(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to observability.address)")
	return cmd
}

func newVersionCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(rt.stdout, "snippethost v%s\n", versionString)
		},
	}
}
