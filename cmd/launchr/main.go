package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	c := newCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := buildRoot(c).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot wires the cobra tree onto c.
func buildRoot(c *command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}

	root := &cobra.Command{
		Use:   "launchr",
		Short: "Start helper scripts, the game, then clean up after it",
		Long: `launchr starts every helper listed in the script container, launches the
main target with high priority, waits for it to exit and then ends the helpers.

Examples:
  launchr                              # run the launch sequence
  launchr --config launchr.toml        # with a config file
  launchr config set "a.exe, b.exe"    # choose helpers
  launchr history --limit 50           # recent run events`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.Context(), RunFlags{
				ConfigPath:    globalFlags.ConfigPath,
				WorkDir:       runFlags.WorkDir,
				NoWait:        runFlags.NoWait,
				MetricsListen: runFlags.MetricsListen,
			})
		},
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.Flags().StringVar(&runFlags.WorkDir, "workdir", "", "directory holding the script container and helpers (default: current dir)")
	root.Flags().BoolVar(&runFlags.NoWait, "no-wait", false, "do not wait for a keypress before closing")
	root.Flags().StringVar(&runFlags.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address while running (e.g. :9090)")

	root.AddCommand(
		createConfigCommand(c, globalFlags),
		createHistoryCommand(c, globalFlags),
	)
	return root
}

func createConfigCommand(c *command, globalFlags *GlobalFlags) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage the script container",
	}
	flags := func() ConfigFlags { return ConfigFlags{ConfigPath: globalFlags.ConfigPath} }

	cfg.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings and the helper list",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.ConfigShow(flags())
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create an empty script container (refuses to overwrite)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.ConfigInit(flags())
			},
		},
		&cobra.Command{
			Use:   "set <script>...",
			Short: "Replace the helper list",
			Long: `Replace the helper list. Arguments are joined with ", " so both forms work:
  launchr config set a.exe b.exe
  launchr config set "a.exe, b.exe"`,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.ConfigSet(flags(), args)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Remove the script container",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.ConfigDelete(flags())
			},
		},
	)
	return cfg
}

func createHistoryCommand(c *command, globalFlags *GlobalFlags) *cobra.Command {
	historyFlags := &HistoryFlags{}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent run events from the history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(cmd.Context(), HistoryFlags{
				ConfigPath: globalFlags.ConfigPath,
				DSN:        historyFlags.DSN,
				Limit:      historyFlags.Limit,
			})
		},
	}
	cmd.Flags().StringVar(&historyFlags.DSN, "dsn", "", "history DSN (default: history.dsn from config)")
	cmd.Flags().IntVar(&historyFlags.Limit, "limit", 20, "number of events to show")
	return cmd
}
