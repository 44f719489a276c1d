package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/sweepgrid/internal/app"
	"github.com/specialistvlad/sweepgrid/internal/config"
	"github.com/spf13/cobra"
)

const program = "sweepgrid"

// flags are bound to one command tree.
type flags struct {
	logLevel  string
	logFormat string
	logFile   string
	ledger    string
	json      bool

	sweeps          []string
	only            []string
	rerunFailed     string
	tracking        string
	devices         []int
	root            string
	deviceCount     int
	timeout         string
	parallelDevices bool
	healthPort      int

	limit int
}

// NewRootCommand builds the sweepgrid command tree. Reports go to outW, logs
// to errW. opts are passed to every App the commands create.
func NewRootCommand(outW, errW io.Writer, opts ...app.Option) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   program,
		Short: "Run hyperparameter sweeps of an external training program",
		Long: `sweepgrid expands a declarative grid of hyperparameters and a named
training protocol into reproducible Trainer invocations, runs them one by
one (or one worker per device) and reports what succeeded and what failed.`,
		Args:          usageArgs(cobra.NoArgs),
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&f.logLevel, "log-level", "info", "Logging level: debug, info, warn or error.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format: text or json.")
	pf.StringVar(&f.logFile, "log-file", "", "Also write logs to this file, rotated by size.")
	pf.StringVar(&f.ledger, "ledger", app.DefaultLedgerPath, "SQLite ledger of run results. Empty disables recording.")
	pf.BoolVar(&f.json, "json", false, "Print machine-readable JSON instead of text.")

	runCmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Plan and dispatch every run of the selected sweeps",
		Example: `  sweepgrid run sweeps/pacs.hcl
  sweepgrid run sweeps/ --sweep pacs_c --devices 0,1 --tracking offline
  sweepgrid run sweeps/ --rerun-failed 6f1c...`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, args, outW, errW, opts, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
	planCmd := &cobra.Command{
		Use:   "plan <path>...",
		Short: "Print the command line and environment of every run without dispatching",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, args, outW, errW, opts, func(ctx context.Context, a *app.App) error {
				return a.Plan(ctx)
			})
		},
	}
	for _, c := range []*cobra.Command{runCmd, planCmd} {
		fl := c.Flags()
		fl.StringSliceVar(&f.sweeps, "sweep", nil, "Only plan the named sweeps (repeatable, comma separated).")
		fl.StringSliceVar(&f.only, "only", nil, "Only dispatch the named runs (comma separated).")
		fl.StringVar(&f.rerunFailed, "rerun-failed", "", "Relaunch the failed runs of a recorded sweep id.")
		fl.StringVar(&f.tracking, "tracking", "", "Tracking mode: disabled, offline or online.")
		fl.IntSliceVar(&f.devices, "devices", nil, "Device indices to expose to the Trainer, e.g. 0,1.")
		fl.StringVar(&f.root, "root", "", "Dataset root, overriding the environment block.")
		fl.IntVar(&f.deviceCount, "device-count", 0, "Number of available devices, instead of probing nvidia-smi.")
		fl.StringVar(&f.timeout, "timeout", "", "Per-run time limit, e.g. 12h.")
		fl.BoolVar(&f.parallelDevices, "parallel-devices", false, "Run one worker per disjoint device set.")
		fl.IntVar(&f.healthPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	}

	historyCmd := &cobra.Command{
		Use:   "history [sweep-id]",
		Short: "List recorded sweeps, or the runs of one sweep",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sweepID := ""
			if len(args) == 1 {
				sweepID = args[0]
			}
			return withApp(cmd, f, nil, outW, errW, opts, func(ctx context.Context, a *app.App) error {
				return a.History(ctx, sweepID, f.limit)
			})
		},
	}
	historyCmd.Flags().IntVar(&f.limit, "limit", 20, "Maximum number of sweeps to list. 0 lists all.")

	root.AddCommand(runCmd, planCmd, historyCmd)
	return root
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// config translates the parsed flags into a validated app.Config.
func (f *flags) config(cmd *cobra.Command, paths []string) (*app.Config, error) {
	cfg := app.Config{
		Paths:           paths,
		Sweeps:          f.sweeps,
		Only:            f.only,
		RerunFailed:     f.rerunFailed,
		Tracking:        f.tracking,
		DatasetRoot:     f.root,
		ParallelDevices: f.parallelDevices,
		LedgerPath:      f.ledger,
		LogFormat:       f.logFormat,
		LogLevel:        f.logLevel,
		LogFile:         f.logFile,
		HealthcheckPort: f.healthPort,
		JSON:            f.json,
	}
	if fl := cmd.Flags().Lookup("devices"); fl != nil && fl.Changed {
		cfg.Devices = append([]int{}, f.devices...)
	}
	if fl := cmd.Flags().Lookup("device-count"); fl != nil && fl.Changed {
		n := f.deviceCount
		cfg.DeviceCount = &n
	}
	if f.timeout != "" {
		d, err := config.ParseDuration("timeout", f.timeout)
		if err != nil {
			return nil, err
		}
		cfg.Timeout = d
	}
	return app.NewConfig(cfg)
}

func withApp(cmd *cobra.Command, f *flags, paths []string, outW, errW io.Writer, opts []app.Option, fn func(context.Context, *app.App) error) error {
	cfg, err := f.config(cmd, paths)
	if err != nil {
		return err
	}
	slog.Debug("CLI parser finished successfully.", "command", cmd.Name())

	a := app.NewApp(outW, errW, cfg, append([]app.Option{app.WithProgram(program)}, opts...)...)
	defer a.Close()
	return fn(cmd.Context(), a)
}

// Execute runs the command line and returns nil or an *ExitError carrying
// the process exit code.
func Execute(ctx context.Context, args []string, outW, errW io.Writer, opts ...app.Option) error {
	root := NewRootCommand(outW, errW, opts...)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if _, ok := err.(*ExitError); ok {
		return err
	}
	return &ExitError{Code: ExitCode(err), Message: fmt.Sprintf("Error: %v", err)}
}
