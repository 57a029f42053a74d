package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/browser"
	"github.com/roach88/stepwise/internal/config"
	"github.com/roach88/stepwise/internal/engine"
	"github.com/roach88/stepwise/internal/metrics"
	"github.com/roach88/stepwise/internal/report"
	"github.com/roach88/stepwise/internal/scenario"
	"github.com/roach88/stepwise/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter scenario.Filter

	BaseURL     string
	Parallelism int
	Preflight   bool
	JSONPath    string
	JUnitPath   string
	MetricsPath string
	HistoryDB   string
	NoHistory   bool

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator

	// Clock allows overriding the wall clock (for testing).
	Clock engine.Clock

	// UIFactory allows overriding browser start-up (for testing).
	// If nil, browsers are started with chromedp from the browser config.
	UIFactory engine.UIFactory
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run scenarios against the target system",
		Long: `Run every selected scenario against the configured target and report the
results. Paths may be scenario files or directories (default: ./scenarios).

Exit status is 0 when every scenario passed, 1 when any failed, and 2 when
the configuration or a scenario file is invalid (nothing is run then).

Example:
  stepwise run --base-url http://localhost:3000
  stepwise run scenarios/rfps --tag api --parallelism 4
  stepwise run --run '^portal_login$' --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, scenarioPaths(args), cmd)
		},
	}

	addFilterFlags(cmd, &opts.Filter)
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "target base URL (overrides config)")
	cmd.Flags().IntVarP(&opts.Parallelism, "parallelism", "p", 0, "scenarios run at once (overrides config)")
	cmd.Flags().BoolVar(&opts.Preflight, "preflight", false, "probe the target once before running (overrides config)")
	cmd.Flags().StringVar(&opts.JSONPath, "report-json", "", "write the JSON report to this file")
	cmd.Flags().StringVar(&opts.JUnitPath, "report-junit", "", "write a JUnit XML report to this file")
	cmd.Flags().StringVar(&opts.MetricsPath, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&opts.HistoryDB, "history-db", "", "run history database (overrides config)")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "do not record this run in the history database")

	return cmd
}

// applyFlags overlays explicitly set flags on the loaded config.
func (opts *RunOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = opts.BaseURL
	}
	if flags.Changed("parallelism") {
		cfg.Parallelism = opts.Parallelism
	}
	if flags.Changed("preflight") {
		cfg.Preflight = opts.Preflight
	}
	if flags.Changed("report-json") {
		cfg.Report.JSONPath = opts.JSONPath
	}
	if flags.Changed("report-junit") {
		cfg.Report.JUnitPath = opts.JUnitPath
	}
	if flags.Changed("metrics-file") {
		cfg.Report.MetricsPath = opts.MetricsPath
	}
	if flags.Changed("history-db") {
		cfg.History.DBPath = opts.HistoryDB
	}
	if opts.NoHistory {
		cfg.History.DBPath = ""
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return nil
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	formatter := newFormatter(cmd, opts.RootOptions)

	cfg, err := readConfig(opts.RootOptions)
	if err == nil {
		err = opts.applyFlags(cmd, cfg)
	}
	if err != nil {
		return failWith(formatter, ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}

	scenarios, err := loadScenarios(formatter, paths, &opts.Filter)
	if err != nil {
		return err
	}

	idGen := opts.IDGenerator
	if idGen == nil {
		idGen = engine.UUIDv7Generator{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = engine.SystemClock{}
	}
	uiFactory := opts.UIFactory
	if uiFactory == nil {
		uiFactory = browserFactory(cfg.Browser, logger)
	}

	// Interrupt cancels in-flight steps; the partial report is still written.
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := engine.New(engine.Options{
		BaseURL:     cfg.BaseURL,
		Parallelism: cfg.Parallelism,
		Defaults:    cfg.Defaults(),
		Vars:        cfg.Vars,
		Preflight:   cfg.Preflight,
	},
		engine.WithClock(clock),
		engine.WithLogger(logger),
		engine.WithUIFactory(uiFactory),
	)

	runID := idGen.Generate()
	logger.Info("run starting", "run_id", runID, "scenarios", len(scenarios), "parallelism", cfg.Parallelism, "base_url", cfg.BaseURL)
	startedAt := clock.Now()
	results := runner.RunAll(ctx, scenarios)
	finishedAt := clock.Now()

	rep, err := report.New(runID, startedAt, finishedAt, results)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build report", err)
	}

	if err := renderReport(opts, paths, cmd, rep); err != nil {
		return WrapExitError(ExitCommandError, "failed to write report", err)
	}
	if err := writeArtifacts(cfg, rep, results); err != nil {
		return failWith(formatter, ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
	}
	recordHistory(ctx, cfg, rep, logger)

	logger.Info("run finished", "run_id", runID, "passed", rep.Passed, "failed", rep.Failed)
	if !rep.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", rep.Failed, rep.Total))
	}
	return nil
}

func renderReport(opts *RunOptions, paths []string, cmd *cobra.Command, rep *report.Report) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return report.WriteJSON(out, rep)
	}

	rerun := []string{"stepwise", "run"}
	if opts.ConfigPath != "" {
		rerun = append(rerun, "--config", opts.ConfigPath)
	}
	rerun = append(rerun, paths...)

	return report.WriteText(out, rep, report.TextOptions{
		Color: !opts.NoColor && !color.NoColor && out == os.Stdout,
		Rerun: rerun,
	})
}

// writeArtifacts writes the report files and metrics named in the config.
func writeArtifacts(cfg *config.Config, rep *report.Report, results []*scenario.Result) error {
	if path := cfg.Report.JSONPath; path != "" {
		if err := report.WriteFile(path, rep, report.WriteJSON); err != nil {
			return err
		}
	}
	if path := cfg.Report.JUnitPath; path != "" {
		if err := report.WriteFile(path, rep, report.WriteJUnit); err != nil {
			return err
		}
	}
	if path := cfg.Report.MetricsPath; path != "" {
		rec, err := metrics.New()
		if err != nil {
			return err
		}
		rec.ObserveRun(results)
		if err := rec.WriteTextfile(path); err != nil {
			return err
		}
	}
	return nil
}

// recordHistory stores the run. History is best effort: a failure is
// logged and never changes the exit status.
func recordHistory(ctx context.Context, cfg *config.Config, rep *report.Report, logger *slog.Logger) {
	if cfg.History.DBPath == "" {
		return
	}
	st, err := store.Open(cfg.History.DBPath)
	if err != nil {
		logger.Warn("run history unavailable", "path", cfg.History.DBPath, "error", err)
		return
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing history database", "error", closeErr)
		}
	}()
	// The run is recorded even when it was interrupted.
	if err := st.WriteRun(context.WithoutCancel(ctx), rep, cfg.BaseURL); err != nil {
		logger.Warn("failed to record run history", "error", err)
		return
	}
	logger.Debug("run recorded", "path", cfg.History.DBPath, "run_id", rep.RunID)
}

// browserFactory starts one chromedp browser per session.
func browserFactory(cfg config.Browser, logger *slog.Logger) engine.UIFactory {
	width, height := cfg.WindowDimensions()
	opts := browser.Options{
		Headless:     cfg.Headless,
		RemoteURL:    cfg.RemoteURL,
		ExecPath:     cfg.ExecPath,
		WindowWidth:  width,
		WindowHeight: height,
		Args:         cfg.Args,
		StartTimeout: cfg.StartTimeout(),
		Logger:       logger,
	}
	return func(ctx context.Context) (engine.UISession, error) {
		d, err := browser.Start(ctx, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
