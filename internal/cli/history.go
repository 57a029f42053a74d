package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Unstable bool
	RunID    string
}

// ScenarioHistory is the JSON payload of `history <scenario>`.
type ScenarioHistory struct {
	Scenario string                 `json:"scenario"`
	Unstable bool                   `json:"unstable"`
	Results  []store.ScenarioRecord `json:"results"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [scenario]",
		Short: "Show recorded runs",
		Long: `Show the run history recorded by "stepwise run".

Without arguments the most recent runs are listed. With a scenario name its
recent results are listed, and the scenario is marked unstable when its two
latest results differ in their sequence of step statuses.

Example:
  stepwise history
  stepwise history create_then_fetch_rfp --limit 5
  stepwise history --unstable
  stepwise history --show <run-id> --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "history database (default from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries to show (0 = all)")
	cmd.Flags().BoolVar(&opts.Unstable, "unstable", false, "list scenarios whose latest two results differ")
	cmd.Flags().StringVar(&opts.RunID, "show", "", "show every result of one run")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := readConfig(opts.RootOptions)
		if err != nil {
			return failWith(formatter, ExitCommandError, ErrCodeConfig, err.Error(), nil)
		}
		dbPath = cfg.History.DBPath
	}
	if dbPath == "" {
		return failWith(formatter, ExitCommandError, ErrCodeHistory, "no history database configured", nil)
	}
	if _, err := os.Stat(dbPath); err != nil {
		return failWith(formatter, ExitCommandError, ErrCodeHistory, fmt.Sprintf("history database not found: %s", dbPath), nil)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return failWith(formatter, ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}
	defer st.Close()

	ctx := cmd.Context()
	switch {
	case opts.RunID != "":
		return showRun(ctx, st, opts, formatter, cmd)
	case opts.Unstable:
		names, err := st.UnstableScenarios(ctx)
		if err != nil {
			return failWith(formatter, ExitCommandError, ErrCodeHistory, err.Error(), nil)
		}
		if opts.Format == "json" {
			return formatter.Success(names)
		}
		if len(names) == 0 {
			return formatter.Success("No unstable scenarios.")
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	case len(args) == 1:
		return showScenario(ctx, st, args[0], opts, formatter, cmd)
	default:
		return listRuns(ctx, st, opts, formatter, cmd)
	}
}

func listRuns(ctx context.Context, st *store.Store, opts *HistoryOptions, f *OutputFormatter, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}
	if opts.Format == "json" {
		return f.Success(runs)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tPASSED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Passed, r.Total, r.Failed)
	}
	return tw.Flush()
}

func showScenario(ctx context.Context, st *store.Store, name string, opts *HistoryOptions, f *OutputFormatter, cmd *cobra.Command) error {
	history, err := st.ScenarioHistory(ctx, name, opts.Limit)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}
	if len(history) == 0 {
		return failWith(f, ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no recorded results for scenario %q", name), nil)
	}

	unstable := store.Unstable(history)
	if opts.Format == "json" {
		return f.Success(ScenarioHistory{Scenario: name, Unstable: unstable, Results: history})
	}

	out := cmd.OutOrStdout()
	if unstable {
		fmt.Fprintf(out, "%s: UNSTABLE (latest two results differ)\n", name)
	} else {
		fmt.Fprintf(out, "%s\n", name)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tDURATION\tFINGERPRINT")
	for _, h := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%dms\t%s\n",
			h.RunID, h.StartedAt.Local().Format(time.DateTime), h.Status, h.DurationMs, shortFingerprint(h.Fingerprint))
	}
	return tw.Flush()
}

func showRun(ctx context.Context, st *store.Store, opts *HistoryOptions, f *OutputFormatter, cmd *cobra.Command) error {
	rec, results, err := st.LoadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		return failWith(f, ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeHistory, err.Error(), nil)
	}

	if opts.Format == "json" {
		return f.Success(map[string]any{"run": rec, "scenarios": results})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s: %d/%d scenarios passed\n", rec.ID, rec.Passed, rec.Total)
	for _, r := range results {
		label := "PASS"
		if !r.Passed() {
			label = "FAIL"
		}
		fmt.Fprintf(out, "%s  %s\n", label, r.Scenario)
		for _, o := range r.Failures() {
			fmt.Fprintf(out, "      %s\n", o)
		}
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
