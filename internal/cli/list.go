package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/scenario"
)

// ScenarioSummary describes one scenario in list output.
type ScenarioSummary struct {
	Name      string   `json:"name"`
	Source    string   `json:"source"`
	Steps     int      `json:"steps"`
	Tags      []string `json:"tags,omitempty"`
	NeedsUI   bool     `json:"needs_ui"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	filter := &scenario.Filter{}

	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List scenarios selected by the filters",
		Long: `List the scenarios that "stepwise run" would execute with the same paths
and filters, without running them.

Example:
  stepwise list --tag api
  stepwise list scenarios/ --run '^create_' --skip slow`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, scenarioPaths(args), filter, cmd)
		},
	}
	addFilterFlags(cmd, filter)

	return cmd
}

func runList(opts *RootOptions, paths []string, filter *scenario.Filter, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	scenarios, err := loadScenarios(formatter, paths, filter)
	if err != nil {
		return err
	}

	summaries := make([]ScenarioSummary, len(scenarios))
	for i, s := range scenarios {
		summaries[i] = ScenarioSummary{
			Name:      s.Name,
			Source:    s.Source,
			Steps:     len(s.Steps),
			Tags:      s.Tags,
			NeedsUI:   s.NeedsUI(),
			TimeoutMs: s.TimeoutMs,
		}
	}

	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTEPS\tUI\tTAGS\tSOURCE")
	for _, s := range summaries {
		ui := ""
		if s.NeedsUI {
			ui = "yes"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.Name, s.Steps, ui, strings.Join(s.Tags, ","), s.Source)
	}
	return tw.Flush()
}
