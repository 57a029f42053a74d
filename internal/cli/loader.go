package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/stepwise/internal/scenario"
)

// DefaultScenarioDir is searched when no paths are given.
const DefaultScenarioDir = "scenarios"

var _ pflag.Value = (*scenario.RegexList)(nil)

// addFilterFlags registers --run, --skip and --tag on cmd.
func addFilterFlags(cmd *cobra.Command, filter *scenario.Filter) {
	cmd.Flags().Var(&filter.MustMatch, "run", "regex selecting scenarios to run (repeatable)")
	cmd.Flags().Var(&filter.MustNotMatch, "skip", "regex selecting scenarios to skip (repeatable)")
	cmd.Flags().StringSliceVar(&filter.Tags, "tag", nil, "only scenarios carrying every given tag (repeatable)")
}

// scenarioPaths returns args, or the default directory when empty.
func scenarioPaths(args []string) []string {
	if len(args) == 0 {
		return []string{DefaultScenarioDir}
	}
	return args
}

// loadScenarios finds and loads every scenario under paths, then applies
// filter. Any unloadable file aborts before anything runs: a broken
// scenario is a fault outside every scenario.
func loadScenarios(f *OutputFormatter, paths []string, filter *scenario.Filter) ([]*scenario.Scenario, error) {
	files, err := scenario.FindFiles(paths)
	if err != nil {
		return nil, failWith(f, ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if len(files) == 0 {
		return nil, failWith(f, ExitCommandError, ErrCodeNoScenarios,
			fmt.Sprintf("no scenario files found in %s", strings.Join(paths, ", ")), nil)
	}
	f.VerboseLog("Found %d scenario file(s)", len(files))

	all, errs := scenario.LoadAll(paths)
	if len(errs) > 0 {
		details := make([]string, len(errs))
		for i, e := range errs {
			details[i] = e.Error()
		}
		return nil, failWith(f, ExitCommandError, ErrCodeLoadFailed,
			fmt.Sprintf("%d scenario file(s) failed to load", len(errs)), details)
	}

	if filter == nil {
		return all, nil
	}
	selected := filter.Apply(all)
	for _, line := range filter.Describe() {
		f.VerboseLog("Filter: %s", line)
	}
	if len(selected) == 0 {
		return nil, failWith(f, ExitCommandError, ErrCodeNoScenarios,
			fmt.Sprintf("no scenarios selected (%d loaded)", len(all)), filter.Describe())
	}
	return selected, nil
}
