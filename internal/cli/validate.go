package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult is the JSON payload of a successful validate.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	Scenarios []string `json:"scenarios"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var checkConfig bool

	cmd := &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Validate scenario files without running them",
		Long: `Load every scenario file (YAML or CUE) under the given paths and check it
against the scenario schema. Nothing is sent to the target system.

With --config-check the configuration is loaded and validated as well.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, scenarioPaths(args), checkConfig, cmd)
		},
	}
	cmd.Flags().BoolVar(&checkConfig, "config-check", false, "also validate the configuration")

	return cmd
}

func runValidate(opts *RootOptions, paths []string, checkConfig bool, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	if checkConfig {
		if _, err := loadConfig(opts); err != nil {
			return failWith(formatter, ExitCommandError, ErrCodeConfig, err.Error(), nil)
		}
	}

	scenarios, err := loadScenarios(formatter, paths, nil)
	if err != nil {
		return err
	}

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
		formatter.VerboseLog("Validated %s (%s)", s.Name, s.Source)
	}

	if opts.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Scenarios: names})
	}
	return formatter.Success(fmt.Sprintf("✓ %d scenario(s) valid", len(scenarios)))
}
