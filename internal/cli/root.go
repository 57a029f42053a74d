package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/stepwise/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string
	NoColor    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stepwise CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stepwise",
		Short: "stepwise - scenario runner for end-to-end checks",
		Long: `Run declarative test scenarios (HTTP calls, browser actions, assertions
and waits) against a live system and report which ones pass.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" if present)")
	pf.StringVar(&opts.EnvFile, "env-file", "", "dotenv file (default ./"+config.DefaultEnvFile+" if present)")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		NewRunCommand(opts),
		NewValidateCommand(opts),
		NewListCommand(opts),
		NewHistoryCommand(opts),
	)

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger builds the process logger: text on w, debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	var level slog.Level // info
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads and validates the configuration named by the global flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(configOptions(opts))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// readConfig is loadConfig without validation.
func readConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Read(configOptions(opts))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

func configOptions(opts *RootOptions) config.Options {
	return config.Options{
		Path:    opts.ConfigPath,
		EnvFile: opts.EnvFile,
	}
}
