package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/liftlog/internal/app"
	"github.com/roach88/liftlog/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// App overrides the clock and ID generator (for testing).
	App app.Options
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the liftlog CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liftlog",
		Short: "liftlog - local-first training data",
		Long:  "Manage an on-device training log: export and import snapshots, delete plan trees, record workouts.",

		// main prints errors that commands did not report themselves.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default $"+config.PathEnv+" or "+config.DefaultPath+")")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewStartWorkoutCommand(opts))
	cmd.AddCommand(NewFinishWorkoutCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// openApp loads configuration and wires the application. Logs go to the
// command's stderr; --verbose lowers the level to debug.
func openApp(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*app.App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = f.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	a, err := app.New(cfg, cmd.ErrOrStderr(), opts.App)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return a, nil
}

// closeApp releases a and, when metrics are enabled, prints the counters
// recorded during the command to w.
func closeApp(a *app.App, w io.Writer) {
	if err := a.WriteMetrics(w); err != nil {
		a.Logger.Warn("metrics dump failed", "error", err)
	}
	if err := a.Close(); err != nil {
		a.Logger.Error("error closing database", "error", err)
	}
}
