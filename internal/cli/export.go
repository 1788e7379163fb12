package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/liftlog/internal/snapshot"
)

// ExportResult is the data payload of a successful export.
type ExportResult struct {
	ProfileID string `json:"profileId"`
	Output    string `json:"output"`
	Records   int    `json:"records"`
}

func (r ExportResult) String() string {
	return fmt.Sprintf("✓ Exported %d records of profile %s to %s", r.Records, r.ProfileID, r.Output)
}

type exportOptions struct {
	output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export <profile-id>",
		Short: "Write a snapshot of one profile",
		Long: `Export every record owned by a profile into a versioned JSON snapshot.

The snapshot is read in a single transaction. Without --output the
document is written to stdout.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")

	return cmd
}

func runExport(rootOpts *RootOptions, opts *exportOptions, profileID string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	a, err := openApp(rootOpts, cmd, f)
	if err != nil {
		return err
	}
	defer closeApp(a, cmd.ErrOrStderr())

	snap, err := snapshot.Export(cmd.Context(), a.Repos, profileID, a.Clock)
	if err != nil {
		return f.Fail("export failed", err)
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to encode snapshot", err)
	}

	if opts.output == "" {
		// The document itself is the output.
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		_ = f.Error(ErrCodeWriteFailed, fmt.Sprintf("cannot write %s: %v", opts.output, err), nil)
		return WrapExitError(ExitCommandError, "failed to write snapshot", err)
	}
	f.VerboseLog("Wrote %d bytes", len(data))

	return f.Success(ExportResult{
		ProfileID: profileID,
		Output:    opts.output,
		Records:   snap.Total(),
	})
}
