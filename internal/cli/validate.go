package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/liftlog/internal/merge"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool     `json:"valid"`
	ProfileID string   `json:"profileId"`
	Records   int      `json:"records"`
	Dangling  []string `json:"dangling,omitempty"`
	Misowned  []string `json:"misowned,omitempty"`
}

func (r ValidationResult) String() string {
	return fmt.Sprintf("✓ Snapshot of profile %s is valid (%d records)", r.ProfileID, r.Records)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <snapshot-file>",
		Short: "Check a snapshot without importing it",
		Long: `Validate a snapshot file against the snapshot schema and check that
every reference inside it resolves and every plan tree record is listed
by exactly its own parent.

Does not open the database. Useful before an import.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	snap, err := readSnapshot(f, path)
	if err != nil {
		return err
	}
	f.VerboseLog("Decoded %d records of profile %s", snap.Total(), snap.ProfileID)

	result := ValidationResult{
		Valid:     true,
		ProfileID: snap.ProfileID,
		Records:   snap.Total(),
	}

	dangling := merge.FindDangling(snap)
	misowned := merge.FindMisowned(snap)
	if len(dangling) == 0 && len(misowned) == 0 {
		return f.Success(result)
	}

	result.Valid = false
	for _, d := range dangling {
		result.Dangling = append(result.Dangling, d.String())
	}
	for _, m := range misowned {
		result.Misowned = append(result.Misowned, m.String())
	}

	if f.Format == "json" {
		_ = f.Error(ErrCodeStructural, "validation failed", result)
	} else {
		fmt.Fprintf(f.Writer, "✗ Validation failed with %d dangling reference(s) and %d misowned record(s):\n",
			len(dangling), len(misowned))
		for _, d := range result.Dangling {
			fmt.Fprintf(f.Writer, "  %s\n", d)
		}
		for _, m := range result.Misowned {
			fmt.Fprintf(f.Writer, "  %s\n", m)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d dangling references, %d misowned records", len(dangling), len(misowned)))
}
