package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/liftlog/internal/merge"
	"github.com/roach88/liftlog/internal/snapshot"
)

// ImportSummary is the data payload of a successful import.
type ImportSummary struct {
	ProfileID string `json:"profileId"`
	Written   int    `json:"written"`
	Conflicts int    `json:"conflicts"`
}

func (s ImportSummary) String() string {
	return fmt.Sprintf("✓ Imported profile %s: %d records written, %d conflicts resolved", s.ProfileID, s.Written, s.Conflicts)
}

type importOptions struct {
	decisions string
	useLocal  bool
	useRemote bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <snapshot-file>",
		Short: "Merge a snapshot into the local database",
		Long: `Import a snapshot produced by export.

Records that differ from the local copy are reported as conflicts and the
import is refused until each one is settled, either with a decisions file
(--decisions) or wholesale with --use-local or --use-remote. References in
the merged result must all resolve. The snapshot is imported into the
profile it was exported from. The write is a single transaction.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.decisions, "decisions", "", "YAML file of conflict decisions")
	cmd.Flags().BoolVar(&opts.useLocal, "use-local", false, "keep local values for every conflict")
	cmd.Flags().BoolVar(&opts.useRemote, "use-remote", false, "take incoming values for every conflict")
	cmd.MarkFlagsMutuallyExclusive("decisions", "use-local", "use-remote")

	return cmd
}

func runImport(rootOpts *RootOptions, opts *importOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	snap, err := readSnapshot(f, path)
	if err != nil {
		return err
	}

	decisions, err := loadDecisions(f, opts)
	if err != nil {
		return err
	}

	profileID := snap.ProfileID
	f.VerboseLog("Importing %d records into profile %s", snap.Total(), profileID)

	a, err := openApp(rootOpts, cmd, f)
	if err != nil {
		return err
	}
	defer closeApp(a, cmd.ErrOrStderr())

	res, err := a.Importer.Import(cmd.Context(), profileID, snap, decisions)
	if err != nil {
		if open, ok := merge.UnresolvedReport(err); ok {
			return reportConflicts(f, open, a.Config.Import.MaxConflictsShown, err)
		}
		return f.Fail("import failed", err)
	}

	return f.Success(ImportSummary{
		ProfileID: profileID,
		Written:   res.Written,
		Conflicts: res.Resolved(),
	})
}

// readSnapshot reads and decodes path. Schema failures exit with
// ExitFailure; an unreadable file is a command error.
func readSnapshot(f *OutputFormatter, path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		_ = f.Error(ErrCodeReadFailed, fmt.Sprintf("cannot read %s: %v", path, err), nil)
		return nil, WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}
	snap, err := snapshot.Decode(data)
	if err != nil {
		_ = f.Error(ErrCodeInvalid, err.Error(), map[string]string{"file": path})
		return nil, WrapExitError(ExitFailure, "invalid snapshot", err)
	}
	return snap, nil
}

func loadDecisions(f *OutputFormatter, opts *importOptions) (*merge.Decisions, error) {
	switch {
	case opts.useLocal:
		return merge.AllLocal(), nil
	case opts.useRemote:
		return merge.AllRemote(), nil
	case opts.decisions != "":
		d, err := merge.LoadDecisions(opts.decisions)
		if err != nil {
			_ = f.Error(ErrCodeReadFailed, err.Error(), map[string]string{"file": opts.decisions})
			return nil, WrapExitError(ExitCommandError, "failed to load decisions", err)
		}
		return d, nil
	}
	return merge.NewDecisions(), nil
}

// reportConflicts prints the open conflicts. Text output shows at most limit
// per entity type; JSON output carries the full report.
func reportConflicts(f *OutputFormatter, open merge.Report, limit int, err error) error {
	msg := fmt.Sprintf("import blocked by %d unresolved conflicts", open.Total())

	if f.Format == "json" {
		_ = f.Error(ErrCodeConflict, msg, open)
	} else {
		var buf bytes.Buffer
		if werr := open.WriteText(&buf, limit); werr != nil {
			return WrapExitError(ExitCommandError, "failed to render conflicts", errors.Join(err, werr))
		}
		_ = f.Error(ErrCodeConflict, msg, nil)
		fmt.Fprint(f.Writer, buf.String())
		fmt.Fprintln(f.Writer, "\nSettle them with --decisions, --use-local or --use-remote.")
	}

	return WrapExitError(ExitFailure, msg, err)
}
