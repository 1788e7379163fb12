package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/liftlog/internal/app"
	"github.com/roach88/liftlog/internal/cascade"
)

// DeleteResult is the data payload of a successful delete.
type DeleteResult struct {
	cascade.Report
}

func (r DeleteResult) String() string {
	if !r.Cascade {
		return fmt.Sprintf("✓ Deleted %s", r.Root)
	}
	return fmt.Sprintf("✓ Deleted %s and its descendants: %d plans, %d sessions, %d groups, %d applied exercises",
		r.Root, r.Plans, r.Sessions, r.Groups, r.AppliedExercises)
}

type deleteOptions struct {
	plan    string
	session string
	group   string
	cascade bool
}

// target returns the delete to run for the selected flag.
func (o *deleteOptions) target(a *app.App) func(context.Context) (cascade.Report, error) {
	switch {
	case o.plan != "":
		return func(ctx context.Context) (cascade.Report, error) { return a.Plans.Delete(ctx, o.plan, o.cascade) }
	case o.session != "":
		return func(ctx context.Context) (cascade.Report, error) {
			return a.Plans.DeleteSession(ctx, o.session, o.cascade)
		}
	default:
		return func(ctx context.Context) (cascade.Report, error) { return a.Plans.DeleteGroup(ctx, o.group, o.cascade) }
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete (--plan ID | --session ID | --group ID)",
		Short: "Delete a plan, session or group",
		Long: `Delete one record of a plan tree.

With --cascade every descendant is removed in the same transaction,
deepest first. Without it only the record itself is removed and its
descendants are left in place. A deleted session or group is also
removed from its parent's ordered list.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.plan, "plan", "", "plan ID")
	cmd.Flags().StringVar(&opts.session, "session", "", "session ID")
	cmd.Flags().StringVar(&opts.group, "group", "", "group ID")
	cmd.Flags().BoolVar(&opts.cascade, "cascade", false, "also delete every descendant")
	cmd.MarkFlagsMutuallyExclusive("plan", "session", "group")
	cmd.MarkFlagsOneRequired("plan", "session", "group")

	return cmd
}

func runDelete(rootOpts *RootOptions, opts *deleteOptions, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	a, err := openApp(rootOpts, cmd, f)
	if err != nil {
		return err
	}
	defer closeApp(a, cmd.ErrOrStderr())

	report, err := opts.target(a)(cmd.Context())
	if err != nil {
		return f.Fail("delete failed", err)
	}
	f.VerboseLog("Removed %d records", report.Total())

	return f.Success(DeleteResult{Report: report})
}
