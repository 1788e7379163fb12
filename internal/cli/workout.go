package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/liftlog/internal/domain"
)

// WorkoutResult is the data payload of the workout commands.
type WorkoutResult struct {
	LogID      string    `json:"logId"`
	PlanID     string    `json:"planId"`
	SessionID  string    `json:"sessionId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

func workoutResult(w domain.WorkoutLog) WorkoutResult {
	return WorkoutResult{
		LogID:      w.ID,
		PlanID:     w.PlanID,
		SessionID:  w.SessionID,
		StartedAt:  w.StartedAt,
		FinishedAt: w.FinishedAt,
	}
}

func (r WorkoutResult) String() string {
	if r.FinishedAt.IsZero() {
		return fmt.Sprintf("✓ Started workout %s (session %s)", r.LogID, r.SessionID)
	}
	return fmt.Sprintf("✓ Finished workout %s at %s", r.LogID, r.FinishedAt.Format(time.RFC3339))
}

type startOptions struct {
	plan    string
	session string
}

// NewStartWorkoutCommand creates the start-workout command.
func NewStartWorkoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &startOptions{}

	cmd := &cobra.Command{
		Use:           "start-workout --plan ID --session ID",
		Short:         "Open a workout log for a session of a plan",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			w, err := a.Workouts.Start(cmd.Context(), opts.plan, opts.session)
			if err != nil {
				return f.Fail("start failed", err)
			}
			return f.Success(workoutResult(w))
		},
	}

	cmd.Flags().StringVar(&opts.plan, "plan", "", "plan ID")
	cmd.Flags().StringVar(&opts.session, "session", "", "session ID")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

// NewFinishWorkoutCommand creates the finish-workout command.
func NewFinishWorkoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "finish-workout <log-id>",
		Short: "Mark a workout log as finished",
		Long: `Stamp the finish time on a workout log.

Once the finish is committed the plan moves on to its next session,
wrapping to the first after the last.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			a, err := openApp(rootOpts, cmd, f)
			if err != nil {
				return err
			}
			defer closeApp(a, cmd.ErrOrStderr())

			w, err := a.Workouts.Finish(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("finish failed", err)
			}
			return f.Success(workoutResult(w))
		},
	}
}
