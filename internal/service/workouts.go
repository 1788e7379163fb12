package service

import (
	"context"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/events"
)

// WorkoutService records performed workouts.
type WorkoutService struct {
	d Deps
}

// NewWorkoutService creates a WorkoutService.
func NewWorkoutService(d Deps) *WorkoutService {
	return &WorkoutService{d: d.withDefaults()}
}

// Start opens a workout log for a session of a plan.
func (s *WorkoutService) Start(ctx context.Context, planID, sessionID string) (domain.WorkoutLog, error) {
	var out domain.WorkoutLog
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		plan, err := s.d.Repos.Plans.FindByID(ctx, planID)
		if err != nil {
			return err
		}
		if domain.IndexOf(plan.SessionIDs, sessionID) < 0 {
			return domain.BusinessRule(domain.EntityWorkoutLog, "", "session is not part of the plan",
				map[string]string{"sessionId": sessionID})
		}

		now := s.d.Clock.Now()
		w, err := domain.NewWorkoutLog(s.d.IDs.Generate(), plan.ProfileID, domain.WorkoutLogFields{
			PlanID:    plan.ID,
			SessionID: sessionID,
			StartedAt: now,
		}, now)
		if err != nil {
			return err
		}
		out, err = s.d.Repos.WorkoutLogs.Save(ctx, w)
		return err
	})
	return out, err
}

// Finish completes a workout and, after commit, dispatches WorkoutFinished.
func (s *WorkoutService) Finish(ctx context.Context, logID string) (domain.WorkoutLog, error) {
	var out domain.WorkoutLog
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.d.Repos.WorkoutLogs.FindByID(ctx, logID)
		if err != nil {
			return err
		}
		if w.Finished() {
			return domain.BusinessRule(domain.EntityWorkoutLog, logID, "workout already finished", nil)
		}

		now := s.d.Clock.Now()
		w.FinishedAt = now
		w.Touch(now)
		out, err = s.d.Repos.WorkoutLogs.Save(ctx, w)
		return err
	})
	if err != nil {
		return domain.WorkoutLog{}, err
	}

	s.d.dispatch(ctx, events.WorkoutFinished{
		LogID:     out.ID,
		ProfileID: out.ProfileID,
		PlanID:    out.PlanID,
		SessionID: out.SessionID,
		At:        out.FinishedAt,
	})
	return out, nil
}
