// Package handlers holds the domain event handlers that keep derived state
// consistent after a service operation commits.
//
// Handlers run after the triggering transaction has committed, in their own
// transaction. Their failures are returned to the bus, which logs them; they
// never undo the triggering operation.
package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/events"
	"github.com/roach88/liftlog/internal/repository"
)

// PlanProgressHandler advances a plan to its next session when a workout of
// that plan is finished. The index wraps to the first session after the last.
type PlanProgressHandler struct {
	repos  *repository.Repositories
	clock  domain.Clock
	logger *slog.Logger
}

// NewPlanProgressHandler creates a PlanProgressHandler. clock and logger may
// be nil.
func NewPlanProgressHandler(repos *repository.Repositories, clock domain.Clock, logger *slog.Logger) *PlanProgressHandler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanProgressHandler{repos: repos, clock: clock, logger: logger}
}

// SetupSubscriptions implements events.Subscriber.
func (h *PlanProgressHandler) SetupSubscriptions(b *events.Bus) {
	b.Register(events.KindWorkoutFinished, h)
}

// Handle implements events.Handler.
func (h *PlanProgressHandler) Handle(ctx context.Context, ev events.Event) error {
	wf, ok := ev.(events.WorkoutFinished)
	if !ok {
		return fmt.Errorf("plan progress: unexpected event %T", ev)
	}

	return h.repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		plan, err := h.repos.Plans.FindByID(ctx, wf.PlanID)
		if domain.IsNotFound(err) {
			// History outlives plans.
			h.logger.Debug("plan progress skipped: plan gone",
				"plan_id", wf.PlanID,
				"log_id", wf.LogID,
			)
			return nil
		}
		if err != nil {
			return err
		}

		idx := domain.IndexOf(plan.SessionIDs, wf.SessionID)
		if idx < 0 {
			h.logger.Debug("plan progress skipped: session not in plan",
				"plan_id", plan.ID,
				"session_id", wf.SessionID,
			)
			return nil
		}

		plan.CurrentSessionIndex = (idx + 1) % len(plan.SessionIDs)
		plan.Touch(h.clock.Now())
		if _, err := h.repos.Plans.Save(ctx, plan); err != nil {
			return err
		}

		h.logger.Info("plan advanced",
			"plan_id", plan.ID,
			"current_session_index", plan.CurrentSessionIndex,
		)
		return nil
	})
}

// ActivePlanHandler clears a profile's active plan when that plan is deleted.
type ActivePlanHandler struct {
	repos  *repository.Repositories
	clock  domain.Clock
	logger *slog.Logger
}

// NewActivePlanHandler creates an ActivePlanHandler. clock and logger may be
// nil.
func NewActivePlanHandler(repos *repository.Repositories, clock domain.Clock, logger *slog.Logger) *ActivePlanHandler {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivePlanHandler{repos: repos, clock: clock, logger: logger}
}

// SetupSubscriptions implements events.Subscriber.
func (h *ActivePlanHandler) SetupSubscriptions(b *events.Bus) {
	b.Register(events.KindPlanDeleted, h)
}

// Handle implements events.Handler.
func (h *ActivePlanHandler) Handle(ctx context.Context, ev events.Event) error {
	pd, ok := ev.(events.PlanDeleted)
	if !ok {
		return fmt.Errorf("active plan: unexpected event %T", ev)
	}

	return h.repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		ids, err := h.repos.Profiles.IDsWithActivePlan(ctx, []string{pd.PlanID})
		if err != nil {
			return err
		}
		profiles, err := h.repos.Profiles.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		for _, p := range profiles {
			p.ActivePlanID = ""
			p.Touch(h.clock.Now())
			if _, err := h.repos.Profiles.Save(ctx, p); err != nil {
				return err
			}
			h.logger.Info("active plan cleared",
				"profile_id", p.ID,
				"plan_id", pd.PlanID,
			)
		}
		return nil
	})
}

// All returns the built-in subscribers, ready for events.Bus.Subscribe.
func All(repos *repository.Repositories, clock domain.Clock, logger *slog.Logger) []events.Subscriber {
	return []events.Subscriber{
		NewPlanProgressHandler(repos, clock, logger),
		NewActivePlanHandler(repos, clock, logger),
	}
}
