package service

import (
	"context"

	"github.com/roach88/liftlog/internal/cascade"
	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/events"
)

// PlanService builds and removes training plans.
type PlanService struct {
	d Deps
}

// NewPlanService creates a PlanService.
func NewPlanService(d Deps) *PlanService {
	return &PlanService{d: d.withDefaults()}
}

// Create adds an empty plan to a profile. Sessions are added with AddSession.
func (s *PlanService) Create(ctx context.Context, profileID, name, description string) (domain.Plan, error) {
	var plan domain.Plan
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.d.Repos.Profiles.FindByID(ctx, profileID); err != nil {
			return err
		}

		p, err := domain.NewPlan(s.d.IDs.Generate(), profileID, domain.PlanFields{
			Name:        name,
			Description: description,
		}, s.d.Clock.Now())
		if err != nil {
			return err
		}
		plan, err = s.d.Repos.Plans.Save(ctx, p)
		return err
	})
	if err != nil {
		return domain.Plan{}, err
	}

	s.d.dispatch(ctx, events.PlanSaved{
		PlanID:    plan.ID,
		ProfileID: plan.ProfileID,
		Created:   true,
		At:        plan.UpdatedAt,
	})
	return plan, nil
}

// AddSession appends a new session to a plan.
func (s *PlanService) AddSession(ctx context.Context, planID, name, notes string) (domain.Session, error) {
	var sess domain.Session
	var plan domain.Plan
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		plan, err = s.d.Repos.Plans.FindByID(ctx, planID)
		if err != nil {
			return err
		}

		now := s.d.Clock.Now()
		ns, err := domain.NewSession(s.d.IDs.Generate(), plan.ProfileID, domain.SessionFields{
			PlanID: plan.ID,
			Name:   name,
			Notes:  notes,
		}, now)
		if err != nil {
			return err
		}
		if sess, err = s.d.Repos.Sessions.Save(ctx, ns); err != nil {
			return err
		}

		plan.SessionIDs = append(plan.SessionIDs, sess.ID)
		plan.Touch(now)
		plan, err = s.d.Repos.Plans.Save(ctx, plan)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}

	s.d.dispatch(ctx, events.PlanSaved{
		PlanID:    plan.ID,
		ProfileID: plan.ProfileID,
		At:        plan.UpdatedAt,
	})
	return sess, nil
}

// AddGroup appends a new group to a session.
func (s *PlanService) AddGroup(ctx context.Context, sessionID string, kind domain.GroupKind, restSeconds int) (domain.Group, error) {
	var grp domain.Group
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		sess, err := s.d.Repos.Sessions.FindByID(ctx, sessionID)
		if err != nil {
			return err
		}

		now := s.d.Clock.Now()
		ng, err := domain.NewGroup(s.d.IDs.Generate(), sess.ProfileID, domain.GroupFields{
			SessionID:   sess.ID,
			Kind:        kind,
			RestSeconds: restSeconds,
		}, now)
		if err != nil {
			return err
		}
		if grp, err = s.d.Repos.Groups.Save(ctx, ng); err != nil {
			return err
		}

		sess.GroupIDs = append(sess.GroupIDs, grp.ID)
		sess.Touch(now)
		_, err = s.d.Repos.Sessions.Save(ctx, sess)
		return err
	})
	if err != nil {
		return domain.Group{}, err
	}
	return grp, nil
}

// AddExercise prescribes a catalog exercise inside a group. The catalog
// exercise must exist and belong to the same profile.
func (s *PlanService) AddExercise(ctx context.Context, groupID string, f domain.AppliedExerciseFields) (domain.AppliedExercise, error) {
	var applied domain.AppliedExercise
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		grp, err := s.d.Repos.Groups.FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		ex, err := s.d.Repos.Exercises.FindByID(ctx, f.ExerciseID)
		if err != nil {
			return err
		}
		if ex.ProfileID != grp.ProfileID {
			return domain.BusinessRule(domain.EntityAppliedExercise, "", "exercise belongs to another profile",
				map[string]string{"exerciseId": ex.ID})
		}

		now := s.d.Clock.Now()
		f.GroupID = grp.ID
		na, err := domain.NewAppliedExercise(s.d.IDs.Generate(), grp.ProfileID, f, now)
		if err != nil {
			return err
		}

		// Validate the group with the new member before writing anything.
		grp.AppliedExerciseIDs = append(grp.AppliedExerciseIDs, na.ID)
		grp.Touch(now)
		if err := grp.Validate(); err != nil {
			return err
		}

		if applied, err = s.d.Repos.AppliedExercises.Save(ctx, na); err != nil {
			return err
		}
		_, err = s.d.Repos.Groups.Save(ctx, grp)
		return err
	})
	if err != nil {
		return domain.AppliedExercise{}, err
	}
	return applied, nil
}

// Delete removes a plan, with its sessions when includeDescendants is set.
func (s *PlanService) Delete(ctx context.Context, planID string, includeDescendants bool) (cascade.Report, error) {
	plan, err := s.d.Repos.Plans.FindByID(ctx, planID)
	if err != nil {
		return cascade.Report{}, err
	}

	report, err := s.d.Cascade.Delete(ctx, cascade.Root{Type: domain.EntityPlan, ID: planID}, includeDescendants)
	if err != nil {
		return cascade.Report{}, err
	}

	s.d.dispatch(ctx, events.PlanDeleted{
		PlanID:    plan.ID,
		ProfileID: plan.ProfileID,
		Cascade:   includeDescendants,
		At:        s.d.Clock.Now(),
	})
	return report, nil
}

// DeleteSession removes a session from its plan, with its groups when
// includeDescendants is set.
func (s *PlanService) DeleteSession(ctx context.Context, sessionID string, includeDescendants bool) (cascade.Report, error) {
	sess, err := s.d.Repos.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return cascade.Report{}, err
	}

	report, err := s.d.Cascade.Delete(ctx, cascade.Root{Type: domain.EntitySession, ID: sessionID}, includeDescendants)
	if err != nil {
		return cascade.Report{}, err
	}

	s.d.dispatch(ctx, events.SessionDeleted{
		SessionID: sess.ID,
		PlanID:    sess.PlanID,
		ProfileID: sess.ProfileID,
		Cascade:   includeDescendants,
		At:        s.d.Clock.Now(),
	})
	return report, nil
}

// DeleteGroup removes a group from its session, with its applied exercises
// when includeDescendants is set.
func (s *PlanService) DeleteGroup(ctx context.Context, groupID string, includeDescendants bool) (cascade.Report, error) {
	return s.d.Cascade.Delete(ctx, cascade.Root{Type: domain.EntityGroup, ID: groupID}, includeDescendants)
}
