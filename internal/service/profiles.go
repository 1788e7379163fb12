package service

import (
	"context"

	"github.com/roach88/liftlog/internal/domain"
)

// ProfileService manages profiles and their exercise catalog.
type ProfileService struct {
	d Deps
}

// NewProfileService creates a ProfileService.
func NewProfileService(d Deps) *ProfileService {
	return &ProfileService{d: d.withDefaults()}
}

// CreateProfile saves a new profile.
func (s *ProfileService) CreateProfile(ctx context.Context, name string) (domain.Profile, error) {
	p, err := domain.NewProfile(s.d.IDs.Generate(), domain.ProfileFields{Name: name}, s.d.Clock.Now())
	if err != nil {
		return domain.Profile{}, err
	}
	return s.d.Repos.Profiles.Save(ctx, p)
}

// SetActivePlan marks planID as the profile's active plan. An empty planID
// clears it.
func (s *ProfileService) SetActivePlan(ctx context.Context, profileID, planID string) (domain.Profile, error) {
	var out domain.Profile
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.d.Repos.Profiles.FindByID(ctx, profileID)
		if err != nil {
			return err
		}

		if planID != "" {
			plan, err := s.d.Repos.Plans.FindByID(ctx, planID)
			if err != nil {
				return err
			}
			if plan.ProfileID != profileID {
				return domain.BusinessRule(domain.EntityProfile, profileID, "plan belongs to another profile",
					map[string]string{"activePlanId": planID})
			}
			if plan.Archived {
				return domain.BusinessRule(domain.EntityProfile, profileID, "archived plan cannot be active",
					map[string]string{"activePlanId": planID})
			}
		}

		p.ActivePlanID = planID
		p.Touch(s.d.Clock.Now())
		out, err = s.d.Repos.Profiles.Save(ctx, p)
		return err
	})
	return out, err
}

// CreateExercise adds an entry to a profile's catalog. Names are unique per
// profile.
func (s *ProfileService) CreateExercise(ctx context.Context, profileID string, f domain.ExerciseFields) (domain.Exercise, error) {
	var out domain.Exercise
	err := s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.d.Repos.Profiles.FindByID(ctx, profileID); err != nil {
			return err
		}
		e, err := domain.NewExercise(s.d.IDs.Generate(), profileID, f, s.d.Clock.Now())
		if err != nil {
			return err
		}
		out, err = s.d.Repos.Exercises.Save(ctx, e)
		return err
	})
	return out, err
}

// DeleteExercise removes a catalog entry that no plan uses.
func (s *ProfileService) DeleteExercise(ctx context.Context, exerciseID string) error {
	return s.d.Repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.d.Repos.AppliedExercises.CountByExercise(ctx, exerciseID)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.BusinessRule(domain.EntityExercise, exerciseID, "exercise is in use", nil)
		}
		return s.d.Repos.Exercises.Delete(ctx, exerciseID)
	})
}
