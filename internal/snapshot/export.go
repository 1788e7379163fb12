package snapshot

import (
	"context"
	"fmt"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/repository"
	"github.com/roach88/liftlog/internal/store"
)

// Export reads every record of profileID inside one transaction, so the
// snapshot is consistent even while other writers are active.
func Export(ctx context.Context, repos *repository.Repositories, profileID string, clock domain.Clock) (*Snapshot, error) {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	s := New(profileID, store.CurrentSchemaVersion, clock.Now())

	err := repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		profile, err := repos.Profiles.FindByID(ctx, profileID)
		if err != nil {
			return err
		}
		s.Profiles = []domain.Profile{profile}

		if s.Exercises, err = repos.Exercises.FindAll(ctx, profileID); err != nil {
			return err
		}
		if s.Plans, err = repos.Plans.FindAll(ctx, profileID); err != nil {
			return err
		}
		if s.Sessions, err = repos.Sessions.FindAll(ctx, profileID); err != nil {
			return err
		}
		if s.Groups, err = repos.Groups.FindAll(ctx, profileID); err != nil {
			return err
		}
		if s.AppliedExercises, err = repos.AppliedExercises.FindAll(ctx, profileID); err != nil {
			return err
		}
		s.WorkoutLogs, err = repos.WorkoutLogs.FindAll(ctx, profileID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("export profile %s: %w", profileID, err)
	}
	s.Normalize()
	return s, nil
}
