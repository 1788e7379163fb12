package reactive

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/repository"
)

// FetchFunc reads the current result of a query.
type FetchFunc func(ctx context.Context) (any, error)

// Query describes what a subscription watches.
type Query struct {
	// Key identifies the query. Subscriptions with equal keys share one
	// fetch per refresh.
	Key string

	// Tables lists the tables whose commits make the result stale.
	Tables []string

	// Fetch reads the result.
	Fetch FetchFunc
}

func (q Query) validate() error {
	switch {
	case q.Key == "":
		return errors.New("query key is required")
	case len(q.Tables) == 0:
		return fmt.Errorf("query %s: no tables", q.Key)
	case q.Fetch == nil:
		return fmt.Errorf("query %s: no fetch function", q.Key)
	}
	return nil
}

func (q Query) watches(tables []string) bool {
	for _, t := range tables {
		for _, w := range q.Tables {
			if t == w {
				return true
			}
		}
	}
	return false
}

// RecordsOf watches every record of one type in a profile. The result is
// the repository's FindAll slice, e.g. []domain.Plan.
func RecordsOf(repos *repository.Repositories, entity domain.EntityType, profileID string) (Query, error) {
	table, err := repository.TableFor(entity)
	if err != nil {
		return Query{}, err
	}

	var fetch FetchFunc
	switch entity {
	case domain.EntityProfile:
		fetch = func(ctx context.Context) (any, error) { return repos.Profiles.FindAll(ctx, profileID) }
	case domain.EntityExercise:
		fetch = func(ctx context.Context) (any, error) { return repos.Exercises.FindAll(ctx, profileID) }
	case domain.EntityPlan:
		fetch = func(ctx context.Context) (any, error) { return repos.Plans.FindAll(ctx, profileID) }
	case domain.EntitySession:
		fetch = func(ctx context.Context) (any, error) { return repos.Sessions.FindAll(ctx, profileID) }
	case domain.EntityGroup:
		fetch = func(ctx context.Context) (any, error) { return repos.Groups.FindAll(ctx, profileID) }
	case domain.EntityAppliedExercise:
		fetch = func(ctx context.Context) (any, error) { return repos.AppliedExercises.FindAll(ctx, profileID) }
	case domain.EntityWorkoutLog:
		fetch = func(ctx context.Context) (any, error) { return repos.WorkoutLogs.FindAll(ctx, profileID) }
	}

	return Query{
		Key:    fmt.Sprintf("records/%s/%s", entity, profileID),
		Tables: []string{table},
		Fetch:  fetch,
	}, nil
}

// PlanTree is a plan with its owned records, each level in list order.
type PlanTree struct {
	Plan             domain.Plan
	Sessions         []domain.Session
	Groups           []domain.Group
	AppliedExercises []domain.AppliedExercise
}

// PlanTreeOf watches one plan and everything it owns. The result is a
// PlanTree; a deleted plan yields a NOT_FOUND result error.
func PlanTreeOf(repos *repository.Repositories, planID string) Query {
	return Query{
		Key: "plan-tree/" + planID,
		Tables: []string{
			repository.TablePlans,
			repository.TableSessions,
			repository.TableGroups,
			repository.TableAppliedExercises,
		},
		Fetch: func(ctx context.Context) (any, error) {
			var tree PlanTree
			err := repos.Store.RunInTx(ctx, func(ctx context.Context) error {
				var err error
				if tree.Plan, err = repos.Plans.FindByID(ctx, planID); err != nil {
					return err
				}
				if tree.Sessions, err = repos.Sessions.FindByIDs(ctx, tree.Plan.SessionIDs); err != nil {
					return err
				}
				var groupIDs []string
				for _, s := range tree.Sessions {
					groupIDs = append(groupIDs, s.GroupIDs...)
				}
				if tree.Groups, err = repos.Groups.FindByIDs(ctx, groupIDs); err != nil {
					return err
				}
				var appliedIDs []string
				for _, g := range tree.Groups {
					appliedIDs = append(appliedIDs, g.AppliedExerciseIDs...)
				}
				tree.AppliedExercises, err = repos.AppliedExercises.FindByIDs(ctx, appliedIDs)
				return err
			})
			if err != nil {
				return nil, err
			}
			return tree, nil
		},
	}
}
