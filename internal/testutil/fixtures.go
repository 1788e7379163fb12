package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/repository"
	"github.com/roach88/liftlog/internal/store"
)

// OpenRepos opens a fresh store in a temp directory and returns repositories
// over it, stamped by clock. The store is closed when the test ends.
func OpenRepos(t testing.TB, clock domain.Clock) *repository.Repositories {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "liftlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return repository.New(s, clock)
}

// Shape sizes a seeded plan tree.
type Shape struct {
	Sessions         int
	GroupsPerSession int
	AppliedPerGroup  int
}

// Tree is everything SeedPlan wrote, in list order.
type Tree struct {
	Plan     domain.Plan
	Sessions []domain.Session
	Groups   []domain.Group
	Applied  []domain.AppliedExercise
}

// SeedProfile saves a profile with id profileID and one catalog exercise
// with id profileID+"-ex1".
func SeedProfile(t testing.TB, repos *repository.Repositories, clock domain.Clock, profileID string) (domain.Profile, domain.Exercise) {
	t.Helper()
	ctx := context.Background()

	p, err := domain.NewProfile(profileID, domain.ProfileFields{Name: "Athlete " + profileID}, clock.Now())
	require.NoError(t, err)
	p, err = repos.Profiles.Save(ctx, p)
	require.NoError(t, err)

	ex, err := domain.NewExercise(profileID+"-ex1", profileID, domain.ExerciseFields{
		Name:     "Back Squat",
		Category: "legs",
	}, clock.Now())
	require.NoError(t, err)
	ex, err = repos.Exercises.Save(ctx, ex)
	require.NoError(t, err)

	return p, ex
}

// SeedPlan saves a fully linked plan tree. IDs derive from planID:
// planID-s1, planID-s1-g1, planID-s1-g1-a1 and so on.
func SeedPlan(t testing.TB, repos *repository.Repositories, clock domain.Clock, profileID, exerciseID, planID string, shape Shape) Tree {
	t.Helper()
	ctx := context.Background()

	var tree Tree
	var sessionIDs []string

	for s := 1; s <= shape.Sessions; s++ {
		sessionID := fmt.Sprintf("%s-s%d", planID, s)
		sessionIDs = append(sessionIDs, sessionID)

		var groupIDs []string
		for g := 1; g <= shape.GroupsPerSession; g++ {
			groupID := fmt.Sprintf("%s-g%d", sessionID, g)
			groupIDs = append(groupIDs, groupID)

			var appliedIDs []string
			for a := 1; a <= shape.AppliedPerGroup; a++ {
				appliedID := fmt.Sprintf("%s-a%d", groupID, a)
				appliedIDs = append(appliedIDs, appliedID)

				ae, err := domain.NewAppliedExercise(appliedID, profileID, domain.AppliedExerciseFields{
					GroupID:     groupID,
					ExerciseID:  exerciseID,
					Sets:        3,
					Reps:        5,
					WeightGrams: 100000,
				}, clock.Now())
				require.NoError(t, err)
				ae, err = repos.AppliedExercises.Save(ctx, ae)
				require.NoError(t, err)
				tree.Applied = append(tree.Applied, ae)
			}

			kind := domain.GroupSingle
			if len(appliedIDs) > 1 {
				kind = domain.GroupSuperset
			}
			grp, err := domain.NewGroup(groupID, profileID, domain.GroupFields{
				SessionID:          sessionID,
				Kind:               kind,
				RestSeconds:        90,
				AppliedExerciseIDs: appliedIDs,
			}, clock.Now())
			require.NoError(t, err)
			grp, err = repos.Groups.Save(ctx, grp)
			require.NoError(t, err)
			tree.Groups = append(tree.Groups, grp)
		}

		sess, err := domain.NewSession(sessionID, profileID, domain.SessionFields{
			PlanID:   planID,
			Name:     fmt.Sprintf("Day %d", s),
			GroupIDs: groupIDs,
		}, clock.Now())
		require.NoError(t, err)
		sess, err = repos.Sessions.Save(ctx, sess)
		require.NoError(t, err)
		tree.Sessions = append(tree.Sessions, sess)
	}

	plan, err := domain.NewPlan(planID, profileID, domain.PlanFields{
		Name:       "Plan " + planID,
		SessionIDs: sessionIDs,
	}, clock.Now())
	require.NoError(t, err)
	plan, err = repos.Plans.Save(ctx, plan)
	require.NoError(t, err)
	tree.Plan = plan

	return tree
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, repos *repository.Repositories, table string) int {
	t.Helper()
	var n int
	require.NoError(t, repos.Store.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
