package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftlog/internal/repository"
)

func TestSeedPlan_WritesLinkedTree(t *testing.T) {
	clock := NewDeterministicClock()
	repos := OpenRepos(t, clock)
	_, ex := SeedProfile(t, repos, clock, "p1")

	tree := SeedPlan(t, repos, clock, "p1", ex.ID, "plan", Shape{Sessions: 2, GroupsPerSession: 2, AppliedPerGroup: 2})

	assert.Equal(t, []string{"plan-s1", "plan-s2"}, tree.Plan.SessionIDs)
	assert.Len(t, tree.Sessions, 2)
	assert.Len(t, tree.Groups, 4)
	assert.Len(t, tree.Applied, 8)

	assert.Equal(t, 2, CountRows(t, repos, repository.TableSessions))
	assert.Equal(t, 4, CountRows(t, repos, repository.TableGroups))
	assert.Equal(t, 8, CountRows(t, repos, repository.TableAppliedExercises))

	sess, err := repos.Sessions.FindByID(context.Background(), "plan-s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"plan-s2-g1", "plan-s2-g2"}, sess.GroupIDs)
}
