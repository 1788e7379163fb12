package merge_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/merge"
	"github.com/roach88/liftlog/internal/snapshot"
	"github.com/roach88/liftlog/internal/testutil"
)

func meta(id string) domain.Meta {
	return domain.Meta{ID: id, ProfileID: "p1", CreatedAt: testutil.Epoch, UpdatedAt: testutil.Epoch}
}

func plan(id, name string, sessionIDs ...string) domain.Plan {
	if sessionIDs == nil {
		sessionIDs = []string{}
	}
	return domain.HydratePlan(meta(id), domain.PlanFields{Name: name, SessionIDs: sessionIDs})
}

func session(id, planID string) domain.Session {
	return domain.HydrateSession(meta(id), domain.SessionFields{PlanID: planID, Name: "Day", GroupIDs: []string{}})
}

func profile() domain.Profile {
	return domain.HydrateProfile(meta("p1"), domain.ProfileFields{Name: "Ada"})
}

func snap() *snapshot.Snapshot {
	s := snapshot.New("p1", 2, testutil.Epoch)
	s.Profiles = []domain.Profile{profile()}
	return s
}

func TestDetect_PlanNameConflict(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "PPL")}
	remote.Plans = []domain.Plan{plan("P1", "Upper/Lower")}

	report, err := merge.Detect(context.Background(), local, remote)
	require.NoError(t, err)

	require.Equal(t, 1, report.Total())
	assert.Equal(t, merge.Conflict{
		EntityType:  domain.EntityPlan,
		ID:          "P1",
		Field:       "name",
		LocalValue:  "PPL",
		RemoteValue: "Upper/Lower",
		Severity:    merge.SeverityHigh,
	}, report.Entities[0].Conflicts[0])

	res, err := merge.Merge(context.Background(), local, remote,
		merge.NewDecisions().UseRemote(domain.EntityPlan, "P1", "name"))
	require.NoError(t, err)
	require.Len(t, res.Merged.Plans, 1)
	assert.Equal(t, "Upper/Lower", res.Merged.Plans[0].Name)
	assert.Equal(t, []string{"P1"}, res.Changed[domain.EntityPlan])
	assert.Equal(t, 1, res.Resolved())
}

func TestDetect_IdenticalSnapshots(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "PPL", "s1")}
	local.Sessions = []domain.Session{session("s1", "P1")}
	remote.Plans = []domain.Plan{plan("P1", "PPL", "s1")}
	remote.Sessions = []domain.Session{session("s1", "P1")}

	report, err := merge.Detect(context.Background(), local, remote)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Empty(t, report.Entities)
}

func TestDetect_NFCEquivalentTextIsNotAConflict(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "Caf\u00e9")}
	remote.Plans = []domain.Plan{plan("P1", "Cafe\u0301")}

	report, err := merge.Detect(context.Background(), local, remote)
	require.NoError(t, err)
	assert.True(t, report.Empty())
}

func TestDetect_RecordsOnOneSideOnlyAreNotConflicts(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "PPL")}
	remote.Plans = []domain.Plan{plan("P2", "Upper/Lower")}

	report, err := merge.Detect(context.Background(), local, remote)
	require.NoError(t, err)
	assert.True(t, report.Empty())

	res, err := merge.Merge(context.Background(), local, remote, nil)
	require.NoError(t, err)
	require.Len(t, res.Merged.Plans, 2)
	assert.Equal(t, "P1", res.Merged.Plans[0].ID)
	assert.Equal(t, "P2", res.Merged.Plans[1].ID)
	assert.Equal(t, []string{"P2"}, res.Changed[domain.EntityPlan])
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := merge.Detect(ctx, snap(), snap())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeverityOf_Deterministic(t *testing.T) {
	tests := []struct {
		field string
		want  merge.Severity
	}{
		{"name", merge.SeverityHigh},
		{"exerciseId", merge.SeverityHigh},
		{"kind", merge.SeverityHigh},
		{"sessionIds", merge.SeverityMedium},
		{"sets", merge.SeverityMedium},
		{"finishedAt", merge.SeverityMedium},
		{"notes", merge.SeverityLow},
		{"description", merge.SeverityLow},
		{"somethingNew", merge.SeverityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				assert.Equal(t, tt.want, merge.SeverityOf(tt.field))
			}
		})
	}
}

func TestMerge_UnresolvedConflictBlocks(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "PPL")}
	remote.Plans = []domain.Plan{plan("P1", "Upper/Lower")}
	remote.Plans[0].Description = "four days"

	d := merge.NewDecisions().UseLocal(domain.EntityPlan, "P1", "description")
	res, err := merge.Merge(context.Background(), local, remote, d)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Nil(t, res.Merged, "no partial merge")
	assert.Equal(t, 2, res.Report.Total())

	open, ok := merge.UnresolvedReport(err)
	require.True(t, ok)
	require.Equal(t, 1, open.Total())
	assert.Equal(t, "name", open.Entities[0].Conflicts[0].Field)
}

func TestMerge_FieldChoiceBeatsGroupChoice(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "PPL")}
	remote.Plans = []domain.Plan{plan("P1", "Upper/Lower")}
	remote.Plans[0].Description = "four days"

	d := merge.NewDecisions().
		UseAllRemote(domain.EntityPlan).
		UseLocal(domain.EntityPlan, "P1", "name")

	res, err := merge.Merge(context.Background(), local, remote, d)
	require.NoError(t, err)
	assert.Equal(t, "PPL", res.Merged.Plans[0].Name)
	assert.Equal(t, "four days", res.Merged.Plans[0].Description)
}

func TestMerge_AllLocalKeepsLocalRecord(t *testing.T) {
	local, remote := snap(), snap()
	local.Plans = []domain.Plan{plan("P1", "PPL")}
	remote.Plans = []domain.Plan{plan("P1", "Upper/Lower")}

	res, err := merge.Merge(context.Background(), local, remote, merge.AllLocal())
	require.NoError(t, err)
	assert.Equal(t, "PPL", res.Merged.Plans[0].Name)
	assert.Empty(t, res.Changed[domain.EntityPlan])
}

func TestCheckIntegrity_DanglingSession(t *testing.T) {
	local, remote := snap(), snap()
	remote.Plans = []domain.Plan{plan("P1", "PPL", "s1", "s9")}
	remote.Sessions = []domain.Session{session("s1", "P1")}

	res, err := merge.Merge(context.Background(), local, remote, nil)
	require.NoError(t, err, "no field conflicts")
	assert.True(t, res.Report.Empty())

	err = merge.CheckIntegrity(res.Merged)
	require.Error(t, err)
	assert.True(t, domain.IsStructural(err))
	assert.Contains(t, err.Error(), "s9")

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, map[string]string{"Plan P1.sessionIds": "s9"}, de.Details)
}

func TestCheckIntegrity_ChildReferences(t *testing.T) {
	s := snap()
	s.Sessions = []domain.Session{session("s1", "gone-plan")}
	s.Groups = []domain.Group{domain.HydrateGroup(meta("g1"), domain.GroupFields{
		SessionID:          "s1",
		Kind:               domain.GroupSingle,
		AppliedExerciseIDs: []string{"a1"},
	})}
	s.AppliedExercises = []domain.AppliedExercise{domain.HydrateAppliedExercise(meta("a1"), domain.AppliedExerciseFields{
		GroupID:    "g1",
		ExerciseID: "missing-ex",
		Sets:       3,
	})}

	dangling := merge.FindDangling(s)
	require.Len(t, dangling, 2)
	assert.Equal(t, "Session s1.planId -> gone-plan", dangling[0].String())
	assert.Equal(t, "AppliedExercise a1.exerciseId -> missing-ex", dangling[1].String())
}

func TestCheckIntegrity_WeakWorkoutReferences(t *testing.T) {
	s := snap()
	s.WorkoutLogs = []domain.WorkoutLog{domain.HydrateWorkoutLog(meta("w1"), domain.WorkoutLogFields{
		PlanID:    "deleted-plan",
		SessionID: "deleted-session",
		StartedAt: testutil.Epoch,
	})}
	assert.NoError(t, merge.CheckIntegrity(s))
}

func TestCheckIntegrity_MissingProfile(t *testing.T) {
	s := snapshot.New("p1", 2, testutil.Epoch)
	err := merge.CheckIntegrity(s)
	require.Error(t, err)
	assert.True(t, domain.IsStructural(err))
}

func TestCheckIntegrity_SessionListedByTwoPlans(t *testing.T) {
	s := snap()
	s.Plans = []domain.Plan{plan("P1", "PPL", "s1"), plan("P2", "Copy", "s1")}
	s.Sessions = []domain.Session{session("s1", "P1")}

	assert.Empty(t, merge.FindDangling(s))
	misowned := merge.FindMisowned(s)
	require.Len(t, misowned, 1)
	assert.Equal(t, []string{"P1", "P2"}, misowned[0].ListedBy)
	assert.Equal(t, "Session s1.planId = P1, listed by P1, P2", misowned[0].String())

	err := merge.CheckIntegrity(s)
	require.Error(t, err)
	assert.True(t, domain.IsStructural(err))
	assert.Contains(t, err.Error(), "inconsistent ownership of s1")

	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, map[string]string{"Session s1.planId": "P1, listed by P1, P2"}, de.Details)
}

func TestCheckIntegrity_BackReferenceMismatch(t *testing.T) {
	s := snap()
	s.Plans = []domain.Plan{plan("P1", "PPL", "s1"), plan("P2", "Other")}
	s.Sessions = []domain.Session{session("s1", "P2")}

	misowned := merge.FindMisowned(s)
	require.Len(t, misowned, 1)
	assert.Equal(t, "s1", misowned[0].ID)
	assert.Equal(t, "P2", misowned[0].Parent)
	assert.Equal(t, []string{"P1"}, misowned[0].ListedBy)
	assert.True(t, domain.IsStructural(merge.CheckIntegrity(s)))
}

func TestCheckIntegrity_UnlistedChild(t *testing.T) {
	s := snap()
	s.Plans = []domain.Plan{plan("P1", "PPL", "s1")}
	s.Sessions = []domain.Session{session("s1", "P1")}
	s.Groups = []domain.Group{domain.HydrateGroup(meta("g1"), domain.GroupFields{
		SessionID:          "s1",
		Kind:               domain.GroupSingle,
		AppliedExerciseIDs: []string{},
	})}

	misowned := merge.FindMisowned(s)
	require.Len(t, misowned, 1)
	assert.Equal(t, "Group g1.sessionId = s1, listed by no parent", misowned[0].String())
}

func TestCheckIntegrity_DanglingAndMisownedTogether(t *testing.T) {
	s := snap()
	s.Plans = []domain.Plan{plan("P1", "PPL", "s1", "s9"), plan("P2", "Copy", "s1")}
	s.Sessions = []domain.Session{session("s1", "P1")}

	err := merge.CheckIntegrity(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dangling references to s9; inconsistent ownership of s1")
}

func TestReport_Golden(t *testing.T) {
	local, remote := snap(), snap()

	ex := domain.HydrateExercise(meta("e1"), domain.ExerciseFields{Name: "Squat", Category: "legs"})
	local.Exercises = []domain.Exercise{ex}
	ex.Category = "lower"
	remote.Exercises = []domain.Exercise{ex}

	lp := plan("P1", "PPL", "s1", "s2")
	lp.Description = "old"
	rp := plan("P1", "Upper/Lower", "s2", "s1")
	rp.Description = "new"
	local.Plans = []domain.Plan{lp}
	remote.Plans = []domain.Plan{rp}

	report, err := merge.Detect(context.Background(), local, remote)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf, 0))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "conflict_report", buf.Bytes())
}

func TestReport_WriteTextLimit(t *testing.T) {
	local, remote := snap(), snap()
	lp := plan("P1", "PPL")
	rp := plan("P1", "Upper/Lower")
	rp.Description = "new"
	rp.Archived = true
	local.Plans = []domain.Plan{lp}
	remote.Plans = []domain.Plan{rp}

	report, err := merge.Detect(context.Background(), local, remote)
	require.NoError(t, err)
	assert.Equal(t, merge.SeverityHigh, report.Highest())

	var buf bytes.Buffer
	require.NoError(t, report.WriteText(&buf, 1))
	assert.Contains(t, buf.String(), "... 2 more")
	assert.Equal(t, 1, strings.Count(buf.String(), "P1."))
}

func TestParseDecisions(t *testing.T) {
	doc := `
groups:
  Exercise: local
conflicts:
  - entity: Plan
    id: P1
    field: name
    use: remote
`
	d, err := merge.ParseDecisions(strings.NewReader(doc))
	require.NoError(t, err)

	ch, ok := d.Resolve(merge.Conflict{EntityType: domain.EntityPlan, ID: "P1", Field: "name"})
	require.True(t, ok)
	assert.Equal(t, merge.UseRemote, ch)

	ch, ok = d.Resolve(merge.Conflict{EntityType: domain.EntityExercise, ID: "e1", Field: "notes"})
	require.True(t, ok)
	assert.Equal(t, merge.UseLocal, ch)

	_, ok = d.Resolve(merge.Conflict{EntityType: domain.EntityPlan, ID: "P1", Field: "notes"})
	assert.False(t, ok)
}

func TestParseDecisions_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":    "group:\n  Plan: local\n",
		"unknown entity": "groups:\n  Workout: local\n",
		"bad choice":     "groups:\n  Plan: mine\n",
		"missing field":  "conflicts:\n  - entity: Plan\n    id: P1\n    use: remote\n",
		"bad conflict":   "conflicts:\n  - entity: Plan\n    id: P1\n    field: name\n    use: both\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := merge.ParseDecisions(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseDecisions_Empty(t *testing.T) {
	d, err := merge.ParseDecisions(strings.NewReader(""))
	require.NoError(t, err)
	_, ok := d.Resolve(merge.Conflict{EntityType: domain.EntityPlan, ID: "P1", Field: "name"})
	assert.False(t, ok)
}
