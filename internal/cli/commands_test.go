package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftlog/internal/app"
	"github.com/roach88/liftlog/internal/repository"
	"github.com/roach88/liftlog/internal/snapshot"
	"github.com/roach88/liftlog/internal/store"
	"github.com/roach88/liftlog/internal/testutil"
)

// env is one device: a config file pointing at its own database.
type env struct {
	dir    string
	config string
	db     string
}

func newEnv(t *testing.T, metrics bool) env {
	t.Helper()
	dir := t.TempDir()
	e := env{
		dir:    dir,
		config: filepath.Join(dir, "liftlog.yaml"),
		db:     filepath.Join(dir, "liftlog.db"),
	}
	cfg := fmt.Sprintf("database:\n  path: %s\nlog:\n  level: error\nmetrics:\n  enabled: %t\nimport:\n  max_conflicts_shown: 5\n", e.db, metrics)
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))
	return e
}

// seed writes profile p1 with a one-session plan "plan" into e's database.
func (e env) seed(t *testing.T) {
	t.Helper()
	s, err := store.Open(e.db)
	require.NoError(t, err)
	defer s.Close()

	clock := testutil.NewDeterministicClock()
	repos := repository.New(s, clock)
	_, ex := testutil.SeedProfile(t, repos, clock, "p1")
	testutil.SeedPlan(t, repos, clock, "p1", ex.ID, "plan", testutil.Shape{Sessions: 1, GroupsPerSession: 1, AppliedPerGroup: 2})
}

// run executes the CLI against e and returns stdout, stderr and the exit code.
func (e env) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	opts := &RootOptions{App: app.Options{Clock: testutil.NewDeterministicClock()}}
	cmd := newRootCommand(opts)

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))

	code := ExitSuccess
	if err := cmd.Execute(); err != nil {
		code = GetExitCode(err)
	}
	return stdout.String(), stderr.String(), code
}

func (e env) export(t *testing.T) string {
	t.Helper()
	out := filepath.Join(e.dir, "snap.json")
	_, stderr, code := e.run(t, "export", "p1", "-o", out)
	require.Equal(t, ExitSuccess, code, stderr)
	return out
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestExport_ToStdout(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)

	stdout, _, code := e.run(t, "export", "p1")
	require.Equal(t, ExitSuccess, code)

	snap, err := snapshot.Decode([]byte(stdout))
	require.NoError(t, err)
	assert.Equal(t, "p1", snap.ProfileID)
	// profile, exercise, plan, session, group, 2 applied
	assert.Equal(t, 7, snap.Total())
}

func TestExport_UnknownProfile(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)

	stdout, _, code := e.run(t, "--format", "json", "export", "nobody")
	assert.Equal(t, ExitCommandError, code)
	resp := decodeResponse(t, stdout)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestExport_MissingConfig(t *testing.T) {
	e := newEnv(t, false)
	e.config = filepath.Join(e.dir, "missing.yaml")

	stdout, _, code := e.run(t, "export", "p1")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "Error ["+ErrCodeConfig+"]")
}

func TestImport_IntoEmptyDevice(t *testing.T) {
	src := newEnv(t, false)
	src.seed(t)
	file := src.export(t)

	dst := newEnv(t, false)
	stdout, stderr, code := dst.run(t, "--format", "json", "import", file)
	require.Equal(t, ExitSuccess, code, stderr)

	resp := decodeResponse(t, stdout)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "p1", data["profileId"])
	assert.EqualValues(t, 7, data["written"])

	// A second import of the same data changes nothing.
	stdout, _, code = dst.run(t, "--format", "json", "import", file)
	require.Equal(t, ExitSuccess, code)
	assert.EqualValues(t, 0, decodeResponse(t, stdout).Data.(map[string]any)["written"])
}

// renamePlan rewrites the plan name inside a snapshot file.
func renamePlan(t *testing.T, path, name string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	snap, err := snapshot.Decode(raw)
	require.NoError(t, err)
	snap.Plans[0].Name = name
	raw, err = snapshot.Encode(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

func TestImport_ConflictsBlockUntilResolved(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)
	file := e.export(t)
	renamePlan(t, file, "Upper/Lower")

	stdout, _, code := e.run(t, "import", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Error ["+ErrCodeConflict+"]")
	assert.Contains(t, stdout, `high   plan.name: local="Plan plan" remote="Upper/Lower"`)

	stdout, _, code = e.run(t, "--format", "json", "import", file)
	assert.Equal(t, ExitFailure, code)
	resp := decodeResponse(t, stdout)
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)

	stdout, _, code = e.run(t, "import", "--use-local", file)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "0 records written, 1 conflicts resolved")

	stdout, _, code = e.run(t, "import", "--use-remote", file)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "1 records written, 1 conflicts resolved")

	exported, _, code := e.run(t, "export", "p1")
	require.Equal(t, ExitSuccess, code)
	snap, err := snapshot.Decode([]byte(exported))
	require.NoError(t, err)
	assert.Equal(t, "Upper/Lower", snap.Plans[0].Name)
}

func TestImport_DecisionsFile(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)
	file := e.export(t)
	renamePlan(t, file, "Upper/Lower")

	decisions := filepath.Join(e.dir, "decisions.yaml")
	require.NoError(t, os.WriteFile(decisions, []byte(
		"conflicts:\n  - entity: Plan\n    id: plan\n    field: name\n    use: remote\n"), 0o644))

	stdout, _, code := e.run(t, "import", "--decisions", decisions, file)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "1 records written")
}

func TestImport_InvalidSnapshot(t *testing.T) {
	e := newEnv(t, false)
	file := filepath.Join(e.dir, "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"schemaVersion": 99}`), 0o644))

	stdout, _, code := e.run(t, "import", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Error ["+ErrCodeInvalid+"]")

	_, _, code = e.run(t, "import", filepath.Join(e.dir, "absent.json"))
	assert.Equal(t, ExitCommandError, code)
}

func TestValidate(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)
	file := e.export(t)

	stdout, _, code := e.run(t, "validate", file)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "is valid (7 records)")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	snap, err := snapshot.Decode(raw)
	require.NoError(t, err)
	snap.Plans[0].SessionIDs = append(snap.Plans[0].SessionIDs, "ghost")
	raw, err = snapshot.Encode(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, raw, 0o644))

	stdout, _, code = e.run(t, "validate", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Plan plan.sessionIds -> ghost")

	// Taking the incoming session list leaves the plan pointing at nothing.
	stdout, _, code = e.run(t, "import", "--use-remote", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Error ["+ErrCodeStructural+"]")
}

func TestValidate_SessionListedByTwoPlans(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)
	file := e.export(t)

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	snap, err := snapshot.Decode(raw)
	require.NoError(t, err)
	second := snap.Plans[0]
	second.ID = "P2"
	second.Name = "Copy"
	snap.Plans = append(snap.Plans, second)
	raw, err = snapshot.Encode(snap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(file, raw, 0o644))

	stdout, _, code := e.run(t, "validate", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Session plan-s1.planId = plan, listed by P2, plan")

	stdout, _, code = e.run(t, "--format", "json", "import", file)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, ErrCodeStructural, decodeResponse(t, stdout).Error.Code)
}

func TestDelete_Cascade(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)

	stdout, _, code := e.run(t, "--format", "json", "delete", "--plan", "plan", "--cascade")
	require.Equal(t, ExitSuccess, code, stdout)
	data := decodeResponse(t, stdout).Data.(map[string]any)
	assert.EqualValues(t, 1, data["plans"])
	assert.EqualValues(t, 1, data["sessions"])
	assert.EqualValues(t, 1, data["groups"])
	assert.EqualValues(t, 2, data["appliedExercises"])

	stdout, _, code = e.run(t, "delete", "--plan", "plan")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout, "Error ["+ErrCodeNotFound+"]")
}

func TestDelete_GroupWithoutCascadeLeavesOrphans(t *testing.T) {
	e := newEnv(t, false)
	e.seed(t)

	stdout, _, code := e.run(t, "delete", "--group", "plan-s1-g1")
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "Deleted Group plan-s1-g1")

	// The applied exercises still point at the removed group.
	file := e.export(t)
	stdout, _, code = e.run(t, "validate", file)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "AppliedExercise plan-s1-g1-a1.groupId -> plan-s1-g1")
}

func TestWorkout_StartAndFinish(t *testing.T) {
	e := newEnv(t, true)
	e.seed(t)

	stdout, stderr, code := e.run(t, "--format", "json", "start-workout", "--plan", "plan", "--session", "plan-s1")
	require.Equal(t, ExitSuccess, code, stderr)
	logID := decodeResponse(t, stdout).Data.(map[string]any)["logId"].(string)
	require.NotEmpty(t, logID)

	stdout, stderr, code = e.run(t, "finish-workout", logID)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Finished workout "+logID)
	assert.Contains(t, stderr, "liftlog_events_dispatched_total")

	stdout, _, code = e.run(t, "finish-workout", logID)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "Error ["+ErrCodeBusinessRule+"]")
}
