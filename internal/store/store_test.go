package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordChanges collects every committed change set.
func recordChanges(s *Store) func() []Change {
	var mu sync.Mutex
	var changes []Change
	s.OnCommit(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})
	return func() []Change {
		mu.Lock()
		defer mu.Unlock()
		out := make([]Change, len(changes))
		copy(out, changes)
		return out
	}
}

func insertProfile(ctx context.Context, t *testing.T, s *Store, id string) {
	t.Helper()
	_, err := s.Querier(ctx).ExecContext(ctx,
		`INSERT INTO profiles (id, name, created_at, updated_at) VALUES (?, ?, 1, 1)`, id, "p-"+id)
	require.NoError(t, err)
	s.MarkChanged(ctx, "profiles")
}

func countProfiles(t *testing.T, s *Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n))
	return n
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"profiles", "exercises", "plans", "sessions", "exercise_groups", "applied_exercises", "workout_logs"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.name, tt.want))
		})
	}
}

func TestPragma_CustomBusyTimeout(t *testing.T) {
	s := openTestStore(t, WithBusyTimeout(750*time.Millisecond))
	assert.NoError(t, s.verifyPragma("busy_timeout", "750"))
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := openTestStore(t)

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)

	// Simulate a database created before the catalog index existed.
	_, err = s.db.Exec(`DROP INDEX idx_applied_exercise`)
	require.NoError(t, err)
	_, err = s.db.Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	s.Close()

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_applied_exercise'",
	).Scan(&name)
	assert.NoError(t, err, "migration should recreate the index")
}

func TestRunInTx_CommitNotifiesOnce(t *testing.T) {
	s := openTestStore(t)
	changes := recordChanges(s)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		insertProfile(ctx, t, s, "a")
		insertProfile(ctx, t, s, "b")
		assert.Empty(t, changes(), "no notification before commit")
		return nil
	})
	require.NoError(t, err)

	got := changes()
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, []string{"profiles"}, got[0].Tables)
	assert.True(t, got[0].Touches("profiles"))
	assert.Equal(t, 2, countProfiles(t, s))
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	s := openTestStore(t)
	changes := recordChanges(s)
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		insertProfile(ctx, t, s, "a")
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, countProfiles(t, s))
	assert.Empty(t, changes(), "rolled back work is never announced")
	assert.Equal(t, int64(0), s.LastSeq())
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	s := openTestStore(t)

	assert.Panics(t, func() {
		_ = s.RunInTx(context.Background(), func(ctx context.Context) error {
			insertProfile(ctx, t, s, "a")
			panic("programmer error")
		})
	})

	assert.Equal(t, 0, countProfiles(t, s))
}

func TestRunInTx_NestedJoinsOuter(t *testing.T) {
	s := openTestStore(t)
	changes := recordChanges(s)
	boom := errors.New("outer fails")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		inner := s.RunInTx(ctx, func(ctx context.Context) error {
			assert.True(t, InTx(ctx))
			insertProfile(ctx, t, s, "a")
			return nil
		})
		require.NoError(t, inner)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 0, countProfiles(t, s), "inner work rolls back with the outer scope")
	assert.Empty(t, changes())
}

func TestMarkChanged_OutsideTxNotifiesImmediately(t *testing.T) {
	s := openTestStore(t)
	changes := recordChanges(s)
	ctx := context.Background()

	assert.False(t, InTx(ctx))
	insertProfile(ctx, t, s, "a")

	got := changes()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"profiles"}, got[0].Tables)
}

func TestMarkChanged_NoTablesNoNotification(t *testing.T) {
	s := openTestStore(t)
	changes := recordChanges(s)

	require.NoError(t, s.RunInTx(context.Background(), func(ctx context.Context) error {
		return nil
	}))
	assert.Empty(t, changes())
}

func TestAfterCommit_RunsOnceOuterScopeCommits(t *testing.T) {
	s := openTestStore(t)
	changes := recordChanges(s)

	var ran []string
	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		insertProfile(ctx, t, s, "a")
		return s.RunInTx(ctx, func(ctx context.Context) error {
			s.AfterCommit(ctx, func(ctx context.Context) {
				assert.False(t, InTx(ctx))
				assert.Len(t, changes(), 1, "listeners run first")
				assert.Equal(t, 1, countProfiles(t, s))
				ran = append(ran, "inner")
			})
			assert.Empty(t, ran)
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"inner"}, ran)
}

func TestAfterCommit_DroppedOnRollback(t *testing.T) {
	s := openTestStore(t)
	boom := errors.New("boom")

	ran := false
	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		s.AfterCommit(ctx, func(context.Context) { ran = true })
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestAfterCommit_OutsideTxRunsImmediately(t *testing.T) {
	s := openTestStore(t)

	ran := false
	s.AfterCommit(context.Background(), func(ctx context.Context) {
		assert.False(t, InTx(ctx))
		ran = true
	})
	assert.True(t, ran)
}
