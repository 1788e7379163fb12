package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/liftlog/internal/domain"
)

// WorkoutLogRepository persists workout history.
type WorkoutLogRepository struct {
	t *table[domain.WorkoutLog]
}

func newWorkoutLogRepository(base tableBase) *WorkoutLogRepository {
	return &WorkoutLogRepository{t: &table[domain.WorkoutLog]{
		store:       base.store,
		clock:       base.clock,
		name:        TableWorkoutLogs,
		entity:      domain.EntityWorkoutLog,
		scopeColumn: "profile_id",
		columns: []string{"id", "profile_id", "created_at", "updated_at",
			"plan_id", "session_id", "started_at", "finished_at", "notes"},
		scan: func(r rowScanner) (domain.WorkoutLog, error) {
			var m domain.Meta
			var f domain.WorkoutLogFields
			var created, updated, started, finished int64
			dest := append(scanMeta(&m, &created, &updated), &f.PlanID, &f.SessionID, &started, &finished, &f.Notes)
			if err := r.Scan(dest...); err != nil {
				return domain.WorkoutLog{}, err
			}
			f.StartedAt = decodeTime(started)
			f.FinishedAt = decodeTime(finished)
			return domain.HydrateWorkoutLog(finishMeta(m, created, updated), f), nil
		},
		values: func(w domain.WorkoutLog) (map[string]any, error) {
			v := metaValues(w.Meta)
			v["plan_id"] = w.PlanID
			v["session_id"] = w.SessionID
			v["started_at"] = encodeTime(w.StartedAt)
			v["finished_at"] = encodeTime(w.FinishedAt)
			v["notes"] = w.Notes
			return v, nil
		},
		meta:    func(w domain.WorkoutLog) domain.Meta { return w.Meta },
		setMeta: func(w *domain.WorkoutLog, m domain.Meta) { w.Meta = m },
	}}
}

func (r *WorkoutLogRepository) Save(ctx context.Context, w domain.WorkoutLog) (domain.WorkoutLog, error) {
	return r.t.save(ctx, w)
}

func (r *WorkoutLogRepository) FindByID(ctx context.Context, id string) (domain.WorkoutLog, error) {
	return r.t.findByID(ctx, id)
}

func (r *WorkoutLogRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.WorkoutLog, error) {
	return r.t.findByIDs(ctx, ids)
}

func (r *WorkoutLogRepository) FindAll(ctx context.Context, profileID string) ([]domain.WorkoutLog, error) {
	return r.t.findAll(ctx, profileID)
}

func (r *WorkoutLogRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

// FindUnfinished returns the workouts of a profile that have not been finished.
func (r *WorkoutLogRepository) FindUnfinished(ctx context.Context, profileID string) ([]domain.WorkoutLog, error) {
	return r.t.queryMany(ctx, r.t.selectBuilder().
		Where(sq.Eq{"profile_id": profileID, "finished_at": 0}).
		OrderBy("started_at ASC", "id ASC"))
}
