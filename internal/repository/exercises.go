package repository

import (
	"context"

	"github.com/roach88/liftlog/internal/domain"
)

// ExerciseRepository persists the exercise catalog. Names are unique per
// profile; a duplicate surfaces as a CONFLICT error.
type ExerciseRepository struct {
	t *table[domain.Exercise]
}

func newExerciseRepository(base tableBase) *ExerciseRepository {
	return &ExerciseRepository{t: &table[domain.Exercise]{
		store:       base.store,
		clock:       base.clock,
		name:        TableExercises,
		entity:      domain.EntityExercise,
		scopeColumn: "profile_id",
		columns:     []string{"id", "profile_id", "created_at", "updated_at", "name", "category", "notes"},
		scan: func(r rowScanner) (domain.Exercise, error) {
			var m domain.Meta
			var f domain.ExerciseFields
			var created, updated int64
			dest := append(scanMeta(&m, &created, &updated), &f.Name, &f.Category, &f.Notes)
			if err := r.Scan(dest...); err != nil {
				return domain.Exercise{}, err
			}
			return domain.HydrateExercise(finishMeta(m, created, updated), f), nil
		},
		values: func(e domain.Exercise) (map[string]any, error) {
			v := metaValues(e.Meta)
			v["name"] = e.Name
			v["category"] = e.Category
			v["notes"] = e.Notes
			return v, nil
		},
		meta:    func(e domain.Exercise) domain.Meta { return e.Meta },
		setMeta: func(e *domain.Exercise, m domain.Meta) { e.Meta = m },
	}}
}

func (r *ExerciseRepository) Save(ctx context.Context, e domain.Exercise) (domain.Exercise, error) {
	return r.t.save(ctx, e)
}

func (r *ExerciseRepository) FindByID(ctx context.Context, id string) (domain.Exercise, error) {
	return r.t.findByID(ctx, id)
}

func (r *ExerciseRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Exercise, error) {
	return r.t.findByIDs(ctx, ids)
}

func (r *ExerciseRepository) FindAll(ctx context.Context, profileID string) ([]domain.Exercise, error) {
	return r.t.findAll(ctx, profileID)
}

func (r *ExerciseRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}
