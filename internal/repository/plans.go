package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/liftlog/internal/domain"
)

// PlanRepository persists Plan aggregate roots. Only the plan row is
// written; sessions are stored by SessionRepository.
type PlanRepository struct {
	t *table[domain.Plan]
}

func newPlanRepository(base tableBase) *PlanRepository {
	return &PlanRepository{t: &table[domain.Plan]{
		store:       base.store,
		clock:       base.clock,
		name:        TablePlans,
		entity:      domain.EntityPlan,
		scopeColumn: "profile_id",
		columns: []string{"id", "profile_id", "created_at", "updated_at",
			"name", "description", "session_ids", "current_session_index", "archived"},
		scan: func(r rowScanner) (domain.Plan, error) {
			var m domain.Meta
			var f domain.PlanFields
			var created, updated int64
			var sessionIDs string
			dest := append(scanMeta(&m, &created, &updated),
				&f.Name, &f.Description, &sessionIDs, &f.CurrentSessionIndex, &f.Archived)
			if err := r.Scan(dest...); err != nil {
				return domain.Plan{}, err
			}
			ids, err := decodeIDs(sessionIDs)
			if err != nil {
				return domain.Plan{}, err
			}
			f.SessionIDs = ids
			return domain.HydratePlan(finishMeta(m, created, updated), f), nil
		},
		values: func(p domain.Plan) (map[string]any, error) {
			ids, err := encodeIDs(p.SessionIDs)
			if err != nil {
				return nil, err
			}
			v := metaValues(p.Meta)
			v["name"] = p.Name
			v["description"] = p.Description
			v["session_ids"] = ids
			v["current_session_index"] = p.CurrentSessionIndex
			v["archived"] = p.Archived
			return v, nil
		},
		meta:    func(p domain.Plan) domain.Meta { return p.Meta },
		setMeta: func(p *domain.Plan, m domain.Meta) { p.Meta = m },
	}}
}

func (r *PlanRepository) Save(ctx context.Context, p domain.Plan) (domain.Plan, error) {
	return r.t.save(ctx, p)
}

func (r *PlanRepository) FindByID(ctx context.Context, id string) (domain.Plan, error) {
	return r.t.findByID(ctx, id)
}

func (r *PlanRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Plan, error) {
	return r.t.findByIDs(ctx, ids)
}

func (r *PlanRepository) FindAll(ctx context.Context, profileID string) ([]domain.Plan, error) {
	return r.t.findAll(ctx, profileID)
}

// Delete removes the plan row only. Use the cascade orchestrator to remove
// its sessions as well.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func (r *PlanRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return r.t.deleteByIDs(ctx, ids)
}

// SessionRepository persists Session records.
type SessionRepository struct {
	t *table[domain.Session]
}

func newSessionRepository(base tableBase) *SessionRepository {
	return &SessionRepository{t: &table[domain.Session]{
		store:       base.store,
		clock:       base.clock,
		name:        TableSessions,
		entity:      domain.EntitySession,
		scopeColumn: "profile_id",
		columns: []string{"id", "profile_id", "created_at", "updated_at",
			"plan_id", "name", "notes", "group_ids"},
		scan: func(r rowScanner) (domain.Session, error) {
			var m domain.Meta
			var f domain.SessionFields
			var created, updated int64
			var groupIDs string
			dest := append(scanMeta(&m, &created, &updated), &f.PlanID, &f.Name, &f.Notes, &groupIDs)
			if err := r.Scan(dest...); err != nil {
				return domain.Session{}, err
			}
			ids, err := decodeIDs(groupIDs)
			if err != nil {
				return domain.Session{}, err
			}
			f.GroupIDs = ids
			return domain.HydrateSession(finishMeta(m, created, updated), f), nil
		},
		values: func(s domain.Session) (map[string]any, error) {
			ids, err := encodeIDs(s.GroupIDs)
			if err != nil {
				return nil, err
			}
			v := metaValues(s.Meta)
			v["plan_id"] = s.PlanID
			v["name"] = s.Name
			v["notes"] = s.Notes
			v["group_ids"] = ids
			return v, nil
		},
		meta:    func(s domain.Session) domain.Meta { return s.Meta },
		setMeta: func(s *domain.Session, m domain.Meta) { s.Meta = m },
	}}
}

func (r *SessionRepository) Save(ctx context.Context, s domain.Session) (domain.Session, error) {
	return r.t.save(ctx, s)
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (domain.Session, error) {
	return r.t.findByID(ctx, id)
}

func (r *SessionRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Session, error) {
	return r.t.findByIDs(ctx, ids)
}

func (r *SessionRepository) FindAll(ctx context.Context, profileID string) ([]domain.Session, error) {
	return r.t.findAll(ctx, profileID)
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func (r *SessionRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return r.t.deleteByIDs(ctx, ids)
}

// IDsByPlans returns the ids of sessions whose plan_id is one of planIDs,
// whether or not the plans still list them.
func (r *SessionRepository) IDsByPlans(ctx context.Context, planIDs []string) ([]string, error) {
	if len(planIDs) == 0 {
		return []string{}, nil
	}
	return r.t.idsWhere(ctx, sq.Eq{"plan_id": planIDs})
}

// GroupRepository persists Group records.
type GroupRepository struct {
	t *table[domain.Group]
}

func newGroupRepository(base tableBase) *GroupRepository {
	return &GroupRepository{t: &table[domain.Group]{
		store:       base.store,
		clock:       base.clock,
		name:        TableGroups,
		entity:      domain.EntityGroup,
		scopeColumn: "profile_id",
		columns: []string{"id", "profile_id", "created_at", "updated_at",
			"session_id", "kind", "rest_seconds", "applied_exercise_ids"},
		scan: func(r rowScanner) (domain.Group, error) {
			var m domain.Meta
			var f domain.GroupFields
			var created, updated int64
			var appliedIDs string
			dest := append(scanMeta(&m, &created, &updated), &f.SessionID, &f.Kind, &f.RestSeconds, &appliedIDs)
			if err := r.Scan(dest...); err != nil {
				return domain.Group{}, err
			}
			ids, err := decodeIDs(appliedIDs)
			if err != nil {
				return domain.Group{}, err
			}
			f.AppliedExerciseIDs = ids
			return domain.HydrateGroup(finishMeta(m, created, updated), f), nil
		},
		values: func(g domain.Group) (map[string]any, error) {
			ids, err := encodeIDs(g.AppliedExerciseIDs)
			if err != nil {
				return nil, err
			}
			v := metaValues(g.Meta)
			v["session_id"] = g.SessionID
			v["kind"] = string(g.Kind)
			v["rest_seconds"] = g.RestSeconds
			v["applied_exercise_ids"] = ids
			return v, nil
		},
		meta:    func(g domain.Group) domain.Meta { return g.Meta },
		setMeta: func(g *domain.Group, m domain.Meta) { g.Meta = m },
	}}
}

func (r *GroupRepository) Save(ctx context.Context, g domain.Group) (domain.Group, error) {
	return r.t.save(ctx, g)
}

func (r *GroupRepository) FindByID(ctx context.Context, id string) (domain.Group, error) {
	return r.t.findByID(ctx, id)
}

func (r *GroupRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Group, error) {
	return r.t.findByIDs(ctx, ids)
}

func (r *GroupRepository) FindAll(ctx context.Context, profileID string) ([]domain.Group, error) {
	return r.t.findAll(ctx, profileID)
}

func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func (r *GroupRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return r.t.deleteByIDs(ctx, ids)
}

// IDsBySessions returns the ids of groups whose session_id is one of sessionIDs.
func (r *GroupRepository) IDsBySessions(ctx context.Context, sessionIDs []string) ([]string, error) {
	if len(sessionIDs) == 0 {
		return []string{}, nil
	}
	return r.t.idsWhere(ctx, sq.Eq{"session_id": sessionIDs})
}

// AppliedExerciseRepository persists AppliedExercise records.
type AppliedExerciseRepository struct {
	t *table[domain.AppliedExercise]
}

func newAppliedExerciseRepository(base tableBase) *AppliedExerciseRepository {
	return &AppliedExerciseRepository{t: &table[domain.AppliedExercise]{
		store:       base.store,
		clock:       base.clock,
		name:        TableAppliedExercises,
		entity:      domain.EntityAppliedExercise,
		scopeColumn: "profile_id",
		columns: []string{"id", "profile_id", "created_at", "updated_at",
			"group_id", "exercise_id", "sets", "reps", "weight_grams", "notes"},
		scan: func(r rowScanner) (domain.AppliedExercise, error) {
			var m domain.Meta
			var f domain.AppliedExerciseFields
			var created, updated int64
			dest := append(scanMeta(&m, &created, &updated),
				&f.GroupID, &f.ExerciseID, &f.Sets, &f.Reps, &f.WeightGrams, &f.Notes)
			if err := r.Scan(dest...); err != nil {
				return domain.AppliedExercise{}, err
			}
			return domain.HydrateAppliedExercise(finishMeta(m, created, updated), f), nil
		},
		values: func(a domain.AppliedExercise) (map[string]any, error) {
			v := metaValues(a.Meta)
			v["group_id"] = a.GroupID
			v["exercise_id"] = a.ExerciseID
			v["sets"] = a.Sets
			v["reps"] = a.Reps
			v["weight_grams"] = a.WeightGrams
			v["notes"] = a.Notes
			return v, nil
		},
		meta:    func(a domain.AppliedExercise) domain.Meta { return a.Meta },
		setMeta: func(a *domain.AppliedExercise, m domain.Meta) { a.Meta = m },
	}}
}

func (r *AppliedExerciseRepository) Save(ctx context.Context, a domain.AppliedExercise) (domain.AppliedExercise, error) {
	return r.t.save(ctx, a)
}

func (r *AppliedExerciseRepository) FindByID(ctx context.Context, id string) (domain.AppliedExercise, error) {
	return r.t.findByID(ctx, id)
}

func (r *AppliedExerciseRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.AppliedExercise, error) {
	return r.t.findByIDs(ctx, ids)
}

func (r *AppliedExerciseRepository) FindAll(ctx context.Context, profileID string) ([]domain.AppliedExercise, error) {
	return r.t.findAll(ctx, profileID)
}

func (r *AppliedExerciseRepository) Delete(ctx context.Context, id string) error {
	return r.t.delete(ctx, id)
}

func (r *AppliedExerciseRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return r.t.deleteByIDs(ctx, ids)
}

// IDsByGroups returns the ids of applied exercises whose group_id is one of groupIDs.
func (r *AppliedExerciseRepository) IDsByGroups(ctx context.Context, groupIDs []string) ([]string, error) {
	if len(groupIDs) == 0 {
		return []string{}, nil
	}
	return r.t.idsWhere(ctx, sq.Eq{"group_id": groupIDs})
}

// CountByExercise returns how many applied exercises reference a catalog exercise.
func (r *AppliedExerciseRepository) CountByExercise(ctx context.Context, exerciseID string) (int, error) {
	return r.t.count(ctx, sq.Eq{"exercise_id": exerciseID})
}
