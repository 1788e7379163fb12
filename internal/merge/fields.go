package merge

import (
	"context"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/repository"
	"github.com/roach88/liftlog/internal/snapshot"
)

type validatable interface {
	Validate() error
}

// field is one tracked field of record type T.
type field[T any] struct {
	name string
	get  func(T) any
	take func(dst *T, src T)
}

// collection describes how one record type is compared, merged and written.
type collection[T validatable] struct {
	entity  domain.EntityType
	fields  []field[T]
	meta    func(T) domain.Meta
	setMeta func(*T, domain.Meta)
	get     func(*snapshot.Snapshot) []T
	set     func(*snapshot.Snapshot, []T)
	save    func(context.Context, *repository.Repositories, T) error
}

// kind is the type-erased view of a collection.
type kind interface {
	entityType() domain.EntityType
	ids(s *snapshot.Snapshot) []string
	owners(s *snapshot.Snapshot) map[string]string
	validate(s *snapshot.Snapshot, changed map[string]bool) error
	detect(local, remote *snapshot.Snapshot) []Conflict
	merge(local, remote, out *snapshot.Snapshot, d *Decisions) []string
	write(ctx context.Context, repos *repository.Repositories, s *snapshot.Snapshot, existing, changed map[string]bool) (int, error)
}

// kinds lists the collections in dependency order.
var kinds = []kind{
	profiles, exercises, plans, sessions, groups, appliedExercises, workoutLogs,
}

func (c *collection[T]) entityType() domain.EntityType { return c.entity }

func (c *collection[T]) ids(s *snapshot.Snapshot) []string {
	records := c.get(s)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = c.meta(r).ID
	}
	return out
}

// owners maps each record ID to its owning profile.
func (c *collection[T]) owners(s *snapshot.Snapshot) map[string]string {
	records := c.get(s)
	out := make(map[string]string, len(records))
	for _, r := range records {
		m := c.meta(r)
		if c.entity == domain.EntityProfile {
			out[m.ID] = m.ID
			continue
		}
		out[m.ID] = m.ProfileID
	}
	return out
}

func (c *collection[T]) validate(s *snapshot.Snapshot, changed map[string]bool) error {
	for _, r := range c.get(s) {
		if !changed[c.meta(r).ID] {
			continue
		}
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection[T]) index(records []T) map[string]T {
	m := make(map[string]T, len(records))
	for _, r := range records {
		m[c.meta(r).ID] = r
	}
	return m
}

// detect compares every record present on both sides, in local order.
func (c *collection[T]) detect(local, remote *snapshot.Snapshot) []Conflict {
	theirs := c.index(c.get(remote))
	var out []Conflict
	for _, mine := range c.get(local) {
		id := c.meta(mine).ID
		other, ok := theirs[id]
		if !ok {
			continue
		}
		for _, f := range c.fields {
			lv, rv := f.get(mine), f.get(other)
			if equalValues(lv, rv) {
				continue
			}
			out = append(out, Conflict{
				EntityType:  c.entity,
				ID:          id,
				Field:       f.name,
				LocalValue:  lv,
				RemoteValue: rv,
				Severity:    SeverityOf(f.name),
			})
		}
	}
	return out
}

// merge writes the union of both sides into out: local records in local
// order, then incoming-only records in incoming order. A shared record keeps
// its local fields except where d chose the incoming value. It returns the
// IDs whose merged value differs from the local one.
//
// d must resolve every conflict of this type.
func (c *collection[T]) merge(local, remote, out *snapshot.Snapshot, d *Decisions) []string {
	mine := c.get(local)
	theirs := c.index(c.get(remote))
	seen := make(map[string]bool, len(mine))

	merged := make([]T, 0, len(mine)+len(theirs))
	var changed []string

	for _, r := range mine {
		m := c.meta(r)
		seen[m.ID] = true
		other, ok := theirs[m.ID]
		if !ok {
			merged = append(merged, r)
			continue
		}

		took := false
		for _, f := range c.fields {
			lv, rv := f.get(r), f.get(other)
			if equalValues(lv, rv) {
				continue
			}
			ch, _ := d.Resolve(Conflict{EntityType: c.entity, ID: m.ID, Field: f.name})
			if ch == UseRemote {
				f.take(&r, other)
				took = true
			}
		}
		if took {
			if om := c.meta(other); om.UpdatedAt.After(m.UpdatedAt) {
				m.UpdatedAt = om.UpdatedAt
			}
			c.setMeta(&r, m)
			changed = append(changed, m.ID)
		}
		merged = append(merged, r)
	}

	for _, r := range c.get(remote) {
		id := c.meta(r).ID
		if seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, r)
		changed = append(changed, id)
	}

	c.set(out, merged)
	return changed
}

// write saves the changed records of s. Records in existing are updated,
// the rest inserted.
func (c *collection[T]) write(ctx context.Context, repos *repository.Repositories, s *snapshot.Snapshot, existing, changed map[string]bool) (int, error) {
	n := 0
	for _, r := range c.get(s) {
		m := c.meta(r)
		if !changed[m.ID] {
			continue
		}
		if existing[m.ID] {
			m.State = domain.StatePersisted
		} else {
			m.State = domain.StateDraft
		}
		c.setMeta(&r, m)
		if err := c.save(ctx, repos, r); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// equalValues compares field values. Strings compare after NFC
// normalization; times compare as instants.
func equalValues(a, b any) bool {
	switch a := a.(type) {
	case string:
		bs, ok := b.(string)
		return ok && norm.NFC.String(a) == norm.NFC.String(bs)
	case []string:
		bs, ok := b.([]string)
		if !ok || len(a) != len(bs) {
			return false
		}
		for i := range a {
			if norm.NFC.String(a[i]) != norm.NFC.String(bs[i]) {
				return false
			}
		}
		return true
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && a.Equal(bt)
	default:
		return a == b
	}
}

var profiles = &collection[domain.Profile]{
	entity: domain.EntityProfile,
	fields: []field[domain.Profile]{
		{"name", func(v domain.Profile) any { return v.Name }, func(d *domain.Profile, s domain.Profile) { d.Name = s.Name }},
		{"activePlanId", func(v domain.Profile) any { return v.ActivePlanID }, func(d *domain.Profile, s domain.Profile) { d.ActivePlanID = s.ActivePlanID }},
	},
	meta:    func(v domain.Profile) domain.Meta { return v.Meta },
	setMeta: func(v *domain.Profile, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.Profile { return s.Profiles },
	set:     func(s *snapshot.Snapshot, v []domain.Profile) { s.Profiles = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.Profile) error {
		_, err := r.Profiles.Save(ctx, v)
		return err
	},
}

var exercises = &collection[domain.Exercise]{
	entity: domain.EntityExercise,
	fields: []field[domain.Exercise]{
		{"name", func(v domain.Exercise) any { return v.Name }, func(d *domain.Exercise, s domain.Exercise) { d.Name = s.Name }},
		{"category", func(v domain.Exercise) any { return v.Category }, func(d *domain.Exercise, s domain.Exercise) { d.Category = s.Category }},
		{"notes", func(v domain.Exercise) any { return v.Notes }, func(d *domain.Exercise, s domain.Exercise) { d.Notes = s.Notes }},
	},
	meta:    func(v domain.Exercise) domain.Meta { return v.Meta },
	setMeta: func(v *domain.Exercise, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.Exercise { return s.Exercises },
	set:     func(s *snapshot.Snapshot, v []domain.Exercise) { s.Exercises = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.Exercise) error {
		_, err := r.Exercises.Save(ctx, v)
		return err
	},
}

var plans = &collection[domain.Plan]{
	entity: domain.EntityPlan,
	fields: []field[domain.Plan]{
		{"name", func(v domain.Plan) any { return v.Name }, func(d *domain.Plan, s domain.Plan) { d.Name = s.Name }},
		{"description", func(v domain.Plan) any { return v.Description }, func(d *domain.Plan, s domain.Plan) { d.Description = s.Description }},
		{"sessionIds", func(v domain.Plan) any { return v.SessionIDs }, func(d *domain.Plan, s domain.Plan) { d.SessionIDs = s.SessionIDs }},
		{"currentSessionIndex", func(v domain.Plan) any { return v.CurrentSessionIndex }, func(d *domain.Plan, s domain.Plan) { d.CurrentSessionIndex = s.CurrentSessionIndex }},
		{"archived", func(v domain.Plan) any { return v.Archived }, func(d *domain.Plan, s domain.Plan) { d.Archived = s.Archived }},
	},
	meta:    func(v domain.Plan) domain.Meta { return v.Meta },
	setMeta: func(v *domain.Plan, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.Plan { return s.Plans },
	set:     func(s *snapshot.Snapshot, v []domain.Plan) { s.Plans = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.Plan) error {
		_, err := r.Plans.Save(ctx, v)
		return err
	},
}

var sessions = &collection[domain.Session]{
	entity: domain.EntitySession,
	fields: []field[domain.Session]{
		{"planId", func(v domain.Session) any { return v.PlanID }, func(d *domain.Session, s domain.Session) { d.PlanID = s.PlanID }},
		{"name", func(v domain.Session) any { return v.Name }, func(d *domain.Session, s domain.Session) { d.Name = s.Name }},
		{"notes", func(v domain.Session) any { return v.Notes }, func(d *domain.Session, s domain.Session) { d.Notes = s.Notes }},
		{"groupIds", func(v domain.Session) any { return v.GroupIDs }, func(d *domain.Session, s domain.Session) { d.GroupIDs = s.GroupIDs }},
	},
	meta:    func(v domain.Session) domain.Meta { return v.Meta },
	setMeta: func(v *domain.Session, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.Session { return s.Sessions },
	set:     func(s *snapshot.Snapshot, v []domain.Session) { s.Sessions = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.Session) error {
		_, err := r.Sessions.Save(ctx, v)
		return err
	},
}

var groups = &collection[domain.Group]{
	entity: domain.EntityGroup,
	fields: []field[domain.Group]{
		{"sessionId", func(v domain.Group) any { return v.SessionID }, func(d *domain.Group, s domain.Group) { d.SessionID = s.SessionID }},
		{"kind", func(v domain.Group) any { return string(v.Kind) }, func(d *domain.Group, s domain.Group) { d.Kind = s.Kind }},
		{"restSeconds", func(v domain.Group) any { return v.RestSeconds }, func(d *domain.Group, s domain.Group) { d.RestSeconds = s.RestSeconds }},
		{"appliedExerciseIds", func(v domain.Group) any { return v.AppliedExerciseIDs }, func(d *domain.Group, s domain.Group) { d.AppliedExerciseIDs = s.AppliedExerciseIDs }},
	},
	meta:    func(v domain.Group) domain.Meta { return v.Meta },
	setMeta: func(v *domain.Group, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.Group { return s.Groups },
	set:     func(s *snapshot.Snapshot, v []domain.Group) { s.Groups = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.Group) error {
		_, err := r.Groups.Save(ctx, v)
		return err
	},
}

var appliedExercises = &collection[domain.AppliedExercise]{
	entity: domain.EntityAppliedExercise,
	fields: []field[domain.AppliedExercise]{
		{"groupId", func(v domain.AppliedExercise) any { return v.GroupID }, func(d *domain.AppliedExercise, s domain.AppliedExercise) { d.GroupID = s.GroupID }},
		{"exerciseId", func(v domain.AppliedExercise) any { return v.ExerciseID }, func(d *domain.AppliedExercise, s domain.AppliedExercise) { d.ExerciseID = s.ExerciseID }},
		{"sets", func(v domain.AppliedExercise) any { return v.Sets }, func(d *domain.AppliedExercise, s domain.AppliedExercise) { d.Sets = s.Sets }},
		{"reps", func(v domain.AppliedExercise) any { return v.Reps }, func(d *domain.AppliedExercise, s domain.AppliedExercise) { d.Reps = s.Reps }},
		{"weightGrams", func(v domain.AppliedExercise) any { return v.WeightGrams }, func(d *domain.AppliedExercise, s domain.AppliedExercise) { d.WeightGrams = s.WeightGrams }},
		{"notes", func(v domain.AppliedExercise) any { return v.Notes }, func(d *domain.AppliedExercise, s domain.AppliedExercise) { d.Notes = s.Notes }},
	},
	meta:    func(v domain.AppliedExercise) domain.Meta { return v.Meta },
	setMeta: func(v *domain.AppliedExercise, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.AppliedExercise { return s.AppliedExercises },
	set:     func(s *snapshot.Snapshot, v []domain.AppliedExercise) { s.AppliedExercises = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.AppliedExercise) error {
		_, err := r.AppliedExercises.Save(ctx, v)
		return err
	},
}

var workoutLogs = &collection[domain.WorkoutLog]{
	entity: domain.EntityWorkoutLog,
	fields: []field[domain.WorkoutLog]{
		{"planId", func(v domain.WorkoutLog) any { return v.PlanID }, func(d *domain.WorkoutLog, s domain.WorkoutLog) { d.PlanID = s.PlanID }},
		{"sessionId", func(v domain.WorkoutLog) any { return v.SessionID }, func(d *domain.WorkoutLog, s domain.WorkoutLog) { d.SessionID = s.SessionID }},
		{"startedAt", func(v domain.WorkoutLog) any { return v.StartedAt }, func(d *domain.WorkoutLog, s domain.WorkoutLog) { d.StartedAt = s.StartedAt }},
		{"finishedAt", func(v domain.WorkoutLog) any { return v.FinishedAt }, func(d *domain.WorkoutLog, s domain.WorkoutLog) { d.FinishedAt = s.FinishedAt }},
		{"notes", func(v domain.WorkoutLog) any { return v.Notes }, func(d *domain.WorkoutLog, s domain.WorkoutLog) { d.Notes = s.Notes }},
	},
	meta:    func(v domain.WorkoutLog) domain.Meta { return v.Meta },
	setMeta: func(v *domain.WorkoutLog, m domain.Meta) { v.Meta = m },
	get:     func(s *snapshot.Snapshot) []domain.WorkoutLog { return s.WorkoutLogs },
	set:     func(s *snapshot.Snapshot, v []domain.WorkoutLog) { s.WorkoutLogs = v },
	save: func(ctx context.Context, r *repository.Repositories, v domain.WorkoutLog) error {
		_, err := r.WorkoutLogs.Save(ctx, v)
		return err
	},
}
