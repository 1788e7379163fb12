package domain

import "time"

// EntityType names a record type. The string form is used in conflict
// reports and snapshot files.
type EntityType string

const (
	EntityProfile         EntityType = "Profile"
	EntityExercise        EntityType = "Exercise"
	EntityPlan            EntityType = "Plan"
	EntitySession         EntityType = "Session"
	EntityGroup           EntityType = "Group"
	EntityAppliedExercise EntityType = "AppliedExercise"
	EntityWorkoutLog      EntityType = "WorkoutLog"
)

// EntityTypes lists every record type in dependency order: a type never
// references a type that appears after it, except through weak references.
var EntityTypes = []EntityType{
	EntityProfile,
	EntityExercise,
	EntityPlan,
	EntitySession,
	EntityGroup,
	EntityAppliedExercise,
	EntityWorkoutLog,
}

// State is the persistence state of a record value.
type State string

const (
	StateDraft     State = "draft"
	StatePersisted State = "persisted"
	StateMutated   State = "mutated"
	StateDeleted   State = "deleted"
)

// CanTransitionTo reports whether the lifecycle allows s -> next.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateDraft:
		return next == StatePersisted
	case StatePersisted, StateMutated:
		return next == StateMutated || next == StateDeleted
	default:
		return false
	}
}

// Meta holds the identity and bookkeeping fields shared by every record.
type Meta struct {
	ID        string    `json:"id"`
	ProfileID string    `json:"profileId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// State is in-memory only; it is never stored or exported.
	State State `json:"-"`
}

// Touch stamps UpdatedAt (and CreatedAt when unset) with now.
func (m *Meta) Touch(now time.Time) {
	m.UpdatedAt = now
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
}

func newMeta(id, profileID string, now time.Time) Meta {
	return Meta{
		ID:        id,
		ProfileID: profileID,
		CreatedAt: now,
		UpdatedAt: now,
		State:     StateDraft,
	}
}

func hydrateMeta(m Meta) Meta {
	m.State = StatePersisted
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m
}

// cloneIDs copies an ID list. The result is never nil.
func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// IndexOf returns the position of id in ids, or -1.
func IndexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// RemoveID returns a copy of ids without id.
func RemoveID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
