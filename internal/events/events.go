// Package events carries domain events from services to their handlers.
//
// Events are immutable values describing something that has already
// happened and been committed. Services dispatch them on a Bus after their
// transaction commits; handlers react with follow-up work of their own.
package events

import (
	"fmt"
	"time"
)

// Kind enumerates the domain events. The set is closed: handlers are
// registered against these constants, never against names.
type Kind int

const (
	KindWorkoutFinished Kind = iota + 1
	KindPlanDeleted
	KindSessionDeleted
	KindPlanSaved
	KindSnapshotImported
)

// Kinds lists every event kind.
var Kinds = []Kind{
	KindWorkoutFinished,
	KindPlanDeleted,
	KindSessionDeleted,
	KindPlanSaved,
	KindSnapshotImported,
}

func (k Kind) String() string {
	switch k {
	case KindWorkoutFinished:
		return "WorkoutFinished"
	case KindPlanDeleted:
		return "PlanDeleted"
	case KindSessionDeleted:
		return "SessionDeleted"
	case KindPlanSaved:
		return "PlanSaved"
	case KindSnapshotImported:
		return "SnapshotImported"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindWorkoutFinished && k <= KindSnapshotImported
}

// Event is implemented by every domain event.
type Event interface {
	Kind() Kind
	OccurredAt() time.Time

	// AggregateID is the ID of the record the event is about.
	AggregateID() string
}

// WorkoutFinished is raised when a workout log is completed.
type WorkoutFinished struct {
	LogID     string
	ProfileID string
	PlanID    string
	SessionID string
	At        time.Time
}

func (e WorkoutFinished) Kind() Kind            { return KindWorkoutFinished }
func (e WorkoutFinished) OccurredAt() time.Time { return e.At }
func (e WorkoutFinished) AggregateID() string   { return e.LogID }

// PlanDeleted is raised after a plan row is removed.
type PlanDeleted struct {
	PlanID    string
	ProfileID string

	// Cascade is true when the plan's sessions were removed with it.
	Cascade bool
	At      time.Time
}

func (e PlanDeleted) Kind() Kind            { return KindPlanDeleted }
func (e PlanDeleted) OccurredAt() time.Time { return e.At }
func (e PlanDeleted) AggregateID() string   { return e.PlanID }

// SessionDeleted is raised after a session is removed from a plan.
type SessionDeleted struct {
	SessionID string
	PlanID    string
	ProfileID string
	Cascade   bool
	At        time.Time
}

func (e SessionDeleted) Kind() Kind            { return KindSessionDeleted }
func (e SessionDeleted) OccurredAt() time.Time { return e.At }
func (e SessionDeleted) AggregateID() string   { return e.SessionID }

// PlanSaved is raised after a plan is created or changed.
type PlanSaved struct {
	PlanID    string
	ProfileID string
	Created   bool
	At        time.Time
}

func (e PlanSaved) Kind() Kind            { return KindPlanSaved }
func (e PlanSaved) OccurredAt() time.Time { return e.At }
func (e PlanSaved) AggregateID() string   { return e.PlanID }

// SnapshotImported is raised after an import has been written.
type SnapshotImported struct {
	ProfileID string

	// Records is the number of records written by the import.
	Records int

	// Resolved is the number of conflicts settled by decisions.
	Resolved int
	At       time.Time
}

func (e SnapshotImported) Kind() Kind            { return KindSnapshotImported }
func (e SnapshotImported) OccurredAt() time.Time { return e.At }
func (e SnapshotImported) AggregateID() string   { return e.ProfileID }
