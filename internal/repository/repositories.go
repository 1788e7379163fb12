package repository

import (
	"fmt"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/store"
)

// Table names, used by change notifications and reactive queries.
const (
	TableProfiles         = "profiles"
	TableExercises        = "exercises"
	TablePlans            = "plans"
	TableSessions         = "sessions"
	TableGroups           = "exercise_groups"
	TableAppliedExercises = "applied_exercises"
	TableWorkoutLogs      = "workout_logs"
)

var tableNames = map[domain.EntityType]string{
	domain.EntityProfile:         TableProfiles,
	domain.EntityExercise:        TableExercises,
	domain.EntityPlan:            TablePlans,
	domain.EntitySession:         TableSessions,
	domain.EntityGroup:           TableGroups,
	domain.EntityAppliedExercise: TableAppliedExercises,
	domain.EntityWorkoutLog:      TableWorkoutLogs,
}

// TableFor returns the table that stores records of type e.
func TableFor(e domain.EntityType) (string, error) {
	name, ok := tableNames[e]
	if !ok {
		return "", fmt.Errorf("unknown entity type %q", e)
	}
	return name, nil
}

type tableBase struct {
	store *store.Store
	clock domain.Clock
}

// Repositories bundles one repository per record type over a single store.
type Repositories struct {
	Store *store.Store

	Profiles         *ProfileRepository
	Exercises        *ExerciseRepository
	Plans            *PlanRepository
	Sessions         *SessionRepository
	Groups           *GroupRepository
	AppliedExercises *AppliedExerciseRepository
	WorkoutLogs      *WorkoutLogRepository
}

// New creates the repositories. clock fills timestamps that a record being
// saved has left unset.
func New(s *store.Store, clock domain.Clock) *Repositories {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	base := tableBase{store: s, clock: clock}
	return &Repositories{
		Store:            s,
		Profiles:         newProfileRepository(base),
		Exercises:        newExerciseRepository(base),
		Plans:            newPlanRepository(base),
		Sessions:         newSessionRepository(base),
		Groups:           newGroupRepository(base),
		AppliedExercises: newAppliedExerciseRepository(base),
		WorkoutLogs:      newWorkoutLogRepository(base),
	}
}
