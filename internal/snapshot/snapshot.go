// Package snapshot reads and writes full exports of one profile's data.
//
// A snapshot is a JSON document carrying a schema version tag and one array
// per record type. Decode validates the raw document against an embedded
// CUE schema before unmarshalling it, so a malformed or foreign file is
// rejected with a precise message instead of producing half-filled records.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/liftlog/internal/domain"
)

// SchemaVersion is the snapshot format this build reads and writes.
const SchemaVersion = 1

var (
	// ErrInvalid is returned for documents that do not match the schema.
	ErrInvalid = errors.New("invalid snapshot")

	// ErrUnsupportedVersion is returned for a schemaVersion other than
	// SchemaVersion.
	ErrUnsupportedVersion = errors.New("unsupported snapshot schema version")
)

// Snapshot is a full export of one profile's records.
type Snapshot struct {
	SchemaVersion int `json:"schemaVersion"`

	// DataVersion is the storage layout version the data was exported from.
	DataVersion int       `json:"dataVersion"`
	ProfileID   string    `json:"profileId"`
	ExportedAt  time.Time `json:"exportedAt"`

	Profiles         []domain.Profile         `json:"profiles"`
	Exercises        []domain.Exercise        `json:"exercises"`
	Plans            []domain.Plan            `json:"plans"`
	Sessions         []domain.Session         `json:"sessions"`
	Groups           []domain.Group           `json:"groups"`
	AppliedExercises []domain.AppliedExercise `json:"appliedExercises"`
	WorkoutLogs      []domain.WorkoutLog      `json:"workoutLogs"`
}

// New returns an empty snapshot for profileID.
func New(profileID string, dataVersion int, exportedAt time.Time) *Snapshot {
	s := &Snapshot{
		SchemaVersion: SchemaVersion,
		DataVersion:   dataVersion,
		ProfileID:     profileID,
		ExportedAt:    exportedAt.UTC(),
	}
	s.Normalize()
	return s
}

// Count returns the number of records of type e.
func (s *Snapshot) Count(e domain.EntityType) int {
	switch e {
	case domain.EntityProfile:
		return len(s.Profiles)
	case domain.EntityExercise:
		return len(s.Exercises)
	case domain.EntityPlan:
		return len(s.Plans)
	case domain.EntitySession:
		return len(s.Sessions)
	case domain.EntityGroup:
		return len(s.Groups)
	case domain.EntityAppliedExercise:
		return len(s.AppliedExercises)
	case domain.EntityWorkoutLog:
		return len(s.WorkoutLogs)
	}
	return 0
}

// Total returns the number of records across all types.
func (s *Snapshot) Total() int {
	n := 0
	for _, e := range domain.EntityTypes {
		n += s.Count(e)
	}
	return n
}

// Normalize replaces nil collections with empty ones and rebuilds every
// record as a persisted value with UTC timestamps and non-nil ID lists.
func (s *Snapshot) Normalize() {
	s.ExportedAt = s.ExportedAt.UTC()

	s.Profiles = hydrateAll(s.Profiles, func(v domain.Profile) domain.Profile {
		return domain.HydrateProfile(v.Meta, v.ProfileFields)
	})
	s.Exercises = hydrateAll(s.Exercises, func(v domain.Exercise) domain.Exercise {
		return domain.HydrateExercise(v.Meta, v.ExerciseFields)
	})
	s.Plans = hydrateAll(s.Plans, func(v domain.Plan) domain.Plan {
		return domain.HydratePlan(v.Meta, v.PlanFields)
	})
	s.Sessions = hydrateAll(s.Sessions, func(v domain.Session) domain.Session {
		return domain.HydrateSession(v.Meta, v.SessionFields)
	})
	s.Groups = hydrateAll(s.Groups, func(v domain.Group) domain.Group {
		return domain.HydrateGroup(v.Meta, v.GroupFields)
	})
	s.AppliedExercises = hydrateAll(s.AppliedExercises, func(v domain.AppliedExercise) domain.AppliedExercise {
		return domain.HydrateAppliedExercise(v.Meta, v.AppliedExerciseFields)
	})
	s.WorkoutLogs = hydrateAll(s.WorkoutLogs, func(v domain.WorkoutLog) domain.WorkoutLog {
		return domain.HydrateWorkoutLog(v.Meta, v.WorkoutLogFields)
	})
}

func hydrateAll[T any](in []T, hydrate func(T) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = hydrate(v)
	}
	return out
}

// Encode writes s as indented JSON.
func Encode(s *Snapshot) ([]byte, error) {
	c := *s
	c.Normalize()
	b, err := json.MarshalIndent(&c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(b, '\n'), nil
}

// Decode validates data against the snapshot schema and returns the
// normalized snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var header struct {
		SchemaVersion *int `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if header.SchemaVersion == nil {
		return nil, fmt.Errorf("%w: schemaVersion is missing", ErrInvalid)
	}
	if *header.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, *header.SchemaVersion, SchemaVersion)
	}

	v, err := loadValidator()
	if err != nil {
		return nil, err
	}
	if err := v.validate(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var s Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s.Normalize()
	return &s, nil
}
