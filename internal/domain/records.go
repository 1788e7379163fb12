package domain

import "time"

// ProfileFields are the user-editable fields of a Profile.
type ProfileFields struct {
	Name string `json:"name"`

	// ActivePlanID is a weak reference: it may be cleared when the plan is
	// deleted, and is empty when no plan is active.
	ActivePlanID string `json:"activePlanId"`
}

// Profile is the scope every other record belongs to. Its ProfileID equals its ID.
type Profile struct {
	Meta
	ProfileFields
}

// NewProfile validates f and returns a draft Profile.
func NewProfile(id string, f ProfileFields, now time.Time) (Profile, error) {
	p := Profile{Meta: newMeta(id, id, now), ProfileFields: f}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// HydrateProfile rebuilds a persisted Profile without validation.
func HydrateProfile(m Meta, f ProfileFields) Profile {
	return Profile{Meta: hydrateMeta(m), ProfileFields: f}
}

// Validate checks the Profile's invariants.
func (p Profile) Validate() error {
	var v validator
	v.meta(p.Meta)
	v.require(p.ID == p.ProfileID, "profileId", "must equal id")
	v.name("name", p.Name)
	return v.result(EntityProfile, p.ID)
}

// ExerciseFields are the fields of a catalog Exercise.
type ExerciseFields struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Notes    string `json:"notes"`
}

// Exercise is a catalog entry referenced by applied exercises.
type Exercise struct {
	Meta
	ExerciseFields
}

// NewExercise validates f and returns a draft Exercise.
func NewExercise(id, profileID string, f ExerciseFields, now time.Time) (Exercise, error) {
	e := Exercise{Meta: newMeta(id, profileID, now), ExerciseFields: f}
	if err := e.Validate(); err != nil {
		return Exercise{}, err
	}
	return e, nil
}

// HydrateExercise rebuilds a persisted Exercise without validation.
func HydrateExercise(m Meta, f ExerciseFields) Exercise {
	return Exercise{Meta: hydrateMeta(m), ExerciseFields: f}
}

// Validate checks the Exercise's invariants.
func (e Exercise) Validate() error {
	var v validator
	v.meta(e.Meta)
	v.name("name", e.Name)
	v.text("notes", e.Notes)
	return v.result(EntityExercise, e.ID)
}

// PlanFields are the fields of a training Plan.
type PlanFields struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SessionIDs  []string `json:"sessionIds"`

	// CurrentSessionIndex points into SessionIDs at the next session to train.
	CurrentSessionIndex int  `json:"currentSessionIndex"`
	Archived            bool `json:"archived"`
}

// Plan is the aggregate root owning an ordered list of sessions.
type Plan struct {
	Meta
	PlanFields
}

// NewPlan validates f and returns a draft Plan.
func NewPlan(id, profileID string, f PlanFields, now time.Time) (Plan, error) {
	f.SessionIDs = cloneIDs(f.SessionIDs)
	p := Plan{Meta: newMeta(id, profileID, now), PlanFields: f}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// HydratePlan rebuilds a persisted Plan without validation.
func HydratePlan(m Meta, f PlanFields) Plan {
	f.SessionIDs = cloneIDs(f.SessionIDs)
	return Plan{Meta: hydrateMeta(m), PlanFields: f}
}

// Validate checks the Plan's invariants.
func (p Plan) Validate() error {
	var v validator
	v.meta(p.Meta)
	v.name("name", p.Name)
	v.text("description", p.Description)
	v.idList("sessionIds", p.SessionIDs)
	switch {
	case p.CurrentSessionIndex < 0:
		v.fail("currentSessionIndex", "must not be negative")
	case len(p.SessionIDs) == 0 && p.CurrentSessionIndex != 0:
		v.fail("currentSessionIndex", "must be 0 for a plan without sessions")
	case len(p.SessionIDs) > 0 && p.CurrentSessionIndex >= len(p.SessionIDs):
		v.fail("currentSessionIndex", "is out of range")
	}
	return v.result(EntityPlan, p.ID)
}

// WithoutSession returns a copy of p with sessionID detached, keeping
// CurrentSessionIndex in range.
func (p Plan) WithoutSession(sessionID string) Plan {
	idx := IndexOf(p.SessionIDs, sessionID)
	if idx < 0 {
		return p
	}
	p.SessionIDs = RemoveID(p.SessionIDs, sessionID)
	if idx < p.CurrentSessionIndex {
		p.CurrentSessionIndex--
	}
	if p.CurrentSessionIndex >= len(p.SessionIDs) {
		p.CurrentSessionIndex = 0
	}
	return p
}

// SessionFields are the fields of a Session.
type SessionFields struct {
	PlanID   string   `json:"planId"`
	Name     string   `json:"name"`
	Notes    string   `json:"notes"`
	GroupIDs []string `json:"groupIds"`
}

// Session is one training day inside a Plan.
type Session struct {
	Meta
	SessionFields
}

// NewSession validates f and returns a draft Session.
func NewSession(id, profileID string, f SessionFields, now time.Time) (Session, error) {
	f.GroupIDs = cloneIDs(f.GroupIDs)
	s := Session{Meta: newMeta(id, profileID, now), SessionFields: f}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}
	return s, nil
}

// HydrateSession rebuilds a persisted Session without validation.
func HydrateSession(m Meta, f SessionFields) Session {
	f.GroupIDs = cloneIDs(f.GroupIDs)
	return Session{Meta: hydrateMeta(m), SessionFields: f}
}

// Validate checks the Session's invariants.
func (s Session) Validate() error {
	var v validator
	v.meta(s.Meta)
	v.ref("planId", s.PlanID)
	v.name("name", s.Name)
	v.text("notes", s.Notes)
	v.idList("groupIds", s.GroupIDs)
	return v.result(EntitySession, s.ID)
}

// GroupKind describes how the exercises of a Group are performed.
type GroupKind string

const (
	GroupSingle   GroupKind = "single"
	GroupSuperset GroupKind = "superset"
	GroupCircuit  GroupKind = "circuit"
)

// Valid reports whether k is a known kind.
func (k GroupKind) Valid() bool {
	switch k {
	case GroupSingle, GroupSuperset, GroupCircuit:
		return true
	}
	return false
}

const maxRestSeconds = 3600

// GroupFields are the fields of a Group.
type GroupFields struct {
	SessionID          string    `json:"sessionId"`
	Kind               GroupKind `json:"kind"`
	RestSeconds        int       `json:"restSeconds"`
	AppliedExerciseIDs []string  `json:"appliedExerciseIds"`
}

// Group is a block of exercises inside a Session.
type Group struct {
	Meta
	GroupFields
}

// NewGroup validates f and returns a draft Group.
func NewGroup(id, profileID string, f GroupFields, now time.Time) (Group, error) {
	f.AppliedExerciseIDs = cloneIDs(f.AppliedExerciseIDs)
	g := Group{Meta: newMeta(id, profileID, now), GroupFields: f}
	if err := g.Validate(); err != nil {
		return Group{}, err
	}
	return g, nil
}

// HydrateGroup rebuilds a persisted Group without validation.
func HydrateGroup(m Meta, f GroupFields) Group {
	f.AppliedExerciseIDs = cloneIDs(f.AppliedExerciseIDs)
	return Group{Meta: hydrateMeta(m), GroupFields: f}
}

// Validate checks the Group's invariants.
func (g Group) Validate() error {
	var v validator
	v.meta(g.Meta)
	v.ref("sessionId", g.SessionID)
	v.require(g.Kind.Valid(), "kind", "must be single, superset or circuit")
	v.require(g.RestSeconds >= 0 && g.RestSeconds <= maxRestSeconds, "restSeconds", "must be between 0 and 3600")
	v.idList("appliedExerciseIds", g.AppliedExerciseIDs)
	v.require(g.Kind != GroupSingle || len(g.AppliedExerciseIDs) <= 1, "appliedExerciseIds", "a single group holds at most one exercise")
	return v.result(EntityGroup, g.ID)
}

// AppliedExerciseFields are the fields of an AppliedExercise.
type AppliedExerciseFields struct {
	GroupID     string `json:"groupId"`
	ExerciseID  string `json:"exerciseId"`
	Sets        int    `json:"sets"`
	Reps        int    `json:"reps"`
	WeightGrams int64  `json:"weightGrams"`
	Notes       string `json:"notes"`
}

// AppliedExercise is a catalog exercise prescribed inside a Group.
type AppliedExercise struct {
	Meta
	AppliedExerciseFields
}

// NewAppliedExercise validates f and returns a draft AppliedExercise.
func NewAppliedExercise(id, profileID string, f AppliedExerciseFields, now time.Time) (AppliedExercise, error) {
	a := AppliedExercise{Meta: newMeta(id, profileID, now), AppliedExerciseFields: f}
	if err := a.Validate(); err != nil {
		return AppliedExercise{}, err
	}
	return a, nil
}

// HydrateAppliedExercise rebuilds a persisted AppliedExercise without validation.
func HydrateAppliedExercise(m Meta, f AppliedExerciseFields) AppliedExercise {
	return AppliedExercise{Meta: hydrateMeta(m), AppliedExerciseFields: f}
}

// Validate checks the AppliedExercise's invariants.
func (a AppliedExercise) Validate() error {
	var v validator
	v.meta(a.Meta)
	v.ref("groupId", a.GroupID)
	v.ref("exerciseId", a.ExerciseID)
	v.require(a.Sets >= 1 && a.Sets <= 100, "sets", "must be between 1 and 100")
	v.require(a.Reps >= 0 && a.Reps <= 1000, "reps", "must be between 0 and 1000")
	v.require(a.WeightGrams >= 0, "weightGrams", "must not be negative")
	v.text("notes", a.Notes)
	return v.result(EntityAppliedExercise, a.ID)
}

// WorkoutLogFields are the fields of a WorkoutLog.
type WorkoutLogFields struct {
	// PlanID and SessionID are weak references: history outlives the plan.
	PlanID    string `json:"planId"`
	SessionID string `json:"sessionId"`

	StartedAt time.Time `json:"startedAt"`

	// FinishedAt is zero while the workout is in progress.
	FinishedAt time.Time `json:"finishedAt"`
	Notes      string    `json:"notes"`
}

// WorkoutLog records one performed session.
type WorkoutLog struct {
	Meta
	WorkoutLogFields
}

// NewWorkoutLog validates f and returns a draft WorkoutLog.
func NewWorkoutLog(id, profileID string, f WorkoutLogFields, now time.Time) (WorkoutLog, error) {
	w := WorkoutLog{Meta: newMeta(id, profileID, now), WorkoutLogFields: f}
	if err := w.Validate(); err != nil {
		return WorkoutLog{}, err
	}
	return w, nil
}

// HydrateWorkoutLog rebuilds a persisted WorkoutLog without validation.
func HydrateWorkoutLog(m Meta, f WorkoutLogFields) WorkoutLog {
	f.StartedAt = f.StartedAt.UTC()
	f.FinishedAt = f.FinishedAt.UTC()
	return WorkoutLog{Meta: hydrateMeta(m), WorkoutLogFields: f}
}

// Finished reports whether the workout has been completed.
func (w WorkoutLog) Finished() bool {
	return !w.FinishedAt.IsZero()
}

// Validate checks the WorkoutLog's invariants.
func (w WorkoutLog) Validate() error {
	var v validator
	v.meta(w.Meta)
	v.ref("planId", w.PlanID)
	v.ref("sessionId", w.SessionID)
	v.require(!w.StartedAt.IsZero(), "startedAt", "must be set")
	v.require(w.FinishedAt.IsZero() || !w.FinishedAt.Before(w.StartedAt), "finishedAt", "must not precede startedAt")
	v.text("notes", w.Notes)
	return v.result(EntityWorkoutLog, w.ID)
}
