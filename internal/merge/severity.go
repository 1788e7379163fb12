package merge

// Severity ranks how disruptive a field conflict is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Severities lists the levels from most to least severe.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow}

// severities is the fixed per-field policy. Fields are matched by name
// regardless of entity type.
var severities = map[string]Severity{
	// identity, name and reference fields
	"name":         SeverityHigh,
	"planId":       SeverityHigh,
	"sessionId":    SeverityHigh,
	"groupId":      SeverityHigh,
	"exerciseId":   SeverityHigh,
	"activePlanId": SeverityHigh,
	"kind":         SeverityHigh,

	// structure, counts and ordering
	"sessionIds":          SeverityMedium,
	"groupIds":            SeverityMedium,
	"appliedExerciseIds":  SeverityMedium,
	"sets":                SeverityMedium,
	"reps":                SeverityMedium,
	"currentSessionIndex": SeverityMedium,
	"restSeconds":         SeverityMedium,
	"weightGrams":         SeverityMedium,
	"archived":            SeverityMedium,
	"startedAt":           SeverityMedium,
	"finishedAt":          SeverityMedium,
	"category":            SeverityMedium,

	// free text
	"description": SeverityLow,
	"notes":       SeverityLow,
}

// SeverityOf returns the severity for field. Fields outside the policy
// table are medium.
func SeverityOf(field string) Severity {
	if s, ok := severities[field]; ok {
		return s
	}
	return SeverityMedium
}

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}
