package merge

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/liftlog/internal/domain"
)

// Conflict is one field whose value differs between the local and the
// incoming copy of the same record.
type Conflict struct {
	EntityType  domain.EntityType `json:"entityType"`
	ID          string            `json:"id"`
	Field       string            `json:"field"`
	LocalValue  any               `json:"localValue"`
	RemoteValue any               `json:"remoteValue"`
	Severity    Severity          `json:"severity"`
}

// EntityReport groups the conflicts found for one record type.
type EntityReport struct {
	EntityType domain.EntityType `json:"entityType"`
	Conflicts  []Conflict        `json:"conflicts"`
}

// Report is the outcome of comparing two snapshots. Entities holds one entry
// per record type that has conflicts, in dependency order.
type Report struct {
	Entities []EntityReport `json:"entities"`
}

// Total returns the number of conflicts.
func (r Report) Total() int {
	n := 0
	for _, e := range r.Entities {
		n += len(e.Conflicts)
	}
	return n
}

// Empty reports whether there are no conflicts.
func (r Report) Empty() bool {
	return r.Total() == 0
}

// Conflicts returns every conflict in report order.
func (r Report) Conflicts() []Conflict {
	out := make([]Conflict, 0, r.Total())
	for _, e := range r.Entities {
		out = append(out, e.Conflicts...)
	}
	return out
}

// CountBySeverity returns the number of conflicts per severity.
func (r Report) CountBySeverity() map[Severity]int {
	out := make(map[Severity]int, len(Severities))
	for _, c := range r.Conflicts() {
		out[c.Severity]++
	}
	return out
}

// Highest returns the most severe level present, or "" for an empty report.
func (r Report) Highest() Severity {
	var top Severity
	for _, c := range r.Conflicts() {
		if c.Severity.rank() > top.rank() {
			top = c.Severity
		}
	}
	return top
}

// WriteText renders the report as a plain table. limit caps the rows shown
// per entity type; zero or less shows all.
func (r Report) WriteText(w io.Writer, limit int) error {
	var b strings.Builder
	counts := r.CountBySeverity()
	fmt.Fprintf(&b, "%d conflicts (high %d, medium %d, low %d)\n",
		r.Total(), counts[SeverityHigh], counts[SeverityMedium], counts[SeverityLow])

	for _, e := range r.Entities {
		fmt.Fprintf(&b, "\n%s (%d)\n", e.EntityType, len(e.Conflicts))
		for i, c := range e.Conflicts {
			if limit > 0 && i == limit {
				fmt.Fprintf(&b, "  ... %d more\n", len(e.Conflicts)-limit)
				break
			}
			fmt.Fprintf(&b, "  %-6s %s.%s: local=%s remote=%s\n",
				c.Severity, c.ID, c.Field, formatValue(c.LocalValue), formatValue(c.RemoteValue))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatValue(v any) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		return "[" + strings.Join(v, ",") + "]"
	case time.Time:
		if v.IsZero() {
			return "-"
		}
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
