package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/snapshot"
)

// Dangling is a reference that does not resolve within a snapshot.
type Dangling struct {
	EntityType domain.EntityType
	ID         string
	Field      string
	Missing    string
}

func (d Dangling) String() string {
	return fmt.Sprintf("%s %s.%s -> %s", d.EntityType, d.ID, d.Field, d.Missing)
}

// FindDangling returns every reference in s that does not resolve, in
// snapshot order. Workout log plan and session references are weak and
// are not checked.
func FindDangling(s *snapshot.Snapshot) []Dangling {
	ids := func(n int, id func(int) string) map[string]bool {
		m := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			m[id(i)] = true
		}
		return m
	}
	profileIDs := ids(len(s.Profiles), func(i int) string { return s.Profiles[i].ID })
	exerciseIDs := ids(len(s.Exercises), func(i int) string { return s.Exercises[i].ID })
	planIDs := ids(len(s.Plans), func(i int) string { return s.Plans[i].ID })
	sessionIDs := ids(len(s.Sessions), func(i int) string { return s.Sessions[i].ID })
	groupIDs := ids(len(s.Groups), func(i int) string { return s.Groups[i].ID })
	appliedIDs := ids(len(s.AppliedExercises), func(i int) string { return s.AppliedExercises[i].ID })

	var out []Dangling
	check := func(known map[string]bool, e domain.EntityType, id, field string, refs ...string) {
		for _, ref := range refs {
			if ref != "" && !known[ref] {
				out = append(out, Dangling{EntityType: e, ID: id, Field: field, Missing: ref})
			}
		}
	}
	owner := func(e domain.EntityType, m domain.Meta) {
		check(profileIDs, e, m.ID, "profileId", m.ProfileID)
	}

	if !profileIDs[s.ProfileID] {
		out = append(out, Dangling{EntityType: domain.EntityProfile, ID: s.ProfileID, Field: "id", Missing: s.ProfileID})
	}
	for _, p := range s.Profiles {
		check(planIDs, domain.EntityProfile, p.ID, "activePlanId", p.ActivePlanID)
	}
	for _, e := range s.Exercises {
		owner(domain.EntityExercise, e.Meta)
	}
	for _, p := range s.Plans {
		owner(domain.EntityPlan, p.Meta)
		check(sessionIDs, domain.EntityPlan, p.ID, "sessionIds", p.SessionIDs...)
	}
	for _, ss := range s.Sessions {
		owner(domain.EntitySession, ss.Meta)
		check(planIDs, domain.EntitySession, ss.ID, "planId", ss.PlanID)
		check(groupIDs, domain.EntitySession, ss.ID, "groupIds", ss.GroupIDs...)
	}
	for _, g := range s.Groups {
		owner(domain.EntityGroup, g.Meta)
		check(sessionIDs, domain.EntityGroup, g.ID, "sessionId", g.SessionID)
		check(appliedIDs, domain.EntityGroup, g.ID, "appliedExerciseIds", g.AppliedExerciseIDs...)
	}
	for _, a := range s.AppliedExercises {
		owner(domain.EntityAppliedExercise, a.Meta)
		check(groupIDs, domain.EntityAppliedExercise, a.ID, "groupId", a.GroupID)
		check(exerciseIDs, domain.EntityAppliedExercise, a.ID, "exerciseId", a.ExerciseID)
	}
	for _, w := range s.WorkoutLogs {
		owner(domain.EntityWorkoutLog, w.Meta)
	}
	return out
}

// Misowned is a child record whose parent reference disagrees with the
// parents' ID lists: it is listed by several parents, by a parent other than
// its own, or not by its own parent.
type Misowned struct {
	EntityType domain.EntityType
	ID         string
	Field      string

	// Parent is the value of the child's parent reference.
	Parent string

	// ListedBy holds the parents whose ID list contains the child, sorted.
	ListedBy []string
}

func (m Misowned) String() string {
	listed := "no parent"
	if len(m.ListedBy) > 0 {
		listed = strings.Join(m.ListedBy, ", ")
	}
	return fmt.Sprintf("%s %s.%s = %s, listed by %s", m.EntityType, m.ID, m.Field, m.Parent, listed)
}

// edge is one parent list and the matching child back reference.
type edge struct {
	child  domain.EntityType
	field  string
	lists  map[string][]string // parent ID -> child IDs
	parent map[string]string   // child ID -> parent reference
	order  []string            // child IDs in snapshot order
}

func (e *edge) misowned() []Misowned {
	listedBy := make(map[string][]string)
	for p, children := range e.lists {
		for _, c := range children {
			listedBy[c] = append(listedBy[c], p)
		}
	}

	var out []Misowned
	for _, c := range e.order {
		p := e.parent[c]
		if _, known := e.lists[p]; !known {
			// A missing parent is reported as dangling.
			continue
		}
		by := listedBy[c]
		if len(by) == 1 && by[0] == p {
			continue
		}
		sort.Strings(by)
		out = append(out, Misowned{EntityType: e.child, ID: c, Field: e.field, Parent: p, ListedBy: by})
	}
	return out
}

// FindMisowned returns every session, group and applied exercise of s whose
// parent reference and the parent ID lists disagree, in snapshot order.
func FindMisowned(s *snapshot.Snapshot) []Misowned {
	sessions := &edge{child: domain.EntitySession, field: "planId", lists: map[string][]string{}, parent: map[string]string{}}
	for _, p := range s.Plans {
		sessions.lists[p.ID] = p.SessionIDs
	}
	for _, ss := range s.Sessions {
		sessions.parent[ss.ID] = ss.PlanID
		sessions.order = append(sessions.order, ss.ID)
	}

	groups := &edge{child: domain.EntityGroup, field: "sessionId", lists: map[string][]string{}, parent: map[string]string{}}
	for _, ss := range s.Sessions {
		groups.lists[ss.ID] = ss.GroupIDs
	}
	for _, g := range s.Groups {
		groups.parent[g.ID] = g.SessionID
		groups.order = append(groups.order, g.ID)
	}

	applied := &edge{child: domain.EntityAppliedExercise, field: "groupId", lists: map[string][]string{}, parent: map[string]string{}}
	for _, g := range s.Groups {
		applied.lists[g.ID] = g.AppliedExerciseIDs
	}
	for _, a := range s.AppliedExercises {
		applied.parent[a.ID] = a.GroupID
		applied.order = append(applied.order, a.ID)
	}

	var out []Misowned
	for _, e := range []*edge{sessions, groups, applied} {
		out = append(out, e.misowned()...)
	}
	return out
}

// CheckIntegrity returns a STRUCTURAL_VALIDATION error naming every
// dangling ID and every misowned record in s, or nil when the plan trees
// are consistent.
func CheckIntegrity(s *snapshot.Snapshot) error {
	dangling := FindDangling(s)
	misowned := FindMisowned(s)
	if len(dangling) == 0 && len(misowned) == 0 {
		return nil
	}

	details := make(map[string]string)
	seen := make(map[string]bool)
	var missing []string
	for _, d := range dangling {
		ref := fmt.Sprintf("%s %s.%s", d.EntityType, d.ID, d.Field)
		if prev, ok := details[ref]; ok {
			details[ref] = prev + ", " + d.Missing
		} else {
			details[ref] = d.Missing
		}
		if !seen[d.Missing] {
			seen[d.Missing] = true
			missing = append(missing, d.Missing)
		}
	}
	sort.Strings(missing)

	var owned []string
	for _, m := range misowned {
		ref := fmt.Sprintf("%s %s.%s", m.EntityType, m.ID, m.Field)
		if len(m.ListedBy) == 0 {
			details[ref] = m.Parent + ", listed by no parent"
		} else {
			details[ref] = m.Parent + ", listed by " + strings.Join(m.ListedBy, ", ")
		}
		owned = append(owned, m.ID)
	}
	sort.Strings(owned)

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "dangling references to "+strings.Join(missing, ", "))
	}
	if len(owned) > 0 {
		parts = append(parts, "inconsistent ownership of "+strings.Join(owned, ", "))
	}
	return domain.Structural(strings.Join(parts, "; "), details)
}
