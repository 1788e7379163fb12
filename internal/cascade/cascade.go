// Package cascade deletes a record together with the records it owns.
//
// Ownership runs Plan -> Session -> Group -> AppliedExercise. A cascading
// delete collects the whole subtree and removes it deepest first, root last,
// inside one store transaction: either every record goes or none does.
//
// Children are found two ways at each level: the ordered ID list on the
// parent and a storage query on the child's parent-reference column. The
// union is deleted, so rows that reference the parent without being listed
// on it are removed too.
//
// A non-cascading delete removes the root only and leaves its descendants
// orphaned. In both modes a session or group root is detached from its
// parent's ID list in the same transaction.
package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/observability"
	"github.com/roach88/liftlog/internal/repository"
)

// Root identifies the record a delete starts from.
type Root struct {
	Type domain.EntityType
	ID   string
}

func (r Root) String() string {
	return string(r.Type) + " " + r.ID
}

// Report counts the records a committed delete removed, per level.
type Report struct {
	Root    Root `json:"root"`
	Cascade bool `json:"cascade"`

	Plans            int `json:"plans"`
	Sessions         int `json:"sessions"`
	Groups           int `json:"groups"`
	AppliedExercises int `json:"appliedExercises"`
}

// Total returns the number of records removed.
func (r Report) Total() int {
	return r.Plans + r.Sessions + r.Groups + r.AppliedExercises
}

// Orchestrator performs cascading and single-record deletes.
type Orchestrator struct {
	repos   *repository.Repositories
	clock   domain.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates an Orchestrator. logger and metrics may be nil.
func New(repos *repository.Repositories, clock domain.Clock, logger *slog.Logger, metrics *observability.Metrics) *Orchestrator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{repos: repos, clock: clock, logger: logger, metrics: metrics}
}

// Delete removes root and, when includeDescendants is set, everything it owns.
//
// Errors: NOT_FOUND when root does not exist, BUSINESS_RULE_VIOLATION for a
// root type that has no subtree, APPLICATION_FAILURE for storage failures.
// On any error nothing is deleted.
func (o *Orchestrator) Delete(ctx context.Context, root Root, includeDescendants bool) (Report, error) {
	mode := "single"
	if includeDescendants {
		mode = "cascade"
	}

	var report Report
	err := o.repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		report, err = o.delete(ctx, root, includeDescendants)
		return err
	})
	if err != nil {
		o.metrics.CascadeDelete(string(root.Type), mode, "failed")
		o.logger.Warn("delete rolled back",
			"root", root.String(),
			"mode", mode,
			"error", err,
		)
		return Report{}, fmt.Errorf("delete %s: %w", root, err)
	}

	o.metrics.CascadeDelete(string(root.Type), mode, "ok")
	o.metrics.RecordsDeleted(string(domain.EntityPlan), report.Plans)
	o.metrics.RecordsDeleted(string(domain.EntitySession), report.Sessions)
	o.metrics.RecordsDeleted(string(domain.EntityGroup), report.Groups)
	o.metrics.RecordsDeleted(string(domain.EntityAppliedExercise), report.AppliedExercises)

	o.logger.Info("delete committed",
		"root", root.String(),
		"mode", mode,
		"plans", report.Plans,
		"sessions", report.Sessions,
		"groups", report.Groups,
		"applied_exercises", report.AppliedExercises,
	)
	return report, nil
}

// subtree lists the records below a root, one slice per level.
type subtree struct {
	sessions []string
	groups   []string
	applied  []string
}

func (o *Orchestrator) delete(ctx context.Context, root Root, includeDescendants bool) (Report, error) {
	report := Report{Root: root, Cascade: includeDescendants}

	var tree subtree
	var detach func(context.Context) error

	switch root.Type {
	case domain.EntityPlan:
		plan, err := o.repos.Plans.FindByID(ctx, root.ID)
		if err != nil {
			return report, err
		}
		if includeDescendants {
			if tree, err = o.collectFromSessions(ctx, plan.SessionIDs, []string{plan.ID}); err != nil {
				return report, err
			}
		}

	case domain.EntitySession:
		sess, err := o.repos.Sessions.FindByID(ctx, root.ID)
		if err != nil {
			return report, err
		}
		if includeDescendants {
			if tree, err = o.collectFromGroups(ctx, sess.GroupIDs, []string{sess.ID}); err != nil {
				return report, err
			}
		}
		detach = func(ctx context.Context) error { return o.detachSession(ctx, sess) }

	case domain.EntityGroup:
		grp, err := o.repos.Groups.FindByID(ctx, root.ID)
		if err != nil {
			return report, err
		}
		if includeDescendants {
			if tree.applied, err = o.collectApplied(ctx, grp.AppliedExerciseIDs, []string{grp.ID}); err != nil {
				return report, err
			}
		}
		detach = func(ctx context.Context) error { return o.detachGroup(ctx, grp) }

	default:
		return report, domain.BusinessRule(root.Type, root.ID, "only plans, sessions and groups can be deleted here", nil)
	}

	// Deepest first, root last.
	n, err := o.repos.AppliedExercises.DeleteByIDs(ctx, tree.applied)
	if err != nil {
		return report, err
	}
	report.AppliedExercises = int(n)

	if n, err = o.repos.Groups.DeleteByIDs(ctx, tree.groups); err != nil {
		return report, err
	}
	report.Groups = int(n)

	if n, err = o.repos.Sessions.DeleteByIDs(ctx, tree.sessions); err != nil {
		return report, err
	}
	report.Sessions = int(n)

	switch root.Type {
	case domain.EntityPlan:
		if err := o.repos.Plans.Delete(ctx, root.ID); err != nil {
			return report, err
		}
		report.Plans++
	case domain.EntitySession:
		if err := o.repos.Sessions.Delete(ctx, root.ID); err != nil {
			return report, err
		}
		report.Sessions++
	case domain.EntityGroup:
		if err := o.repos.Groups.Delete(ctx, root.ID); err != nil {
			return report, err
		}
		report.Groups++
	}

	if detach != nil {
		if err := detach(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// collectFromSessions gathers the sessions listed or owned by planIDs and
// everything below them.
func (o *Orchestrator) collectFromSessions(ctx context.Context, listed, planIDs []string) (subtree, error) {
	owned, err := o.repos.Sessions.IDsByPlans(ctx, planIDs)
	if err != nil {
		return subtree{}, err
	}
	sessionIDs := union(listed, owned)

	sessions, err := o.repos.Sessions.FindByIDs(ctx, sessionIDs)
	if err != nil {
		return subtree{}, err
	}
	var groupIDs []string
	for _, s := range sessions {
		groupIDs = append(groupIDs, s.GroupIDs...)
	}

	tree, err := o.collectFromGroups(ctx, groupIDs, sessionIDs)
	if err != nil {
		return subtree{}, err
	}
	tree.sessions = sessionIDs
	return tree, nil
}

// collectFromGroups gathers the groups listed or owned by sessionIDs and the
// applied exercises below them.
func (o *Orchestrator) collectFromGroups(ctx context.Context, listed, sessionIDs []string) (subtree, error) {
	owned, err := o.repos.Groups.IDsBySessions(ctx, sessionIDs)
	if err != nil {
		return subtree{}, err
	}
	groupIDs := union(listed, owned)

	groups, err := o.repos.Groups.FindByIDs(ctx, groupIDs)
	if err != nil {
		return subtree{}, err
	}
	var appliedIDs []string
	for _, g := range groups {
		appliedIDs = append(appliedIDs, g.AppliedExerciseIDs...)
	}

	applied, err := o.collectApplied(ctx, appliedIDs, groupIDs)
	if err != nil {
		return subtree{}, err
	}
	return subtree{groups: groupIDs, applied: applied}, nil
}

func (o *Orchestrator) collectApplied(ctx context.Context, listed, groupIDs []string) ([]string, error) {
	owned, err := o.repos.AppliedExercises.IDsByGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	return union(listed, owned), nil
}

func (o *Orchestrator) detachSession(ctx context.Context, sess domain.Session) error {
	plan, err := o.repos.Plans.FindByID(ctx, sess.PlanID)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if domain.IndexOf(plan.SessionIDs, sess.ID) < 0 {
		return nil
	}

	plan = plan.WithoutSession(sess.ID)
	plan.Touch(o.clock.Now())
	_, err = o.repos.Plans.Save(ctx, plan)
	return err
}

func (o *Orchestrator) detachGroup(ctx context.Context, grp domain.Group) error {
	sess, err := o.repos.Sessions.FindByID(ctx, grp.SessionID)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if domain.IndexOf(sess.GroupIDs, grp.ID) < 0 {
		return nil
	}

	sess.GroupIDs = domain.RemoveID(sess.GroupIDs, grp.ID)
	sess.Touch(o.clock.Now())
	_, err = o.repos.Sessions.Save(ctx, sess)
	return err
}

// union returns a followed by the elements of b not in a, without duplicates.
func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, id := range list {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
