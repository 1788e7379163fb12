package merge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/events"
	"github.com/roach88/liftlog/internal/observability"
	"github.com/roach88/liftlog/internal/repository"
	"github.com/roach88/liftlog/internal/snapshot"
	"github.com/roach88/liftlog/internal/store"
)

// Import outcomes, used as the metrics label.
const (
	outcomeOK         = "ok"
	outcomeConflict   = "conflict"
	outcomeStructural = "structural"
	outcomeCancelled  = "cancelled"
	outcomeFailed     = "failed"
)

// ImportResult describes a committed import.
type ImportResult struct {
	Result

	// Written is the number of records inserted or updated.
	Written int
}

// Importer merges an incoming snapshot into the local store.
type Importer struct {
	repos   *repository.Repositories
	bus     *events.Bus
	clock   domain.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewImporter creates an Importer. bus, logger and metrics may be nil.
func NewImporter(repos *repository.Repositories, bus *events.Bus, clock domain.Clock, logger *slog.Logger, metrics *observability.Metrics) *Importer {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{repos: repos, bus: bus, clock: clock, logger: logger, metrics: metrics}
}

// Import reconciles incoming with the local data of profileID and writes the
// merged result.
//
// The local side is exported, compared with incoming and merged with d.
// Unresolved conflicts fail with CONFLICT and dangling references with
// STRUCTURAL_VALIDATION; in both cases nothing is written. The write runs in
// one transaction and checks ctx between record types, so a cancelled
// import leaves the store untouched. SnapshotImported is dispatched after
// commit; inside a caller's transaction it waits for the caller's commit.
//
// Every incoming record must belong to profileID, and every merged record
// must pass validation before anything is written.
func (im *Importer) Import(ctx context.Context, profileID string, incoming *snapshot.Snapshot, d *Decisions) (ImportResult, error) {
	res, err := im.importSnapshot(ctx, profileID, incoming, d)
	outcome := outcomeOf(ctx, err)
	im.metrics.Import(outcome)

	if err != nil {
		im.logger.Warn("import failed",
			"profile_id", profileID,
			"outcome", outcome,
			"error", err,
		)
		return ImportResult{}, fmt.Errorf("import profile %s: %w", profileID, err)
	}

	im.logger.Info("import committed",
		"profile_id", profileID,
		"written", res.Written,
		"conflicts_resolved", res.Resolved(),
	)
	if im.bus != nil {
		ev := events.SnapshotImported{
			ProfileID: profileID,
			Records:   res.Written,
			Resolved:  res.Resolved(),
			At:        im.clock.Now(),
		}
		im.repos.Store.AfterCommit(ctx, func(ctx context.Context) {
			im.bus.Dispatch(ctx, ev)
		})
	}
	return res, nil
}

func (im *Importer) importSnapshot(ctx context.Context, profileID string, incoming *snapshot.Snapshot, d *Decisions) (ImportResult, error) {
	if incoming.ProfileID != profileID {
		return ImportResult{}, domain.BusinessRule(domain.EntityProfile, profileID,
			"snapshot belongs to another profile", map[string]string{"profileId": incoming.ProfileID})
	}
	if foreign := foreignRecords(incoming); len(foreign) > 0 {
		return ImportResult{}, domain.BusinessRule(domain.EntityProfile, profileID,
			"snapshot carries records of another profile", foreign)
	}

	local, err := im.loadLocal(ctx, profileID)
	if err != nil {
		return ImportResult{}, err
	}

	merged, err := Merge(ctx, local, incoming, d)
	for sev, n := range merged.Report.CountBySeverity() {
		im.metrics.ConflictsDetected(string(sev), n)
	}
	if err != nil {
		return ImportResult{}, err
	}
	if err := CheckIntegrity(merged.Merged); err != nil {
		return ImportResult{}, err
	}
	if err := validateChanged(merged); err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Result: merged}
	err = im.repos.Store.RunInTx(ctx, func(ctx context.Context) error {
		res.Written = 0
		for _, k := range kinds {
			if err := ctx.Err(); err != nil {
				return err
			}
			existing := toSet(k.ids(local))
			changed := toSet(merged.Changed[k.entityType()])
			n, err := k.write(ctx, im.repos, merged.Merged, existing, changed)
			if err != nil {
				return err
			}
			res.Written += n
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

// loadLocal exports the local side. A profile that does not exist yet is an
// empty snapshot.
func (im *Importer) loadLocal(ctx context.Context, profileID string) (*snapshot.Snapshot, error) {
	local, err := snapshot.Export(ctx, im.repos, profileID, im.clock)
	if domain.IsNotFound(err) {
		return snapshot.New(profileID, store.CurrentSchemaVersion, im.clock.Now()), nil
	}
	return local, err
}

// foreignRecords maps "Type id" to the profile of every record in s that is
// not owned by s.ProfileID. A profile record is owned by its own ID.
func foreignRecords(s *snapshot.Snapshot) map[string]string {
	var out map[string]string
	for _, k := range kinds {
		for id, owner := range k.owners(s) {
			if owner == s.ProfileID {
				continue
			}
			if out == nil {
				out = make(map[string]string)
			}
			out[string(k.entityType())+" "+id] = owner
		}
	}
	return out
}

// validateChanged validates every merged record about to be written. A
// decision mix can pair fields that are valid on their own side only, e.g.
// an incoming group kind with a local exercise list.
func validateChanged(res Result) error {
	for _, k := range kinds {
		if err := k.validate(res.Merged, toSet(res.Changed[k.entityType()])); err != nil {
			return err
		}
	}
	return nil
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func outcomeOf(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case ctx.Err() != nil:
		return outcomeCancelled
	case domain.IsConflict(err):
		if _, ok := UnresolvedReport(err); ok {
			return outcomeConflict
		}
		return outcomeFailed
	case domain.IsStructural(err):
		return outcomeStructural
	default:
		return outcomeFailed
	}
}
