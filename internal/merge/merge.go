// Package merge reconciles local data with an imported snapshot.
//
// Detect compares the two snapshots record by record and reports every
// differing field with a severity from a fixed per-field table. Merge
// applies Decisions and refuses to produce anything while a conflict is
// left open. CheckIntegrity then verifies that every reference in the merged
// result resolves. Importer runs the whole flow and writes the result in one
// store transaction.
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/snapshot"
)

// UnresolvedError carries the conflicts a merge could not settle. It is the
// cause of the CONFLICT error returned by Merge.
type UnresolvedError struct {
	Report Report
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%d unresolved conflicts", e.Report.Total())
}

// UnresolvedReport extracts the open conflicts from an error returned by
// Merge or Import.
func UnresolvedReport(err error) (Report, bool) {
	var ue *UnresolvedError
	if errors.As(err, &ue) {
		return ue.Report, true
	}
	return Report{}, false
}

// Detect compares local with remote. Entity types are processed in
// dependency order and ctx is checked between them.
func Detect(ctx context.Context, local, remote *snapshot.Snapshot) (Report, error) {
	var r Report
	for _, k := range kinds {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		if cs := k.detect(local, remote); len(cs) > 0 {
			r.Entities = append(r.Entities, EntityReport{EntityType: k.entityType(), Conflicts: cs})
		}
	}
	return r, nil
}

// Result is a merged snapshot plus what it took to get there.
type Result struct {
	Merged *snapshot.Snapshot

	// Report holds every conflict detected, resolved or not.
	Report Report

	// Changed lists, per entity type, the IDs whose merged value differs
	// from the local one: incoming-only records and records that took at
	// least one incoming value.
	Changed map[domain.EntityType][]string
}

// Resolved returns the number of conflicts settled by decisions.
func (r Result) Resolved() int {
	return r.Report.Total()
}

// Merge combines local and remote. Every conflict must be settled by d;
// otherwise nothing is merged and the error is a CONFLICT whose cause is an
// *UnresolvedError holding the open conflicts.
func Merge(ctx context.Context, local, remote *snapshot.Snapshot, d *Decisions) (Result, error) {
	report, err := Detect(ctx, local, remote)
	if err != nil {
		return Result{}, err
	}
	if open := d.Unresolved(report); !open.Empty() {
		return Result{Report: report}, &domain.Error{
			Code:    domain.CodeConflict,
			Message: fmt.Sprintf("merge blocked by %d unresolved conflicts", open.Total()),
			Err:     &UnresolvedError{Report: open},
		}
	}

	out := snapshot.New(remote.ProfileID, local.DataVersion, remote.ExportedAt)
	changed := make(map[domain.EntityType][]string, len(kinds))
	for _, k := range kinds {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if ids := k.merge(local, remote, out, d); len(ids) > 0 {
			changed[k.entityType()] = ids
		}
	}
	return Result{Merged: out, Report: report, Changed: changed}, nil
}
