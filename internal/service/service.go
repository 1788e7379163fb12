// Package service exposes the operations collaborators call.
//
// Each operation validates input, writes through the repositories inside one
// store transaction and, after that transaction commits, dispatches the
// matching domain event on the same goroutine. A failed operation dispatches
// nothing. Called inside a caller's transaction, an operation joins it and
// its event waits for the caller's commit; a rollback drops the event.
package service

import (
	"context"
	"log/slog"

	"github.com/roach88/liftlog/internal/cascade"
	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/events"
	"github.com/roach88/liftlog/internal/repository"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Repos   *repository.Repositories
	Bus     *events.Bus
	Cascade *cascade.Orchestrator
	Clock   domain.Clock
	IDs     domain.IDGenerator
	Logger  *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = domain.SystemClock{}
	}
	if d.IDs == nil {
		d.IDs = domain.UUIDv7Generator{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Cascade == nil {
		d.Cascade = cascade.New(d.Repos, d.Clock, d.Logger, nil)
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Logger, nil)
	}
	return d
}

// dispatch sends ev to the bus once the transaction carried by ctx commits.
func (d Deps) dispatch(ctx context.Context, ev events.Event) {
	d.Repos.Store.AfterCommit(ctx, func(ctx context.Context) {
		d.Bus.Dispatch(ctx, ev)
	})
}
