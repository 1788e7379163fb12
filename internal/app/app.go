// Package app wires the liftlog components into one process.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/liftlog/internal/cascade"
	"github.com/roach88/liftlog/internal/config"
	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/events"
	"github.com/roach88/liftlog/internal/handlers"
	"github.com/roach88/liftlog/internal/merge"
	"github.com/roach88/liftlog/internal/observability"
	"github.com/roach88/liftlog/internal/reactive"
	"github.com/roach88/liftlog/internal/repository"
	"github.com/roach88/liftlog/internal/service"
	"github.com/roach88/liftlog/internal/store"
)

// App holds the wired components. Build it with New and release it with
// Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  domain.Clock

	// Registry is nil when metrics are disabled.
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Store    *store.Store
	Repos    *repository.Repositories
	Bus      *events.Bus
	Cascade  *cascade.Orchestrator
	Importer *merge.Importer
	Bridge   *reactive.Bridge

	Plans    *service.PlanService
	Profiles *service.ProfileService
	Workouts *service.WorkoutService
}

// Options override parts of the default wiring, mainly for tests.
type Options struct {
	Clock domain.Clock
	IDs   domain.IDGenerator
}

// New opens the store named by cfg and wires every component. Logs go to
// logw.
func New(cfg *config.Config, logw io.Writer, opts Options) (*App, error) {
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = domain.UUIDv7Generator{}
	}

	a := &App{
		Config: cfg,
		Clock:  opts.Clock,
		Logger: observability.NewLogger(logw, cfg.Log.Level, cfg.Log.Format),
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		m, err := observability.NewMetrics(a.Registry)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.Metrics = m
	}

	s, err := store.Open(cfg.Database.Path, store.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.Database.Path, err)
	}
	a.Store = s
	a.Repos = repository.New(s, opts.Clock)

	a.Bus = events.NewBus(a.Logger, a.Metrics)
	a.Bus.Subscribe(handlers.All(a.Repos, opts.Clock, a.Logger)...)

	a.Cascade = cascade.New(a.Repos, opts.Clock, a.Logger, a.Metrics)
	a.Importer = merge.NewImporter(a.Repos, a.Bus, opts.Clock, a.Logger, a.Metrics)
	a.Bridge = reactive.New(s, opts.Clock, a.Logger, a.Metrics)

	deps := service.Deps{
		Repos:   a.Repos,
		Bus:     a.Bus,
		Cascade: a.Cascade,
		Clock:   opts.Clock,
		IDs:     opts.IDs,
		Logger:  a.Logger,
	}
	a.Plans = service.NewPlanService(deps)
	a.Profiles = service.NewProfileService(deps)
	a.Workouts = service.NewWorkoutService(deps)

	a.Logger.Debug("app ready",
		"database_path", cfg.Database.Path,
		"metrics_enabled", cfg.Metrics.Enabled,
	)
	return a, nil
}

// Close stops the bridge and closes the store.
func (a *App) Close() error {
	a.Bridge.Stop()
	return a.Store.Close()
}

// WriteMetrics writes every non-zero counter as "name{labels} value", one
// per line and sorted. It writes nothing when metrics are disabled.
func (a *App) WriteMetrics(w io.Writer) error {
	if a.Registry == nil {
		return nil
	}
	families, err := a.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), v))
		}
	}
	sort.Strings(lines)

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
