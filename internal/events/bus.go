package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/liftlog/internal/observability"
)

// Handler reacts to a dispatched event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Subscriber registers its handlers on a bus.
type Subscriber interface {
	SetupSubscriptions(b *Bus)
}

// Bus delivers events to the handlers registered for their kind.
//
// Dispatch is synchronous: handlers run one after another, in registration
// order, on the dispatching goroutine. A handler that returns an error or
// panics is logged and counted; the remaining handlers still run and the
// caller never sees the failure.
//
// Thread-safety: registration and dispatch may happen concurrently.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBus creates an empty bus. logger and metrics may be nil.
func NewBus(logger *slog.Logger, metrics *observability.Metrics) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register adds h to the handlers of kind.
// Panics on an undeclared kind or a nil handler.
func (b *Bus) Register(kind Kind, h Handler) {
	if !kind.Valid() {
		panic(fmt.Sprintf("events: register for undeclared kind %v", kind))
	}
	if h == nil {
		panic(fmt.Sprintf("events: nil handler for %v", kind))
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// RegisterFunc registers a function handler.
func (b *Bus) RegisterFunc(kind Kind, fn func(ctx context.Context, ev Event) error) {
	if fn == nil {
		panic(fmt.Sprintf("events: nil handler for %v", kind))
	}
	b.Register(kind, HandlerFunc(fn))
}

// Subscribe lets each subscriber register its handlers.
func (b *Bus) Subscribe(subs ...Subscriber) {
	for _, s := range subs {
		s.SetupSubscriptions(b)
	}
}

// Dispatch runs every handler registered for ev.Kind(). With no handlers it
// does nothing.
func (b *Bus) Dispatch(ctx context.Context, ev Event) {
	kind := ev.Kind()

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[kind]))
	copy(handlers, b.handlers[kind])
	b.mu.RUnlock()

	b.metrics.EventDispatched(kind.String())

	b.logger.Debug("dispatching event",
		"kind", kind.String(),
		"aggregate_id", ev.AggregateID(),
		"handler_count", len(handlers),
	)

	for i, h := range handlers {
		if err := b.invoke(ctx, h, ev); err != nil {
			b.metrics.HandlerFailed(kind.String())
			b.logger.Error("event handler failed",
				"kind", kind.String(),
				"aggregate_id", ev.AggregateID(),
				"handler_index", i,
				"error", err,
			)
		}
	}
}

// invoke runs one handler, turning a panic into an error.
func (b *Bus) invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, ev)
}

// ClearHandlers removes every registration.
func (b *Bus) ClearHandlers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Kind][]Handler)
}

// HandlerCount returns the number of handlers registered for kind.
func (b *Bus) HandlerCount(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}
