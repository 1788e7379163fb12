package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftlog/internal/observability"
)

var at = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestBus(t *testing.T) (*Bus, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return NewBus(observability.NewLogger(&buf, "debug", "json"), metrics), &buf
}

func TestDispatch_NoHandlersIsNoop(t *testing.T) {
	bus, _ := newTestBus(t)
	assert.NotPanics(t, func() {
		bus.Dispatch(context.Background(), PlanSaved{PlanID: "plan", At: at})
	})
}

func TestDispatch_RegistrationOrder(t *testing.T) {
	bus, _ := newTestBus(t)
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.RegisterFunc(KindPlanSaved, func(ctx context.Context, ev Event) error {
			order = append(order, i)
			return nil
		})
	}

	bus.Dispatch(context.Background(), PlanSaved{PlanID: "plan", At: at})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestDispatch_OnlyMatchingKind(t *testing.T) {
	bus, _ := newTestBus(t)
	var got []Event
	bus.RegisterFunc(KindWorkoutFinished, func(ctx context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	})

	bus.Dispatch(context.Background(), PlanDeleted{PlanID: "plan", At: at})
	bus.Dispatch(context.Background(), WorkoutFinished{LogID: "w1", At: at})

	require.Len(t, got, 1)
	wf, ok := got[0].(WorkoutFinished)
	require.True(t, ok)
	assert.Equal(t, "w1", wf.AggregateID())
}

func TestDispatch_FailingHandlerIsIsolated(t *testing.T) {
	bus, logs := newTestBus(t)
	var ran []string

	bus.RegisterFunc(KindPlanDeleted, func(ctx context.Context, ev Event) error {
		ran = append(ran, "first")
		return errors.New("first failed")
	})
	bus.RegisterFunc(KindPlanDeleted, func(ctx context.Context, ev Event) error {
		ran = append(ran, "second")
		panic("second exploded")
	})
	bus.RegisterFunc(KindPlanDeleted, func(ctx context.Context, ev Event) error {
		ran = append(ran, "third")
		return nil
	})

	assert.NotPanics(t, func() {
		bus.Dispatch(context.Background(), PlanDeleted{PlanID: "plan", At: at})
	})

	assert.Equal(t, []string{"first", "second", "third"}, ran)
	assert.Contains(t, logs.String(), "first failed")
	assert.Contains(t, logs.String(), "second exploded")
}

func TestRegister_PanicsOnProgrammerError(t *testing.T) {
	bus, _ := newTestBus(t)

	assert.Panics(t, func() { bus.Register(KindPlanSaved, nil) })
	assert.Panics(t, func() { bus.Register(Kind(99), HandlerFunc(func(context.Context, Event) error { return nil })) })
	assert.Panics(t, func() { bus.RegisterFunc(KindPlanSaved, nil) })
}

func TestClearHandlers(t *testing.T) {
	bus, _ := newTestBus(t)
	called := false
	bus.RegisterFunc(KindSessionDeleted, func(ctx context.Context, ev Event) error {
		called = true
		return nil
	})
	require.Equal(t, 1, bus.HandlerCount(KindSessionDeleted))

	bus.ClearHandlers()
	assert.Equal(t, 0, bus.HandlerCount(KindSessionDeleted))

	bus.Dispatch(context.Background(), SessionDeleted{SessionID: "s1", At: at})
	assert.False(t, called)
}

type recordingSubscriber struct {
	mu   sync.Mutex
	seen []Kind
}

func (s *recordingSubscriber) SetupSubscriptions(b *Bus) {
	b.Register(KindSnapshotImported, s)
	b.Register(KindPlanSaved, s)
}

func (s *recordingSubscriber) Handle(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ev.Kind())
	return nil
}

func TestSubscribe(t *testing.T) {
	bus, _ := newTestBus(t)
	sub := &recordingSubscriber{}
	bus.Subscribe(sub)

	bus.Dispatch(context.Background(), SnapshotImported{ProfileID: "p1", At: at})
	bus.Dispatch(context.Background(), PlanSaved{PlanID: "plan", At: at})

	assert.Equal(t, []Kind{KindSnapshotImported, KindPlanSaved}, sub.seen)
}

func TestDispatch_ConcurrentRegistration(t *testing.T) {
	bus, _ := newTestBus(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.RegisterFunc(KindPlanSaved, func(context.Context, Event) error { return nil })
		}()
		go func() {
			defer wg.Done()
			bus.Dispatch(context.Background(), PlanSaved{PlanID: "plan", At: at})
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, bus.HandlerCount(KindPlanSaved))
}

func TestKind(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid())
		assert.NotContains(t, k.String(), "Kind(")
	}
	assert.False(t, Kind(0).Valid())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}

func TestEventAccessors(t *testing.T) {
	tests := []struct {
		ev        Event
		kind      Kind
		aggregate string
	}{
		{WorkoutFinished{LogID: "w1", At: at}, KindWorkoutFinished, "w1"},
		{PlanDeleted{PlanID: "plan", At: at}, KindPlanDeleted, "plan"},
		{SessionDeleted{SessionID: "s1", At: at}, KindSessionDeleted, "s1"},
		{PlanSaved{PlanID: "plan", At: at}, KindPlanSaved, "plan"},
		{SnapshotImported{ProfileID: "p1", At: at}, KindSnapshotImported, "p1"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.ev.Kind())
			assert.Equal(t, tt.aggregate, tt.ev.AggregateID())
			assert.Equal(t, at, tt.ev.OccurredAt())
		})
	}
}
