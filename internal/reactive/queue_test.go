package reactive

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/observability"
	"github.com/roach88/liftlog/internal/store"
	"github.com/roach88/liftlog/internal/testutil"
)

func TestChangeQueue_FIFO(t *testing.T) {
	q := newChangeQueue()
	for i := int64(1); i <= 3; i++ {
		require.True(t, q.Enqueue(store.Change{Seq: i}))
	}

	for i := int64(1); i <= 3; i++ {
		c, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, c.Seq)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestChangeQueue_Drain(t *testing.T) {
	q := newChangeQueue()
	assert.Empty(t, q.Drain())

	q.Enqueue(store.Change{Seq: 1, Tables: []string{"plans"}})
	q.Enqueue(store.Change{Seq: 2, Tables: []string{"sessions"}})

	changes := q.Drain()
	require.Len(t, changes, 2)
	assert.Equal(t, int64(1), changes[0].Seq)
	assert.Equal(t, []string{"sessions"}, changes[1].Tables)
	assert.Equal(t, 0, q.Len())
}

func TestChangeQueue_SignalCoalesces(t *testing.T) {
	q := newChangeQueue()
	q.Enqueue(store.Change{})
	q.Enqueue(store.Change{})

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestChangeQueue_Close(t *testing.T) {
	q := newChangeQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(store.Change{}))
	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestBridge_CommitsWithoutRunAreNotQueued(t *testing.T) {
	clock := testutil.NewDeterministicClock()
	repos := testutil.OpenRepos(t, clock)
	b := New(repos.Store, clock, observability.Discard(), nil)
	t.Cleanup(b.Stop)

	for i := 1; i <= 5; i++ {
		testutil.SeedProfile(t, repos, clock, fmt.Sprintf("p%d", i))
	}
	assert.Positive(t, repos.Store.LastSeq())
	assert.Equal(t, 0, b.queue.Len())

	q, err := RecordsOf(repos, domain.EntityPlan, "p1")
	require.NoError(t, err)
	_, err = b.Subscribe(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 0, b.queue.Len(), "the first result is fetched outside the queue")
}
