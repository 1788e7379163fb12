package reactive

import (
	"sync"

	"github.com/roach88/liftlog/internal/store"
)

// changeQueue is a thread-safe unbounded FIFO of committed change sets.
//
// Commit listeners enqueue from writer goroutines and must never block, so
// the queue grows instead. The bridge enqueues only while Run drains it. The buffered signal channel lets the Run loop
// wait with a select on ctx.Done().
type changeQueue struct {
	mu     sync.Mutex
	items  []store.Change
	closed bool
	signal chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		items:  make([]store.Change, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends c. Returns false once the queue is closed.
func (q *changeQueue) Enqueue(c store.Change) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *changeQueue) TryDequeue() (store.Change, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return store.Change{}, false
	}
	c := q.items[0]
	q.items[0] = store.Change{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return c, true
}

// Drain removes every queued change set and returns them in order.
func (q *changeQueue) Drain() []store.Change {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := make([]store.Change, len(q.items))
	copy(out, q.items)
	clear(q.items)
	q.items = q.items[:0]
	return out
}

// Wait returns a channel that fires when items may be available. It is
// closed by Close.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued items.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops further enqueues and wakes the waiter.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
