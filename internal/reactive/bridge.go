// Package reactive turns committed store changes into result-set streams.
//
// A Bridge listens to the store's commit notifications, which fire only
// after a transaction commits, and re-runs the queries of the subscriptions
// whose tables changed. A subscriber sees the latest result only: a result
// that has not been received yet is replaced by a newer one, and a result
// older than one already delivered is dropped.
//
// Fetches of the same query for the same commit sequence share one call,
// whether they come from new subscriptions or from the Run loop.
package reactive

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/liftlog/internal/domain"
	"github.com/roach88/liftlog/internal/observability"
	"github.com/roach88/liftlog/internal/store"
)

// maxConcurrentFetches bounds the fetches run for one refresh.
const maxConcurrentFetches = 4

// ResultSet is one snapshot of a query's result.
type ResultSet struct {
	// Key is the query key.
	Key string

	// Seq is the commit sequence the result reflects at least.
	Seq int64

	Rows any
	Err  error
	At   time.Time
}

// Subscription receives the results of one query.
type Subscription struct {
	id    string
	query Query

	mu     sync.Mutex
	ch     chan ResultSet
	closed bool
	seen   int64
}

// ID returns the subscription's identifier, used by Unsubscribe.
func (s *Subscription) ID() string { return s.id }

// Query returns the watched query.
func (s *Subscription) Query() Query { return s.query }

// Results returns the result channel. It is closed on Unsubscribe and when
// the bridge stops.
func (s *Subscription) Results() <-chan ResultSet { return s.ch }

// deliver replaces any undelivered result with rs. Results older than the
// last delivered one are dropped.
func (s *Subscription) deliver(rs ResultSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || rs.Seq < s.seen {
		return
	}
	s.seen = rs.Seq
	select {
	case <-s.ch:
	default:
	}
	s.ch <- rs
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Bridge delivers query results to subscribers after each relevant commit.
//
// Thread-safety: Subscribe and Unsubscribe may be called from any goroutine.
// Run must be called once; commits are queued only while it runs.
type Bridge struct {
	store   *store.Store
	queue   *changeQueue
	group   singleflight.Group
	clock   domain.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	// ctx scopes initial fetches; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool

	mu     sync.Mutex
	subs   map[string]*Subscription
	nextID atomic.Int64
}

// New creates a bridge and registers it for s's commit notifications.
// Notifications are ignored until Run starts. clock, logger and metrics may
// be nil.
func New(s *store.Store, clock domain.Clock, logger *slog.Logger, metrics *observability.Metrics) *Bridge {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		store:   s,
		queue:   newChangeQueue(),
		clock:   clock,
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[string]*Subscription),
	}
	s.OnCommit(func(c store.Change) {
		if b.running.Load() {
			b.queue.Enqueue(c)
		}
	})
	return b
}

// Subscribe registers q and starts fetching its first result on another
// goroutine. That fetch carries none of the caller's context values, so it
// never observes an uncommitted transaction of the caller; it does not need
// Run.
func (b *Bridge) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	if b.ctx.Err() != nil {
		return nil, fmt.Errorf("subscribe %s: bridge stopped", q.Key)
	}

	sub := &Subscription{
		id:    "sub-" + strconv.FormatInt(b.nextID.Add(1), 10),
		query: q,
		ch:    make(chan ResultSet, 1),
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	seq := b.store.LastSeq()
	go func() {
		sub.deliver(b.fetch(b.ctx, q, seq))
	}()

	b.logger.Debug("subscribed", "subscription_id", sub.id, "query", q.Key)
	return sub, nil
}

// Unsubscribe stops and closes the subscription with id. It reports whether
// the subscription existed.
func (b *Bridge) Unsubscribe(id string) bool {
	sub := b.remove(id)
	if sub == nil {
		return false
	}
	sub.close()
	b.logger.Debug("unsubscribed", "subscription_id", id)
	return true
}

func (b *Bridge) remove(id string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return nil
	}
	delete(b.subs, id)
	return sub
}

// Len returns the number of active subscriptions.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Run processes change notifications until ctx is cancelled or Stop is
// called. Subscriptions made before Run are refreshed once at start, since
// earlier commits were not queued. On return every subscription is closed.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("reactive bridge starting")
	b.running.Store(true)
	defer b.running.Store(false)
	defer b.closeAll()

	if tables := b.watched(); len(tables) > 0 {
		b.queue.Enqueue(store.Change{Seq: b.store.LastSeq(), Tables: tables})
	}

	for {
		if c, ok := b.queue.TryDequeue(); ok {
			b.process(ctx, c)
			continue
		}

		select {
		case <-ctx.Done():
			b.logger.Info("reactive bridge stopping: context cancelled")
			b.Stop()
			return ctx.Err()
		case <-b.queue.Wait():
			// The signal channel is closed by Stop, so this fires
			// repeatedly until the remaining items are processed.
			if b.stopped() {
				b.logger.Info("reactive bridge stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop makes Run return and cancels initial fetches in flight. Without a
// running loop it closes every subscription itself.
func (b *Bridge) Stop() {
	b.cancel()
	b.queue.Close()
	if !b.running.Load() {
		b.closeAll()
	}
}

func (b *Bridge) stopped() bool {
	b.queue.mu.Lock()
	defer b.queue.mu.Unlock()
	return b.queue.closed && len(b.queue.items) == 0
}

func (b *Bridge) closeAll() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}

// process handles one change set. Change sets queued behind it are folded
// in so a burst of commits costs one fetch per query.
func (b *Bridge) process(ctx context.Context, c store.Change) {
	seq := c.Seq
	tables := c.Tables
	for _, next := range b.queue.Drain() {
		tables = append(tables, next.Tables...)
		seq = next.Seq
	}
	targets := b.affected(tables)
	if len(targets) == 0 {
		return
	}

	byKey := make(map[string][]*Subscription)
	var keys []string
	for _, s := range targets {
		k := s.query.Key
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], s)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, k := range keys {
		subs := byKey[k]
		g.Go(func() error {
			rs := b.fetch(gctx, subs[0].query, seq)
			for _, s := range subs {
				s.deliver(rs)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (b *Bridge) affected(tables []string) []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*Subscription
	for _, s := range b.subs {
		if s.query.watches(tables) {
			out = append(out, s)
		}
	}
	return out
}

// watched returns the tables of every subscription.
func (b *Bridge) watched() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, s := range b.subs {
		for _, t := range s.query.Tables {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// fetch runs q for commit sequence seq. A fetch of the same query for the
// same sequence already in flight started after that commit, so its result
// is shared.
func (b *Bridge) fetch(ctx context.Context, q Query, seq int64) ResultSet {
	v, err, shared := b.group.Do(q.Key+"@"+strconv.FormatInt(seq, 10), func() (any, error) {
		return q.Fetch(ctx)
	})
	if shared {
		b.logger.Debug("query fetch shared", "query", q.Key, "seq", seq)
	}

	rs := ResultSet{Key: q.Key, Seq: seq, Rows: v, Err: err, At: b.clock.Now()}
	if err != nil {
		b.metrics.QueryRefreshed("failed")
		b.logger.Warn("query refresh failed",
			"query", q.Key,
			"seq", seq,
			"error", err,
		)
		return rs
	}
	b.metrics.QueryRefreshed("ok")
	return rs
}
