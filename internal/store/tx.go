package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Querier is the subset of *sql.DB and *sql.Tx used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Change describes one committed change set.
type Change struct {
	// Seq increases by one per committed change set.
	Seq int64

	// Tables lists the tables written, sorted.
	Tables []string
}

// Touches reports whether the change wrote table.
func (c Change) Touches(table string) bool {
	for _, t := range c.Tables {
		if t == table {
			return true
		}
	}
	return false
}

// CommitListener is notified after a change set commits. It is called on the
// committing goroutine and must not block or write to the store.
type CommitListener func(Change)

type txKey struct{}

// txScope is the transaction carried through the context by RunInTx.
type txScope struct {
	tx      *sql.Tx
	changed map[string]struct{}

	// afterCommit runs in order once the transaction commits.
	afterCommit []func(ctx context.Context)
}

func scopeFrom(ctx context.Context) *txScope {
	scope, _ := ctx.Value(txKey{}).(*txScope)
	return scope
}

// InTx reports whether ctx carries a transaction opened by RunInTx.
func InTx(ctx context.Context) bool {
	return scopeFrom(ctx) != nil
}

// Querier returns the transaction carried by ctx, or the database when there
// is none.
func (s *Store) Querier(ctx context.Context) Querier {
	if scope := scopeFrom(ctx); scope != nil {
		return scope.tx
	}
	return s.db
}

// RunInTx executes fn within a single database transaction.
//
// On success: commits, notifies commit listeners of every table marked
// with MarkChanged during fn, then runs the functions queued with AfterCommit.
// On error from fn: rolls back and returns the error; listeners and queued
// functions see nothing.
// On panic from fn: rolls back and re-panics.
//
// A RunInTx call whose ctx already carries a transaction joins it: fn runs in
// the outer scope and the outer call decides commit or rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if scopeFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	scope := &txScope{tx: tx, changed: make(map[string]struct{})}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, scope)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.publish(scope.tables())
	for _, after := range scope.afterCommit {
		after(ctx)
	}
	return nil
}

// AfterCommit runs fn once the transaction carried by ctx commits, with a
// context that carries no transaction. A rolled-back transaction drops fn.
// Outside a transaction fn runs immediately.
func (s *Store) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if scope := scopeFrom(ctx); scope != nil {
		scope.afterCommit = append(scope.afterCommit, fn)
		return
	}
	fn(ctx)
}

// MarkChanged records that tables were written. Inside a transaction the
// notification is deferred until commit; outside one the write has already
// auto-committed and listeners are notified immediately.
func (s *Store) MarkChanged(ctx context.Context, tables ...string) {
	if scope := scopeFrom(ctx); scope != nil {
		for _, t := range tables {
			scope.changed[t] = struct{}{}
		}
		return
	}
	s.publish(tables)
}

// OnCommit registers a listener for committed change sets.
func (s *Store) OnCommit(l CommitListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// LastSeq returns the sequence number of the latest committed change set.
func (s *Store) LastSeq() int64 {
	return s.seq.Load()
}

func (s *Store) publish(tables []string) {
	if len(tables) == 0 {
		return
	}

	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	change := Change{Seq: s.seq.Add(1), Tables: sorted}

	s.mu.RLock()
	listeners := make([]CommitListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}

func (sc *txScope) tables() []string {
	out := make([]string, 0, len(sc.changed))
	for t := range sc.changed {
		out = append(out, t)
	}
	return out
}
