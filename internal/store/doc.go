// Package store provides the embedded SQLite database behind liftlog.
//
// The store owns the connection, the schema and the transaction scope. It
// knows nothing about record types: repositories build their statements and
// run them through Querier(ctx).
//
// # Transactions
//
// RunInTx opens one transaction and carries it through the context. Every
// repository call made with that context joins the transaction, so a cascade
// delete or a multi-type import commits or rolls back as a unit.
//
// # Commit notifications
//
// Writers call MarkChanged with the tables they wrote. Listeners registered
// with OnCommit receive a Change only after the enclosing transaction has
// committed. A rolled-back transaction produces no notification, so
// subscribers never observe uncommitted state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (default 5 seconds)
//   - foreign_keys=ON
//   - one open connection: SQLite admits a single writer
package store
