// Package domain defines the record types of a liftlog profile and the
// rules every persisted value must satisfy.
//
// This package contains value types, factories and the error taxonomy only.
// Every other internal package imports domain; domain imports nothing
// internal.
//
// Ownership is strictly hierarchical and expressed as ordered ID lists on the
// parent plus a parent reference on the child:
//
//	Plan.SessionIDs          -> Session.PlanID
//	Session.GroupIDs         -> Group.SessionID
//	Group.AppliedExerciseIDs -> AppliedExercise.GroupID
//
// Records never hold pointers to each other. Traversal is a walk over IDs.
//
// # Construction
//
// Each record type has two factories that return the same value type:
//
//   - New<Type> validates its input and returns a Draft value. Used for every
//     write of new data.
//   - Hydrate<Type> rebuilds a value from trusted persisted data and never
//     validates. Used on every read so legacy rows are never rejected.
//
// The two call sites must not be mixed: storage reads use Hydrate, service
// writes use New.
//
// # Lifecycle
//
//	Draft -> Persisted -> Mutated* -> Deleted
//
// Only repositories move a value between states. Deleted is terminal.
package domain
