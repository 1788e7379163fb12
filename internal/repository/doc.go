// Package repository persists liftlog records in the store.
//
// There is one repository per record type. Each one offers the same
// contract: Save, FindByID, FindByIDs, FindAll (by profile) and Delete, plus
// the parent lookups the cascade orchestrator needs. Statements are built
// with squirrel and executed through store.Querier, so every call made with
// a context from store.RunInTx joins that transaction.
//
// Save follows the record lifecycle. A draft is inserted and comes back
// persisted; a persisted or mutated value is updated and comes back mutated.
// Saving a deleted value, or a persisted value whose row is gone, is a
// BUSINESS_RULE_VIOLATION. Values are validated before any write.
//
// Repositories never return driver errors directly. Failures are wrapped as
// domain errors: NOT_FOUND for missing rows, CONFLICT for unique key
// violations, APPLICATION_FAILURE for everything else.
//
// Delete removes a single row. Removing descendants is the cascade
// orchestrator's job.
package repository
