// Package store persists splitsheets and their counters in SQLite.
//
// The Store backs the work code history, the reference number counter, and
// the notification records, and owns the aggregate rows for splitsheets,
// participants, and roles. Counters rely on unique constraints: a losing
// writer sees services.ErrConflict and retries with a fresh read. Status
// changes are guarded by the current value in the WHERE clause so concurrent
// signers and finalizers cannot skip or repeat a step.
//
// Schema changes bump schemaVersion in schema.go.
package store
