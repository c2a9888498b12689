// Package pgcounters keeps the shared identifier history and reference
// counters in PostgreSQL for deployments that run more than one instance.
//
// Every insert runs in a transaction holding pg_advisory_xact_lock for its
// counter scope, and the tables carry the same unique constraints as the
// SQLite store, so a losing writer sees services.ErrConflict and retries.
package pgcounters
