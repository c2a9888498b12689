// Package enrich completes submitted participants before a splitsheet is
// stored. Participants that reference a known user are populated from the
// profile store, and every participant receives a single-use signing token.
//
// Lookups run concurrently and are joined before Enrich returns.
package enrich
