// Package ledger sums ownership percentages per category, applies the
// submission policy to those totals, and assigns per-role entry ids.
package ledger
