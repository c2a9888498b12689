// Package splitsheet defines the splitsheet aggregate: participants, their
// roles, category totals, and the forward-only status and payment rules.
//
// Derived values (signed count, download eligibility) are computed from the
// aggregate rather than stored, so they cannot drift from the participant rows.
package splitsheet
