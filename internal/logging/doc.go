// Package logging builds the slog loggers used across splitsheet.
//
// Two formats are supported: "console" prints one readable line per record with
// the component lifted into a bracketed prefix, and "json" emits slog JSON with
// RFC3339 UTC timestamps. Debug level turns on source locations.
//
// Components derive child loggers with NewComponentLogger and log degraded
// paths through WarnWithContext so every warning carries event_type, error_hint
// and impact. WithContext stamps request-scoped ids stored by the services
// package.
package logging
