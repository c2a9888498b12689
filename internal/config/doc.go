// Package config loads, normalizes, and validates splitsheet configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies SPLITSHEET_* environment overrides
// for secrets such as the API token and webhook secret. The Config type
// centralizes every knob the server and CLI need, including the work-code
// namespace and the static contributor table handed to the allocator.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
