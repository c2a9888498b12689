// Package services defines shared utilities consumed by the workflow, the API
// and the external-collaborator adapters.
//
// Key responsibilities:
//   - Context helpers that stamp splitsheet IDs, participant IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every layer classifies
//     failures the same way (validation, not-found, precondition, degraded).
//   - ValidationError, which carries the exact reason shown to end users.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the service.
package services
