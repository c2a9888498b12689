// Package api serves the splitsheet workflow over HTTP.
//
// # Routes
//
// Operator routes under /api/splitsheets, /api/workcodes and /api/status
// require the configured bearer token when one is set. Three route groups
// authenticate themselves instead: /api/sign/{token} with the participant's
// signing token, /api/downloads/{token} with a signed download link, and
// /api/webhooks/payments with the provider's HMAC signature.
//
// # Errors
//
// Every failure is written as {"error":{"code","message","details",
// "request_id"}}. Error markers from internal/services decide the status:
// validation 400, unauthorized 401, not found 404, precondition and conflict
// 409, anything else 500. Validation failures carry the offending field in
// details.
//
// # Design Notes
//
// Signing tokens are never returned by the API; participants receive them
// through the notification channel. Each request carries an X-Request-Id,
// generated when the caller does not supply one, and the same id appears in
// error bodies and request-scoped logs.
package api
