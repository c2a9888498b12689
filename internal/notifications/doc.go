// Package notifications delivers signing requests to splitsheet participants.
//
// The Dispatcher records one durable notification per participant, renders a
// plain-text body carrying the participant's signing URL, and hands it to a
// Channel. Channels are selected in config.toml: ntfy (with e-mail
// forwarding), SMTP, the log, or none. Delivery failures are counted in the
// returned Summary and never stop the remaining participants.
package notifications
