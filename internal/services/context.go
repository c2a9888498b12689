package services

import "context"

type contextKey string

const (
	splitsheetIDKey  contextKey = "splitsheet_id"
	participantIDKey contextKey = "participant_id"
	requestIDKey     contextKey = "request_id"
)

// WithSplitsheetID annotates context with the splitsheet identifier.
func WithSplitsheetID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, splitsheetIDKey, id)
}

// SplitsheetIDFromContext extracts the splitsheet identifier if present.
func SplitsheetIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(splitsheetIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithParticipantID annotates context with the participant identifier.
func WithParticipantID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, participantIDKey, id)
}

// ParticipantIDFromContext returns the participant identifier if present.
func ParticipantIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(participantIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
