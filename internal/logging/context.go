package logging

import (
	"context"
	"log/slog"

	"splitsheet/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSplitsheetID identifies the splitsheet an entry concerns.
	FieldSplitsheetID = "splitsheet_id"
	// FieldParticipantID identifies a participant within a splitsheet.
	FieldParticipantID = "participant_id"
	// FieldWorkCode carries a rendered work identifier.
	FieldWorkCode = "work_code"
	// FieldReference carries a splitsheet reference number.
	FieldReference = "reference"
	// FieldRequestID is the correlation identifier of an API request.
	FieldRequestID = "request_id"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldError carries the error value.
	FieldError = "error"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.SplitsheetIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSplitsheetID, id))
	}
	if id, ok := services.ParticipantIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldParticipantID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
