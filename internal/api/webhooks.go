package api

import (
	"errors"
	"io"
	"net/http"

	"splitsheet/internal/logging"
	"splitsheet/internal/services"
)

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.payments == nil {
		s.fail(w, r, services.Wrap(services.ErrConfiguration, "api", "webhook", "payments.webhook_secret is not configured", nil))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "payload exceeds limit", nil)
			return
		}
		s.fail(w, r, services.Invalid("body", err.Error()))
		return
	}

	evt, err := s.payments.Verify(r.Header, body, s.now())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(r.Context(), s.logger), "payment webhook rejected", "payments_webhook_rejected",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check payments.webhook_secret matches the provider"),
		)
		s.fail(w, r, err)
		return
	}

	applied, err := s.svc.ApplyPaymentEvent(r.Context(), evt)
	switch {
	case errors.Is(err, services.ErrPrecondition), errors.Is(err, services.ErrNotFound):
		// Acknowledge so the provider stops retrying an event that can never apply.
		s.logger.Info("payment event not applied",
			logging.String("event_id", evt.ID),
			logging.String(logging.FieldSplitsheetID, evt.SplitsheetID),
			logging.Error(err),
		)
		s.writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Reason: err.Error()})
		return
	case err != nil:
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, WebhookResponse{Received: true, Applied: applied})
}
