package api

import (
	"net/http"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := fromStoreSummary(summary)
	resp.Time = s.now().UTC()
	resp.Channel = s.svc.Dispatcher().Channel().Name()
	resp.LedgerPolicy = string(s.svc.Policy())
	resp.WebhookEnabled = s.payments != nil
	s.writeJSON(w, http.StatusOK, resp)
}
