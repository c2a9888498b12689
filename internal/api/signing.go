package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSigningView(w http.ResponseWriter, r *http.Request) {
	sheet, participantID, err := s.svc.ByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSigningView(sheet, participantID))
}

func (s *Server) handleSignWithToken(w http.ResponseWriter, r *http.Request) {
	var req TokenSignatureRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sheet, participantID, err := s.svc.SignWithToken(r.Context(), chi.URLParam(r, "token"), req.SignatureRef)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSigningView(sheet, participantID))
}
