package api

import (
	"net/http"

	"splitsheet/internal/workcode"
)

func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	original := true
	if req.Original != nil {
		original = *req.Original
	}
	alloc, err := s.svc.Allocator().Allocate(r.Context(), workcode.Request{
		ContributorName: req.ContributorName,
		WorkTitle:       req.WorkTitle,
		Original:        original,
		ContributorID:   req.ContributorID,
		Year:            req.Year,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, AllocateResponse{
		WorkCode: alloc.Identifier.String(),
		Original: alloc.Identifier.IsOriginal(),
		Degraded: alloc.Degraded,
		Reason:   alloc.Reason,
	})
}

func (s *Server) handleValidateWorkCode(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.svc.Allocator().Format().Validate(req.WorkCode))
}
