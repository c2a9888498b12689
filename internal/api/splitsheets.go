package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"splitsheet/internal/logging"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
	"splitsheet/internal/store"
	"splitsheet/internal/workflow"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req workflow.SubmitRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.Submit(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, SubmitResponse{
		Splitsheet:    res.Splitsheet,
		Notifications: FromSummary(res.Notifications),
		Warnings:      res.Warnings,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter store.ListFilter
	for _, value := range query["status"] {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := splitsheet.ParseStatus(part)
			if !ok {
				s.fail(w, r, services.Invalid("status", fmt.Sprintf("unknown status %q", part)))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	filter.CreatedBy = strings.TrimSpace(query.Get("created_by"))
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.fail(w, r, services.Invalid("limit", "must be a non-negative integer"))
			return
		}
		filter.Limit = limit
	}

	sheets, err := s.svc.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sheets == nil {
		sheets = []*splitsheet.Splitsheet{}
	}
	s.writeJSON(w, http.StatusOK, ListResponse{Splitsheets: sheets})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sheet, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleSignature(w http.ResponseWriter, r *http.Request) {
	var req SignatureRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.ParticipantID) == "" {
		s.fail(w, r, services.Invalid("participant_id", "required"))
		return
	}
	var signedAt time.Time
	if raw := strings.TrimSpace(req.SignedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.fail(w, r, services.Invalid("signed_at", "must be an RFC3339 timestamp"))
			return
		}
		signedAt = parsed
	}
	sheet, err := s.svc.ProcessSignature(r.Context(), chi.URLParam(r, "id"), req.ParticipantID, req.SignatureRef, signedAt)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	location, err := s.svc.Finalize(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FinalizeResponse{
		ID:          id,
		Status:      string(splitsheet.StatusCompleted),
		ArtifactURL: location,
	})
}

func (s *Server) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := s.readJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	status, ok := splitsheet.ParsePaymentStatus(req.Status)
	if !ok {
		s.fail(w, r, services.Invalid("status", fmt.Sprintf("unknown payment status %q", req.Status)))
		return
	}
	sheet, err := s.svc.RecordPayment(r.Context(), chi.URLParam(r, "id"), status, req.ExternalRef)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleDownloadLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.svc.DownloadLink(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, DownloadLinkResponse{
		URL:       s.publicURL + "/api/downloads/" + link.Token,
		ExpiresAt: link.ExpiresAt,
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	dl, err := s.svc.Download(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer dl.Body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.FileName))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, dl.Body); err != nil {
		s.logger.Warn("download interrupted", logging.Error(err), logging.String(logging.FieldSplitsheetID, dl.Splitsheet.ID))
	}
}
