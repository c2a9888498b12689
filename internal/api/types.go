package api

import (
	"time"

	"splitsheet/internal/notifications"
	"splitsheet/internal/splitsheet"
	"splitsheet/internal/store"
)

// SubmitResponse is returned by POST /api/splitsheets. Signing tokens are only
// delivered through the notification channel.
type SubmitResponse struct {
	Splitsheet    *splitsheet.Splitsheet `json:"splitsheet"`
	Notifications DeliverySummary        `json:"notifications"`
	Warnings      []string               `json:"warnings,omitempty"`
}

// DeliverySummary reports a notification fan-out.
type DeliverySummary struct {
	Attempted int               `json:"attempted"`
	Sent      int               `json:"sent"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// FromSummary converts a dispatcher summary.
func FromSummary(s notifications.Summary) DeliverySummary {
	out := DeliverySummary{
		Attempted: s.Attempted,
		Sent:      s.Sent,
		Failed:    s.Failed,
		Skipped:   s.Skipped,
	}
	if len(s.Failures) > 0 {
		out.Failures = s.Failures
	}
	return out
}

// ListResponse wraps GET /api/splitsheets.
type ListResponse struct {
	Splitsheets []*splitsheet.Splitsheet `json:"splitsheets"`
}

// SignatureRequest records a signature on behalf of a participant.
type SignatureRequest struct {
	ParticipantID string `json:"participant_id"`
	SignatureRef  string `json:"signature_ref"`
	SignedAt      string `json:"signed_at,omitempty"`
}

// TokenSignatureRequest is the body of POST /api/sign/{token}.
type TokenSignatureRequest struct {
	SignatureRef string `json:"signature_ref"`
}

// PaymentRequest is the body of POST /api/splitsheets/{id}/payment.
type PaymentRequest struct {
	Status      string `json:"status"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// FinalizeResponse reports a completed splitsheet.
type FinalizeResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ArtifactURL string `json:"artifact_url"`
}

// DownloadLinkResponse carries a signed, expiring link.
type DownloadLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AllocateRequest is the body of POST /api/workcodes.
type AllocateRequest struct {
	ContributorName string `json:"contributor_name"`
	ContributorID   *int   `json:"contributor_id,omitempty"`
	WorkTitle       string `json:"work_title,omitempty"`
	Original        *bool  `json:"original,omitempty"`
	Year            int    `json:"year,omitempty"`
}

// AllocateResponse reports an issued work code.
type AllocateResponse struct {
	WorkCode string `json:"work_code"`
	Original bool   `json:"original"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// ValidateRequest is the body of POST /api/workcodes/validate.
type ValidateRequest struct {
	WorkCode string `json:"work_code"`
}

// WebhookResponse acknowledges a payment event.
type WebhookResponse struct {
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Reason   string `json:"reason,omitempty"`
}

// SigningView is what a participant sees through their signing link.
type SigningView struct {
	SplitsheetID    string             `json:"splitsheet_id"`
	Title           string             `json:"title"`
	ReferenceNumber string             `json:"reference_number"`
	WorkCode        string             `json:"work_code,omitempty"`
	Status          splitsheet.Status  `json:"status"`
	ParticipantID   string             `json:"participant_id"`
	HasSigned       bool               `json:"has_signed"`
	SignedCount     int                `json:"signed_count"`
	Total           int                `json:"total_participants"`
	Participants    []SigningViewEntry `json:"participants"`
	Totals          splitsheet.Totals  `json:"category_totals"`
}

// SigningViewEntry lists a co-signer without contact details.
type SigningViewEntry struct {
	Name      string            `json:"name"`
	Roles     []splitsheet.Role `json:"roles"`
	HasSigned bool              `json:"has_signed"`
}

// NewSigningView builds the participant-scoped view of sheet.
func NewSigningView(sheet *splitsheet.Splitsheet, participantID string) SigningView {
	view := SigningView{
		SplitsheetID:    sheet.ID,
		Title:           sheet.Title,
		ReferenceNumber: sheet.ReferenceNumber,
		WorkCode:        sheet.WorkCode,
		Status:          sheet.Status,
		ParticipantID:   participantID,
		SignedCount:     sheet.SignedCount(),
		Total:           sheet.TotalParticipants(),
		Totals:          sheet.Totals,
		Participants:    make([]SigningViewEntry, 0, len(sheet.Participants)),
	}
	for _, p := range sheet.Participants {
		if p.ID == participantID {
			view.HasSigned = p.HasSigned
		}
		view.Participants = append(view.Participants, SigningViewEntry{
			Name:      p.Name,
			Roles:     p.Roles,
			HasSigned: p.HasSigned,
		})
	}
	return view
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Time              time.Time      `json:"time"`
	Channel           string         `json:"notification_channel"`
	LedgerPolicy      string         `json:"ledger_policy"`
	WebhookEnabled    bool           `json:"webhook_enabled"`
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	AwaitingPayment   int            `json:"awaiting_payment"`
	Downloads         int            `json:"downloads"`
	IssuedWorkCodes   int            `json:"issued_work_codes"`
	DegradedWorkCodes int            `json:"degraded_work_codes"`
	PendingDelivery   int            `json:"pending_delivery"`
}

func fromStoreSummary(s store.Summary) StatusResponse {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, count := range s.ByStatus {
		byStatus[string(status)] = count
	}
	return StatusResponse{
		Total:             s.Total,
		ByStatus:          byStatus,
		AwaitingPayment:   s.AwaitingPayment,
		Downloads:         s.Downloads,
		IssuedWorkCodes:   s.IssuedWorkCodes,
		DegradedWorkCodes: s.DegradedWorkCodes,
		PendingDelivery:   s.PendingDelivery,
	}
}
