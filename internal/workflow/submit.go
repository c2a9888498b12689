package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"splitsheet/internal/ledger"
	"splitsheet/internal/logging"
	"splitsheet/internal/notifications"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
	"splitsheet/internal/workcode"
)

// RoleInput is one submitted contribution line.
type RoleInput struct {
	Type       string  `json:"type"`
	Percentage float64 `json:"percentage"`
}

// ParticipantInput is a participant as submitted. Known users may supply only
// IdentityRef; the enricher fills the rest.
type ParticipantInput struct {
	IdentityRef    string      `json:"identity_ref,omitempty"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Address        string      `json:"address,omitempty"`
	Phone          string      `json:"phone,omitempty"`
	IPINumber      string      `json:"ipi_number,omitempty"`
	PROAffiliation string      `json:"pro_affiliation,omitempty"`
	Roles          []RoleInput `json:"roles"`
}

// SubmitRequest creates a splitsheet.
type SubmitRequest struct {
	Title        string                `json:"title"`
	Participants []ParticipantInput    `json:"participants"`
	Audio        *splitsheet.AudioFile `json:"audio,omitempty"`
	// WorkCode is used when no audio is attached.
	WorkCode string `json:"work_code,omitempty"`
	// Original defaults to true; false requests a derivative (even) sequence.
	Original        *bool  `json:"original,omitempty"`
	ContributorName string `json:"contributor_name,omitempty"`
	ContributorID   *int   `json:"contributor_id,omitempty"`
	AgreementDate   string `json:"agreement_date,omitempty"`
	WorkID          string `json:"work_id,omitempty"`
	UPCEAN          string `json:"upc_ean,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CreatedBy       string `json:"created_by,omitempty"`
}

// SubmitResult is the outcome of a submission. Tokens maps participant id to
// the plaintext signing token; it is only available here.
type SubmitResult struct {
	Splitsheet    *splitsheet.Splitsheet
	Tokens        map[string]string
	Notifications notifications.Summary
	Warnings      []string
}

// Submit validates, enriches, allocates, persists and dispatches a new
// splitsheet. Validation failures happen before any write. Identifier and
// reference problems degrade the result instead of failing it.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return SubmitResult{}, services.Invalid("title", "required")
	}
	participants, err := participantsFromInput(req.Participants)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := ledger.ValidateRoles(participants); err != nil {
		return SubmitResult{}, err
	}
	if err := s.policy.Check(ledger.ComputeTotals(participants)); err != nil {
		return SubmitResult{}, err
	}
	if req.Audio == nil && strings.TrimSpace(req.WorkCode) != "" {
		if err := s.allocator.Format().Check(req.WorkCode); err != nil {
			return SubmitResult{}, err
		}
	}

	participants, err = s.enricher.Enrich(ctx, participants)
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrTransient, "workflow", "enrich", "could not prepare participants", err)
	}
	for i, p := range participants {
		field := fmt.Sprintf("participants[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return SubmitResult{}, services.Invalid(field, "name is required")
		}
		if !strings.Contains(p.Email, "@") {
			return SubmitResult{}, services.Invalid(field, fmt.Sprintf("%s needs a valid email", p.Name))
		}
	}

	sheet := &splitsheet.Splitsheet{
		ID:            s.newID(),
		Title:         title,
		Status:        splitsheet.StatusDraft,
		Pricing:       s.pricingFor(),
		Audio:         req.Audio,
		AgreementDate: strings.TrimSpace(req.AgreementDate),
		WorkID:        strings.TrimSpace(req.WorkID),
		UPCEAN:        strings.TrimSpace(req.UPCEAN),
		Notes:         strings.TrimSpace(req.Notes),
		CreatedBy:     strings.TrimSpace(req.CreatedBy),
		CreatedAt:     s.now().UTC(),
	}
	if sheet.CreatedBy == "" {
		sheet.CreatedBy = "api"
	}
	sheet.PaymentStatus = splitsheet.PaymentPending
	if sheet.Pricing.Free() {
		sheet.PaymentStatus = splitsheet.PaymentFree
	}

	var warnings []string
	id, warning, err := s.resolveWorkCode(ctx, req, participants)
	if err != nil {
		return SubmitResult{}, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
		sheet.WorkCodeProvisional = true
	}
	if !id.IsZero() {
		sheet.WorkCode = id.String()
	}

	sheet.Participants = ledger.AssignEntryIDs(participants, sheet.WorkCode)
	sheet.Totals = ledger.ComputeTotals(sheet.Participants)

	ref := s.references.Generate(ctx, id)
	sheet.ReferenceNumber = ref.Value
	sheet.ReferenceDegraded = ref.Degraded
	if ref.Degraded {
		warnings = append(warnings, "reference number is a fallback value")
	}

	if err := s.store.CreateSplitsheet(ctx, sheet); err != nil {
		return SubmitResult{}, err
	}
	logger := s.logger.With(logging.String(logging.FieldSplitsheetID, sheet.ID))
	logger.Info("splitsheet created",
		logging.String(logging.FieldReference, sheet.ReferenceNumber),
		logging.String(logging.FieldWorkCode, sheet.WorkCode),
		logging.Int("participants", len(sheet.Participants)),
	)

	summary := s.dispatcher.Dispatch(ctx, sheet)
	if err := summary.Err(); err != nil {
		warnings = append(warnings, err.Error())
	}

	if _, err := s.store.AdvanceStatus(ctx, sheet.ID, splitsheet.StatusDraft, splitsheet.StatusPendingSignatures); err != nil {
		return SubmitResult{}, err
	}
	// Signatures can land before the transition above.
	if err := s.advanceIfAllSigned(ctx, sheet.ID); err != nil {
		return SubmitResult{}, err
	}

	tokens := make(map[string]string, len(sheet.Participants))
	for _, p := range sheet.Participants {
		tokens[p.ID] = p.AccessToken
	}
	stored, err := s.store.GetSplitsheet(ctx, sheet.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		Splitsheet:    stored,
		Tokens:        tokens,
		Notifications: summary,
		Warnings:      warnings,
	}, nil
}

// resolveWorkCode allocates an identifier when audio is attached, otherwise
// parses the caller's code. Allocation trouble yields a warning, never an
// error, unless the request itself is invalid.
func (s *Service) resolveWorkCode(ctx context.Context, req SubmitRequest, participants []splitsheet.Participant) (workcode.Identifier, string, error) {
	if req.Audio == nil {
		code := strings.TrimSpace(req.WorkCode)
		if code == "" {
			return workcode.Identifier{}, "", nil
		}
		id, err := workcode.Parse(code)
		return id, "", err
	}

	name := strings.TrimSpace(req.ContributorName)
	if name == "" && len(participants) > 0 {
		name = participants[0].Name
	}
	original := true
	if req.Original != nil {
		original = *req.Original
	}
	alloc, err := s.allocator.Allocate(ctx, workcode.Request{
		ContributorName: name,
		WorkTitle:       req.Title,
		Original:        original,
		ContributorID:   req.ContributorID,
	})
	if errors.Is(err, services.ErrValidation) {
		return workcode.Identifier{}, "", err
	}
	if err != nil {
		logging.WarnWithContext(s.logger, "work code not allocated", "workcode_unallocated",
			logging.Error(err),
			logging.String(logging.FieldImpact, "splitsheet created without a work code"),
		)
		return workcode.Identifier{}, "work code not allocated: " + err.Error(), nil
	}
	if alloc.Degraded {
		return alloc.Identifier, alloc.Reason, nil
	}
	return alloc.Identifier, "", nil
}

func participantsFromInput(inputs []ParticipantInput) ([]splitsheet.Participant, error) {
	if len(inputs) == 0 {
		return nil, services.Invalid("participants", "at least one participant is required")
	}
	out := make([]splitsheet.Participant, 0, len(inputs))
	for i, in := range inputs {
		p := splitsheet.Participant{
			IdentityRef:    strings.TrimSpace(in.IdentityRef),
			Name:           strings.TrimSpace(in.Name),
			Email:          strings.TrimSpace(in.Email),
			Address:        strings.TrimSpace(in.Address),
			Phone:          strings.TrimSpace(in.Phone),
			IPINumber:      strings.TrimSpace(in.IPINumber),
			PROAffiliation: strings.TrimSpace(in.PROAffiliation),
		}
		if p.IdentityRef == "" && (p.Name == "" || p.Email == "") {
			return nil, services.Invalid(fmt.Sprintf("participants[%d]", i), "name and email are required for participants without an identity reference")
		}
		for _, r := range in.Roles {
			roleType, ok := splitsheet.ParseRoleType(r.Type)
			if !ok {
				return nil, services.Invalid(fmt.Sprintf("participants[%d]", i), fmt.Sprintf("unknown role %q", r.Type))
			}
			p.Roles = append(p.Roles, splitsheet.Role{Type: roleType, Percentage: r.Percentage})
		}
		out = append(out, p)
	}
	return out, nil
}
