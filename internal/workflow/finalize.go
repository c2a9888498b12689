package workflow

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"splitsheet/internal/artifact"
	"splitsheet/internal/logging"
	"splitsheet/internal/payments"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

// Finalize renders the agreement and completes a fully signed, settled
// splitsheet, returning the document location. Calling it again on a
// completed splitsheet returns the existing location.
func (s *Service) Finalize(ctx context.Context, splitsheetID string) (string, error) {
	sheet, err := s.store.GetSplitsheet(ctx, splitsheetID)
	if err != nil {
		return "", err
	}
	if sheet.Status == splitsheet.StatusCompleted {
		return sheet.ArtifactURL, nil
	}
	if err := finalizable(sheet); err != nil {
		return "", err
	}
	if s.documents == nil {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "finalize", "no document renderer configured", nil)
	}

	location, err := s.documents.Render(ctx, sheet)
	if err != nil {
		return "", err
	}
	completed, err := s.store.Complete(ctx, splitsheetID, location, s.now().UTC())
	if err != nil {
		return "", err
	}
	if !completed {
		current, err := s.store.GetSplitsheet(ctx, splitsheetID)
		if err != nil {
			return "", err
		}
		if current.Status == splitsheet.StatusCompleted {
			return current.ArtifactURL, nil
		}
		return "", finalizable(current)
	}
	s.logger.Info("splitsheet completed",
		logging.String(logging.FieldSplitsheetID, splitsheetID),
		logging.String(logging.FieldReference, sheet.ReferenceNumber),
		logging.String("artifact", location),
	)
	return location, nil
}

func finalizable(sheet *splitsheet.Splitsheet) error {
	if sheet.Status != splitsheet.StatusFullySigned {
		return services.Wrap(services.ErrPrecondition, "workflow", "finalize",
			fmt.Sprintf("splitsheet is %s; %d of %d participants signed", sheet.Status, sheet.SignedCount(), sheet.TotalParticipants()), nil)
	}
	if !sheet.PaymentStatus.Settled() {
		return services.Wrap(services.ErrPrecondition, "workflow", "finalize",
			fmt.Sprintf("payment is %s", sheet.PaymentStatus), nil)
	}
	return nil
}

// RecordPayment applies a payment status reported by an operator or the
// payment provider. A settled payment never regresses.
func (s *Service) RecordPayment(ctx context.Context, splitsheetID string, status splitsheet.PaymentStatus, externalRef string) (*splitsheet.Splitsheet, error) {
	if _, ok := splitsheet.ParsePaymentStatus(string(status)); !ok {
		return nil, services.Invalid("payment_status", fmt.Sprintf("unknown payment status %q", status))
	}
	applied, err := s.store.UpdatePayment(ctx, splitsheetID, status, strings.TrimSpace(externalRef))
	if err != nil {
		return nil, err
	}
	s.logger.Info("payment recorded",
		logging.String(logging.FieldSplitsheetID, splitsheetID),
		logging.String("payment_status", string(applied)),
	)
	return s.store.GetSplitsheet(ctx, splitsheetID)
}

// ApplyPaymentEvent records a verified provider event. It reports false for
// event types that carry no payment state and for event ids already applied.
func (s *Service) ApplyPaymentEvent(ctx context.Context, evt payments.Event) (bool, error) {
	if evt.Status == "" {
		s.logger.Debug("payment event ignored", logging.String("event_type", evt.Type))
		return false, nil
	}
	applied, err := s.store.ApplyPaymentEvent(ctx, evt.ID, evt.SplitsheetID, evt.Status, strings.TrimSpace(evt.ExternalRef))
	if err != nil {
		return false, err
	}
	logger := s.logger.With(
		logging.String(logging.FieldSplitsheetID, evt.SplitsheetID),
		logging.String("payment_event", evt.ID),
	)
	if !applied {
		logger.Info("payment event already applied")
		return false, nil
	}
	logger.Info("payment recorded", logging.String("payment_status", string(evt.Status)))
	return true, nil
}

// DownloadLink issues a signed link for a downloadable splitsheet.
func (s *Service) DownloadLink(ctx context.Context, splitsheetID string) (artifact.Link, error) {
	if s.links == nil {
		return artifact.Link{}, services.Wrap(services.ErrConfiguration, "workflow", "download_link", "downloads.signing_key is not configured", nil)
	}
	sheet, err := s.store.GetSplitsheet(ctx, splitsheetID)
	if err != nil {
		return artifact.Link{}, err
	}
	if !sheet.CanDownload() {
		return artifact.Link{}, downloadLocked(sheet)
	}
	return s.links.Sign(sheet.ID, sheet.ReferenceNumber)
}

// Download is an open agreement document. Callers must close Body.
type Download struct {
	Splitsheet *splitsheet.Splitsheet
	FileName   string
	Body       io.ReadCloser
}

// Download verifies a signed link, re-checks the release gate, opens the
// document and counts the download.
func (s *Service) Download(ctx context.Context, linkToken string) (Download, error) {
	if s.links == nil || s.documents == nil {
		return Download{}, services.Wrap(services.ErrConfiguration, "workflow", "download", "downloads are not configured", nil)
	}
	splitsheetID, err := s.links.Verify(linkToken)
	if err != nil {
		return Download{}, err
	}
	sheet, err := s.store.GetSplitsheet(ctx, splitsheetID)
	if err != nil {
		return Download{}, err
	}
	if !sheet.CanDownload() {
		return Download{}, downloadLocked(sheet)
	}
	f, err := s.documents.Open(sheet.ArtifactURL)
	if err != nil {
		return Download{}, err
	}
	count, err := s.store.IncrementDownloads(ctx, sheet.ID)
	if err != nil {
		_ = f.Close()
		return Download{}, err
	}
	sheet.DownloadCount = count
	name := sheet.ReferenceNumber + filepath.Ext(sheet.ArtifactURL)
	return Download{Splitsheet: sheet, FileName: name, Body: f}, nil
}

func downloadLocked(sheet *splitsheet.Splitsheet) error {
	return services.Wrap(services.ErrPrecondition, "workflow", "download",
		fmt.Sprintf("not downloadable: status %s, payment %s", sheet.Status, sheet.PaymentStatus), nil)
}
