package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"splitsheet/internal/enrich"
	"splitsheet/internal/logging"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

// ProcessSignature records participantID's signature. Repeating it for a
// participant who already signed changes nothing. The last signature moves
// the splitsheet to fully_signed.
func (s *Service) ProcessSignature(ctx context.Context, splitsheetID, participantID, signatureRef string, signedAt time.Time) (*splitsheet.Splitsheet, error) {
	sheet, err := s.store.GetSplitsheet(ctx, splitsheetID)
	if err != nil {
		return nil, err
	}
	if _, ok := sheet.Participant(participantID); !ok {
		return nil, services.Wrap(services.ErrNotFound, "workflow", "sign",
			fmt.Sprintf("participant %q is not on splitsheet %q", participantID, splitsheetID), nil)
	}
	if signedAt.IsZero() {
		signedAt = s.now()
	}

	changed, err := s.store.MarkSigned(ctx, splitsheetID, participantID, strings.TrimSpace(signatureRef), signedAt.UTC())
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(
		logging.String(logging.FieldSplitsheetID, splitsheetID),
		logging.String(logging.FieldParticipantID, participantID),
	)
	if changed {
		logger.Info("signature recorded")
	} else {
		logger.Debug("participant already signed")
	}

	if err := s.advanceIfAllSigned(ctx, splitsheetID); err != nil {
		return nil, err
	}
	return s.store.GetSplitsheet(ctx, splitsheetID)
}

// SignWithToken records the signature of the participant holding token.
func (s *Service) SignWithToken(ctx context.Context, token, signatureRef string) (*splitsheet.Splitsheet, string, error) {
	sheetID, participantID, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	sheet, err := s.ProcessSignature(ctx, sheetID, participantID, signatureRef, time.Time{})
	return sheet, participantID, err
}

// ByToken returns the splitsheet and participant id a signing token grants
// access to.
func (s *Service) ByToken(ctx context.Context, token string) (*splitsheet.Splitsheet, string, error) {
	sheetID, participantID, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, "", err
	}
	sheet, err := s.store.GetSplitsheet(ctx, sheetID)
	if err != nil {
		return nil, "", err
	}
	return sheet, participantID, nil
}

func (s *Service) resolveToken(ctx context.Context, token string) (string, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "", services.Wrap(services.ErrNotFound, "workflow", "token", "access token required", nil)
	}
	return s.store.FindByTokenDigest(ctx, enrich.Digest(token))
}

// advanceIfAllSigned fires pending_signatures -> fully_signed once every
// participant row is signed. The guarded update makes concurrent last
// signers fire it once.
func (s *Service) advanceIfAllSigned(ctx context.Context, splitsheetID string) error {
	sheet, err := s.store.GetSplitsheet(ctx, splitsheetID)
	if err != nil {
		return err
	}
	if sheet.Status != splitsheet.StatusPendingSignatures || !sheet.AllSigned() {
		return nil
	}
	advanced, err := s.store.AdvanceStatus(ctx, splitsheetID, splitsheet.StatusPendingSignatures, splitsheet.StatusFullySigned)
	if err != nil {
		return err
	}
	if advanced {
		s.logger.Info("all participants signed",
			logging.String(logging.FieldSplitsheetID, splitsheetID),
			logging.Int("participants", sheet.TotalParticipants()),
		)
	}
	return nil
}
