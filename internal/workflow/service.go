package workflow

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"splitsheet/internal/artifact"
	"splitsheet/internal/enrich"
	"splitsheet/internal/ledger"
	"splitsheet/internal/logging"
	"splitsheet/internal/notifications"
	"splitsheet/internal/reference"
	"splitsheet/internal/splitsheet"
	"splitsheet/internal/store"
	"splitsheet/internal/workcode"
)

// Documents renders agreements and reads them back for download.
type Documents interface {
	artifact.Renderer
	Open(location string) (*os.File, error)
}

// Pricing is the fee schedule applied to new splitsheets.
type Pricing struct {
	BasePrice          float64
	DiscountPercentage float64
	Currency           string
}

// Dependencies wires a Service. Store, Allocator, References, Enricher and
// Dispatcher are required.
type Dependencies struct {
	Store      *store.Store
	Allocator  *workcode.Allocator
	References *reference.Generator
	Enricher   *enrich.Enricher
	Dispatcher *notifications.Dispatcher
	Documents  Documents
	Links      *artifact.Signer
	Policy     ledger.Policy
	Pricing    Pricing
	Clock      func() time.Time
	NewID      func() string
	Logger     *slog.Logger
}

// Service runs the splitsheet lifecycle: submission, signature collection,
// payment, finalization and download.
type Service struct {
	store      *store.Store
	allocator  *workcode.Allocator
	references *reference.Generator
	enricher   *enrich.Enricher
	dispatcher *notifications.Dispatcher
	documents  Documents
	links      *artifact.Signer
	policy     ledger.Policy
	pricing    Pricing
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// New validates deps and builds a Service.
func New(deps Dependencies) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("workflow: store required")
	case deps.Allocator == nil:
		return nil, errors.New("workflow: allocator required")
	case deps.References == nil:
		return nil, errors.New("workflow: reference generator required")
	case deps.Enricher == nil:
		return nil, errors.New("workflow: enricher required")
	case deps.Dispatcher == nil:
		return nil, errors.New("workflow: dispatcher required")
	}
	if deps.Policy == "" {
		deps.Policy = ledger.PolicyStrict
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Service{
		store:      deps.Store,
		allocator:  deps.Allocator,
		references: deps.References,
		enricher:   deps.Enricher,
		dispatcher: deps.Dispatcher,
		documents:  deps.Documents,
		links:      deps.Links,
		policy:     deps.Policy,
		pricing:    deps.Pricing,
		now:        deps.Clock,
		newID:      deps.NewID,
		logger:     logging.NewComponentLogger(deps.Logger, "workflow"),
	}, nil
}

// Allocator exposes the identifier allocator for standalone allocation.
func (s *Service) Allocator() *workcode.Allocator {
	return s.allocator
}

// Dispatcher exposes the notification dispatcher.
func (s *Service) Dispatcher() *notifications.Dispatcher {
	return s.dispatcher
}

// Policy returns the ledger policy enforced at submission.
func (s *Service) Policy() ledger.Policy {
	return s.policy
}

func (s *Service) pricingFor() splitsheet.Pricing {
	return splitsheet.NewPricing(s.pricing.BasePrice, s.pricing.DiscountPercentage, s.pricing.Currency)
}
