package enrich

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"splitsheet/internal/logging"
	"splitsheet/internal/splitsheet"
)

// Profile is what the identity store knows about a user. Empty fields are
// unknown.
type Profile struct {
	FullName       string
	Email          string
	Address        string
	Phone          string
	IPINumber      string
	PROAffiliation string
}

// ProfileStore resolves a known user's profiles, ordered from the base account
// through the role-specific kinds (artist, musician, professional). A nil slice
// means the reference is unknown.
type ProfileStore interface {
	Profiles(ctx context.Context, identityRef string) ([]Profile, error)
}

// Merge folds profiles in order; later non-empty fields win.
func Merge(profiles []Profile) Profile {
	var out Profile
	for _, p := range profiles {
		override(&out.FullName, p.FullName)
		override(&out.Email, p.Email)
		override(&out.Address, p.Address)
		override(&out.Phone, p.Phone)
		override(&out.IPINumber, p.IPINumber)
		override(&out.PROAffiliation, p.PROAffiliation)
	}
	return out
}

func override(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

// Enricher fills in known participants from the profile store and issues
// every participant an access token.
type Enricher struct {
	store       ProfileStore
	concurrency int
	newID       func() string
	logger      *slog.Logger
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithConcurrency bounds parallel profile lookups.
func WithConcurrency(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithIDGenerator replaces the participant id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Enricher) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) {
		e.logger = logging.NewComponentLogger(logger, "enrich")
	}
}

// New constructs an Enricher. store may be nil when no profile directory is
// configured.
func New(store ProfileStore, opts ...Option) *Enricher {
	e := &Enricher{
		store:       store,
		concurrency: 4,
		newID:       uuid.NewString,
		logger:      logging.NewComponentLogger(nil, "enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns enriched copies of participants in their original order.
// Profile lookup failures are logged and leave the participant as supplied;
// only token generation failures abort.
func (e *Enricher) Enrich(ctx context.Context, participants []splitsheet.Participant) ([]splitsheet.Participant, error) {
	out := make([]splitsheet.Participant, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range participants {
		p := participants[i]
		g.Go(func() error {
			if p.ID == "" {
				p.ID = e.newID()
			}
			e.applyProfile(gctx, &p)
			token, digest, err := NewToken()
			if err != nil {
				return err
			}
			p.AccessToken = token
			p.TokenDigest = digest
			p.HasSigned = false
			p.SignatureRef = ""
			p.SignedAt = nil
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Enricher) applyProfile(ctx context.Context, p *splitsheet.Participant) {
	ref := strings.TrimSpace(p.IdentityRef)
	if ref == "" || e.store == nil {
		return
	}
	profiles, err := e.store.Profiles(ctx, ref)
	if err != nil {
		logging.WarnWithContext(e.logger, "profile lookup failed", "profile_lookup_failed",
			logging.Error(err),
			logging.String("identity_ref", ref),
			logging.String(logging.FieldImpact, "participant kept as submitted"),
		)
		return
	}
	if len(profiles) == 0 {
		e.logger.Debug("identity reference not found", logging.String("identity_ref", ref))
		return
	}
	merged := Merge(profiles)
	override(&p.Name, merged.FullName)
	override(&p.Email, merged.Email)
	override(&p.Address, merged.Address)
	override(&p.Phone, merged.Phone)
	override(&p.IPINumber, merged.IPINumber)
	override(&p.PROAffiliation, merged.PROAffiliation)
}
