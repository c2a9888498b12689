package workcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"splitsheet/internal/logging"
	"splitsheet/internal/services"
)

const defaultMaxAttempts = 8

// History is the persisted record of issued identifiers and registered
// contributors. RecordIdentifier and RegisterContributor must reject duplicates
// with services.ErrConflict so the allocator can retry.
type History interface {
	HighestContributorID(ctx context.Context) (int, error)
	ContributorID(ctx context.Context, nameKey string) (int, bool, error)
	RegisterContributor(ctx context.Context, nameKey, displayName string, id int) error
	Sequences(ctx context.Context, contributorID, year int) ([]int, error)
	RecordIdentifier(ctx context.Context, issued Issued) error
}

// Issued is an identifier together with what it was issued for.
type Issued struct {
	Identifier      Identifier
	ContributorName string
	WorkTitle       string
	IssuedAt        time.Time
	// Degraded identifiers sit under the fallback id and do not count as a
	// registered contributor.
	Degraded bool
}

// Request describes one allocation.
type Request struct {
	ContributorName string
	WorkTitle       string
	Original        bool
	// ContributorID, when set, bypasses name resolution.
	ContributorID *int
	// Year overrides the two-digit year taken from the clock.
	Year int
}

// Allocation is the allocator's answer. Degraded marks an identifier issued
// under the reserved fallback contributor id because history was unavailable.
type Allocation struct {
	Identifier Identifier
	Degraded   bool
	Reason     string
}

// Options configures an Allocator.
type Options struct {
	Country     string
	Registrant  string
	Directory   *Directory
	FallbackID  int
	MaxAttempts int
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Allocator issues collision-free, parity-encoded identifiers.
type Allocator struct {
	history     History
	format      Format
	directory   *Directory
	fallbackID  int
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// NewAllocator builds an Allocator over history.
func NewAllocator(history History, opts Options) (*Allocator, error) {
	if history == nil {
		return nil, errors.New("workcode: history store required")
	}
	format, err := NewFormat(opts.Country, opts.Registrant)
	if err != nil {
		return nil, err
	}
	if opts.FallbackID < 0 || opts.FallbackID > MaxContributorID {
		return nil, services.Invalid("fallback_contributor_id", fmt.Sprintf("must be between 0 and %d", MaxContributorID))
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	directory := opts.Directory
	if directory == nil {
		directory = NewDirectory(nil)
	}
	return &Allocator{
		history:     history,
		format:      format,
		directory:   directory,
		fallbackID:  opts.FallbackID,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Clock,
		logger:      logging.NewComponentLogger(opts.Logger, "workcode"),
	}, nil
}

// Format returns the namespace the allocator issues into.
func (a *Allocator) Format() Format {
	return a.format
}

// Directory returns the static contributor table.
func (a *Allocator) Directory() *Directory {
	return a.directory
}

// Allocate resolves the contributor id and the next sequence of the requested
// parity, then records the identifier. Concurrent callers that race to the same
// sequence see a conflict and retry with a fresh read.
func (a *Allocator) Allocate(ctx context.Context, req Request) (Allocation, error) {
	year := req.Year
	if year <= 0 {
		year = a.now().Year() % 100
	}
	if year > 99 {
		return Allocation{}, services.Invalid("year", "must be two digits")
	}

	contributorID, degraded, err := a.resolveContributor(ctx, req)
	if err != nil {
		return Allocation{}, err
	}
	alloc := Allocation{Degraded: degraded}
	if degraded {
		alloc.Reason = fmt.Sprintf("contributor history unavailable; issued under reserved id %s", FormatContributorID(contributorID))
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		sequences, err := a.history.Sequences(ctx, contributorID, year)
		if err != nil {
			logging.WarnWithContext(a.logger, "sequence history unavailable", "workcode_sequence_unavailable",
				logging.Error(err),
				logging.Int("contributor_id", contributorID),
				logging.String(logging.FieldImpact, "submission continues without a work code"),
			)
			return Allocation{}, services.Wrap(services.ErrAllocationDegraded, "workcode", "sequences", "history query failed", err)
		}
		sequence := NextSequence(sequences, req.Original)
		if sequence > MaxSequence {
			return Allocation{}, services.Wrap(services.ErrPrecondition, "workcode", "allocate",
				fmt.Sprintf("sequence space exhausted for contributor %s in year %02d", FormatContributorID(contributorID), year), nil)
		}
		id := Identifier{
			Country:       a.format.Country,
			Registrant:    a.format.Registrant,
			Year:          year,
			ContributorID: contributorID,
			Sequence:      sequence,
		}
		err = a.history.RecordIdentifier(ctx, Issued{
			Identifier:      id,
			ContributorName: strings.TrimSpace(req.ContributorName),
			WorkTitle:       strings.TrimSpace(req.WorkTitle),
			IssuedAt:        a.now().UTC(),
			Degraded:        degraded,
		})
		if errors.Is(err, services.ErrConflict) {
			a.logger.Debug("sequence taken, retrying", logging.String(logging.FieldWorkCode, id.String()), logging.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return Allocation{}, services.Wrap(services.ErrAllocationDegraded, "workcode", "record", "could not persist identifier", err)
		}
		alloc.Identifier = id
		a.logger.Info("work code issued",
			logging.String(logging.FieldWorkCode, id.String()),
			logging.Bool("original", id.IsOriginal()),
			logging.Bool("degraded", degraded),
		)
		return alloc, nil
	}
	return Allocation{}, services.Wrap(services.ErrConflict, "workcode", "allocate",
		fmt.Sprintf("gave up after %d conflicting attempts", a.maxAttempts), nil)
}

// NextSequence returns max(existing)+1 adjusted to the requested parity.
func NextSequence(existing []int, original bool) int {
	highest := 0
	for _, seq := range existing {
		if seq > highest {
			highest = seq
		}
	}
	candidate := highest + 1
	if original && candidate%2 == 0 {
		candidate++
	}
	if !original && candidate%2 == 1 {
		candidate++
	}
	return candidate
}

func (a *Allocator) resolveContributor(ctx context.Context, req Request) (int, bool, error) {
	if req.ContributorID != nil {
		id := *req.ContributorID
		if id < 0 || id > MaxContributorID {
			return 0, false, services.Invalid("contributor_id", fmt.Sprintf("must be between 00 and %02d", MaxContributorID))
		}
		if id == a.fallbackID {
			return 0, false, services.Invalid("contributor_id", fmt.Sprintf("%s is reserved for provisional codes", FormatContributorID(id)))
		}
		return id, false, nil
	}
	if id, ok := a.directory.Lookup(req.ContributorName); ok {
		return id, false, nil
	}
	key := NameKey(req.ContributorName)
	if key == "" {
		return 0, false, services.Invalid("contributor_name", "required when no contributor id is given")
	}

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		id, found, err := a.history.ContributorID(ctx, key)
		if err != nil {
			return a.degrade(err)
		}
		if found {
			return id, false, nil
		}
		highest, err := a.history.HighestContributorID(ctx)
		if err != nil {
			return a.degrade(err)
		}
		next := max(highest, a.directory.Highest()) + 1
		if next == a.fallbackID {
			next++
		}
		if next > MaxContributorID {
			return 0, false, services.Wrap(services.ErrPrecondition, "workcode", "contributor", "contributor id space exhausted", nil)
		}
		err = a.history.RegisterContributor(ctx, key, strings.TrimSpace(req.ContributorName), next)
		if errors.Is(err, services.ErrConflict) {
			continue
		}
		if err != nil {
			return a.degrade(err)
		}
		a.logger.Info("contributor registered",
			logging.String("contributor", strings.TrimSpace(req.ContributorName)),
			logging.String("contributor_id", FormatContributorID(next)),
		)
		return next, false, nil
	}
	return 0, false, services.Wrap(services.ErrConflict, "workcode", "contributor",
		fmt.Sprintf("gave up after %d conflicting attempts", a.maxAttempts), nil)
}

func (a *Allocator) degrade(err error) (int, bool, error) {
	logging.WarnWithContext(a.logger, "contributor history unavailable", "workcode_contributor_fallback",
		logging.Error(err),
		logging.String("contributor_id", FormatContributorID(a.fallbackID)),
		logging.String(logging.FieldErrorHint, "check the state database"),
		logging.String(logging.FieldImpact, "work code issued under the reserved fallback contributor id"),
	)
	return a.fallbackID, true, nil
}
