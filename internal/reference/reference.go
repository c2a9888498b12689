package reference

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"splitsheet/internal/logging"
	"splitsheet/internal/services"
	"splitsheet/internal/workcode"
)

const (
	prefix          = "WM-SS"
	maxSequence     = 999
	defaultAttempts = 8
)

var pattern = regexp.MustCompile(`^WM-SS-[A-Z0-9]{5}-\d{8}-\d{3}$`)

// Counter is the persisted set of issued reference numbers. ReserveReference
// must reject an already issued value with services.ErrConflict.
type Counter interface {
	ReferenceCount(ctx context.Context, suffix, date string) (int, error)
	ReserveReference(ctx context.Context, value, suffix, date string) error
}

// Reference is a generated reference number. Degraded marks the fallback form
// used when the counter could not be read or written.
type Reference struct {
	Value    string
	Degraded bool
}

// Options configures a Generator.
type Options struct {
	// DefaultSuffix scopes references for splitsheets without a work code.
	DefaultSuffix string
	MaxAttempts   int
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Generator derives WM-SS-<suffix>-<YYYYMMDD>-<seq> references.
type Generator struct {
	counter       Counter
	defaultSuffix string
	maxAttempts   int
	now           func() time.Time
	logger        *slog.Logger
}

// NewGenerator builds a Generator over counter.
func NewGenerator(counter Counter, opts Options) *Generator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultAttempts
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Generator{
		counter:       counter,
		defaultSuffix: strings.ToUpper(opts.DefaultSuffix),
		maxAttempts:   opts.MaxAttempts,
		now:           opts.Clock,
		logger:        logging.NewComponentLogger(opts.Logger, "reference"),
	}
}

// Generate reserves the next reference for the identifier's suffix and today's
// date. It never fails: counter errors yield a fallback reference.
func (g *Generator) Generate(ctx context.Context, id workcode.Identifier) Reference {
	suffix := g.defaultSuffix
	if !id.IsZero() {
		suffix = id.Suffix()
	}
	now := g.now()
	date := now.UTC().Format("20060102")

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		count, err := g.counter.ReferenceCount(ctx, suffix, date)
		if err != nil {
			lastErr = err
			break
		}
		seq := count + 1
		if seq > maxSequence {
			lastErr = fmt.Errorf("daily reference space exhausted for %s on %s", suffix, date)
			break
		}
		value := Format(suffix, date, seq)
		err = g.counter.ReserveReference(ctx, value, suffix, date)
		if errors.Is(err, services.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			lastErr = err
			break
		}
		return Reference{Value: value}
	}

	fallback := Fallback(now)
	logging.WarnWithContext(g.logger, "reference counter unavailable", "reference_fallback",
		logging.Error(lastErr),
		logging.String(logging.FieldReference, fallback),
		logging.String(logging.FieldImpact, "splitsheet carries a fallback reference number"),
	)
	return Reference{Value: fallback, Degraded: true}
}

// Format renders a reference number.
func Format(suffix, date string, seq int) string {
	return fmt.Sprintf("%s-%s-%s-%03d", prefix, strings.ToUpper(suffix), date, seq)
}

// Fallback renders the degraded reference
// WM-SS-FALLBACK-<epoch suffix>-<random>-001. The random segment keeps two
// fallbacks issued in the same millisecond distinct.
func Fallback(now time.Time) string {
	epoch := fmt.Sprintf("%d", now.UnixMilli())
	if len(epoch) > 6 {
		epoch = epoch[len(epoch)-6:]
	}
	id := uuid.New()
	return fmt.Sprintf("%s-FALLBACK-%s-%s-001", prefix, epoch, strings.ToUpper(hex.EncodeToString(id[:4])))
}

// IsFallback reports whether value is a degraded reference.
func IsFallback(value string) bool {
	return strings.HasPrefix(value, prefix+"-FALLBACK-")
}

// Validate checks a regular (non-fallback) reference number.
func Validate(value string) error {
	if !pattern.MatchString(value) {
		return services.Invalid("reference_number", "format must be: WM-SS-XXXXX-YYYYMMDD-NNN")
	}
	return nil
}
