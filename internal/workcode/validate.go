package workcode

import (
	"fmt"
	"regexp"
	"strings"

	"splitsheet/internal/services"
)

var genericPattern = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{3}-\d{2}-\d{2}-\d{3}$`)

// Result is the detailed outcome of validating a code string.
type Result struct {
	Valid          bool   `json:"valid"`
	Error          string `json:"error,omitempty"`
	CharacterCount int    `json:"character_count"`
}

// Format validates codes for a single country and registrant namespace.
type Format struct {
	Country    string
	Registrant string
	pattern    *regexp.Regexp
}

// NewFormat returns a Format bound to country and registrant.
func NewFormat(country, registrant string) (Format, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	registrant = strings.ToUpper(strings.TrimSpace(registrant))
	if len(country) != 2 {
		return Format{}, services.Invalid("country", fmt.Sprintf("must be 2 characters, got %q", country))
	}
	if len(registrant) != 3 {
		return Format{}, services.Invalid("registrant", fmt.Sprintf("must be 3 characters, got %q", registrant))
	}
	expr := `^` + regexp.QuoteMeta(country) + `-` + regexp.QuoteMeta(registrant) + `-\d{2}-\d{2}-\d{3}$`
	return Format{Country: country, Registrant: registrant, pattern: regexp.MustCompile(expr)}, nil
}

// Hint is the human-readable template of a valid code.
func (f Format) Hint() string {
	return f.Country + "-" + f.Registrant + "-YY-NN-XXX"
}

// Validate checks raw against the namespace and explains any failure.
func (f Format) Validate(raw string) Result {
	pattern := f.pattern
	if pattern == nil {
		pattern = genericPattern
	}
	return checkShape(strings.TrimSpace(raw), pattern, f.Hint())
}

// Check is Validate reported as an error.
func (f Format) Check(raw string) error {
	res := f.Validate(raw)
	if res.Valid {
		return nil
	}
	return services.Invalid("work_code", res.Error)
}

func checkShape(value string, pattern *regexp.Regexp, hint string) Result {
	count := len(strings.ReplaceAll(value, "-", ""))
	switch {
	case count < SignificantLength:
		return Result{
			Error:          fmt.Sprintf("too short: %d/%d characters (missing %d)", count, SignificantLength, SignificantLength-count),
			CharacterCount: count,
		}
	case count > SignificantLength:
		return Result{
			Error:          fmt.Sprintf("too long: %d/%d characters (excess %d)", count, SignificantLength, count-SignificantLength),
			CharacterCount: count,
		}
	}
	if !pattern.MatchString(value) {
		return Result{Error: "format must be: " + hint, CharacterCount: count}
	}
	return Result{Valid: true, CharacterCount: count}
}
