package workcode

import (
	"fmt"
	"strconv"
	"strings"

	"splitsheet/internal/services"
)

const (
	// SignificantLength is the number of characters in an identifier once the
	// hyphens are removed: country 2, registrant 3, year 2, contributor 2, sequence 3.
	SignificantLength = 12

	// MaxSequence is the largest sequence a three-digit slot can carry.
	MaxSequence = 999
	// MaxContributorID is the largest contributor id a two-digit slot can carry.
	MaxContributorID = 99
)

// Identifier is an immutable work code. Parity of Sequence encodes whether the
// work is an original (odd) or a derivative such as a remix (even).
type Identifier struct {
	Country       string
	Registrant    string
	Year          int
	ContributorID int
	Sequence      int
}

// String renders the identifier as CC-RRR-YY-NN-SSS.
func (id Identifier) String() string {
	return fmt.Sprintf("%s-%s-%02d-%02d-%03d", id.Country, id.Registrant, id.Year, id.ContributorID, id.Sequence)
}

// IsOriginal reports whether the sequence is odd.
func (id Identifier) IsOriginal() bool {
	return id.Sequence%2 == 1
}

// Suffix is the upper-cased country and registrant, used to scope reference numbers.
func (id Identifier) Suffix() string {
	return strings.ToUpper(id.Country + id.Registrant)
}

// IsZero reports whether id is the zero value.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// Parse converts a CC-RRR-YY-NN-SSS string into an Identifier. Character count
// is checked before the pattern so short or long input gets an exact delta.
func Parse(raw string) (Identifier, error) {
	value := strings.TrimSpace(raw)
	if res := checkShape(value, genericPattern, "CC-RRR-YY-NN-SSS"); !res.Valid {
		return Identifier{}, services.Invalid("work_code", res.Error)
	}
	parts := strings.Split(value, "-")
	year, _ := strconv.Atoi(parts[2])
	contributor, _ := strconv.Atoi(parts[3])
	sequence, _ := strconv.Atoi(parts[4])
	return Identifier{
		Country:       parts[0],
		Registrant:    parts[1],
		Year:          year,
		ContributorID: contributor,
		Sequence:      sequence,
	}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw string) Identifier {
	id, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// IsOriginalCode reports whether a code string denotes an original work.
// Unparseable input is treated as original.
func IsOriginalCode(raw string) bool {
	id, err := Parse(raw)
	if err != nil {
		return true
	}
	return id.IsOriginal()
}

// FormatContributorID renders a contributor id in its two-digit slot form.
func FormatContributorID(id int) string {
	return fmt.Sprintf("%02d", id)
}
