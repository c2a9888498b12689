package ledger

import (
	"fmt"
	"math"

	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

// Tolerance absorbs floating point noise when comparing totals to 100.
const Tolerance = 0.01

// ComputeTotals sums role percentages per ownership category. Roles without a
// category contribute nothing.
func ComputeTotals(participants []splitsheet.Participant) splitsheet.Totals {
	var totals splitsheet.Totals
	for _, p := range participants {
		for _, role := range p.Roles {
			totals.Add(role.Type.Category(), role.Percentage)
		}
	}
	return totals
}

// ValidateRoles checks that every participant has at least one known role and
// that each percentage lies in [0, 100].
func ValidateRoles(participants []splitsheet.Participant) error {
	if len(participants) == 0 {
		return services.Invalid("participants", "at least one participant is required")
	}
	for i, p := range participants {
		field := fmt.Sprintf("participants[%d]", i)
		if len(p.Roles) == 0 {
			return services.Invalid(field, fmt.Sprintf("%s has no roles", displayName(p, i)))
		}
		for _, role := range p.Roles {
			if !role.Type.Valid() {
				return services.Invalid(field, fmt.Sprintf("unknown role %q", role.Type))
			}
			if math.IsNaN(role.Percentage) || role.Percentage < 0 || role.Percentage > 100 {
				return services.Invalid(field, fmt.Sprintf("%s percentage for %s must be between 0 and 100, got %g", role.Type, displayName(p, i), role.Percentage))
			}
		}
	}
	return nil
}

func displayName(p splitsheet.Participant, index int) string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return fmt.Sprintf("participant %d", index+1)
}
