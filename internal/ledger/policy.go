package ledger

import (
	"fmt"
	"strings"

	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

// Policy decides which category totals a submission may carry.
type Policy string

const (
	// PolicyStrict requires every category to total either 0 or 100.
	PolicyStrict Policy = "strict"
	// PolicyCap only rejects categories above 100, allowing partial drafts.
	PolicyCap Policy = "cap"
	// PolicyOff accepts any totals.
	PolicyOff Policy = "off"
)

// ParsePolicy converts a config value into a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(value))); p {
	case PolicyStrict, PolicyCap, PolicyOff:
		return p, nil
	case "":
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown ledger policy %q", value)
	}
}

// Check returns a ValidationError naming the first category, in reporting
// order, that violates the policy.
func (p Policy) Check(totals splitsheet.Totals) error {
	if p == PolicyOff {
		return nil
	}
	for _, category := range splitsheet.Categories {
		total := totals.Get(category)
		if total > 100+Tolerance {
			return services.Invalid("category_totals", fmt.Sprintf("%s is over-allocated: %.2f%% (excess %.2f%%)", category, total, total-100))
		}
		if p == PolicyStrict && total > Tolerance && total < 100-Tolerance {
			return services.Invalid("category_totals", fmt.Sprintf("%s is under-allocated: %.2f%% (missing %.2f%%)", category, total, 100-total))
		}
	}
	return nil
}
