package ledger

import (
	"fmt"

	"splitsheet/internal/splitsheet"
)

// Unassigned stands in for the work code in entry ids of splitsheets that were
// submitted without one.
const Unassigned = "UNASSIGNED"

// EntryID renders WM-SSA-<code>-<work code>-<NN>.
func EntryID(role splitsheet.RoleType, workCode string, counter int) string {
	if workCode == "" {
		workCode = Unassigned
	}
	return fmt.Sprintf("WM-SSA-%s-%s-%02d", role.Code(), workCode, counter)
}

// AssignEntryIDs returns a copy of participants with an entry id on every role.
// Counters run per role code in participant-then-role order. Roles that
// already carry an entry id keep it and still advance their counter, so a
// second call never rewrites anything.
func AssignEntryIDs(participants []splitsheet.Participant, workCode string) []splitsheet.Participant {
	out := make([]splitsheet.Participant, len(participants))
	counters := make(map[string]int)
	for i, p := range participants {
		roles := make([]splitsheet.Role, len(p.Roles))
		copy(roles, p.Roles)
		for j := range roles {
			code := roles[j].Type.Code()
			counters[code]++
			if roles[j].EntryID == "" {
				roles[j].EntryID = EntryID(roles[j].Type, workCode, counters[code])
			}
		}
		p.Roles = roles
		out[i] = p
	}
	return out
}
