package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"splitsheet/internal/ledger"
	"splitsheet/internal/splitsheet"
)

func TestAssignEntryIDsCountsPerRoleCode(t *testing.T) {
	in := []splitsheet.Participant{
		participant("a", role(splitsheet.RoleSongwriter, 50), role(splitsheet.RoleRecordingArtist, 0)),
		participant("b", role(splitsheet.RoleSongwriter, 50), role(splitsheet.RoleMelodyCreator, 100)),
		participant("c", role(splitsheet.RoleRecordingArtist, 0)),
	}
	out := ledger.AssignEntryIDs(in, "DM-A0D-25-01-001")

	assert.Equal(t, "WM-SSA-WC-DM-A0D-25-01-001-01", out[0].Roles[0].EntryID)
	assert.Equal(t, "WM-SSA-RA-DM-A0D-25-01-001-01", out[0].Roles[1].EntryID)
	assert.Equal(t, "WM-SSA-WC-DM-A0D-25-01-001-02", out[1].Roles[0].EntryID)
	assert.Equal(t, "WM-SSA-MC-DM-A0D-25-01-001-01", out[1].Roles[1].EntryID)
	assert.Equal(t, "WM-SSA-RA-DM-A0D-25-01-001-02", out[2].Roles[0].EntryID)

	assert.Empty(t, in[0].Roles[0].EntryID, "input must not be mutated")
}

func TestAssignEntryIDsNeverReassigns(t *testing.T) {
	in := []splitsheet.Participant{
		participant("a", role(splitsheet.RoleSongwriter, 100)),
		participant("b", role(splitsheet.RolePublisher, 100)),
	}
	first := ledger.AssignEntryIDs(in, "DM-A0D-25-01-001")
	second := ledger.AssignEntryIDs(first, "DM-A0D-25-01-003")
	assert.Equal(t, first, second)
}

func TestAssignEntryIDsWithoutWorkCode(t *testing.T) {
	out := ledger.AssignEntryIDs([]splitsheet.Participant{participant("a", role(splitsheet.RoleLabelRep, 0))}, "")
	assert.Equal(t, "WM-SSA-LD-UNASSIGNED-01", out[0].Roles[0].EntryID)
}
