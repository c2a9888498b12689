package splitsheet

import (
	"strings"
)

// RoleType is the kind of contribution a participant makes.
type RoleType string

const (
	RoleSongwriter        RoleType = "songwriter"
	RoleMelodyCreator     RoleType = "melody_creator"
	RoleBeatComposer      RoleType = "beat_composer"
	RoleRecordingArtist   RoleType = "recording_artist"
	RoleLabelRep          RoleType = "label_rep"
	RolePublisher         RoleType = "publisher"
	RoleStudioRep         RoleType = "studio_rep"
	RoleExecutiveProducer RoleType = "executive_producer"
)

// Ownership categories tracked by the percentage ledger.
const (
	CategorySongwriting       = "songwriting"
	CategoryMelody            = "melody"
	CategoryBeatProduction    = "beatProduction"
	CategoryPublishing        = "publishing"
	CategoryExecutiveProducer = "executiveProducer"
)

// Categories lists the tracked categories in reporting order.
var Categories = []string{
	CategorySongwriting,
	CategoryMelody,
	CategoryBeatProduction,
	CategoryPublishing,
	CategoryExecutiveProducer,
}

var roleAliases = map[string]RoleType{
	"songwriter":        RoleSongwriter,
	"melodycreator":     RoleMelodyCreator,
	"beatcomposer":      RoleBeatComposer,
	"beatmusiccomposer": RoleBeatComposer,
	"recordingartist":   RoleRecordingArtist,
	"labelrep":          RoleLabelRep,
	"publisher":         RolePublisher,
	"studiorep":         RoleStudioRep,
	"executiveproducer": RoleExecutiveProducer,
}

// ParseRoleType accepts snake_case, camelCase or spaced spellings.
func ParseRoleType(value string) (RoleType, bool) {
	key := strings.ToLower(value)
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	role, ok := roleAliases[key]
	return role, ok
}

// Code is the two-letter code used in entry ids.
func (r RoleType) Code() string {
	switch r {
	case RoleSongwriter:
		return "WC"
	case RoleMelodyCreator:
		return "MC"
	case RoleBeatComposer:
		return "BC"
	case RoleRecordingArtist:
		return "RA"
	case RoleLabelRep:
		return "LD"
	case RolePublisher:
		return "PD"
	case RoleStudioRep:
		return "SD"
	case RoleExecutiveProducer:
		return "EP"
	default:
		return ""
	}
}

// Category returns the ownership category the role counts toward, or "" for
// non-ownership participation (recording artist, label and studio reps).
func (r RoleType) Category() string {
	switch r {
	case RoleSongwriter:
		return CategorySongwriting
	case RoleMelodyCreator:
		return CategoryMelody
	case RoleBeatComposer:
		return CategoryBeatProduction
	case RolePublisher:
		return CategoryPublishing
	case RoleExecutiveProducer:
		return CategoryExecutiveProducer
	default:
		return ""
	}
}

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	return r.Code() != ""
}

// Role is one contribution line. EntryID is assigned once at creation.
type Role struct {
	Type       RoleType `json:"type"`
	Percentage float64  `json:"percentage"`
	EntryID    string   `json:"entry_id,omitempty"`
}
