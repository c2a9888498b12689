package workcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsheet/internal/services"
	"splitsheet/internal/workcode"
)

func TestParseFormatRoundTrip(t *testing.T) {
	for _, raw := range []string{"DM-A0D-25-00-001", "DM-A0D-25-01-004", "US-XYZ-99-98-999", "GB-A1B-00-00-000"} {
		id, err := workcode.Parse(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, id.String())
		again, err := workcode.Parse(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, again)
	}
}

func TestParseReportsExactCharacterDelta(t *testing.T) {
	_, err := workcode.Parse("DM-A0D-25-00-01")
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, services.Reason(err), "too short")
	assert.Contains(t, services.Reason(err), "missing 1")

	_, err = workcode.Parse("DM-A0D-25-00-0001")
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, services.Reason(err), "too long")
	assert.Contains(t, services.Reason(err), "excess 1")
}

func TestFormatValidateOrdersCountBeforePattern(t *testing.T) {
	format, err := workcode.NewFormat("dm", "a0d")
	require.NoError(t, err)

	res := format.Validate("DM-A0D-25-00-01")
	assert.False(t, res.Valid)
	assert.Equal(t, "too short: 11/12 characters (missing 1)", res.Error)
	assert.Equal(t, 11, res.CharacterCount)

	res = format.Validate("DM-A0D-25-00-0001")
	assert.Equal(t, "too long: 13/12 characters (excess 1)", res.Error)

	res = format.Validate("US-A0D-25-00-001")
	assert.Equal(t, "format must be: DM-A0D-YY-NN-XXX", res.Error)
	assert.Equal(t, 12, res.CharacterCount)

	// Hyphens are not counted, so the bare form passes the count and fails the pattern.
	res = format.Validate("DMA0D2500001")
	assert.Equal(t, 12, res.CharacterCount)
	assert.Equal(t, "format must be: DM-A0D-YY-NN-XXX", res.Error)

	res = format.Validate("DM-A0D-25-00-001")
	assert.True(t, res.Valid)
	assert.NoError(t, format.Check("DM-A0D-25-00-001"))
	assert.ErrorIs(t, format.Check("nope"), services.ErrValidation)
}

func TestAllocatedIdentifiersParse(t *testing.T) {
	id := workcode.Identifier{Country: "DM", Registrant: "A0D", Year: 25, ContributorID: 7, Sequence: 12}
	parsed, err := workcode.Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Equal(t, workcode.SignificantLength, len("DMA0D2507012"))
}

func TestIsOriginalCode(t *testing.T) {
	assert.True(t, workcode.IsOriginalCode("DM-A0D-25-00-001"))
	assert.False(t, workcode.IsOriginalCode("DM-A0D-25-00-002"))
	assert.True(t, workcode.IsOriginalCode("garbage"))
}

func TestIdentifierSuffix(t *testing.T) {
	id := workcode.MustParse("DM-A0D-25-00-001")
	assert.Equal(t, "DMA0D", id.Suffix())
	assert.False(t, id.IsZero())
	assert.True(t, workcode.Identifier{}.IsZero())
}
