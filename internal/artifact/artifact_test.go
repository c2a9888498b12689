package artifact_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsheet/internal/artifact"
	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

func sampleSheet() *splitsheet.Splitsheet {
	signed := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	return &splitsheet.Splitsheet{
		ID:              "sheet/1",
		Title:           "Lí-Lí (Remix)",
		ReferenceNumber: "WM-SS-04001-20250201-001",
		WorkCode:        "DM-A0D-25-04-001",
		Status:          splitsheet.StatusCompleted,
		Participants: []splitsheet.Participant{
			{
				ID:        "p1",
				Name:      "Ada",
				Email:     "ada@example.com",
				HasSigned: true,
				SignedAt:  &signed,
				Roles:     []splitsheet.Role{{Type: splitsheet.RoleSongwriter, Percentage: 100, EntryID: "WM-SSA-WC-DM-A0D-25-04-001-01"}},
			},
		},
		Totals: splitsheet.Totals{Songwriting: 100},
	}
}

func TestRenderWritesPDFInsideArtifactDir(t *testing.T) {
	dir := t.TempDir()
	r := artifact.NewPDFRenderer(dir, nil)

	location, err := r.Render(context.Background(), sampleSheet())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sheet_1.pdf"), location)

	f, err := r.Open(location)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(data, []byte("%%EOF\n")))
	assert.Contains(t, string(data), `\(Remix\)`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not linger")
}

func TestOpenRefusesPathsOutsideDir(t *testing.T) {
	r := artifact.NewPDFRenderer(t.TempDir(), nil)
	_, err := r.Open("/etc/passwd")
	assert.True(t, errors.Is(err, services.ErrNotFound))
}

func TestLinesListParticipantsAndTotals(t *testing.T) {
	lines := artifact.Lines(sampleSheet(), time.Unix(0, 0))
	assert.Contains(t, lines, "Work code: DM-A0D-25-04-001")
	assert.Contains(t, lines, "PARTICIPANTS (1 of 1 signed)")
	assert.Contains(t, lines, "   Signed 2025-02-01T12:00:00Z")
}

func TestSignerRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	signer, err := artifact.NewSigner("secret", time.Hour, clock)
	require.NoError(t, err)

	link, err := signer.Sign("sheet-1", "WM-SS-X")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), link.ExpiresAt)

	id, err := signer.Verify(link.Token)
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)
}

func TestSignerRejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	signer, err := artifact.NewSigner("secret", time.Minute, func() time.Time { return now })
	require.NoError(t, err)
	link, err := signer.Sign("sheet-1", "")
	require.NoError(t, err)

	later, err := artifact.NewSigner("secret", time.Minute, func() time.Time { return now.Add(2 * time.Minute) })
	require.NoError(t, err)
	_, err = later.Verify(link.Token)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	other, err := artifact.NewSigner("other", time.Minute, func() time.Time { return now })
	require.NoError(t, err)
	_, err = other.Verify(link.Token)
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = signer.Verify("")
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestNewSignerRequiresKey(t *testing.T) {
	_, err := artifact.NewSigner("  ", time.Minute, nil)
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
