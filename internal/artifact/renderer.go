package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"splitsheet/internal/services"
	"splitsheet/internal/splitsheet"
)

// Renderer produces the signed-agreement document and returns its location.
type Renderer interface {
	Render(ctx context.Context, sheet *splitsheet.Splitsheet) (string, error)
}

// PDFRenderer writes one PDF per splitsheet under a directory.
type PDFRenderer struct {
	dir string
	now func() time.Time
}

// NewPDFRenderer builds a renderer rooted at dir.
func NewPDFRenderer(dir string, now func() time.Time) *PDFRenderer {
	if now == nil {
		now = time.Now
	}
	return &PDFRenderer{dir: dir, now: now}
}

// Render writes <dir>/<splitsheet id>.pdf atomically and returns its path.
func (r *PDFRenderer) Render(ctx context.Context, sheet *splitsheet.Splitsheet) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if sheet == nil || sheet.ID == "" {
		return "", services.Invalid("splitsheet", "required")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "artifact", "render", "create artifact directory", err)
	}

	target := r.pathFor(sheet.ID)
	tmp, err := os.CreateTemp(r.dir, ".render-*.pdf")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "artifact", "render", "create temp file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := writePDF(tmp, "Splitsheet "+sheet.ReferenceNumber, Lines(sheet, r.now())); err != nil {
		_ = tmp.Close()
		return "", services.Wrap(services.ErrTransient, "artifact", "render", "write pdf", err)
	}
	if err := tmp.Close(); err != nil {
		return "", services.Wrap(services.ErrTransient, "artifact", "render", "close pdf", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", services.Wrap(services.ErrTransient, "artifact", "render", "move pdf into place", err)
	}
	return target, nil
}

// Open returns the rendered document at location. Locations outside the
// artifact directory are refused.
func (r *PDFRenderer) Open(location string) (*os.File, error) {
	clean := filepath.Clean(location)
	rel, err := filepath.Rel(r.dir, clean)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return nil, services.Wrap(services.ErrNotFound, "artifact", "open", "document is outside the artifact directory", nil)
	}
	f, err := os.Open(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "artifact", "open", "document missing", err)
		}
		return nil, services.Wrap(services.ErrTransient, "artifact", "open", "read document", err)
	}
	return f, nil
}

func (r *PDFRenderer) pathFor(id string) string {
	safe := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, id)
	return filepath.Join(r.dir, safe+".pdf")
}

// Lines is the document body: header, agreement metadata, one block per
// participant, and the category totals.
func Lines(sheet *splitsheet.Splitsheet, generated time.Time) []string {
	lines := []string{
		"SPLITSHEET AGREEMENT",
		"",
		"Title: " + sheet.Title,
		"Reference: " + sheet.ReferenceNumber,
	}
	if sheet.WorkCode != "" {
		lines = append(lines, "Work code: "+sheet.WorkCode)
	} else {
		lines = append(lines, "Work code: unassigned")
	}
	for _, kv := range [][2]string{
		{"Agreement date", sheet.AgreementDate},
		{"Work ID", sheet.WorkID},
		{"UPC/EAN", sheet.UPCEAN},
	} {
		if kv[1] != "" {
			lines = append(lines, kv[0]+": "+kv[1])
		}
	}
	if sheet.Audio != nil && sheet.Audio.FileName != "" {
		lines = append(lines, "Recording: "+sheet.Audio.FileName)
	}

	lines = append(lines, "", fmt.Sprintf("PARTICIPANTS (%d of %d signed)", sheet.SignedCount(), sheet.TotalParticipants()))
	for i, p := range sheet.Participants {
		lines = append(lines, "", fmt.Sprintf("%d. %s <%s>", i+1, p.Name, p.Email))
		if p.IPINumber != "" || p.PROAffiliation != "" {
			lines = append(lines, fmt.Sprintf("   IPI: %s  PRO: %s", dash(p.IPINumber), dash(p.PROAffiliation)))
		}
		for _, role := range p.Roles {
			lines = append(lines, fmt.Sprintf("   %-20s %6.2f%%  %s", role.Type, role.Percentage, role.EntryID))
		}
		if p.HasSigned && p.SignedAt != nil {
			lines = append(lines, "   Signed "+p.SignedAt.UTC().Format(time.RFC3339))
		} else {
			lines = append(lines, "   Not signed")
		}
	}

	lines = append(lines, "", "OWNERSHIP TOTALS")
	for _, category := range splitsheet.Categories {
		lines = append(lines, fmt.Sprintf("   %-20s %6.2f%%", category, sheet.Totals.Get(category)))
	}
	if sheet.Notes != "" {
		lines = append(lines, "", "Notes: "+sheet.Notes)
	}
	lines = append(lines, "", "Generated "+generated.UTC().Format(time.RFC3339))
	return lines
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
