package artifact

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	pageWidth    = 612
	pageHeight   = 792
	marginLeft   = 56
	marginTop    = 56
	lineHeight   = 14
	fontSize     = 10
	linesPerPage = (pageHeight - 2*marginTop) / lineHeight
)

// writePDF lays lines out top to bottom in Helvetica, starting a new page
// when one fills up. Text is encoded as WinAnsi; runes outside it become '?'.
func writePDF(w io.Writer, title string, lines []string) error {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	var pages [][]string
	for start := 0; start < len(lines); start += linesPerPage {
		end := min(start+linesPerPage, len(lines))
		pages = append(pages, lines[start:end])
	}
	if len(pages) == 0 {
		pages = [][]string{{""}}
	}

	// Object numbering: 1 catalog, 2 pages, 3 font, 4 info, then a page and
	// content stream pair per page.
	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	encodedTitle, err := enc.String(title)
	if err != nil {
		return err
	}
	objects = append(objects, fmt.Sprintf("<< /Title (%s) /Producer (splitsheet) >>", escapePDF(encodedTitle)))

	for i, page := range pages {
		var content bytes.Buffer
		fmt.Fprintf(&content, "BT\n/F1 %d Tf\n%d TL\n%d %d Td\n", fontSize, lineHeight, marginLeft, pageHeight-marginTop)
		for _, line := range page {
			encoded, err := enc.String(line)
			if err != nil {
				return err
			}
			fmt.Fprintf(&content, "(%s) '\n", escapePDF(encoded))
		}
		content.WriteString("ET")
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
				pageWidth, pageHeight, 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	_, err = w.Write(out.Bytes())
	return err
}

func escapePDF(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", " ", "\n", " ")
	return r.Replace(s)
}
