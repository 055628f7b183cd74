// Package pdftest builds small single-page PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Page sizes of the generated document, in points.
const (
	Width  = 612
	Height = 792
)

// GlyphWidth is the advance of every character at font size 1.
const GlyphWidth = 0.6

// TextPage returns a US Letter PDF with text drawn at (x, y) in a
// fixed-width Helvetica. text must not contain parentheses or backslashes.
func TextPage(text string, x, y, fontSize float64) []byte {
	content := fmt.Sprintf("BT /F1 %g Tf %g %g Td (%s) Tj ET", fontSize, x, y, text)
	widths := strings.TrimSpace(strings.Repeat(fmt.Sprintf("%g ", GlyphWidth*1000), 126-32+1))

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>", Width, Height),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [" + widths + "] >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Producer (docsign) >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}
