package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/digitorus/pdf"
)

// Hit is one occurrence of a searched string on a page (0-based).
type Hit struct {
	Page int
	Box  Box
}

type glyph struct {
	s   string
	box Box
}

// Search looks for every needle in the text layer of doc. Each occurrence
// yields the union of the boxes of the glyphs it spans.
func Search(doc []byte, needles []string) (map[string][]Hit, error) {
	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	out := make(map[string][]Hit, len(needles))
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		glyphs, err := pageGlyphs(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		for _, n := range needles {
			for _, b := range matchGlyphs(glyphs, n) {
				out[n] = append(out[n], Hit{Page: i - 1, Box: b})
			}
		}
	}
	return out, nil
}

// pageGlyphs extracts positioned glyphs. The reader panics on malformed
// content streams, which is reported as an error here.
func pageGlyphs(p pdf.Page) (glyphs []glyph, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed content: %v", rec)
		}
	}()
	for _, t := range p.Content().Text {
		glyphs = append(glyphs, glyph{s: t.S, box: Box{X: t.X, Y: t.Y, W: t.W, H: t.FontSize}})
	}
	return glyphs, nil
}

// matchGlyphs finds needle in the concatenated glyph text and returns one
// box per non-overlapping occurrence.
func matchGlyphs(glyphs []glyph, needle string) []Box {
	if needle == "" || len(glyphs) == 0 {
		return nil
	}
	var sb strings.Builder
	starts := make([]int, len(glyphs))
	for i, g := range glyphs {
		starts[i] = sb.Len()
		sb.WriteString(g.s)
	}
	text := sb.String()

	var boxes []Box
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], needle)
		if idx < 0 {
			break
		}
		begin, end := from+idx, from+idx+len(needle)
		var (
			u     Box
			found bool
		)
		for i, g := range glyphs {
			gs, ge := starts[i], starts[i]+len(g.s)
			if ge <= begin || gs >= end {
				continue
			}
			if !found {
				u, found = g.box, true
				continue
			}
			u = u.Union(g.box)
		}
		if found {
			boxes = append(boxes, u)
		}
		from = end
	}
	return boxes
}
