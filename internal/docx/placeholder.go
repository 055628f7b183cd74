package docx

import (
	"encoding/xml"
	"strings"
	"unicode"
)

// Tag returns the raw w:tag value of a content control, or "".
func (n *Node) Tag() string {
	if pr := n.child("sdtPr"); pr != nil {
		if t := pr.child("tag"); t != nil {
			return t.attr("w", "val")
		}
	}
	return ""
}

// Alias returns the content control title (w:alias), or "".
func (n *Node) Alias() string {
	if pr := n.child("sdtPr"); pr != nil {
		if a := pr.child("alias"); a != nil {
			return a.attr("w", "val")
		}
	}
	return ""
}

// NormalizeTag trims a tag, turns non-breaking spaces into spaces and strips
// invisible format and control characters such as bidi marks.
func NormalizeTag(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\u00a0':
			return ' '
		case unicode.Is(unicode.Cf, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// IsSignTag reports whether tag marks a signature anchor.
func IsSignTag(tag string) bool {
	return strings.EqualFold(NormalizeTag(tag), "SIGN")
}

// setText replaces the visible content of the content control n with text,
// keeping the first run and paragraph formatting found inside it.
func (n *Node) setText(text string) {
	if pr := n.child("sdtPr"); pr != nil {
		pr.removeChildren("showingPlcHdr")
	}
	content := n.child("sdtContent")
	if content == nil {
		content = elem("sdtContent")
		n.Children = append(n.Children, content)
	}

	var rPr *Node
	if f := content.find("rPr"); f != nil {
		rPr = f.clone()
	}
	runs := textRuns(rPr, text)

	switch {
	case content.child("tr") != nil || content.child("tc") != nil:
		first := true
		var visit func(p *Node)
		visit = func(p *Node) {
			for _, c := range p.Children {
				if c.is("p") {
					keep := []*Node{}
					if pPr := c.child("pPr"); pPr != nil {
						keep = append(keep, pPr)
					}
					if first {
						keep = append(keep, runs...)
						first = false
					}
					c.Children = keep
					continue
				}
				visit(c)
			}
		}
		visit(content)
	case content.child("p") != nil || content.child("tbl") != nil:
		p := elem("p")
		if first := content.child("p"); first != nil {
			if pPr := first.child("pPr"); pPr != nil {
				p.Children = append(p.Children, pPr.clone())
			}
		}
		p.Children = append(p.Children, runs...)
		content.Children = []*Node{p}
	default:
		content.Children = runs
	}
}

// textRuns builds a single run carrying text, with w:br between lines.
func textRuns(rPr *Node, text string) []*Node {
	r := elem("r")
	if rPr != nil {
		r.Children = append(r.Children, rPr)
	}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			r.Children = append(r.Children, elem("br"))
		}
		t := elem("t", &Node{typ: textNode, Text: line})
		t.Attr = []xml.Attr{{Name: xml.Name{Space: "xml", Local: "space"}, Value: "preserve"}}
		r.Children = append(r.Children, t)
	}
	return []*Node{r}
}
