package docx

// Kind classifies nodes for traversal.
type Kind uint8

const (
	// KindContainer is any element that only groups other content (body, paragraph, run, row, cell).
	KindContainer Kind = iota
	// KindLeaf is text: a w:t element or character data.
	KindLeaf
	// KindPlaceholder is a content control (w:sdt).
	KindPlaceholder
	// KindTable is a w:tbl element.
	KindTable
)

// Kind returns the traversal kind of n.
func (n *Node) Kind() Kind {
	switch {
	case n.typ == textNode, n.is("t"):
		return KindLeaf
	case n.is("sdt"):
		return KindPlaceholder
	case n.is("tbl"):
		return KindTable
	default:
		return KindContainer
	}
}

// header/footer references in the order each section contributes them.
var partRefOrder = []struct{ ref, typ string }{
	{"headerReference", "default"},
	{"footerReference", "default"},
	{"headerReference", "even"},
	{"footerReference", "even"},
	{"headerReference", "first"},
	{"footerReference", "first"},
}

// scopes returns the top-level node lists to walk, in document order: for each
// section its body content followed by the header and footer parts it references.
// A part shared by several sections is walked once, with the first section using it.
func (d *Document) scopes() [][]*Node {
	root := d.parts[mainPart]
	body := root.find("body")
	if body == nil {
		return nil
	}

	var out [][]*Node
	seen := make(map[string]bool)
	addParts := func(sectPr *Node) {
		if sectPr == nil {
			return
		}
		for _, pr := range partRefOrder {
			for _, ref := range sectPr.Children {
				if !ref.is(pr.ref) || ref.attr("w", "type") != pr.typ {
					continue
				}
				name, ok := d.rels[ref.attr("r", "id")]
				if !ok || seen[name] {
					continue
				}
				part, err := d.part(name)
				if err != nil {
					continue
				}
				seen[name] = true
				out = append(out, part.Children)
			}
		}
	}

	var section []*Node
	for _, n := range body.Children {
		if n.is("sectPr") {
			out = append(out, section)
			section = nil
			addParts(n)
			continue
		}
		section = append(section, n)
		if n.is("p") {
			if pPr := n.child("pPr"); pPr != nil {
				if sp := pPr.child("sectPr"); sp != nil {
					out = append(out, section)
					section = nil
					addParts(sp)
				}
			}
		}
	}
	if len(section) > 0 {
		out = append(out, section)
	}
	return out
}

// Fold walks the document depth-first in appearance order and threads acc through fn.
// fn returns the next accumulator and whether to descend into the node's children.
func Fold[T any](d *Document, acc T, fn func(acc T, n *Node) (T, bool)) T {
	for _, scope := range d.scopes() {
		for _, n := range scope {
			acc = foldNode(n, acc, fn)
		}
	}
	return acc
}

func foldNode[T any](n *Node, acc T, fn func(acc T, n *Node) (T, bool)) T {
	if n.typ != elementNode {
		return acc
	}
	acc, descend := fn(acc, n)
	if !descend {
		return acc
	}
	for _, c := range n.Children {
		acc = foldNode(c, acc, fn)
	}
	return acc
}
