package docx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type nodeType uint8

const (
	rootNode nodeType = iota
	elementNode
	textNode
	rawNode
)

// Node is one item of a parsed OOXML part. Element names keep the prefix
// exactly as written so the part serializes back with its original namespaces.
type Node struct {
	typ      nodeType
	Name     xml.Name
	Attr     []xml.Attr
	Children []*Node
	Text     string
	raw      string
}

func parseXML(b []byte) (*Node, error) {
	d := xml.NewDecoder(bytes.NewReader(b))
	root := &Node{typ: rootNode}
	stack := []*Node{root}

	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		parent := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{typ: elementNode, Name: t.Name, Attr: append([]xml.Attr(nil), t.Attr...)}
			parent.Children = append(parent.Children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 1 {
				return nil, fmt.Errorf("unexpected end element %s", qname(t.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			parent.Children = append(parent.Children, &Node{typ: textNode, Text: string(t)})
		case xml.ProcInst:
			parent.Children = append(parent.Children, &Node{typ: rawNode, raw: "<?" + t.Target + " " + string(t.Inst) + "?>"})
		case xml.Comment:
			parent.Children = append(parent.Children, &Node{typ: rawNode, raw: "<!--" + string(t) + "-->"})
		case xml.Directive:
			parent.Children = append(parent.Children, &Node{typ: rawNode, raw: "<!" + string(t) + ">"})
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("unclosed element %s", qname(stack[len(stack)-1].Name))
	}
	return root, nil
}

func (n *Node) bytes() []byte {
	var buf bytes.Buffer
	n.write(&buf)
	return buf.Bytes()
}

func (n *Node) write(w *bytes.Buffer) {
	switch n.typ {
	case rootNode:
		for _, c := range n.Children {
			c.write(w)
		}
	case textNode:
		_ = xml.EscapeText(w, []byte(n.Text))
	case rawNode:
		w.WriteString(n.raw)
	case elementNode:
		w.WriteByte('<')
		w.WriteString(qname(n.Name))
		for _, a := range n.Attr {
			w.WriteByte(' ')
			w.WriteString(qname(a.Name))
			w.WriteString(`="`)
			_ = xml.EscapeText(w, []byte(a.Value))
			w.WriteByte('"')
		}
		if len(n.Children) == 0 {
			w.WriteString("/>")
			return
		}
		w.WriteByte('>')
		for _, c := range n.Children {
			c.write(w)
		}
		w.WriteString("</")
		w.WriteString(qname(n.Name))
		w.WriteByte('>')
	}
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func (n *Node) clone() *Node {
	c := *n
	c.Attr = append([]xml.Attr(nil), n.Attr...)
	c.Children = make([]*Node, len(n.Children))
	for i, ch := range n.Children {
		c.Children[i] = ch.clone()
	}
	return &c
}

// is reports whether n is the WordprocessingML element w:<local>.
func (n *Node) is(local string) bool {
	return n.typ == elementNode && n.Name.Space == "w" && n.Name.Local == local
}

func (n *Node) child(local string) *Node {
	for _, c := range n.Children {
		if c.is(local) {
			return c
		}
	}
	return nil
}

// find returns the first descendant w:<local> in document order.
func (n *Node) find(local string) *Node {
	for _, c := range n.Children {
		if c.is(local) {
			return c
		}
		if f := c.find(local); f != nil {
			return f
		}
	}
	return nil
}

func (n *Node) attr(space, local string) string {
	for _, a := range n.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func (n *Node) removeChildren(local string) {
	kept := n.Children[:0]
	for _, c := range n.Children {
		if !c.is(local) {
			kept = append(kept, c)
		}
	}
	n.Children = kept
}

func (n *Node) text(b *strings.Builder) {
	if n.is("t") {
		for _, c := range n.Children {
			if c.typ == textNode {
				b.WriteString(c.Text)
			}
		}
		return
	}
	if n.is("tab") {
		b.WriteByte('\t')
	}
	if n.is("br") {
		b.WriteByte('\n')
	}
	for _, c := range n.Children {
		c.text(b)
	}
	if n.is("p") {
		b.WriteByte('\n')
	}
}

func elem(local string, children ...*Node) *Node {
	return &Node{typ: elementNode, Name: xml.Name{Space: "w", Local: local}, Children: children}
}
