// Package docx reads and edits the content controls of WordprocessingML (.docx)
// documents: placeholder discovery, value filling and signature token injection.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	mainPart = "word/document.xml"
	relsPart = "word/_rels/document.xml.rels"
)

// ErrNotDocx is returned when the archive has no main document part.
var ErrNotDocx = errors.New("not a docx document")

type zipEntry struct {
	header zip.FileHeader
	data   []byte
}

// Document is an opened .docx package. Parts that are walked are parsed once
// and written back by Bytes; every other entry is copied through untouched.
type Document struct {
	entries []zipEntry
	parts   map[string]*Node
	rels    map[string]string
}

// Open parses a .docx archive held in memory.
func Open(b []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDocx, err)
	}

	d := &Document{parts: make(map[string]*Node), rels: make(map[string]string)}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		d.entries = append(d.entries, zipEntry{header: f.FileHeader, data: data})
	}

	if _, err := d.part(mainPart); err != nil {
		return nil, err
	}
	if err := d.loadRels(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) entry(name string) *zipEntry {
	for i := range d.entries {
		if d.entries[i].header.Name == name {
			return &d.entries[i]
		}
	}
	return nil
}

func (d *Document) part(name string) (*Node, error) {
	if n, ok := d.parts[name]; ok {
		return n, nil
	}
	e := d.entry(name)
	if e == nil {
		if name == mainPart {
			return nil, ErrNotDocx
		}
		return nil, fmt.Errorf("missing part %s", name)
	}
	root, err := parseXML(e.data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	d.parts[name] = root
	return root, nil
}

func (d *Document) loadRels() error {
	e := d.entry(relsPart)
	if e == nil {
		return nil
	}
	root, err := parseXML(e.data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", relsPart, err)
	}
	var visit func(n *Node)
	visit = func(n *Node) {
		if n.typ == elementNode && n.Name.Local == "Relationship" {
			id, target := n.attr("", "Id"), n.attr("", "Target")
			if id != "" && target != "" {
				if strings.HasPrefix(target, "/") {
					target = strings.TrimPrefix(target, "/")
				} else {
					target = path.Join("word", target)
				}
				d.rels[id] = target
			}
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	visit(root)
	return nil
}

// Bytes serializes the document, writing back every parsed part.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range d.entries {
		data := e.data
		if n, ok := d.parts[e.header.Name]; ok {
			data = n.bytes()
		}
		h := e.header
		w, err := zw.CreateHeader(&h)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", h.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", h.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Text returns the visible text of the body, headers and footers in traversal order.
func (d *Document) Text() string {
	var b strings.Builder
	for _, s := range d.scopes() {
		for _, n := range s {
			n.text(&b)
		}
	}
	return b.String()
}
