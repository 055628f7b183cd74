package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docsign/internal/config"
	"docsign/internal/docx"
	"docsign/internal/metrics"
	"docsign/internal/model"
	"docsign/internal/pdfdoc"
)

// Renderer converts a DOCX document to PDF.
type Renderer interface {
	ConvertDocx(ctx context.Context, docx []byte) ([]byte, error)
}

// PDFEngine inspects and edits rendered PDFs.
type PDFEngine interface {
	PageSizes(doc []byte) ([]pdfdoc.Size, error)
	Search(doc []byte, needles []string) (map[string][]pdfdoc.Hit, error)
	Erase(doc []byte, marks []pdfdoc.Mark) ([]byte, error)
	Composite(doc []byte, stamps []pdfdoc.Stamp) ([]byte, error)
}

// SlotGroup prefixes located slot keys.
const SlotGroup = "default"

// Located is a rendered instance with its signing slots. The PDF has the
// marker tokens painted over.
type Located struct {
	PDF   []byte
	Slots []model.SignatureSlot
}

// Locator finds where each signature anchor ends up on the rendered page.
type Locator struct {
	renderer Renderer
	engine   PDFEngine
	cfg      config.LocatorConfig
	metrics  metrics.Recorder
	log      *zap.Logger
}

func NewLocator(renderer Renderer, engine PDFEngine, cfg config.LocatorConfig, rec metrics.Recorder, log *zap.Logger) *Locator {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Locator{renderer: renderer, engine: engine, cfg: cfg, metrics: rec, log: log}
}

// Locate renders filled with one unique token per anchor in place of the SIGN
// controls and turns every token found in the output into a slot. Anchors
// whose token is not found produce no slot. A render failure is returned.
func (l *Locator) Locate(ctx context.Context, anchors []model.SignatureAnchor, filled []byte) (*Located, error) {
	ordered := append([]model.SignatureAnchor(nil), anchors...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	tokens := make([]string, len(ordered))
	for i := range ordered {
		tok, err := markerToken(i + 1)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}

	doc, err := docx.Open(filled)
	if err != nil {
		return nil, ErrInvalidDocument
	}
	placed := docx.InjectTokens(doc, tokens)
	marked, err := doc.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize marked copy: %w", err)
	}

	pdf, err := l.renderer.ConvertDocx(ctx, marked)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	if placed == 0 {
		return &Located{PDF: pdf, Slots: []model.SignatureSlot{}}, nil
	}

	hits, err := l.engine.Search(pdf, tokens[:placed])
	if err != nil {
		return nil, fmt.Errorf("search markers: %w", err)
	}
	sizes, err := l.engine.PageSizes(pdf)
	if err != nil {
		return nil, err
	}

	var (
		slots = make([]model.SignatureSlot, 0, placed)
		marks []pdfdoc.Mark
	)
	for i, tok := range tokens[:placed] {
		page, box, ok := firstPageUnion(hits[tok])
		if !ok || page >= len(sizes) {
			l.log.Debug("signature marker not found", zap.Int("anchor_order", ordered[i].Order))
			continue
		}
		r := pdfdoc.Normalize(box, sizes[page], l.cfg.DefaultWidth, l.cfg.DefaultHeight, l.cfg.Margin)
		slots = append(slots, model.SignatureSlot{
			ID:        uuid.NewString(),
			SlotKey:   fmt.Sprintf("%s.%d", SlotGroup, len(slots)+1),
			PageIndex: page,
			X:         r.X,
			Y:         r.Y,
			W:         r.W,
			H:         r.H,
			Order:     ordered[i].Order,
		})
		for _, h := range hits[tok] {
			if h.Page == page {
				marks = append(marks, pdfdoc.Mark{Page: h.Page, Box: h.Box})
			}
		}
	}

	if len(marks) > 0 {
		if pdf, err = l.engine.Erase(pdf, marks); err != nil {
			return nil, fmt.Errorf("erase markers: %w", err)
		}
	}
	l.metrics.SlotsLocated(len(slots))
	return &Located{PDF: pdf, Slots: slots}, nil
}

// firstPageUnion unions every hit on the lowest page the token appears on.
func firstPageUnion(hits []pdfdoc.Hit) (int, pdfdoc.Box, bool) {
	if len(hits) == 0 {
		return 0, pdfdoc.Box{}, false
	}
	page := hits[0].Page
	for _, h := range hits[1:] {
		page = min(page, h.Page)
	}
	var (
		box   pdfdoc.Box
		found bool
	)
	for _, h := range hits {
		if h.Page != page {
			continue
		}
		if !found {
			box, found = h.Box, true
			continue
		}
		box = box.Union(h.Box)
	}
	return page, box, found
}

// markerToken is short plain ASCII so the renderer keeps it on one line.
func markerToken(n int) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("marker entropy: %w", err)
	}
	return fmt.Sprintf("SIGNTK%d_%s", n, hex.EncodeToString(b)), nil
}
