package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Stamp is a signature image placed on a page, optionally with a caption
// line drawn next to it.
type Stamp struct {
	Page     int
	Box      Box
	Image    []byte
	Caption  string
	FontSize float64
}

// Mark is a region to paint over on a page.
type Mark struct {
	Page int
	Box  Box
}

// Engine edits PDFs in memory.
type Engine struct {
	conf *model.Configuration
	pad  float64
}

func NewEngine() *Engine {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Engine{conf: conf, pad: 1}
}

// PageSizes returns the media box size of every page.
func (e *Engine) PageSizes(doc []byte) ([]Size, error) {
	dims, err := api.PageDims(bytes.NewReader(doc), e.conf)
	if err != nil {
		return nil, fmt.Errorf("page dims: %w", err)
	}
	out := make([]Size, len(dims))
	for i, d := range dims {
		out[i] = Size{Width: d.Width, Height: d.Height}
	}
	return out, nil
}

// Search is Search bound to the engine so callers can depend on one value.
func (e *Engine) Search(doc []byte, needles []string) (map[string][]Hit, error) {
	return Search(doc, needles)
}

// Erase paints each mark over with opaque white, slightly padded.
func (e *Engine) Erase(doc []byte, marks []Mark) ([]byte, error) {
	out := doc
	for _, m := range marks {
		b := e.eraseBox(m.Box)
		img, err := whitePNG(int(math.Ceil(b.W)), int(math.Ceil(b.H)))
		if err != nil {
			return nil, err
		}
		out, err = e.addImage(out, m.Page, img, b, 1)
		if err != nil {
			return nil, fmt.Errorf("erase page %d: %w", m.Page, err)
		}
	}
	return out, nil
}

// descent is the share of the font size drawn below the baseline.
const descent = 0.25

// eraseBox pads a text box, whose Y is the baseline and H the font size,
// so that descenders such as '_' are covered too.
func (e *Engine) eraseBox(b Box) Box {
	below := e.pad + descent*b.H
	return Box{X: b.X - e.pad, Y: b.Y - below, W: b.W + 2*e.pad, H: b.H + e.pad + below}
}

// Composite draws every stamp's image scaled to fit and centered inside its
// box, then its caption when one is set.
func (e *Engine) Composite(doc []byte, stamps []Stamp) ([]byte, error) {
	out := doc
	for _, s := range stamps {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(s.Image))
		if err != nil {
			return nil, fmt.Errorf("decode signature image: %w", err)
		}
		if cfg.Width == 0 || cfg.Height == 0 {
			return nil, fmt.Errorf("signature image is empty")
		}
		scale := math.Min(s.Box.W/float64(cfg.Width), s.Box.H/float64(cfg.Height))
		dw, dh := float64(cfg.Width)*scale, float64(cfg.Height)*scale
		at := Box{X: s.Box.X + (s.Box.W-dw)/2, Y: s.Box.Y + (s.Box.H-dh)/2, W: dw, H: dh}

		out, err = e.addImage(out, s.Page, s.Image, at, scale)
		if err != nil {
			return nil, fmt.Errorf("stamp page %d: %w", s.Page, err)
		}
		if s.Caption == "" {
			continue
		}
		pages, err := e.PageSizes(out)
		if err != nil {
			return nil, err
		}
		fs := s.FontSize
		if fs <= 0 {
			fs = 10
		}
		x, y := CaptionOrigin(s.Box, pages[ClampPage(s.Page, len(pages))], fs)
		out, err = e.addText(out, s.Page, s.Caption, x, y, fs)
		if err != nil {
			return nil, fmt.Errorf("caption page %d: %w", s.Page, err)
		}
	}
	return out, nil
}

func (e *Engine) addImage(doc []byte, page int, img []byte, at Box, scale float64) ([]byte, error) {
	desc := fmt.Sprintf("position:bl, offset:%.2f %.2f, scalefactor:%.4f abs, rotation:0, opacity:1", at.X, at.Y, scale)
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(img), desc, true, false, types.POINTS)
	if err != nil {
		return nil, err
	}
	return e.apply(doc, page, wm)
}

func (e *Engine) addText(doc []byte, page int, text string, x, y, size float64) ([]byte, error) {
	desc := fmt.Sprintf("fontname:Helvetica, points:%d, position:bl, offset:%.2f %.2f, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1",
		int(math.Round(size)), x, y)
	wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, err
	}
	return e.apply(doc, page, wm)
}

func (e *Engine) apply(doc []byte, page int, wm *model.Watermark) ([]byte, error) {
	var buf bytes.Buffer
	sel := []string{strconv.Itoa(page + 1)}
	if err := api.AddWatermarks(bytes.NewReader(doc), &buf, sel, wm, e.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func whitePNG(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
