// Package pdfdoc inspects and stamps rendered PDF documents: page sizes, text
// search with glyph boxes, painting over regions and compositing signatures.
package pdfdoc

import "math"

// Box is a rectangle in PDF user space (points, bottom-left origin).
type Box struct {
	X, Y, W, H float64
}

// Union returns the smallest box covering b and o.
func (b Box) Union(o Box) Box {
	x0, y0 := math.Min(b.X, o.X), math.Min(b.Y, o.Y)
	x1, y1 := math.Max(b.X+b.W, o.X+o.W), math.Max(b.Y+b.H, o.Y+o.H)
	return Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Size is a page's width and height in points.
type Size struct {
	Width, Height float64
}

// Rect is a page-relative rectangle with a top-left origin, every component in [0,1].
type Rect struct {
	X, Y, W, H float64
}

// Normalize turns a found text box into a top-left normalized rectangle.
// Width and height are fixed ratios rather than the text's own size, and
// margin is subtracted from both x and y.
func Normalize(b Box, page Size, w, h, margin float64) Rect {
	if page.Width <= 0 || page.Height <= 0 {
		return Rect{W: Clamp01(w), H: Clamp01(h)}
	}
	return Rect{
		X: Clamp01(b.X/page.Width - margin),
		Y: Clamp01(1 - (b.Y+b.H)/page.Height - margin),
		W: Clamp01(w),
		H: Clamp01(h),
	}
}

// Place converts a normalized rectangle back to a drawable box in user space,
// at least one point wide and high and kept inside the page.
func Place(r Rect, page Size) Box {
	drawW := math.Max(1, r.W*page.Width)
	drawH := math.Max(1, r.H*page.Height)
	left := clamp(r.X*page.Width, 0, page.Width-drawW)
	bottom := clamp(page.Height-(r.Y*page.Height+drawH), 0, page.Height-drawH)
	return Box{X: left, Y: bottom, W: drawW, H: drawH}
}

// CaptionOrigin returns the baseline origin for a caption of fontSize points:
// just above the box, or just below it when the page has no room above.
func CaptionOrigin(b Box, page Size, fontSize float64) (x, y float64) {
	const gap = 2
	y = b.Y + b.H + gap
	if y+fontSize > page.Height {
		y = math.Max(0, b.Y-gap-fontSize)
	}
	return b.X, y
}

// ClampPage keeps a page index within [0, pages-1].
func ClampPage(idx, pages int) int {
	if pages <= 0 || idx < 0 {
		return 0
	}
	if idx >= pages {
		return pages - 1
	}
	return idx
}

// Clamp01 limits v to [0,1]; NaN becomes 0.
func Clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo || hi < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
