package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var a4 = Size{Width: 595, Height: 842}

func TestNormalize_TopLeftOrigin(t *testing.T) {
	r := Normalize(Box{X: 59.5, Y: 842 - 84.2 - 10, W: 40, H: 10}, a4, 0.15, 0.04, 0)
	assert.InDelta(t, 0.1, r.X, 1e-9)
	assert.InDelta(t, 0.1, r.Y, 1e-9)
	assert.Equal(t, 0.15, r.W)
	assert.Equal(t, 0.04, r.H)
}

func TestNormalize_ClampsAndMargin(t *testing.T) {
	r := Normalize(Box{X: -20, Y: 900, W: 1, H: 1}, a4, 2, -1, 0.05)
	assert.Equal(t, 0.0, r.X)
	assert.Equal(t, 0.0, r.Y)
	assert.Equal(t, 1.0, r.W)
	assert.Equal(t, 0.0, r.H)
}

func TestPlace_KeepsInsidePage(t *testing.T) {
	b := Place(Rect{X: 0.95, Y: 0.99, W: 0.15, H: 0.04}, a4)
	assert.InDelta(t, 595-0.15*595, b.X, 1e-9)
	assert.Equal(t, 0.0, b.Y)
	assert.InDelta(t, 0.15*595, b.W, 1e-9)

	tiny := Place(Rect{W: 0, H: 0}, a4)
	assert.Equal(t, 1.0, tiny.W)
	assert.Equal(t, 1.0, tiny.H)
	assert.Equal(t, 841.0, tiny.Y)
}

func TestPlace_RoundTrip(t *testing.T) {
	src := Box{X: 100, Y: 400, W: 30, H: 12}
	r := Normalize(src, a4, 0.15, 0.04, 0)
	b := Place(r, a4)
	assert.InDelta(t, src.X, b.X, 1e-6)
	// top edge of the drawn box lines up with the top edge of the text
	assert.InDelta(t, src.Y+src.H, b.Y+b.H, 1e-6)
}

func TestCaptionOrigin(t *testing.T) {
	x, y := CaptionOrigin(Box{X: 10, Y: 100, W: 50, H: 20}, a4, 8)
	assert.Equal(t, 10.0, x)
	assert.Equal(t, 122.0, y)

	_, y = CaptionOrigin(Box{X: 10, Y: 815, W: 50, H: 25}, a4, 8)
	assert.Equal(t, 805.0, y)
}

func TestClampPage(t *testing.T) {
	assert.Equal(t, 0, ClampPage(-3, 2))
	assert.Equal(t, 1, ClampPage(7, 2))
	assert.Equal(t, 1, ClampPage(1, 2))
	assert.Equal(t, 0, ClampPage(4, 0))
}

func TestBoxUnion(t *testing.T) {
	u := Box{X: 0, Y: 0, W: 10, H: 10}.Union(Box{X: 5, Y: -5, W: 10, H: 5})
	assert.Equal(t, Box{X: 0, Y: -5, W: 15, H: 15}, u)
}
