package pdfdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func glyphRun(s string, x, y float64) []glyph {
	out := make([]glyph, 0, len(s))
	for i, r := range s {
		out = append(out, glyph{s: string(r), box: Box{X: x + float64(i)*5, Y: y, W: 5, H: 10}})
	}
	return out
}

func TestMatchGlyphs_SingleOccurrence(t *testing.T) {
	g := glyphRun("Sign: SIGNTK1_ab here", 100, 500)
	boxes := matchGlyphs(g, "SIGNTK1_ab")
	require.Len(t, boxes, 1)
	assert.Equal(t, Box{X: 130, Y: 500, W: 50, H: 10}, boxes[0])
}

func TestMatchGlyphs_SplitAcrossRuns(t *testing.T) {
	g := append(glyphRun("SIGN", 50, 700), glyphRun("TK2_x", 50, 688)...)
	boxes := matchGlyphs(g, "SIGNTK2_x")
	require.Len(t, boxes, 1)
	assert.Equal(t, Box{X: 50, Y: 688, W: 25, H: 22}, boxes[0])
}

func TestMatchGlyphs_MultiByteGlyphs(t *testing.T) {
	g := []glyph{
		{s: "ab", box: Box{X: 0, Y: 0, W: 10, H: 10}},
		{s: "cd", box: Box{X: 10, Y: 0, W: 10, H: 10}},
		{s: "ef", box: Box{X: 20, Y: 0, W: 10, H: 10}},
	}
	boxes := matchGlyphs(g, "bcde")
	require.Len(t, boxes, 1)
	assert.Equal(t, Box{X: 0, Y: 0, W: 30, H: 10}, boxes[0])
}

func TestMatchGlyphs_RepeatedAndMissing(t *testing.T) {
	g := glyphRun("TKaTKa", 0, 0)
	assert.Len(t, matchGlyphs(g, "TKa"), 2)
	assert.Empty(t, matchGlyphs(g, "zzz"))
	assert.Empty(t, matchGlyphs(g, ""))
	assert.Empty(t, matchGlyphs(nil, "TKa"))
}

func TestSearch_InvalidPDF(t *testing.T) {
	_, err := Search([]byte("not a pdf"), []string{"x"})
	assert.Error(t, err)
}

func TestWhitePNG(t *testing.T) {
	b, err := whitePNG(0, 3)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(b[:4]))
}
