package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A typical fragmented text layer: one sentence split across spans, with
// the usual extraction spacing artifacts.
func fragmentedSpans() []Span {
	return []Span{
		{Text: "The baseline impro", X: 50, Y: 100, Width: 120, Height: 12},
		{Text: "ves by 15%", X: 170, Y: 100, Width: 70, Height: 12},
		{Text: " compared to", X: 50, Y: 115, Width: 90, Height: 12},
		{Text: "last year.", X: 140, Y: 115, Width: 70, Height: 12},
	}
}

func TestLocateExact(t *testing.T) {
	ix := BuildIndex([]Span{
		{Text: "Revenue grew", X: 10, Y: 20, Width: 100, Height: 12},
		{Text: "15% this year", X: 110, Y: 20, Width: 100, Height: 12},
	})

	region, ok := ix.Locate(1, "Revenue grew 15%", 600, 800)
	require.True(t, ok)
	assert.Equal(t, StageExact, region.Stage)
	assert.Equal(t, 1, region.Page)
	assert.Len(t, region.Rects, 2)
}

func TestLocateCompactAcrossSpanBreak(t *testing.T) {
	// "impro" + "ves" only joins up once whitespace is stripped, so the
	// exact stage misses and the compact stage resolves it.
	ix := BuildIndex(fragmentedSpans())

	region, ok := ix.Locate(1, "The baseline improves by 15%", 600, 800)
	require.True(t, ok)
	assert.Equal(t, StageCompact, region.Stage)
	assert.Len(t, region.Rects, 2)
}

func TestLocateTokenFallback(t *testing.T) {
	ix := BuildIndex(fragmentedSpans())

	// Not contiguous in any concatenation, but shares significant tokens.
	region, ok := ix.Locate(1, "baseline compared improvement", 600, 800)
	require.True(t, ok)
	assert.Equal(t, StageTokens, region.Stage)
	assert.NotEmpty(t, region.Rects)
}

func TestLocateNoMatch(t *testing.T) {
	ix := BuildIndex(fragmentedSpans())

	_, ok := ix.Locate(1, "zzz qqq xxx", 600, 800)
	assert.False(t, ok)
}

func TestLocateEmptyQuoteOrIndex(t *testing.T) {
	ix := BuildIndex(fragmentedSpans())
	_, ok := ix.Locate(1, "   ", 600, 800)
	assert.False(t, ok)

	empty := BuildIndex(nil)
	assert.True(t, empty.Empty())
	_, ok = empty.Locate(1, "anything", 600, 800)
	assert.False(t, ok)

	// Spans with only whitespace still leave the index unsearchable.
	blank := BuildIndex([]Span{{Text: "  \n "}})
	assert.True(t, blank.Empty())
}

func TestLocateScaling(t *testing.T) {
	ix := BuildIndex([]Span{
		{Text: "scaled text here", X: 300, Y: 400, Width: 120, Height: 16},
	})

	region, ok := ix.Locate(2, "scaled text", 600, 800)
	require.True(t, ok)
	require.Len(t, region.Rects, 1)
	r := region.Rects[0]
	assert.InDelta(t, 0.5, r.X, 1e-9)
	assert.InDelta(t, 0.5, r.Y, 1e-9)
	assert.InDelta(t, 0.2, r.Width, 1e-9)
	assert.InDelta(t, 0.02, r.Height, 1e-9)
	assert.InDelta(t, r.X, region.Bounds.X, 1e-9)
	assert.InDelta(t, r.Y, region.Bounds.Y, 1e-9)
	assert.InDelta(t, r.Width, region.Bounds.Width, 1e-9)
	assert.InDelta(t, r.Height, region.Bounds.Height, 1e-9)
}

func TestLocateBoundsMergeSpans(t *testing.T) {
	ix := BuildIndex([]Span{
		{Text: "first part", X: 100, Y: 100, Width: 100, Height: 10},
		{Text: "second part", X: 100, Y: 120, Width: 150, Height: 10},
	})

	region, ok := ix.Locate(1, "first part second part", 1000, 1000)
	require.True(t, ok)
	assert.InDelta(t, 0.1, region.Bounds.X, 1e-9)
	assert.InDelta(t, 0.1, region.Bounds.Y, 1e-9)
	assert.InDelta(t, 0.15, region.Bounds.Width, 1e-9)
	assert.InDelta(t, 0.03, region.Bounds.Height, 1e-9)
}

func TestLocateZeroPageDims(t *testing.T) {
	ix := BuildIndex([]Span{{Text: "unscaled", X: 3, Y: 4, Width: 5, Height: 6}})

	region, ok := ix.Locate(1, "unscaled", 0, 0)
	require.True(t, ok)
	// Dimensions default to 1 so coordinates pass through unscaled.
	assert.InDelta(t, 3.0, region.Rects[0].X, 1e-9)
	assert.InDelta(t, 4.0, region.Rects[0].Y, 1e-9)
}

func TestSignificantTokens(t *testing.T) {
	tokens := significantTokens("The baseline improves by 15% vs. THE baseline")
	// "The"/"by"/"vs"/"15" are too short; duplicates collapse; longest first.
	assert.Equal(t, []string{"baseline", "improves"}, tokens)
}

func TestSignificantTokensCap(t *testing.T) {
	tokens := significantTokens("alpha bravo charlie delta echoo foxtrot golfy hotel india juliet")
	assert.Len(t, tokens, maxFallbackTokens)
}
