package locator

import (
	"strings"

	"docquote/internal/grounding"
)

// Span is one positioned text run from a page's rendered text layer, in
// page coordinates. The layer is fragmented: a sentence is typically split
// across many spans in layout order.
type Span struct {
	Text   string  `json:"text"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageLayer is the rendered text layer of one page: its positioned spans
// and the page's own dimensions, used to scale highlight regions. A layer
// is replaced wholesale whenever the viewer rebuilds the page.
type PageLayer struct {
	Spans  []Span  `json:"spans"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is a rectangle scaled relative to the page's own dimensions
// (0..1), so highlight overlays can be positioned independent of zoom.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Region is a highlightable screen region on one page: the merged bounding
// box of the selected spans plus their individual rectangles.
type Region struct {
	Page   int    `json:"page"`
	Bounds Rect   `json:"bounds"`
	Rects  []Rect `json:"rects"`
	Stage  string `json:"stage"` // which matching stage resolved the quote
}

// spanEntry tracks one span's offsets into the page's concatenated
// normalized and compact texts. Entries are rebuilt every time a page's
// text layer is reconstructed and are never persisted.
type spanEntry struct {
	span         Span
	normStart    int
	normEnd      int
	compactStart int
	compactEnd   int
}

// Index is the searchable form of one page's text layer: a space-joined
// normalized concatenation and a whitespace-stripped compact concatenation,
// each mapping offset ranges back to the originating spans.
type Index struct {
	entries     []spanEntry
	normText    string
	compactText string
}

// BuildIndex builds the search index over spans in layout order. Spans with
// no text after normalization occupy empty ranges and can never match.
func BuildIndex(spans []Span) *Index {
	ix := &Index{entries: make([]spanEntry, 0, len(spans))}

	var norm strings.Builder
	var compact strings.Builder
	for _, sp := range spans {
		n := grounding.NormalizeText(sp.Text)
		c := stripWhitespace(n)

		if n != "" && norm.Len() > 0 {
			norm.WriteByte(' ')
		}
		entry := spanEntry{
			span:         sp,
			normStart:    norm.Len(),
			compactStart: compact.Len(),
		}
		norm.WriteString(n)
		compact.WriteString(c)
		entry.normEnd = norm.Len()
		entry.compactEnd = compact.Len()
		ix.entries = append(ix.entries, entry)
	}

	ix.normText = norm.String()
	ix.compactText = compact.String()
	return ix
}

// Empty reports whether the index holds no searchable text, which is the
// case while a page's text layer is still rendering.
func (ix *Index) Empty() bool {
	return len(ix.entries) == 0 || ix.normText == ""
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
