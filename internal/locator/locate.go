package locator

import (
	"sort"
	"strings"

	"docquote/internal/grounding"
	"docquote/internal/metrics"
)

// Matching stages, in the order they are tried.
const (
	StageExact   = "exact"
	StageCompact = "compact"
	StageTokens  = "tokens"
)

// maxFallbackTokens caps how many significant tokens the fallback stage
// searches for.
const maxFallbackTokens = 8

// Locate finds the contiguous span run covering an approximate quote and
// converts it into a highlight region scaled to the page dimensions.
// Stages: exact containment in the normalized concatenation, then the
// whitespace-stripped compact concatenation (handles cross-span hyphenation
// and spacing artifacts), then a best-effort, intentionally over-inclusive
// token fallback. Returns false when every stage selects zero spans.
func (ix *Index) Locate(page int, quote string, pageWidth, pageHeight float64) (*Region, bool) {
	normQuote := grounding.NormalizeText(quote)
	if normQuote == "" || ix.Empty() {
		return nil, false
	}

	if spans := ix.matchNorm(normQuote); len(spans) > 0 {
		metrics.LocatorMatches.WithLabelValues(StageExact).Inc()
		return ix.region(page, spans, StageExact, pageWidth, pageHeight), true
	}

	if spans := ix.matchCompact(stripWhitespace(normQuote)); len(spans) > 0 {
		metrics.LocatorMatches.WithLabelValues(StageCompact).Inc()
		return ix.region(page, spans, StageCompact, pageWidth, pageHeight), true
	}

	if spans := ix.matchTokens(normQuote); len(spans) > 0 {
		metrics.LocatorMatches.WithLabelValues(StageTokens).Inc()
		return ix.region(page, spans, StageTokens, pageWidth, pageHeight), true
	}

	metrics.LocatorMatches.WithLabelValues("none").Inc()
	return nil, false
}

// matchNorm selects every span whose normalized offset range intersects the
// quote's match position in the normalized concatenation.
func (ix *Index) matchNorm(normQuote string) []int {
	at := strings.Index(ix.normText, normQuote)
	if at == -1 {
		return nil
	}
	return ix.spansInRange(at, at+len(normQuote), false)
}

// matchCompact repeats the containment check against the compact
// concatenation, where spacing differences across span boundaries vanish.
func (ix *Index) matchCompact(compactQuote string) []int {
	if compactQuote == "" {
		return nil
	}
	at := strings.Index(ix.compactText, compactQuote)
	if at == -1 {
		return nil
	}
	return ix.spansInRange(at, at+len(compactQuote), true)
}

// matchTokens selects every span containing a significant quote token
// directly, plus every span intersecting a token's match position in the
// compact text. Used only when exact containment is structurally
// impossible, e.g. a quote spanning a page-break artifact.
func (ix *Index) matchTokens(normQuote string) []int {
	tokens := significantTokens(normQuote)
	if len(tokens) == 0 {
		return nil
	}

	selected := make(map[int]bool)
	compactLower := strings.ToLower(ix.compactText)

	for _, tok := range tokens {
		for i, e := range ix.entries {
			if strings.Contains(strings.ToLower(e.span.Text), tok) {
				selected[i] = true
			}
		}
		if at := strings.Index(compactLower, tok); at != -1 {
			for _, i := range ix.spansInRange(at, at+len(tok), true) {
				selected[i] = true
			}
		}
	}

	out := make([]int, 0, len(selected))
	for i := range selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// spansInRange returns indices of entries whose offset range intersects
// [start, end) in the chosen concatenation.
func (ix *Index) spansInRange(start, end int, compact bool) []int {
	var out []int
	for i, e := range ix.entries {
		s, t := e.normStart, e.normEnd
		if compact {
			s, t = e.compactStart, e.compactEnd
		}
		if s == t {
			continue
		}
		if s < end && t > start {
			out = append(out, i)
		}
	}
	return out
}

// significantTokens extracts alphanumeric runs of length >= 4 from the
// quote, deduplicated, longest first, capped to maxFallbackTokens.
func significantTokens(quote string) []string {
	var tokens []string
	seen := make(map[string]bool)

	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 4 {
			tok := strings.ToLower(cur.String())
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
		cur.Reset()
	}
	for _, r := range quote {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	sort.SliceStable(tokens, func(i, j int) bool {
		return len(tokens[i]) > len(tokens[j])
	})
	if len(tokens) > maxFallbackTokens {
		tokens = tokens[:maxFallbackTokens]
	}
	return tokens
}

// region merges the selected spans' rectangles into a bounding region plus
// the individual rectangles, scaled relative to the page's own dimensions.
func (ix *Index) region(page int, indices []int, stage string, pageWidth, pageHeight float64) *Region {
	if pageWidth <= 0 {
		pageWidth = 1
	}
	if pageHeight <= 0 {
		pageHeight = 1
	}

	rects := make([]Rect, 0, len(indices))
	minX, minY := 1.0, 1.0
	maxX, maxY := 0.0, 0.0
	for _, i := range indices {
		sp := ix.entries[i].span
		r := Rect{
			X:      sp.X / pageWidth,
			Y:      sp.Y / pageHeight,
			Width:  sp.Width / pageWidth,
			Height: sp.Height / pageHeight,
		}
		rects = append(rects, r)
		if r.X < minX {
			minX = r.X
		}
		if r.Y < minY {
			minY = r.Y
		}
		if r.X+r.Width > maxX {
			maxX = r.X + r.Width
		}
		if r.Y+r.Height > maxY {
			maxY = r.Y + r.Height
		}
	}

	return &Region{
		Page:   page,
		Stage:  stage,
		Rects:  rects,
		Bounds: Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY},
	}
}
