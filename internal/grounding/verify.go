package grounding

import (
	"strings"

	"docquote/internal/document"
)

// NormalizeText collapses any run of whitespace characters to a single
// space and trims leading/trailing whitespace. This is the single
// authoritative definition of "verbatim" used for every quote comparison
// in the system; call sites must not reimplement it.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Verify reports whether quote is a verbatim substring of the named page's
// text under NormalizeText. Comparison is case-sensitive. Returns false
// when no page with that number exists.
func Verify(pages []document.PageText, page int, quote string) bool {
	normQuote := NormalizeText(quote)
	if normQuote == "" {
		return false
	}
	for _, p := range pages {
		if p.Page == page {
			return strings.Contains(NormalizeText(p.Text), normQuote)
		}
	}
	return false
}
