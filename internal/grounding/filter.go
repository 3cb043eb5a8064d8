package grounding

import (
	"docquote/internal/document"
)

// FilterEvidence returns the subsequence of items that verify against the
// given pages and satisfy the item-level constraints: non-empty quote,
// normalized quote length within MaxQuoteChars, positive page number.
// Relative order is preserved. maxItems <= 0 means no truncation.
// The function is pure and idempotent: filtering an already-filtered list
// yields the same list.
func FilterEvidence(items []EvidenceItem, pages []document.PageText, maxItems int) []EvidenceItem {
	kept := make([]EvidenceItem, 0, len(items))
	for _, item := range items {
		if item.Page < 1 {
			continue
		}
		norm := NormalizeText(item.Quote)
		if norm == "" || len([]rune(norm)) > MaxQuoteChars {
			continue
		}
		if !Verify(pages, item.Page, item.Quote) {
			continue
		}
		kept = append(kept, item)
		if maxItems > 0 && len(kept) == maxItems {
			break
		}
	}
	return kept
}
