package document

import (
	"errors"
	"fmt"
)

// ErrNoDocument is returned when no document has been loaded yet.
var ErrNoDocument = errors.New("no document loaded")

// PageText is the plain extracted text of one rendered page.
// Pages are unique and dense from 1..N for a loaded document.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Document is an immutable snapshot of a loaded document's extracted text.
// It is replaced wholesale when a new document is loaded; the Version ties
// in-flight work to the snapshot it was started against.
type Document struct {
	ID      string     `json:"id"`
	Version uint64     `json:"version"`
	Pages   []PageText `json:"pages"`
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Text returns the extracted text of the given page and whether it exists.
func (d *Document) Text(page int) (string, bool) {
	for _, p := range d.Pages {
		if p.Page == page {
			return p.Text, true
		}
	}
	return "", false
}

// ValidatePages checks that pages are non-empty, unique, and dense from 1..N.
func ValidatePages(pages []PageText) error {
	if len(pages) == 0 {
		return fmt.Errorf("page list is empty")
	}
	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if p.Page < 1 {
			return fmt.Errorf("page number %d is not positive", p.Page)
		}
		if p.Page > len(pages) {
			return fmt.Errorf("page number %d exceeds page count %d", p.Page, len(pages))
		}
		if seen[p.Page] {
			return fmt.Errorf("duplicate page number %d", p.Page)
		}
		seen[p.Page] = true
	}
	return nil
}
