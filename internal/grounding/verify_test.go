package grounding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docquote/internal/document"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text unchanged", "hello world", "hello world"},
		{"collapses internal runs", "hello   \t world", "hello world"},
		{"trims edges", "  hello world \n", "hello world"},
		{"newlines from pdf extraction", "first line\nsecond  line", "first line second line"},
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeText(tt.input))
		})
	}
}

func TestVerify(t *testing.T) {
	pages := []document.PageText{
		{Page: 1, Text: "The   quick brown\nfox jumps over the lazy dog."},
		{Page: 2, Text: "Revenue grew 15% year over year."},
	}

	tests := []struct {
		name  string
		page  int
		quote string
		want  bool
	}{
		{"exact substring", 1, "quick brown fox", true},
		{"quote with different whitespace", 1, "quick  brown \n fox", true},
		{"full page text", 2, "Revenue grew 15% year over year.", true},
		{"wrong page", 2, "quick brown fox", false},
		{"missing page", 3, "quick brown fox", false},
		{"case sensitive", 1, "Quick Brown Fox", false},
		{"not present", 1, "slow green turtle", false},
		{"empty quote", 1, "", false},
		{"whitespace-only quote", 1, "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(pages, tt.page, tt.quote))
		})
	}
}

func TestVerifyNoPages(t *testing.T) {
	assert.False(t, Verify(nil, 1, "anything"))
}
