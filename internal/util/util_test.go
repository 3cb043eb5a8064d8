package util

import "testing"

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		maxLen        int
		preserveWords bool
		expected      string
	}{
		{"short string unchanged", "hello", 10, false, "hello"},
		{"exact length unchanged", "hello", 5, false, "hello"},
		{"simple truncation", "hello world", 8, false, "hello..."},
		{"word preserving", "the quick brown fox", 12, true, "the..."},
		{"zero max length", "hello", 0, false, ""},
		{"tiny max length", "hello", 2, false, ".."},
		{"empty input", "", 5, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.maxLen, tt.preserveWords)
			if got != tt.expected {
				t.Errorf("TruncateString(%q, %d, %v) = %q, want %q",
					tt.input, tt.maxLen, tt.preserveWords, got, tt.expected)
			}
		})
	}
}

func TestTruncateString_UTF8(t *testing.T) {
	// Truncation must never split a multi-byte rune.
	s := "日本語のテキストです"
	got := TruncateString(s, 6, false)
	if got != "日本語..." {
		t.Errorf("got %q, want %q", got, "日本語...")
	}
	for _, r := range got {
		if r == '�' {
			t.Errorf("output contains replacement character: %q", got)
		}
	}
}
