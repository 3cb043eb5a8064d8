package grounding

import "strings"

// Confidence levels reported in an Answer.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// MaxQuoteChars is the maximum normalized length of an evidence quote.
const MaxQuoteChars = 180

// EvidenceItem is a quote-plus-page-plus-rationale triple supporting or
// contradicting an answer. Items are never mutated after creation, only
// kept or discarded as a whole.
type EvidenceItem struct {
	Page  int    `json:"page"`
	Quote string `json:"quote"`
	Note  string `json:"note"`
}

// Answer is a structured answer to a question about the loaded document.
// EvidenceAgainst is non-empty only when the document contains material
// contradiction; absence of contradiction yields an empty slice, never nil.
type Answer struct {
	Answer          string         `json:"answer"`
	Reasoning       string         `json:"reasoning"`
	Confidence      string         `json:"confidence"`
	EvidenceFor     []EvidenceItem `json:"evidence_for"`
	EvidenceAgainst []EvidenceItem `json:"evidence_against"`
	MissingInfo     []string       `json:"missing_info"`
}

// NormalizeConfidence coerces a raw confidence value into the three-value
// enum, defaulting to medium for anything unrecognized.
func NormalizeConfidence(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ConfidenceLow:
		return ConfidenceLow
	case ConfidenceHigh:
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}
