package grounding

import (
	"encoding/json"
	"fmt"
	"strings"

	"docquote/internal/metrics"
)

// ExtractAnswer recovers a structured Answer from raw model output. The
// pipeline, each stage applied only when the previous one fails: strip a
// fenced code block, slice the first-{ to last-} candidate, strict parse,
// syntax repair, reparse. Post-parse shape validation requires answer and
// reasoning to be strings and evidence_for to be a sequence; everything
// else is defaulted rather than rejected.
func ExtractAnswer(raw string) (*Answer, error) {
	candidate, err := extractObject(raw)
	if err != nil {
		return nil, err
	}
	return validateShape(candidate)
}

// extractObject returns a parseable JSON object candidate from raw text.
func extractObject(raw string) ([]byte, error) {
	text := stripCodeFence(strings.TrimSpace(raw))

	// Discard leading/trailing commentary around the object.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrUnparsableResponse)
	}
	text = text[start : end+1]

	if json.Valid([]byte(text)) {
		metrics.RepairAttempts.WithLabelValues("clean").Inc()
		return []byte(text), nil
	}

	repaired := repairJSON(text)
	if json.Valid([]byte(repaired)) {
		metrics.RepairAttempts.WithLabelValues("repaired").Inc()
		return []byte(repaired), nil
	}
	metrics.RepairAttempts.WithLabelValues("failed").Inc()
	return nil, fmt.Errorf("%w: repair did not produce valid JSON", ErrUnparsableResponse)
}

// stripCodeFence removes a leading/trailing fenced code block marker.
// Model output is sometimes wrapped in ```json ... ``` despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop a language label like "json" up to the first newline.
	if idx := strings.Index(s, "\n"); idx != -1 {
		firstLine := strings.TrimSpace(s[:idx])
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// LooksTruncated flags output that is definitely incomplete: it does not
// end with a closing brace, or its bracket counts are unbalanced. Callers
// use this to retry with a larger output budget instead of attempting
// repair on text that cannot be completed.
func LooksTruncated(raw string) bool {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return true
	}
	if !strings.HasSuffix(text, "}") {
		return true
	}

	braces, brackets := 0, 0
	inString := false
	escaped := false
	for _, r := range text {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				braces++
			}
		case '}':
			if !inString {
				braces--
			}
		case '[':
			if !inString {
				brackets++
			}
		case ']':
			if !inString {
				brackets--
			}
		}
	}
	return braces != 0 || brackets != 0
}

// repairJSON applies best-effort syntax repair for the faults models
// actually produce: single-quoted keys/values, unescaped double quotes and
// control characters inside string literals, trailing commas.
func repairJSON(s string) string {
	return repairDoubleQuoted(convertSingleQuotes(s))
}

// convertSingleQuotes rewrites single-quoted keys/values into double-quoted
// equivalents, re-escaping any double quotes embedded in them.
func convertSingleQuotes(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inDouble := false
	inSingle := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			out.WriteByte(c)
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			// Inside a single-quoted string \' becomes a bare apostrophe.
			if inSingle && i+1 < len(s) && s[i+1] == '\'' {
				out.WriteByte('\'')
				i++
				continue
			}
			out.WriteByte(c)
			escaped = inDouble || inSingle
		case c == '"':
			if inSingle {
				out.WriteString(`\"`)
			} else {
				inDouble = !inDouble
				out.WriteByte(c)
			}
		case c == '\'':
			if inDouble {
				out.WriteByte(c)
				continue
			}
			// Delimiter of a single-quoted key or value.
			inSingle = !inSingle
			out.WriteByte('"')
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// repairDoubleQuoted walks the text character by character tracking whether
// the cursor is inside a string literal. Inside strings it escapes literal
// newlines/tabs and any double quote that does not look like a legitimate
// terminator; outside strings it removes trailing commas before closing
// brackets. A terminator is recognized by what follows the quote: a colon,
// a closing bracket, or a comma followed by a new token.
func repairDoubleQuoted(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if !inString {
			switch c {
			case '"':
				inString = true
				out.WriteByte(c)
			case ',':
				if j := nextNonSpace(s, i+1); j == -1 || s[j] == '}' || s[j] == ']' {
					continue // trailing comma
				}
				out.WriteByte(c)
			default:
				out.WriteByte(c)
			}
			continue
		}

		if escaped {
			out.WriteByte(c)
			escaped = false
			continue
		}

		switch c {
		case '\\':
			out.WriteByte(c)
			escaped = true
		case '\n':
			out.WriteString(`\n`)
		case '\r':
			out.WriteString(`\r`)
		case '\t':
			out.WriteString(`\t`)
		case '"':
			if isStringTerminator(s, i) {
				inString = false
				out.WriteByte(c)
			} else {
				out.WriteString(`\"`)
			}
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}

// isStringTerminator decides whether the quote at position i closes the
// current string literal. This is heuristic: pathological content with
// colons or brackets right after an embedded quote can misfire, which is
// why the locator keeps its own fuzzy-match safety net.
func isStringTerminator(s string, i int) bool {
	j := nextNonSpace(s, i+1)
	if j == -1 {
		return true
	}
	switch s[j] {
	case ':', '}', ']':
		return true
	case ',':
		k := nextNonSpace(s, j+1)
		if k == -1 {
			return true
		}
		// A new token after the comma: a key/value, object, array, number,
		// or literal. Anything else is prose continuing the same string.
		switch s[k] {
		case '"', '\'', '{', '[', '}', ']', '-', 't', 'f', 'n':
			return true
		}
		return s[k] >= '0' && s[k] <= '9'
	}
	return false
}

func nextNonSpace(s string, from int) int {
	for j := from; j < len(s); j++ {
		switch s[j] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return j
		}
	}
	return -1
}

type rawEvidence struct {
	Page  json.Number `json:"page"`
	Quote string      `json:"quote"`
	Note  string      `json:"note"`
}

type rawAnswer struct {
	Answer          json.RawMessage `json:"answer"`
	Reasoning       json.RawMessage `json:"reasoning"`
	Confidence      json.RawMessage `json:"confidence"`
	EvidenceFor     json.RawMessage `json:"evidence_for"`
	EvidenceAgainst json.RawMessage `json:"evidence_against"`
	MissingInfo     json.RawMessage `json:"missing_info"`
}

// validateShape enforces the minimum contract (answer and reasoning are
// strings, evidence_for is a sequence) and normalizes everything else:
// confidence to the three-value enum, evidence_against and missing_info
// to empty slices when missing or malformed.
func validateShape(data []byte) (*Answer, error) {
	var raw rawAnswer
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShapeInvalid, err)
	}

	ans := &Answer{
		EvidenceFor:     []EvidenceItem{},
		EvidenceAgainst: []EvidenceItem{},
		MissingInfo:     []string{},
	}

	if raw.Answer == nil || json.Unmarshal(raw.Answer, &ans.Answer) != nil {
		return nil, fmt.Errorf("%w: answer is not a string", ErrShapeInvalid)
	}
	if raw.Reasoning == nil || json.Unmarshal(raw.Reasoning, &ans.Reasoning) != nil {
		return nil, fmt.Errorf("%w: reasoning is not a string", ErrShapeInvalid)
	}

	var items []rawEvidence
	if raw.EvidenceFor == nil || json.Unmarshal(raw.EvidenceFor, &items) != nil {
		return nil, fmt.Errorf("%w: evidence_for is not a sequence", ErrShapeInvalid)
	}
	ans.EvidenceFor = convertEvidence(items)

	var conf string
	if raw.Confidence != nil {
		_ = json.Unmarshal(raw.Confidence, &conf)
	}
	ans.Confidence = NormalizeConfidence(conf)

	var against []rawEvidence
	if raw.EvidenceAgainst != nil && json.Unmarshal(raw.EvidenceAgainst, &against) == nil {
		ans.EvidenceAgainst = convertEvidence(against)
	}

	var missing []string
	if raw.MissingInfo != nil && json.Unmarshal(raw.MissingInfo, &missing) == nil && missing != nil {
		ans.MissingInfo = missing
	}

	return ans, nil
}

func convertEvidence(items []rawEvidence) []EvidenceItem {
	out := make([]EvidenceItem, 0, len(items))
	for _, it := range items {
		page, err := it.Page.Int64()
		if err != nil {
			// Some models emit pages as floats.
			if f, ferr := it.Page.Float64(); ferr == nil {
				page = int64(f)
			}
		}
		out = append(out, EvidenceItem{Page: int(page), Quote: it.Quote, Note: it.Note})
	}
	return out
}
