package grounding

import (
	"fmt"
	"strings"

	"docquote/internal/document"
)

// Prompt is an instruction payload for one model call: a system prompt
// carrying the policy rules and a user content block carrying the labeled
// page texts and the question.
type Prompt struct {
	System string
	User   string
	Strict bool
}

// BuildPrompt constructs the instruction payload for a question over the
// given pages. Exactly two variants exist: the normal payload and, with
// strict=true, the amplified rule set used for the single escalation pass.
func BuildPrompt(question string, pages []document.PageText, maxEvidence int, strict bool) Prompt {
	return Prompt{
		System: buildSystemPrompt(maxEvidence, strict),
		User:   buildUserContent(question, pages),
		Strict: strict,
	}
}

func buildSystemPrompt(maxEvidence int, strict bool) string {
	var sb strings.Builder

	sb.WriteString(`You answer questions about a document using only the page texts provided.

Respond with a single JSON object:
{
  "answer": string,
  "reasoning": string,
  "confidence": "low" | "medium" | "high",
  "evidence_for": [{"page": int, "quote": string, "note": string}],
  "evidence_against": [{"page": int, "quote": string, "note": string}],
  "missing_info": [string]
}

## EVIDENCE RULES

`)
	sb.WriteString(fmt.Sprintf("- Provide 1 to %d supporting evidence items.\n", maxEvidence))
	sb.WriteString(`- Every quote must be an EXACT substring of the stated page's text. Copy it
  character for character; only whitespace may differ.
- Keep each quote at or under 180 characters.
- Prefer the section of the document most directly relevant to the question
  type (a table, a definition, a stated figure) over generic narrative.
- Include evidence_against ONLY when the document genuinely contradicts the
  answer. No contradiction means an empty array, never omit the field.
- If the document cannot answer the question, say so in answer and
  reasoning, and list each missing piece of information in missing_info.
- If several entities validly answer the question, return one evidence item
  per entity rather than collapsing them into one.
`)

	if strict {
		sb.WriteString(`
## STRICT OUTPUT REQUIREMENTS

Your previous evidence failed verification against the document. This time:
- Output JSON ONLY. No prose, no markdown fences, nothing outside the object.
- Quotes must be copied verbatim from the page text. Do NOT paraphrase,
  summarize, fix grammar, or merge sentences.
- If you cannot find an exact quote for a claim, return fewer evidence items
  or none. A missing quote is acceptable; a fabricated quote is not.
`)
	}

	return sb.String()
}

func buildUserContent(question string, pages []document.PageText) string {
	var sb strings.Builder

	sb.WriteString("## Document Pages:\n")
	for _, p := range pages {
		sb.WriteString(fmt.Sprintf("\n--- Page %d ---\n", p.Page))
		sb.WriteString(p.Text)
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer with the JSON object described in your instructions:")

	return sb.String()
}
