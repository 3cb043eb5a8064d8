package grounding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docquote/internal/document"
)

// scriptedModel replays a fixed sequence of outputs, one per Complete call.
type scriptedModel struct {
	outputs []scriptedOutput
	calls   []scriptedCall
}

type scriptedOutput struct {
	out *ModelOutput
	err error
}

type scriptedCall struct {
	strict    bool
	maxTokens int
}

func (m *scriptedModel) Complete(ctx context.Context, prompt Prompt, maxTokens int) (*ModelOutput, error) {
	m.calls = append(m.calls, scriptedCall{strict: prompt.Strict, maxTokens: maxTokens})
	if len(m.outputs) == 0 {
		return nil, errors.New("scripted model exhausted")
	}
	next := m.outputs[0]
	m.outputs = m.outputs[1:]
	return next.out, next.err
}

func textOutput(text string) scriptedOutput {
	return scriptedOutput{out: &ModelOutput{Text: text, FinishReason: "stop", TokensUsed: 100, Model: "test-model"}}
}

var testPages = []document.PageText{
	{Page: 1, Text: "The moon orbits the earth. Tides follow the moon."},
	{Page: 2, Text: "The earth orbits the sun once per year."},
}

func newTestOrchestrator(t *testing.T, model ModelCaller) *Orchestrator {
	return NewOrchestrator(model, DefaultConfig(), zap.NewNop())
}

func TestAnswerInputValidation(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedModel{})

	_, err := o.Answer(context.Background(), "   ", testPages)
	assert.ErrorIs(t, err, ErrInputInvalid)

	_, err = o.Answer(context.Background(), "question", nil)
	assert.ErrorIs(t, err, ErrInputInvalid)
}

func TestAnswerFirstPassFullyGrounded(t *testing.T) {
	model := &scriptedModel{outputs: []scriptedOutput{
		textOutput(`{
			"answer": "Yes",
			"reasoning": "Stated on page 1.",
			"confidence": "high",
			"evidence_for": [{"page": 1, "quote": "The moon orbits the earth."}],
			"evidence_against": [],
			"missing_info": []
		}`),
	}}
	o := newTestOrchestrator(t, model)

	res, err := o.Answer(context.Background(), "Does the moon orbit the earth?", testPages)
	require.NoError(t, err)
	assert.Equal(t, "normal", res.Tier)
	assert.Equal(t, 0, res.DroppedFirst)
	require.Len(t, res.Answer.EvidenceFor, 1)
	require.Len(t, model.calls, 1)
	assert.False(t, model.calls[0].strict)
}

func TestAnswerEscalatesOnDroppedEvidence(t *testing.T) {
	model := &scriptedModel{outputs: []scriptedOutput{
		// First pass: one quote verifies, one is fabricated.
		textOutput(`{
			"answer": "Yes",
			"reasoning": "r",
			"evidence_for": [
				{"page": 1, "quote": "The moon orbits the earth."},
				{"page": 1, "quote": "The moon is made of cheese."}
			]
		}`),
		// Strict pass: only the verified quote.
		textOutput(`{
			"answer": "Yes",
			"reasoning": "r",
			"confidence": "medium",
			"evidence_for": [{"page": 1, "quote": "The moon orbits the earth."}]
		}`),
	}}
	o := newTestOrchestrator(t, model)

	res, err := o.Answer(context.Background(), "q", testPages)
	require.NoError(t, err)
	assert.Equal(t, "strict", res.Tier)
	assert.Equal(t, 1, res.DroppedFirst)
	require.Len(t, res.Answer.EvidenceFor, 1)

	require.Len(t, model.calls, 2)
	assert.False(t, model.calls[0].strict)
	assert.True(t, model.calls[1].strict)
}

func TestAnswerEscalatesOnUnparsableFirstPass(t *testing.T) {
	model := &scriptedModel{outputs: []scriptedOutput{
		textOutput("I refuse to produce JSON."),
		textOutput(`{"answer": "a", "reasoning": "r", "evidence_for": []}`),
	}}
	o := newTestOrchestrator(t, model)

	res, err := o.Answer(context.Background(), "q", testPages)
	require.NoError(t, err)
	assert.Equal(t, "strict", res.Tier)
}

func TestAnswerStrictPassBestEffort(t *testing.T) {
	// The strict pass still returns an unverifiable quote; the answer is
	// accepted with the quote dropped rather than failing.
	model := &scriptedModel{outputs: []scriptedOutput{
		textOutput("not json"),
		textOutput(`{
			"answer": "Cannot determine",
			"reasoning": "r",
			"evidence_for": [{"page": 1, "quote": "fabricated again"}],
			"missing_info": ["orbital data"]
		}`),
	}}
	o := newTestOrchestrator(t, model)

	res, err := o.Answer(context.Background(), "q", testPages)
	require.NoError(t, err)
	assert.Equal(t, "strict", res.Tier)
	assert.Empty(t, res.Answer.EvidenceFor)
	assert.Equal(t, []string{"orbital data"}, res.Answer.MissingInfo)
}

func TestAnswerUnavailableAfterStrictFailure(t *testing.T) {
	model := &scriptedModel{outputs: []scriptedOutput{
		textOutput("garbage"),
		textOutput("more garbage"),
	}}
	o := newTestOrchestrator(t, model)

	_, err := o.Answer(context.Background(), "q", testPages)
	assert.ErrorIs(t, err, ErrGroundingUnavailable)
	assert.Len(t, model.calls, 2, "exactly one escalation, never more")
}

func TestAnswerUnavailableOnModelError(t *testing.T) {
	model := &scriptedModel{outputs: []scriptedOutput{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
	}}
	o := newTestOrchestrator(t, model)

	_, err := o.Answer(context.Background(), "q", testPages)
	assert.ErrorIs(t, err, ErrGroundingUnavailable)
}

func TestAnswerTruncationReask(t *testing.T) {
	truncated := scriptedOutput{out: &ModelOutput{
		Text:         `{"answer": "the quick bro`,
		FinishReason: FinishReasonLength,
		TokensUsed:   2048,
		Model:        "test-model",
	}}
	model := &scriptedModel{outputs: []scriptedOutput{
		truncated,
		textOutput(`{"answer": "a", "reasoning": "r", "evidence_for": []}`),
	}}
	o := newTestOrchestrator(t, model)

	res, err := o.Answer(context.Background(), "q", testPages)
	require.NoError(t, err)
	assert.Equal(t, "normal", res.Tier)

	require.Len(t, model.calls, 2)
	assert.Equal(t, DefaultConfig().BaseMaxTokens, model.calls[0].maxTokens)
	assert.Equal(t, DefaultConfig().RetryMaxTokens, model.calls[1].maxTokens)
	assert.False(t, model.calls[1].strict, "re-ask stays within the same pass")
}

func TestAnswerEvidenceCapApplied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvidence = 2
	model := &scriptedModel{outputs: []scriptedOutput{
		textOutput(`{
			"answer": "a",
			"reasoning": "r",
			"evidence_for": [
				{"page": 1, "quote": "The moon orbits the earth."},
				{"page": 1, "quote": "Tides follow the moon."},
				{"page": 2, "quote": "The earth orbits the sun"}
			]
		}`),
	}}
	o := NewOrchestrator(model, cfg, zap.NewNop())

	res, err := o.Answer(context.Background(), "q", testPages)
	require.NoError(t, err)
	// All three verify, so no escalation; the cap trims to two.
	assert.Equal(t, "normal", res.Tier)
	assert.Len(t, res.Answer.EvidenceFor, 2)
	assert.Len(t, model.calls, 1)
}
