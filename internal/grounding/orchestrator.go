package grounding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docquote/internal/document"
	"docquote/internal/metrics"
)

// ModelOutput is the raw result of one model invocation.
type ModelOutput struct {
	Text         string
	FinishReason string // "stop", "length", ...
	TokensUsed   int
	Model        string
}

// FinishReasonLength is the signal that the model stopped because it hit
// the output token budget.
const FinishReasonLength = "length"

// ModelCaller invokes the language model: prompt in, raw text out. The
// output is untrusted and subject to truncation, refusal, and shape errors.
type ModelCaller interface {
	Complete(ctx context.Context, prompt Prompt, maxTokens int) (*ModelOutput, error)
}

// Config holds the orchestrator's tunable budgets.
type Config struct {
	MaxEvidence    int // evidence cap stated in the prompt and enforced by the filter
	BaseMaxTokens  int // output budget for a first attempt
	RetryMaxTokens int // output budget for a truncation re-ask
	RequestTimeout time.Duration
}

// DefaultConfig returns the budgets used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxEvidence:    6,
		BaseMaxTokens:  2048,
		RetryMaxTokens: 4096,
		RequestTimeout: 120 * time.Second,
	}
}

// Orchestrator runs the two-tier grounding state machine: one normal pass,
// and on imperfect grounding exactly one strict pass whose surviving output
// is accepted as-is. More than one escalation is deliberately disallowed,
// bounding cost against an unreliable generator.
type Orchestrator struct {
	model  ModelCaller
	cfg    Config
	logger *zap.Logger
}

// NewOrchestrator creates an orchestrator around a model caller.
func NewOrchestrator(model ModelCaller, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxEvidence < 1 {
		cfg.MaxEvidence = DefaultConfig().MaxEvidence
	}
	if cfg.BaseMaxTokens <= 0 {
		cfg.BaseMaxTokens = DefaultConfig().BaseMaxTokens
	}
	if cfg.RetryMaxTokens < cfg.BaseMaxTokens {
		cfg.RetryMaxTokens = cfg.BaseMaxTokens * 2
	}
	return &Orchestrator{model: model, cfg: cfg, logger: logger}
}

// Result is a grounded answer plus bookkeeping about how it was produced.
type Result struct {
	Answer       *Answer
	Tier         string // "normal" or "strict"
	DroppedFirst int    // evidence_for items dropped in the first pass
	TokensUsed   int
	Model        string
}

// Answer runs one grounding round-trip for a question against the given
// page texts. It returns either a fully verified Answer or
// ErrGroundingUnavailable; all first-pass faults are absorbed by the
// escalation path and never surfaced.
func (o *Orchestrator) Answer(ctx context.Context, question string, pages []document.PageText) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", ErrInputInvalid)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: page list is empty", ErrInputInvalid)
	}

	start := time.Now()
	droppedFirst := 0

	ans, tokens, model, err := o.pass(ctx, question, pages, false)
	if err == nil {
		// Escalation is decided on verification alone, so the filter runs
		// uncapped here; the evidence cap is applied to the accepted list.
		filtered := FilterEvidence(ans.EvidenceFor, pages, 0)
		dropped := len(ans.EvidenceFor) - len(filtered)
		metrics.EvidenceVerified.WithLabelValues("for", "kept").Add(float64(len(filtered)))
		metrics.EvidenceVerified.WithLabelValues("for", "dropped").Add(float64(dropped))

		if dropped == 0 {
			// Fully grounded on the first pass. evidence_against is still
			// filtered, but dropping items there never triggers escalation.
			if len(filtered) > o.cfg.MaxEvidence {
				filtered = filtered[:o.cfg.MaxEvidence]
			}
			ans.EvidenceFor = filtered
			ans.EvidenceAgainst = FilterEvidence(ans.EvidenceAgainst, pages, o.cfg.MaxEvidence)
			o.finish(ans)
			metrics.GroundingPasses.WithLabelValues("normal", "accepted").Inc()
			metrics.GroundingDuration.WithLabelValues("normal").Observe(time.Since(start).Seconds())
			return &Result{Answer: ans, Tier: "normal", TokensUsed: tokens, Model: model}, nil
		}

		droppedFirst = dropped
		o.logger.Info("First pass insufficiently grounded, escalating",
			zap.Int("returned", len(ans.EvidenceFor)),
			zap.Int("verified", len(filtered)),
		)
		metrics.GroundingPasses.WithLabelValues("normal", "escalated").Inc()
	} else {
		o.logger.Warn("First grounding pass failed, escalating to strict retry",
			zap.Error(err),
		)
		metrics.GroundingPasses.WithLabelValues("normal", "failed").Inc()
	}

	ans, tokens, model, err = o.pass(ctx, question, pages, true)
	if err != nil {
		metrics.GroundingPasses.WithLabelValues("strict", "failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGroundingUnavailable, err)
	}

	// Best-effort terminal state: whatever survives filtering is accepted.
	// An answer with zero verified evidence but truthful missing_info is a
	// valid outcome.
	before := len(ans.EvidenceFor)
	ans.EvidenceFor = FilterEvidence(ans.EvidenceFor, pages, o.cfg.MaxEvidence)
	ans.EvidenceAgainst = FilterEvidence(ans.EvidenceAgainst, pages, o.cfg.MaxEvidence)
	metrics.EvidenceVerified.WithLabelValues("for", "kept").Add(float64(len(ans.EvidenceFor)))
	metrics.EvidenceVerified.WithLabelValues("for", "dropped").Add(float64(before - len(ans.EvidenceFor)))
	o.finish(ans)
	metrics.GroundingPasses.WithLabelValues("strict", "accepted").Inc()
	metrics.GroundingDuration.WithLabelValues("strict").Observe(time.Since(start).Seconds())

	return &Result{Answer: ans, Tier: "strict", DroppedFirst: droppedFirst, TokensUsed: tokens, Model: model}, nil
}

// pass issues one model request and extracts a shaped answer. When the
// model signals a length-limited stop and the text looks incomplete, the
// same request is retried once with a larger output budget before being
// treated as failed.
func (o *Orchestrator) pass(ctx context.Context, question string, pages []document.PageText, strict bool) (*Answer, int, string, error) {
	prompt := BuildPrompt(question, pages, o.cfg.MaxEvidence, strict)

	callCtx := ctx
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	out, err := o.model.Complete(callCtx, prompt, o.cfg.BaseMaxTokens)
	if err != nil {
		return nil, 0, "", fmt.Errorf("%w: %v", ErrModelCallFailed, err)
	}

	if out.FinishReason == FinishReasonLength && LooksTruncated(out.Text) {
		o.logger.Info("Response looks truncated, retrying with larger budget",
			zap.Bool("strict", strict),
			zap.Int("budget", o.cfg.RetryMaxTokens),
		)
		metrics.TruncationRetries.Inc()
		retried, rerr := o.model.Complete(callCtx, prompt, o.cfg.RetryMaxTokens)
		if rerr == nil {
			out = retried
		}
		// On re-ask failure, fall through and attempt extraction of the
		// original text anyway; repair may still recover it.
	}

	ans, err := ExtractAnswer(out.Text)
	if err != nil {
		return nil, out.TokensUsed, out.Model, err
	}
	return ans, out.TokensUsed, out.Model, nil
}

// finish applies terminal normalization: confidence coerced into the enum,
// slices never nil.
func (o *Orchestrator) finish(ans *Answer) {
	ans.Confidence = NormalizeConfidence(ans.Confidence)
	if ans.EvidenceFor == nil {
		ans.EvidenceFor = []EvidenceItem{}
	}
	if ans.EvidenceAgainst == nil {
		ans.EvidenceAgainst = []EvidenceItem{}
	}
	if ans.MissingInfo == nil {
		ans.MissingInfo = []string{}
	}
}
