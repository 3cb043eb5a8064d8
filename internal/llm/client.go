package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"docquote/internal/circuitbreaker"
	"docquote/internal/grounding"
	"docquote/internal/metrics"
	"docquote/internal/tracing"
	"docquote/internal/util"
)

// Config holds the model endpoint settings.
type Config struct {
	BaseURL     string  `mapstructure:"base_url"`
	AgentID     string  `mapstructure:"agent_id"`
	Temperature float64 `mapstructure:"temperature"`
	// Rate limit on model calls; zero disables limiting.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Client calls the model service over HTTP. It satisfies
// grounding.ModelCaller and wraps the endpoint with a rate limiter and a
// circuit breaker so a dead model service fails fast instead of queueing
// questions behind timeouts.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuitbreaker.Breaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a model client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://llm-service:8000"
	}
	if cfg.AgentID == "" {
		cfg.AgentID = "docquote"
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}

	return &Client{
		cfg: cfg,
		// Per-call timeouts come from the request context; the transport
		// timeout only guards connection setup.
		http:    &http.Client{},
		breaker: circuitbreaker.New("llm", circuitbreaker.DefaultConfig(), logger),
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm_client")),
	}
}

// request is the wire format of the model service's completion endpoint.
type request struct {
	Query       string         `json:"query"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
	AgentID     string         `json:"agent_id"`
	Context     map[string]any `json:"context,omitempty"`
}

// response mirrors the model service's reply.
type response struct {
	Success      bool   `json:"success"`
	Response     string `json:"response"`
	FinishReason string `json:"finish_reason"`
	TokensUsed   int    `json:"tokens_used"`
	ModelUsed    string `json:"model_used"`
	Provider     string `json:"provider"`
	Error        string `json:"error,omitempty"`
	Metadata     struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"metadata"`
}

// Complete sends one prompt to the model and returns its raw output.
func (c *Client) Complete(ctx context.Context, prompt grounding.Prompt, maxTokens int) (*grounding.ModelOutput, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, span := tracing.StartSpan(ctx, "llm.complete")
	defer span.End()

	body, err := json.Marshal(request{
		Query:       prompt.User,
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
		AgentID:     c.cfg.AgentID,
		Context:     map[string]any{"system_prompt": prompt.System},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var out *grounding.ModelOutput
	start := time.Now()
	err = c.breaker.Execute(ctx, func() error {
		out, err = c.post(ctx, body)
		return err
	})
	metrics.ModelCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ModelCalls.WithLabelValues("error").Inc()
		c.logger.Warn("Model call failed",
			zap.Bool("strict", prompt.Strict),
			zap.Int("max_tokens", maxTokens),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.ModelCalls.WithLabelValues("ok").Inc()
	metrics.ModelTokensUsed.Observe(float64(out.TokensUsed))
	c.logger.Debug("Model call complete",
		zap.Bool("strict", prompt.Strict),
		zap.String("model", out.Model),
		zap.String("finish_reason", out.FinishReason),
		zap.Int("tokens_used", out.TokensUsed),
		zap.String("preview", util.TruncateString(out.Text, 120, true)),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*grounding.ModelOutput, error) {
	url := c.cfg.BaseURL + "/agent/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Agent-ID", c.cfg.AgentID)
	if tp := tracing.W3CTraceparent(ctx); tp != "" {
		req.Header.Set("traceparent", tp)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model service returned HTTP %d: %s", resp.StatusCode, snippet)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if !r.Success {
		return nil, fmt.Errorf("model service reported failure: %s", r.Error)
	}

	return &grounding.ModelOutput{
		Text:         r.Response,
		FinishReason: r.FinishReason,
		TokensUsed:   r.TokensUsed,
		Model:        r.ModelUsed,
	}, nil
}
