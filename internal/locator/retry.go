package locator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"docquote/internal/metrics"
)

// Outcome classifies a locate attempt.
type Outcome int

const (
	// Found means a region was resolved.
	Found Outcome = iota
	// NotFound means the text layer was populated but no stage matched.
	NotFound
	// Exhausted means the text layer never populated within the retry
	// budget; the caller degrades to a no-op and keeps the quote visible
	// as text only.
	Exhausted
	// Canceled means the context was canceled before resolution, e.g. the
	// document was replaced or highlights were cleared.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Exhausted:
		return "exhausted"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// LayerProvider returns the current text layer for a page. A layer with no
// spans means the page has not finished rendering its text layer yet.
type LayerProvider func(page int) PageLayer

// Retryer resolves quotes against a text layer that may not exist yet,
// waiting a fixed delay between a fixed number of attempts. The loop is
// cooperative: canceling the context stops it between attempts, so a stale
// highlight can never land after a newer action.
type Retryer struct {
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// NewRetryer creates a retryer. attempts <= 0 or delay <= 0 fall back to
// 3 attempts at 400ms, the pacing tuned for page render latency.
func NewRetryer(attempts int, delay time.Duration, logger *zap.Logger) *Retryer {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 400 * time.Millisecond
	}
	return &Retryer{attempts: attempts, delay: delay, logger: logger}
}

// Locate resolves quote on page, waiting for the text layer if necessary.
// The page dimensions are read from the layer on the attempt that finds it
// populated, so a layer arriving mid-retry scales with its own dimensions.
func (r *Retryer) Locate(ctx context.Context, provider LayerProvider, page int, quote string) (*Region, Outcome) {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		layer := provider(page)
		ix := BuildIndex(layer.Spans)
		if !ix.Empty() {
			region, ok := ix.Locate(page, quote, layer.Width, layer.Height)
			if !ok {
				return nil, NotFound
			}
			return region, Found
		}

		metrics.LocatorRetries.Inc()
		if attempt == r.attempts {
			break
		}
		r.logger.Debug("Text layer not ready, retrying",
			zap.Int("page", page),
			zap.Int("attempt", attempt),
		)
		select {
		case <-ctx.Done():
			return nil, Canceled
		case <-time.After(r.delay):
		}
	}

	r.logger.Info("Text layer never populated, highlight degraded to no-op",
		zap.Int("page", page),
		zap.Int("attempts", r.attempts),
	)
	return nil, Exhausted
}
