package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docquote/internal/document"
	"docquote/internal/events"
	"docquote/internal/grounding"
	"docquote/internal/locator"
	"docquote/internal/util"
)

// Manager owns all per-session mutable state: the current document (via
// the document store), per-page text layers, the single active highlight,
// and the question history. State is in-memory only and lives for one
// session; there are no concurrent writers outside the mutex.
type Manager struct {
	store   *document.Store
	hub     *events.Hub
	retryer *locator.Retryer
	logger  *zap.Logger

	mu      sync.Mutex
	layers  map[int]locator.PageLayer
	history []Entry
	active  *locator.Region
	// cancels the pending highlight retry loop, if any
	cancelHighlight context.CancelFunc
}

// NewManager creates a session manager.
func NewManager(store *document.Store, hub *events.Hub, retryer *locator.Retryer, logger *zap.Logger) *Manager {
	return &Manager{
		store:   store,
		hub:     hub,
		retryer: retryer,
		logger:  logger.With(zap.String("component", "session")),
		layers:  make(map[int]locator.PageLayer),
	}
}

// DocumentLoaded resets session state for a freshly loaded document:
// pending highlight retries are canceled before anything else so a stale
// highlight can never land on the new document, then text layers, the
// active highlight, and history are discarded.
func (m *Manager) DocumentLoaded(doc *document.Document) {
	m.mu.Lock()
	if m.cancelHighlight != nil {
		m.cancelHighlight()
		m.cancelHighlight = nil
	}
	m.layers = make(map[int]locator.PageLayer)
	m.history = nil
	m.active = nil
	m.mu.Unlock()

	m.hub.Publish(events.TypeClearHighlights, nil)

	m.logger.Info("Session reset for new document",
		zap.String("document_id", doc.ID),
		zap.Uint64("version", doc.Version),
	)
}

// SetTextLayer replaces the rendered text layer for a page.
func (m *Manager) SetTextLayer(page int, layer locator.PageLayer) {
	m.mu.Lock()
	m.layers[page] = layer
	m.mu.Unlock()
}

// pageLayer returns the layer for a page, zero while the page is still
// rendering. The retryer polls this so a layer posted mid-retry is picked
// up together with its dimensions.
func (m *Manager) pageLayer(page int) locator.PageLayer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layers[page]
}

// Highlight resolves a verified quote to a screen region and pushes the
// viewer commands. The locate runs asynchronously because the page's text
// layer may still be rendering; starting a new highlight cancels any
// pending one, and applying a highlight implicitly clears the previous one
// first. A quote that cannot be placed degrades to a logged no-op: the
// authoritative quote text stays visible in the side panel regardless.
func (m *Manager) Highlight(page int, quote string) {
	version := m.store.Version()

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if m.cancelHighlight != nil {
		m.cancelHighlight()
	}
	m.cancelHighlight = cancel
	m.mu.Unlock()

	go m.runHighlight(ctx, version, page, quote)
}

func (m *Manager) runHighlight(ctx context.Context, version uint64, page int, quote string) {
	region, outcome := m.retryer.Locate(ctx, m.pageLayer, page, quote)

	if !m.store.StillCurrent(version) {
		// The document changed while we were waiting on the text layer.
		m.logger.Debug("Dropping highlight for superseded document",
			zap.Uint64("version", version),
		)
		return
	}

	switch outcome {
	case locator.Found:
		// Cancellation is re-checked under the mutex: a newer highlight
		// or a clear cancels under the same mutex, so whichever side wins
		// the lock, a canceled run never publishes after its successor.
		m.mu.Lock()
		if ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		m.active = region
		m.hub.Publish(events.TypeClearHighlights, nil)
		m.hub.Publish(events.TypeScrollToPage, map[string]int{"page": page})
		m.hub.Publish(events.TypeApplyHighlight, region)
		m.mu.Unlock()
		m.logger.Debug("Highlight applied",
			zap.Int("page", page),
			zap.String("stage", region.Stage),
			zap.Int("rects", len(region.Rects)),
		)
	case locator.NotFound:
		// Quote verified against extracted text but the visual layer
		// fragments differently; scroll so the user still lands on the
		// right page.
		m.hub.Publish(events.TypeScrollToPage, map[string]int{"page": page})
		m.logger.Info("Quote not found in text layer, highlight skipped",
			zap.Int("page", page),
			zap.String("quote", util.TruncateString(quote, 80, true)),
		)
	case locator.Exhausted:
		m.logger.Info("Text layer unavailable, highlight skipped",
			zap.Int("page", page),
		)
	case locator.Canceled:
		// Superseded by a newer action; nothing to do.
	}
}

// ClearHighlights cancels any pending highlight work and clears the active
// highlight set.
func (m *Manager) ClearHighlights() {
	m.mu.Lock()
	if m.cancelHighlight != nil {
		m.cancelHighlight()
		m.cancelHighlight = nil
	}
	m.active = nil
	m.mu.Unlock()

	m.hub.Publish(events.TypeClearHighlights, nil)
}

// ActiveHighlight returns the currently applied highlight region, if any.
func (m *Manager) ActiveHighlight() *locator.Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// RecordAnswer appends an answered question to the history, unless it
// belongs to a superseded document version.
func (m *Manager) RecordAnswer(question string, version uint64, res *grounding.Result) (*Entry, bool) {
	if !m.store.StillCurrent(version) {
		return nil, false
	}
	entry := Entry{
		ID:              uuid.New().String(),
		Question:        question,
		Answer:          res.Answer,
		Tier:            res.Tier,
		DocumentVersion: version,
		AskedAt:         time.Now(),
	}
	m.mu.Lock()
	m.history = append(m.history, entry)
	m.mu.Unlock()
	return &entry, true
}

// History returns a copy of the session's answered questions.
func (m *Manager) History() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.history))
	copy(out, m.history)
	return out
}
