package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docquote/internal/document"
	"docquote/internal/events"
	"docquote/internal/grounding"
	"docquote/internal/locator"
)

func newTestManager(t *testing.T) (*Manager, *document.Store, chan events.Event) {
	t.Helper()
	store := document.NewStore(zap.NewNop())
	hub := events.NewHub()
	retryer := locator.NewRetryer(2, time.Millisecond, zap.NewNop())
	m := NewManager(store, hub, retryer, zap.NewNop())

	ch := hub.Subscribe(64)
	t.Cleanup(func() { hub.Unsubscribe(ch) })
	return m, store, ch
}

func loadDoc(t *testing.T, store *document.Store, m *Manager, text string) *document.Document {
	t.Helper()
	doc, err := store.Load("", []document.PageText{{Page: 1, Text: text}})
	require.NoError(t, err)
	m.DocumentLoaded(doc)
	return doc
}

// waitEvent drains the subscriber channel until an event of the wanted type
// arrives or the timeout hits.
func waitEvent(t *testing.T, ch chan events.Event, eventType string) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func TestDocumentLoadedResetsState(t *testing.T) {
	m, store, ch := newTestManager(t)
	loadDoc(t, store, m, "page one text")

	m.SetTextLayer(1, locator.PageLayer{Spans: []locator.Span{{Text: "page one text"}}, Width: 100, Height: 100})
	_, ok := m.RecordAnswer("q", store.Version(), &grounding.Result{
		Answer: &grounding.Answer{Answer: "a"},
		Tier:   "normal",
	})
	require.True(t, ok)
	require.Len(t, m.History(), 1)

	loadDoc(t, store, m, "a different document")

	assert.Empty(t, m.History())
	assert.Nil(t, m.ActiveHighlight())
	assert.Empty(t, m.pageLayer(1).Spans)
	waitEvent(t, ch, events.TypeClearHighlights)
}

func TestHighlightPublishesViewerCommands(t *testing.T) {
	m, store, ch := newTestManager(t)
	loadDoc(t, store, m, "the quick brown fox")
	m.SetTextLayer(1, locator.PageLayer{
		Spans:  []locator.Span{{Text: "the quick brown fox", X: 10, Y: 20, Width: 100, Height: 12}},
		Width:  200,
		Height: 200,
	})

	m.Highlight(1, "quick brown")

	waitEvent(t, ch, events.TypeClearHighlights)
	scroll := waitEvent(t, ch, events.TypeScrollToPage)
	assert.Equal(t, map[string]int{"page": 1}, scroll.Payload)
	apply := waitEvent(t, ch, events.TypeApplyHighlight)
	region, ok := apply.Payload.(*locator.Region)
	require.True(t, ok)
	assert.Equal(t, 1, region.Page)
	assert.NotEmpty(t, region.Rects)

	require.Eventually(t, func() bool {
		return m.ActiveHighlight() != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHighlightBeforeTextLayerScalesWithPageDims(t *testing.T) {
	store := document.NewStore(zap.NewNop())
	hub := events.NewHub()
	retryer := locator.NewRetryer(50, 5*time.Millisecond, zap.NewNop())
	m := NewManager(store, hub, retryer, zap.NewNop())

	ch := hub.Subscribe(64)
	t.Cleanup(func() { hub.Unsubscribe(ch) })
	loadDoc(t, store, m, "the quick brown fox")

	// Highlight first; the page's text layer arrives mid-retry, carrying
	// the dimensions the region must be scaled against.
	m.Highlight(1, "quick brown")
	time.AfterFunc(20*time.Millisecond, func() {
		m.SetTextLayer(1, locator.PageLayer{
			Spans:  []locator.Span{{Text: "the quick brown fox", X: 100, Y: 200, Width: 300, Height: 40}},
			Width:  600,
			Height: 800,
		})
	})

	apply := waitEvent(t, ch, events.TypeApplyHighlight)
	region, ok := apply.Payload.(*locator.Region)
	require.True(t, ok)
	require.Len(t, region.Rects, 1)
	assert.InDelta(t, 100.0/600, region.Rects[0].X, 1e-9)
	assert.InDelta(t, 200.0/800, region.Rects[0].Y, 1e-9)
	assert.LessOrEqual(t, region.Rects[0].X+region.Rects[0].Width, 1.0)
	assert.LessOrEqual(t, region.Rects[0].Y+region.Rects[0].Height, 1.0)
}

func TestHighlightCanceledBeforePublishDoesNotLand(t *testing.T) {
	m, store, ch := newTestManager(t)
	loadDoc(t, store, m, "the quick brown fox")
	m.SetTextLayer(1, locator.PageLayer{
		Spans:  []locator.Span{{Text: "the quick brown fox", X: 10, Y: 20, Width: 100, Height: 12}},
		Width:  200,
		Height: 200,
	})
	waitEvent(t, ch, events.TypeClearHighlights)

	// The locate itself succeeds, but the run was canceled before it could
	// publish; nothing may land after the cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.runHighlight(ctx, store.Version(), 1, "quick brown")

	assert.Nil(t, m.ActiveHighlight())
	for {
		select {
		case ev := <-ch:
			require.NotEqual(t, events.TypeApplyHighlight, ev.Type)
		default:
			return
		}
	}
}

func TestHighlightNotFoundScrollsOnly(t *testing.T) {
	m, store, ch := newTestManager(t)
	loadDoc(t, store, m, "some text")
	m.SetTextLayer(1, locator.PageLayer{
		Spans:  []locator.Span{{Text: "entirely unrelated words"}},
		Width:  100,
		Height: 100,
	})

	m.Highlight(1, "zzzz qqqq")

	waitEvent(t, ch, events.TypeScrollToPage)
	assert.Nil(t, m.ActiveHighlight())
}

func TestHighlightDroppedForSupersededDocument(t *testing.T) {
	m, store, _ := newTestManager(t)
	loadDoc(t, store, m, "original document")

	staleVersion := store.Version()

	// Replace the document, then run the locate against the captured stale
	// version the way Highlight's goroutine would.
	loadDoc(t, store, m, "replacement document")
	m.SetTextLayer(1, locator.PageLayer{
		Spans:  []locator.Span{{Text: "replacement document"}},
		Width:  100,
		Height: 100,
	})

	m.runHighlight(t.Context(), staleVersion, 1, "replacement document")

	assert.Nil(t, m.ActiveHighlight(), "stale highlight must not land")
}

func TestRecordAnswerDropsStaleVersion(t *testing.T) {
	m, store, _ := newTestManager(t)
	loadDoc(t, store, m, "first")
	stale := store.Version()
	loadDoc(t, store, m, "second")

	entry, ok := m.RecordAnswer("q", stale, &grounding.Result{
		Answer: &grounding.Answer{Answer: "a"},
		Tier:   "normal",
	})
	assert.False(t, ok)
	assert.Nil(t, entry)
	assert.Empty(t, m.History())
}

func TestRecordAnswerAndHistory(t *testing.T) {
	m, store, _ := newTestManager(t)
	loadDoc(t, store, m, "text")

	res := &grounding.Result{
		Answer: &grounding.Answer{Answer: "forty-two"},
		Tier:   "strict",
	}
	entry, ok := m.RecordAnswer("the question", store.Version(), res)
	require.True(t, ok)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "strict", entry.Tier)

	history := m.History()
	require.Len(t, history, 1)
	assert.Equal(t, "the question", history[0].Question)

	// History returns a copy; appending to it must not affect the manager.
	_ = append(history, Entry{})
	assert.Len(t, m.History(), 1)
}

func TestClearHighlights(t *testing.T) {
	m, store, ch := newTestManager(t)
	loadDoc(t, store, m, "text here")

	m.ClearHighlights()
	waitEvent(t, ch, events.TypeClearHighlights)
	assert.Nil(t, m.ActiveHighlight())
}
