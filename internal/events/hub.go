package events

import (
	"sync"
	"time"

	"docquote/internal/metrics"
)

// Viewer command types pushed to the PDF rendering surface.
const (
	TypeScrollToPage    = "scroll_to_page"
	TypeApplyHighlight  = "apply_highlight"
	TypeClearHighlights = "clear_highlights"
)

// Event is one viewer command. Payload shape depends on Type:
// scroll_to_page carries {page}, apply_highlight carries the region,
// clear_highlights carries nothing.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Seq       uint64      `json:"seq"`
}

// Hub is in-memory pub/sub for viewer commands. Slow subscribers drop
// events rather than blocking the publisher; the viewer only ever cares
// about the latest highlight state anyway.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	seq         uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a buffered subscriber channel. The caller must drain
// it and call Unsubscribe when done.
func (h *Hub) Subscribe(buffer int) chan Event {
	ch := make(chan Event, buffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	metrics.EventSubscribers.Set(float64(n))
	return ch
}

// Unsubscribe removes a subscriber channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	n := len(h.subscribers)
	h.mu.Unlock()
	metrics.EventSubscribers.Set(float64(n))
}

// Publish fans an event out to all subscribers, never blocking.
func (h *Hub) Publish(eventType string, payload interface{}) {
	h.mu.Lock()
	h.seq++
	ev := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		Seq:       h.seq,
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default: // subscriber is behind, drop
		}
	}
	h.mu.Unlock()
	metrics.EventsPublished.WithLabelValues(eventType).Inc()
}
