package httpapi

import (
	"encoding/json"
	"net/http"
)

type highlightRequest struct {
	Page  int    `json:"page"`
	Quote string `json:"quote"`
}

// handleHighlight starts resolving a quote to a screen region and pushing
// the viewer commands. Resolution is asynchronous because the page's text
// layer may still be rendering; the client gets 202 immediately and the
// result arrives on the event stream. An unplaceable quote is a no-op: the
// side panel keeps showing the quote text either way.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Page < 1 || req.Quote == "" {
		s.sendError(w, "page and quote are required", http.StatusBadRequest)
		return
	}
	if _, err := s.store.Current(); err != nil {
		s.sendError(w, "no document loaded", http.StatusConflict)
		return
	}

	s.sessions.Highlight(req.Page, req.Quote)
	w.WriteHeader(http.StatusAccepted)
}

// handleClearHighlights clears the active highlight set and cancels any
// pending highlight retries.
func (s *Server) handleClearHighlights(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearHighlights()
	w.WriteHeader(http.StatusNoContent)
}
