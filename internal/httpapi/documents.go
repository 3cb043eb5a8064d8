package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"docquote/internal/document"
	"docquote/internal/locator"
	"docquote/internal/metrics"
)

// loadDocumentRequest is the payload the viewer posts once per loaded
// document, after running text extraction.
type loadDocumentRequest struct {
	DocumentID string              `json:"document_id,omitempty"`
	Pages      []document.PageText `json:"pages"`
}

type documentResponse struct {
	DocumentID string `json:"document_id"`
	Version    uint64 `json:"version"`
	PageCount  int    `json:"page_count"`
}

// handleLoadDocument replaces the session's current document. Any
// in-flight grounding or highlight work addressed to the previous document
// becomes stale and its results are silently dropped.
func (s *Server) handleLoadDocument(w http.ResponseWriter, r *http.Request) {
	var req loadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := s.store.Load(req.DocumentID, req.Pages)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.sessions.DocumentLoaded(doc)

	metrics.DocumentsLoaded.Inc()
	metrics.DocumentPages.Observe(float64(doc.PageCount()))

	s.writeJSON(w, http.StatusCreated, documentResponse{
		DocumentID: doc.ID,
		Version:    doc.Version,
		PageCount:  doc.PageCount(),
	})
}

// handleCurrentDocument reports what is loaded.
func (s *Server) handleCurrentDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Current()
	if err != nil {
		s.sendError(w, "no document loaded", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, documentResponse{
		DocumentID: doc.ID,
		Version:    doc.Version,
		PageCount:  doc.PageCount(),
	})
}

// handleSetTextLayer stores the rendered text layer the viewer posts when
// it (re)builds a page. Layers are replaced wholesale.
func (s *Server) handleSetTextLayer(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		s.sendError(w, "invalid page number", http.StatusBadRequest)
		return
	}

	doc, err := s.store.Current()
	if err != nil {
		s.sendError(w, "no document loaded", http.StatusConflict)
		return
	}
	if page > doc.PageCount() {
		s.sendError(w, "page out of range", http.StatusBadRequest)
		return
	}

	var layer locator.PageLayer
	if err := json.NewDecoder(r.Body).Decode(&layer); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.sessions.SetTextLayer(page, layer)
	s.logger.Debug("Text layer updated",
		zap.Int("page", page),
		zap.Int("spans", len(layer.Spans)),
	)
	w.WriteHeader(http.StatusNoContent)
}
