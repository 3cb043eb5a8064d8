package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"docquote/internal/grounding"
	"docquote/internal/metrics"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	*grounding.Answer
	Tier            string `json:"tier"`
	DocumentVersion uint64 `json:"document_version"`
	EntryID         string `json:"entry_id,omitempty"`
}

// handleAsk runs one grounding round-trip for a question against the
// current document. The response is either a fully verified Answer or the
// generic failure payload; first-pass faults never surface here.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.sendError(w, "question is required", http.StatusBadRequest)
		return
	}

	doc, err := s.store.Current()
	if err != nil {
		s.sendError(w, "no document loaded", http.StatusConflict)
		return
	}

	res, err := s.orchestrator.Answer(r.Context(), req.Question, doc.Pages)
	if err != nil {
		switch {
		case errors.Is(err, grounding.ErrInputInvalid):
			s.sendError(w, "question and document are required", http.StatusBadRequest)
		case errors.Is(err, grounding.ErrGroundingUnavailable):
			s.logger.Warn("Grounding unavailable", zap.Error(err))
			s.sendError(w, "could not answer right now, please try again", http.StatusBadGateway)
		default:
			s.logger.Error("Unexpected grounding failure", zap.Error(err))
			s.sendError(w, "could not answer right now, please try again", http.StatusInternalServerError)
		}
		return
	}

	// The question may have outlived its document: if a new document was
	// loaded while the model was thinking, the result is stale and must
	// not be shown.
	entry, current := s.sessions.RecordAnswer(req.Question, doc.Version, res)
	if !current {
		metrics.StaleResultsDropped.Inc()
		s.logger.Info("Dropping grounded answer for superseded document",
			zap.Uint64("version", doc.Version),
		)
		s.sendError(w, "document changed while answering", http.StatusConflict)
		return
	}

	s.writeJSON(w, http.StatusOK, askResponse{
		Answer:          res.Answer,
		Tier:            res.Tier,
		DocumentVersion: doc.Version,
		EntryID:         entry.ID,
	})
}

// handleHistory returns the answered questions for the current document.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.sessions.History(),
	})
}
