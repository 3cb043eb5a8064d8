package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docquote/internal/document"
	"docquote/internal/events"
	"docquote/internal/grounding"
	"docquote/internal/health"
	"docquote/internal/metrics"
	"docquote/internal/session"
)

// Server wires the grounding pipeline behind the HTTP surface the viewer
// front end talks to.
type Server struct {
	store        *document.Store
	sessions     *session.Manager
	orchestrator *grounding.Orchestrator
	hub          *events.Hub
	health       *health.Manager
	logger       *zap.Logger
}

// NewServer creates the API server.
func NewServer(
	store *document.Store,
	sessions *session.Manager,
	orchestrator *grounding.Orchestrator,
	hub *events.Hub,
	healthMgr *health.Manager,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:        store,
		sessions:     sessions,
		orchestrator: orchestrator,
		hub:          hub,
		health:       healthMgr,
		logger:       logger.With(zap.String("component", "httpapi")),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/documents", s.instrument("documents", s.handleLoadDocument))
	mux.HandleFunc("GET /api/v1/documents/current", s.instrument("documents_current", s.handleCurrentDocument))
	mux.HandleFunc("PUT /api/v1/pages/{page}/spans", s.instrument("page_spans", s.handleSetTextLayer))
	mux.HandleFunc("POST /api/v1/ask", s.instrument("ask", s.handleAsk))
	mux.HandleFunc("GET /api/v1/history", s.instrument("history", s.handleHistory))
	mux.HandleFunc("POST /api/v1/highlights", s.instrument("highlights", s.handleHighlight))
	mux.HandleFunc("DELETE /api/v1/highlights", s.instrument("highlights", s.handleClearHighlights))
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.health.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// instrument wraps a handler with request metrics and logging.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		s.logger.Debug("Request handled",
			zap.String("route", route),
			zap.String("method", r.Method),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", elapsed),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// writeJSON writes a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}

// sendError writes the {error} payload the UI collaborator renders.
// Internal parse diagnostics never leave the service.
func (s *Server) sendError(w http.ResponseWriter, message string, status int) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
