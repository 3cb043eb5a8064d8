package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Grounding metrics
	GroundingPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_grounding_passes_total",
			Help: "Total grounding passes by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	GroundingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docquote_grounding_duration_seconds",
			Help:    "End-to-end grounding round-trip duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tier"},
	)

	EvidenceVerified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_evidence_items_total",
			Help: "Evidence items by list and verification result",
		},
		[]string{"list", "result"},
	)

	TruncationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docquote_truncation_retries_total",
			Help: "Model calls re-issued with a larger output budget",
		},
	)

	RepairAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_response_repairs_total",
			Help: "Response extraction outcomes by stage",
		},
		[]string{"stage"},
	)

	StaleResultsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docquote_stale_results_dropped_total",
			Help: "Grounding results discarded because the document was replaced",
		},
	)

	// Model call metrics
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_model_calls_total",
			Help: "Model invocations by status",
		},
		[]string{"status"},
	)

	ModelCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docquote_model_call_duration_seconds",
			Help:    "Model call latency in seconds",
			Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	ModelTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docquote_model_tokens_used",
			Help:    "Tokens consumed per model call",
			Buckets: []float64{100, 500, 1000, 2000, 4000, 8000, 16000},
		},
	)

	// Locator metrics
	LocatorMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_locator_matches_total",
			Help: "Quote-to-region resolutions by matching stage",
		},
		[]string{"stage"},
	)

	LocatorRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docquote_locator_retries_total",
			Help: "Locator attempts deferred because the text layer was empty",
		},
	)

	// Document metrics
	DocumentsLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docquote_documents_loaded_total",
			Help: "Documents loaded into the session",
		},
	)

	DocumentPages = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docquote_document_pages",
			Help:    "Pages per loaded document",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docquote_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// Event stream metrics
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docquote_event_subscribers",
			Help: "Connected viewer event stream clients",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_events_published_total",
			Help: "Viewer commands published by type",
		},
		[]string{"type"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docquote_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docquote_circuit_breaker_trips_total",
			Help: "Circuit breaker transitions to open",
		},
		[]string{"name"},
	)
)
