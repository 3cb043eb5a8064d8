package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CheckStatus represents the result of a health check
type CheckStatus int

const (
	StatusHealthy CheckStatus = iota
	StatusDegraded
	StatusUnhealthy
)

func (s CheckStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckResult contains the result of a single health check
type CheckResult struct {
	Status    CheckStatus   `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Checker defines the interface for health checks
type Checker interface {
	// Name returns the unique name of this health check
	Name() string

	// Check performs the health check and returns the result
	Check(ctx context.Context) CheckResult

	// IsCritical returns true if this check's failure should mark the service unhealthy
	IsCritical() bool
}

// Manager runs registered checks on demand and serves the aggregate status
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
	logger   *zap.Logger
}

// NewManager creates a health manager with the given per-check timeout
func NewManager(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		checkers: make(map[string]Checker),
		timeout:  timeout,
		logger:   logger.With(zap.String("component", "health")),
	}
}

// Register adds a health check. Registering the same name twice replaces it.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	m.checkers[c.Name()] = c
	m.mu.Unlock()
}

type Overall struct {
	Status     CheckStatus            `json:"status"`
	Components map[string]CheckResult `json:"components,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Check runs all registered checks and aggregates: any critical failure is
// unhealthy, any non-critical failure is degraded.
func (m *Manager) Check(ctx context.Context) Overall {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	overall := Overall{
		Status:     StatusHealthy,
		Components: make(map[string]CheckResult, len(checkers)),
		Timestamp:  time.Now(),
	}
	for _, c := range checkers {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		start := time.Now()
		res := c.Check(cctx)
		cancel()
		res.Duration = time.Since(start)
		res.Timestamp = time.Now()
		overall.Components[c.Name()] = res

		if res.Status == StatusHealthy {
			continue
		}
		m.logger.Warn("Health check failed",
			zap.String("check", c.Name()),
			zap.String("status", res.Status.String()),
			zap.String("error", res.Error))
		if c.IsCritical() && res.Status == StatusUnhealthy {
			overall.Status = StatusUnhealthy
		} else if overall.Status == StatusHealthy {
			overall.Status = StatusDegraded
		}
	}
	return overall
}

// Handler serves the aggregate health as JSON; 503 when unhealthy.
func (m *Manager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overall := m.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if overall.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(overall)
	}
}

// ModelEndpointChecker probes the model service's health endpoint.
type ModelEndpointChecker struct {
	url    string
	client *http.Client
}

// NewModelEndpointChecker builds a checker for the model service at baseURL.
func NewModelEndpointChecker(baseURL string) *ModelEndpointChecker {
	return &ModelEndpointChecker{
		url:    baseURL + "/health",
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *ModelEndpointChecker) Name() string { return "model_endpoint" }

// IsCritical is false: the service can still load documents and serve
// highlights while the model endpoint is down, so it degrades instead.
func (c *ModelEndpointChecker) IsCritical() bool { return false }

func (c *ModelEndpointChecker) Check(ctx context.Context) CheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  fmt.Sprintf("model endpoint returned %d", resp.StatusCode),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "model endpoint reachable"}
}
