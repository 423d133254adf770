package handlers

import (
	"net/http"
	"time"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/platform/httpx"
	"github.com/trendora/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	health  services.HealthService
	now     func() time.Time
	started time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthClock overrides the clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.now = clock
		}
	}
}

// WithHealthStartedAt sets the process start time reported as uptime.
func WithHealthStartedAt(started time.Time) HealthOption {
	return func(h *HealthHandlers) {
		h.started = started
	}
}

func NewHealthHandlers(health services.HealthService, opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{health: health, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.started.IsZero() {
		h.started = h.now()
	}
	return h
}

// Healthz reports liveness without touching dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    domain.HealthStatusOK,
		"uptime":    now.Sub(h.started).Round(time.Second).String(),
		"timestamp": now.Format(time.RFC3339),
	})
}

type dependencyPayload struct {
	Status    domain.HealthStatus `json:"status"`
	Detail    string              `json:"detail,omitempty"`
	LatencyMS int64               `json:"latency_ms"`
	CheckedAt time.Time           `json:"checked_at"`
}

// Readyz probes dependencies. Degraded dependencies still answer 200.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.health == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"status":    domain.HealthStatusOK,
			"timestamp": h.now().UTC().Format(time.RFC3339),
		})
		return
	}
	report, err := h.health.Readiness(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("readiness_failed", "readiness check failed", http.StatusServiceUnavailable))
		return
	}

	deps := make(map[string]dependencyPayload, len(report.Dependencies))
	for name, dep := range report.Dependencies {
		deps[name] = dependencyPayload{
			Status:    dep.Status,
			Detail:    dep.Detail,
			LatencyMS: dep.Latency.Milliseconds(),
			CheckedAt: dep.CheckedAt.UTC(),
		}
	}
	status := http.StatusOK
	if !services.IsReady(report) {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, map[string]any{
		"status":       report.Status,
		"dependencies": deps,
		"timestamp":    report.GeneratedAt.UTC().Format(time.RFC3339),
	})
}
