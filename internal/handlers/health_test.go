package handlers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	domain "github.com/trendora/api/internal/domain"
)

func TestHealthHandlersHealthzReportsUptime(t *testing.T) {
	started := handlerNow.Add(-90 * time.Second)
	h := NewHealthHandlers(nil, WithHealthClock(func() time.Time { return handlerNow }), WithHealthStartedAt(started))

	rr := doRequest(t, NewRouter(WithHealthHandlers(h)), http.MethodGet, "/healthz", "")
	body := decodeResponse(t, rr)
	if body["uptime"] != "1m30s" || body["timestamp"] != "2025-06-10T09:30:00Z" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	report := func(status domain.HealthStatus) domain.ReadinessReport {
		return domain.ReadinessReport{
			Status: status,
			Dependencies: map[string]domain.DependencyStatus{
				"mongo": {Status: status, Detail: "ok", Latency: 12 * time.Millisecond, CheckedAt: handlerNow},
			},
			GeneratedAt: handlerNow,
		}
	}
	cases := []struct {
		name   string
		svc    *stubHealthService
		status int
	}{
		{"ok", &stubHealthService{report: report(domain.HealthStatusOK)}, http.StatusOK},
		{"degraded", &stubHealthService{report: report(domain.HealthStatusDegraded)}, http.StatusOK},
		{"error", &stubHealthService{report: report(domain.HealthStatusError)}, http.StatusServiceUnavailable},
		{"collect failed", &stubHealthService{err: errors.New("boom")}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(WithHealthHandlers(NewHealthHandlers(tc.svc)))

			rr := doRequest(t, router, http.MethodGet, "/readyz", "")
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if tc.svc.err != nil {
				return
			}
			deps := decodeResponse(t, rr)["dependencies"].(map[string]any)
			if deps["mongo"].(map[string]any)["latency_ms"] != float64(12) {
				t.Fatalf("unexpected dependencies %v", deps)
			}
		})
	}
}
