package services

import (
	"context"
	"time"

	domain "github.com/trendora/api/internal/domain"
	"github.com/trendora/api/internal/repositories"
)

// HealthServiceDeps wires the readiness probe.
type HealthServiceDeps struct {
	Repository repositories.HealthRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type healthService struct {
	repo   repositories.HealthRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewHealthService constructs a HealthService. Without a repository every readiness call reports ok.
func NewHealthService(deps HealthServiceDeps) HealthService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &healthService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}
}

func (s *healthService) Readiness(ctx context.Context) (ReadinessReport, error) {
	if s.repo == nil {
		return ReadinessReport{
			Status:       domain.HealthStatusOK,
			Dependencies: map[string]domain.DependencyStatus{},
			GeneratedAt:  s.now(),
		}, nil
	}
	report, err := s.repo.Collect(ctx)
	if err != nil {
		s.logger(ctx, "health.collect.failed", map[string]any{"error": err.Error()})
		return ReadinessReport{}, err
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = s.now()
	}
	if report.Status != domain.HealthStatusOK {
		failing := make([]string, 0, len(report.Dependencies))
		for name, dep := range report.Dependencies {
			if dep.Status != domain.HealthStatusOK {
				failing = append(failing, name)
			}
		}
		s.logger(ctx, "health.readiness.degraded", map[string]any{
			"status":       string(report.Status),
			"dependencies": failing,
		})
	}
	return report, nil
}

// IsReady reports whether the report allows serving traffic. Degraded dependencies do not block.
func IsReady(report ReadinessReport) bool {
	return report.Status != domain.HealthStatusError
}
