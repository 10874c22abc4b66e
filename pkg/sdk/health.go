package prestadores

import (
	"context"

	healthuc "github.com/kailas-cloud/prestadores/internal/usecase/health"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the store and, when they support it, the providers.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.health.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// healthOf returns a checker for v, or nil when v cannot report its health.
func healthOf(v any) healthuc.ProviderChecker {
	hc, ok := v.(interface {
		HealthCheck(ctx context.Context) error
	})
	if !ok {
		return nil
	}
	return healthuc.CheckFunc(hc.HealthCheck)
}
