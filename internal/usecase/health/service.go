// Package health aggregates component checks into one report.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates the vector store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as report keys.
const (
	ComponentDatabase   = "database"
	ComponentEmbedding  = "embedding"
	ComponentGeneration = "generation"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 5 * time.Second

// Service coordinates health checks.
type Service struct {
	components map[string]ProviderChecker
	timeout    time.Duration
}

// New creates a Service. embedding and generation can be nil.
func New(db DBPinger, embedding, generation ProviderChecker) *Service {
	components := map[string]ProviderChecker{ComponentDatabase: CheckFunc(db.Ping)}
	if embedding != nil {
		components[ComponentEmbedding] = embedding
	}
	if generation != nil {
		components[ComponentGeneration] = generation
	}
	return &Service{components: components, timeout: DefaultCheckTimeout}
}

// WithTimeout sets the per-component check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all component checks in parallel. A database failure is
// Unhealthy since nothing can be searched; a provider failure is Degraded.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(s.components))
		g      errgroup.Group
	)
	for name, c := range s.components {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			res := result(c.HealthCheck(cctx))

			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[ComponentDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
