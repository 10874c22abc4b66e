package health

import "context"

// DBPinger checks the vector store connection.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks an embedding or generation provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// CheckFunc adapts a plain function to ProviderChecker.
type CheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
