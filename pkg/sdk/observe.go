package prestadores

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation statuses used as the "status" label.
const (
	statusOK        = "ok"
	statusNoResults = "no_results"
	statusError     = "error"
)

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	ops, err := registerShared(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prestadores",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK operations by name and status.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	dur, err := registerShared(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prestadores",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK operation latency. Searches include generation.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	return &sdkMetrics{operations: ops, duration: dur}, nil
}

// registerShared registers c, or returns the collector already registered
// under the same descriptor so several clients can share one registry.
func registerShared[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("prestadores: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("prestadores: metric already registered as %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer logs and counts SDK operations. A nil observer does nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// operation is one timed SDK call, started by observer.begin.
type operation struct {
	obs   *observer
	name  string
	start time.Time
}

func (o *observer) begin(name string) operation {
	return operation{obs: o, name: name, start: time.Now()}
}

// done records the operation with a status derived from err.
func (op operation) done(err error, attrs ...any) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	op.finish(status, err, attrs...)
}

// finish records the operation with an explicit status.
func (op operation) finish(status string, err error, attrs ...any) {
	o := op.obs
	if o == nil {
		return
	}
	elapsed := time.Since(op.start)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op.name, status).Inc()
		o.metrics.duration.WithLabelValues(op.name).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	args := append([]any{"op", op.name, "status", status, "duration", elapsed}, attrs...)
	if err != nil {
		o.logger.Warn("operation failed", append(args, "error", err)...)
		return
	}
	o.logger.Debug("operation completed", args...)
}
