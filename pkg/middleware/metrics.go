package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sockframe-dev/sockframe/pkg/protocol"
	"github.com/sockframe-dev/sockframe/pkg/session"
)

// MetricsConfig configures the Prometheus dispatch middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "sockframe").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dispatch duration.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus dispatch middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "sockframe",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors for dispatch.
type metrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec
}

// globalMetrics is the singleton metrics instance, created on the first
// call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of dispatched method calls",
			ConstLabels: config.ConstLabels,
		}, []string{"namespace", "method", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Method dispatch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"namespace", "method"}),

		callErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_errors_total",
			Help:        "Total number of dispatch errors by error type",
			ConstLabels: config.ConstLabels,
		}, []string{"namespace", "method", "error_type"}),
	}
}

// Prometheus creates middleware that collects Prometheus metrics for
// every dispatched method call.
//
// The collectors are process-wide singletons registered on the first
// call; options passed to later calls have no effect, and every
// returned middleware records into the same collectors.
//
// Metrics collected:
//   - sockframe_calls_total: counter by namespace, method and status
//   - sockframe_call_duration_seconds: dispatch duration histogram
//   - sockframe_call_errors_total: counter by error type
func Prometheus(opts ...MetricsOption) session.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(ctx context.Context, inv *session.Invocation, next session.InvokeFunc) (any, error) {
		start := time.Now()

		result, err := next(ctx)

		m.callDuration.WithLabelValues(inv.Namespace, inv.Method).
			Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.callErrors.WithLabelValues(inv.Namespace, inv.Method, errorTypeLabel(err)).Inc()
		}
		m.callsTotal.WithLabelValues(inv.Namespace, inv.Method, status).Inc()

		return result, err
	}
}

// errorTypeLabel returns a low-cardinality label for the error. Client
// errors carry their taxonomy kind; everything else is "internal".
func errorTypeLabel(err error) string {
	if ce, ok := protocol.AsClientError(err); ok {
		return string(ce.Type)
	}
	return "internal"
}
