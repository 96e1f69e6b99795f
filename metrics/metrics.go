package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glimte/mmate-dispatch/internal/reliability"
)

// DispatchMetrics records dispatch counts, latency and failures in
// Prometheus. It satisfies the metrics behavior's collector interface.
type DispatchMetrics struct {
	registry *prometheus.Registry

	MessagesTotal      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	CircuitState       *prometheus.GaugeVec
}

// Option configures DispatchMetrics
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
}

// WithNamespace sets the metric namespace
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

// WithBuckets sets the duration histogram buckets in seconds
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// WithRegistry registers into an existing registry
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New creates and registers the dispatch metrics
func New(opts ...Option) (*DispatchMetrics, error) {
	o := options{namespace: "mmate", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	m := &DispatchMetrics{
		registry: o.registry,
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Subsystem: "dispatch",
				Name:      "messages_total",
				Help:      "Total number of dispatched messages",
			},
			[]string{"message"},
		),
		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: o.namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Dispatch duration in seconds",
				Buckets:   o.buckets,
			},
			[]string{"message"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: o.namespace,
				Subsystem: "dispatch",
				Name:      "errors_total",
				Help:      "Total number of failed dispatches",
			},
			[]string{"message", "type"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: o.namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
	}

	for _, c := range []prometheus.Collector{m.MessagesTotal, m.ProcessingDuration, m.ErrorsTotal, m.CircuitState} {
		if err := o.registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, fmt.Errorf("dispatch metrics already registered: %w", err)
			}
			return nil, fmt.Errorf("failed to register dispatch metrics: %w", err)
		}
	}
	return m, nil
}

// IncrementMessageCount counts a dispatch
func (m *DispatchMetrics) IncrementMessageCount(messageName string) {
	m.MessagesTotal.WithLabelValues(messageName).Inc()
}

// RecordProcessingTime observes the dispatch duration
func (m *DispatchMetrics) RecordProcessingTime(messageName string, duration time.Duration) {
	m.ProcessingDuration.WithLabelValues(messageName).Observe(duration.Seconds())
}

// IncrementErrorCount counts a failed dispatch by error class
func (m *DispatchMetrics) IncrementErrorCount(messageName string, errorType string) {
	m.ErrorsTotal.WithLabelValues(messageName, errorType).Inc()
}

// OnStateChange tracks circuit breaker transitions
func (m *DispatchMetrics) OnStateChange(name string, _, to reliability.State, _ string) {
	m.CircuitState.WithLabelValues(name).Set(float64(to))
}

// Registry returns the Prometheus registry holding the metrics
func (m *DispatchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *DispatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
