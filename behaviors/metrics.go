package behaviors

import (
	"context"
	"errors"
	"time"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/schema"
)

// Error classes reported to a MetricsCollector
const (
	ErrorTypeMissingHandler   = "missing_handler"
	ErrorTypeAmbiguousHandler = "ambiguous_handler"
	ErrorTypeConfiguration    = "configuration"
	ErrorTypeValidation       = "validation"
	ErrorTypeCircuitOpen      = "circuit_open"
	ErrorTypeTimeout          = "timeout"
	ErrorTypeCanceled         = "canceled"
	ErrorTypeHandler          = "handler"
)

// MetricsCollector defines the interface for collecting metrics
type MetricsCollector interface {
	IncrementMessageCount(messageName string)
	RecordProcessingTime(messageName string, duration time.Duration)
	IncrementErrorCount(messageName string, errorType string)
}

// ErrorType classifies a dispatch error for metrics labels
func ErrorType(err error) string {
	var validationErr *schema.ValidationError
	switch {
	case errors.Is(err, messaging.ErrMissingHandler):
		return ErrorTypeMissingHandler
	case errors.Is(err, messaging.ErrAmbiguousHandler):
		return ErrorTypeAmbiguousHandler
	case messaging.IsConfigurationError(err):
		return ErrorTypeConfiguration
	case errors.As(err, &validationErr):
		return ErrorTypeValidation
	case errors.Is(err, reliability.ErrCircuitOpen), errors.Is(err, reliability.ErrCircuitHalfOpenLimit):
		return ErrorTypeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	default:
		return ErrorTypeHandler
	}
}

// MetricsBehavior collects metrics about message processing
type MetricsBehavior struct {
	collector MetricsCollector
}

// NewMetricsBehavior creates a new metrics behavior
func NewMetricsBehavior(collector MetricsCollector) *MetricsBehavior {
	return &MetricsBehavior{collector: collector}
}

// Invoke implements messaging.Behavior
func (b *MetricsBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	start := time.Now()
	messageName := mctx.MessageName()

	b.collector.IncrementMessageCount(messageName)

	result, err := next(ctx)
	b.collector.RecordProcessingTime(messageName, time.Since(start))

	if err != nil {
		b.collector.IncrementErrorCount(messageName, ErrorType(err))
		return nil, err
	}
	return result, nil
}

// Name implements messaging.Behavior
func (b *MetricsBehavior) Name() string {
	return "MetricsBehavior"
}
