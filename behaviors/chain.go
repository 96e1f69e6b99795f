package behaviors

import (
	"log/slog"
	"time"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/resultcache"
)

// chainStep separates the processing priorities of chained behaviors
const chainStep = 10

// ChainBuilder builds a common behavior chain. Behaviors are registered
// outermost first, starting at messaging.High processing priority.
type ChainBuilder struct {
	logger   *slog.Logger
	base     messaging.Priority
	entries  []chainEntry
	override messaging.Priority
}

type chainEntry struct {
	behavior messaging.Behavior
	opts     []messaging.RegistrationOption
}

// NewChainBuilder creates a new builder
func NewChainBuilder(logger *slog.Logger) *ChainBuilder {
	if logger == nil {
		logger = slog.Default()
	}

	return &ChainBuilder{
		logger:   logger,
		base:     messaging.High,
		override: messaging.Normal,
	}
}

// StartingAt sets the processing priority of the outermost behavior
func (b *ChainBuilder) StartingAt(priority messaging.Priority) *ChainBuilder {
	b.base = priority
	return b
}

// WithLogging adds logging behavior
func (b *ChainBuilder) WithLogging() *ChainBuilder {
	return b.WithCustom(NewLoggingBehavior(b.logger))
}

// WithCorrelation adds correlation behavior
func (b *ChainBuilder) WithCorrelation() *ChainBuilder {
	return b.WithCustom(NewCorrelationBehavior())
}

// WithMetrics adds metrics behavior
func (b *ChainBuilder) WithMetrics(collector MetricsCollector) *ChainBuilder {
	return b.WithCustom(NewMetricsBehavior(collector))
}

// WithErrorTranslation adds error translation behavior
func (b *ChainBuilder) WithErrorTranslation(coder ErrorCoder) *ChainBuilder {
	return b.WithCustom(NewErrorTranslationBehavior(coder, b.logger))
}

// WithValidation adds validation behavior
func (b *ChainBuilder) WithValidation(validator MessageValidator) *ChainBuilder {
	return b.WithCustom(NewValidationBehavior(validator))
}

// WithTimeout adds timeout behavior
func (b *ChainBuilder) WithTimeout(timeout time.Duration) *ChainBuilder {
	return b.WithCustom(NewTimeoutBehavior(timeout))
}

// WithCircuitBreaker adds circuit breaker behavior
func (b *ChainBuilder) WithCircuitBreaker(circuitBreaker CircuitBreaker) *ChainBuilder {
	return b.WithCustom(NewCircuitBreakerBehavior(circuitBreaker))
}

// WithRetry adds retry behavior
func (b *ChainBuilder) WithRetry(policy reliability.RetryPolicy) *ChainBuilder {
	return b.WithCustom(NewRetryBehavior(policy).WithLogger(b.logger))
}

// WithCaching adds caching behavior
func (b *ChainBuilder) WithCaching(store resultcache.Store, ttl time.Duration, opts ...CachingOption) *ChainBuilder {
	opts = append([]CachingOption{WithCacheLogger(b.logger)}, opts...)
	return b.WithCustom(NewCachingBehavior(store, ttl, opts...))
}

// WithDuplicateDetection adds duplicate detection behavior
func (b *ChainBuilder) WithDuplicateDetection(detector DuplicateDetector) *ChainBuilder {
	return b.WithCustom(NewDuplicateDetectionBehavior(detector))
}

// When adds a behavior that only runs for messages the filter accepts
func (b *ChainBuilder) When(condition MessageFilter, behavior messaging.Behavior) *ChainBuilder {
	return b.WithCustom(NewConditionalBehavior(condition, behavior))
}

// WithCustom adds a custom behavior
func (b *ChainBuilder) WithCustom(behavior messaging.Behavior, opts ...messaging.RegistrationOption) *ChainBuilder {
	b.entries = append(b.entries, chainEntry{behavior: behavior, opts: opts})
	return b
}

// Build returns the registrations in chain order
func (b *ChainBuilder) Build() []messaging.BehaviorRegistration {
	regs := make([]messaging.BehaviorRegistration, 0, len(b.entries))
	for i, entry := range b.entries {
		opts := append([]messaging.RegistrationOption{
			messaging.WithProcessingPriority(b.base + messaging.Priority(i*chainStep)),
			messaging.WithOverridePriority(b.override),
		}, entry.opts...)
		regs = append(regs, messaging.Use(entry.behavior, opts...))
	}
	return regs
}

// Register adds the chain to a registry builder
func (b *ChainBuilder) Register(registry *messaging.RegistryBuilder) *messaging.RegistryBuilder {
	return registry.AddBehavior(b.Build()...)
}
