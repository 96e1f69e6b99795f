package behaviors

import (
	"context"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
)

// CircuitBreaker defines the interface for circuit breaker functionality
type CircuitBreaker interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// CircuitBreakerBehavior guards the inner pipeline with a circuit breaker
type CircuitBreakerBehavior struct {
	circuitBreaker CircuitBreaker
}

// NewCircuitBreakerBehavior creates a new circuit breaker behavior
func NewCircuitBreakerBehavior(circuitBreaker CircuitBreaker) *CircuitBreakerBehavior {
	return &CircuitBreakerBehavior{circuitBreaker: circuitBreaker}
}

// Invoke implements messaging.Behavior
func (b *CircuitBreakerBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	var result interface{}
	err := b.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = next(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Name implements messaging.Behavior
func (b *CircuitBreakerBehavior) Name() string {
	return "CircuitBreakerBehavior"
}

// CountsAsFailure reports whether an error should trip a breaker guarding
// dispatches. Resolution, configuration, validation, cancellation and
// rejection errors do not count.
func CountsAsFailure(err error) bool {
	switch ErrorType(err) {
	case ErrorTypeMissingHandler, ErrorTypeAmbiguousHandler, ErrorTypeConfiguration,
		ErrorTypeValidation, ErrorTypeCanceled, ErrorTypeCircuitOpen:
		return false
	}
	return err != nil
}

// NewDispatchCircuitBreaker creates a breaker that only counts downstream failures
func NewDispatchCircuitBreaker(options ...reliability.CircuitBreakerOption) *reliability.CircuitBreaker {
	options = append([]reliability.CircuitBreakerOption{reliability.WithFailurePredicate(CountsAsFailure)}, options...)
	return reliability.NewCircuitBreaker(options...)
}
