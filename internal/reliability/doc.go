// Package reliability provides retry policies and a circuit breaker used
// by the dispatch behaviors.
//
//   - Retry policies: exponential, linear and fixed delays
//   - Do/Retry: context-aware retry loops with a pluggable classifier
//   - CircuitBreaker: consecutive-failure breaker with half-open trials
//
// Example usage:
//
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithTimeout(30 * time.Second),
//	)
//
//	err := cb.Execute(ctx, func(ctx context.Context) error {
//	    return riskyOperation(ctx)
//	})
package reliability
