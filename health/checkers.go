package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/glimte/mmate-dispatch/internal/reliability"
)

// RouteValidator is implemented by the message processor
type RouteValidator interface {
	Validate() error
}

// RoutesChecker reports unroutable or ambiguous message registrations
type RoutesChecker struct {
	validator RouteValidator
}

// NewRoutesChecker creates a checker validating every registered route
func NewRoutesChecker(validator RouteValidator) *RoutesChecker {
	return &RoutesChecker{validator: validator}
}

func (c *RoutesChecker) Name() string {
	return "routes"
}

func (c *RoutesChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Status:    StatusHealthy,
		Message:   "All routes resolve",
	}

	if err := c.validator.Validate(); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Routes failed validation"
		result.Error = err.Error()
		if joined, ok := errors.Unwrap(err).(interface{ Unwrap() []error }); ok {
			result.Details = map[string]interface{}{"invalid_routes": len(joined.Unwrap())}
		}
	}

	result.Duration = time.Since(start)
	return result
}

// BreakerState is implemented by reliability.CircuitBreaker
type BreakerState interface {
	Name() string
	State() reliability.State
	Metrics() reliability.CircuitBreakerMetrics
}

// CircuitBreakerChecker reports an open breaker as unhealthy and a
// half-open one as degraded
type CircuitBreakerChecker struct {
	breaker BreakerState
}

// NewCircuitBreakerChecker creates a circuit breaker health checker
func NewCircuitBreakerChecker(breaker BreakerState) *CircuitBreakerChecker {
	return &CircuitBreakerChecker{breaker: breaker}
}

func (c *CircuitBreakerChecker) Name() string {
	return fmt.Sprintf("circuit_breaker_%s", c.breaker.Name())
}

func (c *CircuitBreakerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.breaker.State()
	metrics := c.breaker.Metrics()

	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details: map[string]interface{}{
			"state":          state.String(),
			"failures":       metrics.CurrentFailures,
			"total_requests": metrics.TotalRequests,
			"total_rejected": metrics.TotalRejected,
		},
	}

	switch state {
	case reliability.StateOpen:
		result.Status = StatusUnhealthy
		result.Message = "Circuit breaker is open"
	case reliability.StateHalfOpen:
		result.Status = StatusDegraded
		result.Message = "Circuit breaker is probing"
	default:
		result.Status = StatusHealthy
		result.Message = "Circuit breaker is closed"
	}

	result.Duration = time.Since(start)
	return result
}

// Pinger is implemented by stores with a remote backend
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker checks a result store backend is reachable
type StoreChecker struct {
	name   string
	pinger Pinger
}

// NewStoreChecker creates a store health checker
func NewStoreChecker(name string, pinger Pinger) *StoreChecker {
	return &StoreChecker{name: name, pinger: pinger}
}

func (c *StoreChecker) Name() string {
	return c.name
}

func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	if err := c.pinger.Ping(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Message = "Store is unreachable"
		result.Error = err.Error()
	} else {
		result.Status = StatusHealthy
		result.Message = "Store is reachable"
	}

	result.Duration = time.Since(start)
	result.Details["response_time_ms"] = result.Duration.Milliseconds()
	return result
}

// GoroutineChecker flags goroutine growth, e.g. from leaked dispatches
type GoroutineChecker struct {
	warningThreshold  int
	criticalThreshold int
}

// NewGoroutineChecker creates a goroutine count checker
func NewGoroutineChecker(warningThreshold, criticalThreshold int) *GoroutineChecker {
	return &GoroutineChecker{
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
	}
}

func (c *GoroutineChecker) Name() string {
	return "goroutines"
}

func (c *GoroutineChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   make(map[string]interface{}),
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goroutines := runtime.NumGoroutine()

	result.Details["memory_used_mb"] = float64(m.Sys) / 1024 / 1024
	result.Details["gc_runs"] = m.NumGC
	result.Details["goroutines"] = goroutines

	switch {
	case goroutines > c.criticalThreshold:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("Too many goroutines: %d", goroutines)
	case goroutines > c.warningThreshold:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("High goroutine count: %d", goroutines)
	default:
		result.Status = StatusHealthy
		result.Message = "Goroutine count is normal"
	}

	result.Duration = time.Since(start)
	return result
}
