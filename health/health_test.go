package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/resultcache"
)

func staticChecker(name string, status Status) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) CheckResult {
		return CheckResult{Name: name, Status: status}
	})
}

type validatorFunc func() error

func (f validatorFunc) Validate() error { return f() }

func TestRegistry(t *testing.T) {
	t.Run("overall status is the worst check", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticChecker("a", StatusHealthy), staticChecker("b", StatusDegraded))

		health := registry.Check(context.Background())
		assert.Equal(t, StatusDegraded, health.Status)
		assert.Len(t, health.Checks, 2)

		registry.Register(staticChecker("c", StatusUnhealthy))
		assert.Equal(t, StatusUnhealthy, registry.Check(context.Background()).Status)
		assert.Equal(t, []string{"a", "b", "c"}, registry.Names())
	})

	t.Run("unregister removes a check", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticChecker("bad", StatusUnhealthy))
		registry.Unregister("bad")

		assert.Equal(t, StatusHealthy, registry.Check(context.Background()).Status)
	})

	t.Run("slow checks time out as unhealthy", func(t *testing.T) {
		registry := NewRegistry()
		registry.SetMetadata("service", "orders")
		registry.Register(NewCheckerFunc("slow", func(ctx context.Context) CheckResult {
			time.Sleep(200 * time.Millisecond)
			return CheckResult{Name: "slow", Status: StatusHealthy}
		}))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		health := registry.Check(ctx)

		assert.Equal(t, StatusUnhealthy, health.Status)
		assert.Equal(t, "Check timed out", health.Checks["slow"].Message)
		assert.Equal(t, "orders", health.Metadata["service"])
	})
}

func TestHandler(t *testing.T) {
	t.Run("serves 503 when unhealthy", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticChecker("bad", StatusUnhealthy))
		rec := httptest.NewRecorder()

		NewHandler(registry, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body OverallHealth
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, StatusUnhealthy, body.Status)
	})

	t.Run("serves 200 when degraded", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(staticChecker("meh", StatusDegraded))
		rec := httptest.NewRecorder()

		NewHandler(registry, time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects non GET requests", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(NewRegistry(), time.Second).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("liveness always answers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Equal(t, "alive", rec.Body.String())
	})
}

func TestRoutesChecker(t *testing.T) {
	t.Run("healthy when routes validate", func(t *testing.T) {
		result := NewRoutesChecker(validatorFunc(func() error { return nil })).Check(context.Background())
		assert.Equal(t, StatusHealthy, result.Status)
	})

	t.Run("unhealthy with the number of invalid routes", func(t *testing.T) {
		err := fmt.Errorf("validate registry: %w", errors.Join(errors.New("a"), errors.New("b")))
		result := NewRoutesChecker(validatorFunc(func() error { return err })).Check(context.Background())

		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Equal(t, 2, result.Details["invalid_routes"])
	})
}

func TestCircuitBreakerChecker(t *testing.T) {
	t.Run("maps breaker states", func(t *testing.T) {
		breaker := reliability.NewCircuitBreaker(
			reliability.WithName("billing"),
			reliability.WithFailureThreshold(1),
			reliability.WithTimeout(time.Hour),
		)
		checker := NewCircuitBreakerChecker(breaker)
		assert.Equal(t, "circuit_breaker_billing", checker.Name())
		assert.Equal(t, StatusHealthy, checker.Check(context.Background()).Status)

		_ = breaker.Execute(context.Background(), func(context.Context) error { return errors.New("down") })

		result := checker.Check(context.Background())
		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Equal(t, "open", result.Details["state"])
	})
}

func TestStoreChecker(t *testing.T) {
	t.Run("reports a reachable redis store", func(t *testing.T) {
		server := miniredis.RunT(t)
		store, err := resultcache.DialRedis(context.Background(), server.Addr(), "", 0)
		require.NoError(t, err)
		defer store.Close()

		result := NewStoreChecker("result_cache", store).Check(context.Background())
		assert.Equal(t, StatusHealthy, result.Status)

		server.Close()
		result = NewStoreChecker("result_cache", store).Check(context.Background())
		assert.Equal(t, StatusUnhealthy, result.Status)
	})
}

func TestGoroutineChecker(t *testing.T) {
	t.Run("flags counts above thresholds", func(t *testing.T) {
		assert.Equal(t, StatusHealthy, NewGoroutineChecker(100000, 200000).Check(context.Background()).Status)
		assert.Equal(t, StatusDegraded, NewGoroutineChecker(0, 200000).Check(context.Background()).Status)
		assert.Equal(t, StatusUnhealthy, NewGoroutineChecker(0, 0).Check(context.Background()).Status)
	})
}
