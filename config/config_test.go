package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/naming"
)

func TestDefault(t *testing.T) {
	t.Run("is valid", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, messaging.EventModeSequential, cfg.EventMode())
		assert.Equal(t, naming.TypeNaming, cfg.Strategy())
		assert.True(t, cfg.Behaviors.Logging)
		assert.False(t, cfg.Behaviors.Cache.Enabled)
	})
}

func TestLoad(t *testing.T) {
	t.Run("merges the file over the defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dispatch.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
naming:
  strategy: kebab
events:
  mode: concurrent
behaviors:
  timeout: 5s
  retry:
    enabled: true
    policy: fixed
    initialDelay: 250ms
`), 0o600))

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, naming.KebabNaming, cfg.Strategy())
		assert.Equal(t, messaging.EventModeConcurrent, cfg.EventMode())
		assert.Equal(t, 5*time.Second, cfg.Behaviors.Timeout)
		assert.Equal(t, 250*time.Millisecond, cfg.Behaviors.Retry.InitialDelay)
		assert.Equal(t, 3, cfg.Behaviors.Retry.MaxRetries)
		assert.True(t, cfg.Behaviors.Logging)
	})

	t.Run("applies environment overrides last", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dispatch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("events:\n  mode: concurrent\n"), 0o600))
		t.Setenv("MMATE_DISPATCH_EVENTS_MODE", "sequential")
		t.Setenv("MMATE_DISPATCH_BEHAVIORS_CACHE_ENABLED", "true")
		t.Setenv("MMATE_DISPATCH_BEHAVIORS_CACHE_BACKEND", "redis")
		t.Setenv("MMATE_DISPATCH_BEHAVIORS_CACHE_REDIS_ADDR", "redis:6380")
		t.Setenv("MMATE_DISPATCH_BEHAVIORS_CACHE_TTL", "2m")

		cfg, err := Load(path)

		require.NoError(t, err)
		assert.Equal(t, messaging.EventModeSequential, cfg.EventMode())
		assert.True(t, cfg.Behaviors.Cache.Enabled)
		assert.Equal(t, CacheRedis, cfg.Behaviors.Cache.Backend)
		assert.Equal(t, "redis:6380", cfg.Behaviors.Cache.Redis.Addr)
		assert.Equal(t, 2*time.Minute, cfg.Behaviors.Cache.TTL)
	})

	t.Run("loads defaults without a file", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("fails on invalid env values", func(t *testing.T) {
		t.Setenv("MMATE_DISPATCH_BEHAVIORS_TIMEOUT", "soon")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("reports every problem", func(t *testing.T) {
		cfg, err := Parse([]byte(`
naming:
  strategy: camel
events:
  mode: parallel
logging:
  level: loud
  format: xml
behaviors:
  retry:
    enabled: true
    policy: random
    maxRetries: 0
  cache:
    enabled: true
    backend: disk
`))

		assert.Nil(t, cfg)
		require.Error(t, err)
		for _, want := range []string{
			"naming.strategy", "events.mode", "logging.level", "logging.format",
			"behaviors.retry.policy", "behaviors.retry.maxRetries", "behaviors.cache.backend",
		} {
			assert.Contains(t, err.Error(), want)
		}
	})

	t.Run("requires a redis address for the redis backend", func(t *testing.T) {
		cfg := Default()
		cfg.Behaviors.Cache.Enabled = true
		cfg.Behaviors.Cache.Backend = CacheRedis
		cfg.Behaviors.Cache.Redis.Addr = ""

		assert.ErrorContains(t, cfg.Validate(), "behaviors.cache.redis.addr")
	})
}

func TestRetryPolicy(t *testing.T) {
	t.Run("builds the configured policy", func(t *testing.T) {
		r := Default().Behaviors.Retry
		assert.IsType(t, &reliability.ExponentialBackoff{}, r.RetryPolicy())

		r.Policy = RetryLinear
		linear := r.RetryPolicy()
		assert.IsType(t, &reliability.LinearBackoff{}, linear)
		assert.Equal(t, 3, linear.MaxRetries())

		r.Policy = RetryFixed
		assert.IsType(t, &reliability.FixedDelay{}, r.RetryPolicy())
	})
}

func TestCircuitBreakerOptions(t *testing.T) {
	t.Run("configures a named breaker", func(t *testing.T) {
		breaker := reliability.NewCircuitBreaker(Default().Behaviors.CircuitBreaker.Options("dispatch")...)
		assert.Equal(t, "dispatch", breaker.Name())
		assert.Equal(t, reliability.StateClosed, breaker.State())
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("honours level and format", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "json"
		var buf bytes.Buffer
		logger := cfg.NewLogger(&buf)

		logger.Info("hidden")
		logger.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
	})
}
