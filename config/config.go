package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/naming"
)

// EnvPrefix prefixes every environment override, e.g. MMATE_DISPATCH_EVENTS_MODE
const EnvPrefix = "MMATE_DISPATCH_"

// Config configures a dispatcher
type Config struct {
	Naming    NamingConfig    `yaml:"naming" envPrefix:"NAMING_"`
	Events    EventsConfig    `yaml:"events" envPrefix:"EVENTS_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
	Metrics   MetricsConfig   `yaml:"metrics" envPrefix:"METRICS_"`
	Behaviors BehaviorsConfig `yaml:"behaviors" envPrefix:"BEHAVIORS_"`
}

// NamingConfig selects how message names are derived from Go types
type NamingConfig struct {
	Strategy string `yaml:"strategy" env:"STRATEGY"`
}

// EventsConfig controls event fan-out
type EventsConfig struct {
	Mode string `yaml:"mode" env:"MODE"`
}

// LoggingConfig configures the slog logger
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// BehaviorsConfig selects the built-in behaviors wrapped around every dispatch
type BehaviorsConfig struct {
	Logging          bool                 `yaml:"logging" env:"LOGGING"`
	Correlation      bool                 `yaml:"correlation" env:"CORRELATION"`
	ErrorTranslation bool                 `yaml:"errorTranslation" env:"ERROR_TRANSLATION"`
	Timeout          time.Duration        `yaml:"timeout" env:"TIMEOUT"`
	Validation       ValidationConfig     `yaml:"validation" envPrefix:"VALIDATION_"`
	Retry            RetryConfig          `yaml:"retry" envPrefix:"RETRY_"`
	CircuitBreaker   CircuitBreakerConfig `yaml:"circuitBreaker" envPrefix:"CIRCUIT_BREAKER_"`
	Cache            CacheConfig          `yaml:"cache" envPrefix:"CACHE_"`
}

// ValidationConfig configures JSON schema validation
type ValidationConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Strict    bool   `yaml:"strict" env:"STRICT"`
	SchemaDir string `yaml:"schemaDir" env:"SCHEMA_DIR"`
}

// RetryConfig configures handler retries
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Policy       string        `yaml:"policy" env:"POLICY"`
	MaxRetries   int           `yaml:"maxRetries" env:"MAX_RETRIES"`
	InitialDelay time.Duration `yaml:"initialDelay" env:"INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"maxDelay" env:"MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"MULTIPLIER"`
}

// CircuitBreakerConfig configures the dispatch circuit breaker
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" env:"ENABLED"`
	FailureThreshold int           `yaml:"failureThreshold" env:"FAILURE_THRESHOLD"`
	SuccessThreshold int           `yaml:"successThreshold" env:"SUCCESS_THRESHOLD"`
	Timeout          time.Duration `yaml:"timeout" env:"TIMEOUT"`
	HalfOpenRequests int           `yaml:"halfOpenRequests" env:"HALF_OPEN_REQUESTS"`
}

// CacheConfig configures query result caching
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" env:"ENABLED"`
	Backend string        `yaml:"backend" env:"BACKEND"`
	TTL     time.Duration `yaml:"ttl" env:"TTL"`
	Redis   RedisConfig   `yaml:"redis" envPrefix:"REDIS_"`
}

// RedisConfig addresses the redis result cache backend
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"keyPrefix" env:"KEY_PREFIX"`
}

// Retry policies
const (
	RetryExponential = "exponential"
	RetryLinear      = "linear"
	RetryFixed       = "fixed"
)

// Cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Naming:  NamingConfig{Strategy: "type"},
		Events:  EventsConfig{Mode: messaging.EventModeSequential.String()},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Namespace: "mmate"},
		Behaviors: BehaviorsConfig{
			Logging:     true,
			Correlation: true,
			Retry: RetryConfig{
				Policy:       RetryExponential,
				MaxRetries:   3,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     5 * time.Second,
				Multiplier:   2.0,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 1,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 1,
			},
			Cache: CacheConfig{
				Backend: CacheMemory,
				TTL:     time.Minute,
				Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "mmate:dispatch:"},
			},
		},
	}
}

// Load builds a configuration from the defaults, the YAML file at path
// (skipped when empty) and MMATE_DISPATCH_ environment overrides, then
// validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults without environment overrides
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, reporting every problem found
func (c *Config) Validate() error {
	var errs []error

	if _, ok := naming.StrategyByName(c.Naming.Strategy); !ok {
		errs = append(errs, fmt.Errorf("naming.strategy: unknown strategy %q", c.Naming.Strategy))
	}
	if _, err := messaging.ParseEventMode(c.Events.Mode); err != nil {
		errs = append(errs, fmt.Errorf("events.mode: %w", err))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be text or json, got %q", c.Logging.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("metrics.namespace: required when metrics are enabled"))
	}

	b := c.Behaviors
	if b.Timeout < 0 {
		errs = append(errs, errors.New("behaviors.timeout: must not be negative"))
	}
	if b.Validation.Enabled && b.Validation.SchemaDir != "" {
		if info, err := os.Stat(b.Validation.SchemaDir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("behaviors.validation.schemaDir: %s is not a directory", b.Validation.SchemaDir))
		}
	}
	if b.Retry.Enabled {
		switch b.Retry.Policy {
		case RetryExponential, RetryLinear, RetryFixed:
		default:
			errs = append(errs, fmt.Errorf("behaviors.retry.policy: unknown policy %q", b.Retry.Policy))
		}
		if b.Retry.MaxRetries < 1 {
			errs = append(errs, errors.New("behaviors.retry.maxRetries: must be at least 1"))
		}
		if b.Retry.InitialDelay <= 0 {
			errs = append(errs, errors.New("behaviors.retry.initialDelay: must be positive"))
		}
		if b.Retry.Policy == RetryExponential && b.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("behaviors.retry.multiplier: must be at least 1"))
		}
	}
	if b.CircuitBreaker.Enabled {
		if b.CircuitBreaker.FailureThreshold < 1 {
			errs = append(errs, errors.New("behaviors.circuitBreaker.failureThreshold: must be at least 1"))
		}
		if b.CircuitBreaker.Timeout <= 0 {
			errs = append(errs, errors.New("behaviors.circuitBreaker.timeout: must be positive"))
		}
	}
	if b.Cache.Enabled {
		switch b.Cache.Backend {
		case CacheMemory:
		case CacheRedis:
			if b.Cache.Redis.Addr == "" {
				errs = append(errs, errors.New("behaviors.cache.redis.addr: required for the redis backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("behaviors.cache.backend: unknown backend %q", b.Cache.Backend))
		}
		if b.Cache.TTL <= 0 {
			errs = append(errs, errors.New("behaviors.cache.ttl: must be positive"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ParseLevel parses a slog level name
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", level)
	}
	return l, nil
}

// NewLogger creates the logger described by the logging section
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Strategy returns the configured naming strategy
func (c *Config) Strategy() naming.Strategy {
	s, _ := naming.StrategyByName(c.Naming.Strategy)
	return s
}

// EventMode returns the configured event fan-out mode
func (c *Config) EventMode() messaging.EventMode {
	mode, _ := messaging.ParseEventMode(c.Events.Mode)
	return mode
}

// RetryPolicy builds the configured retry policy
func (r RetryConfig) RetryPolicy() reliability.RetryPolicy {
	switch r.Policy {
	case RetryLinear:
		p := reliability.NewLinearBackoff(r.InitialDelay, r.MaxRetries)
		p.MaxInterval = r.MaxDelay
		return p
	case RetryFixed:
		return reliability.NewFixedDelay(r.InitialDelay, r.MaxRetries)
	default:
		return reliability.NewExponentialBackoff(r.InitialDelay, r.MaxDelay, r.Multiplier, r.MaxRetries)
	}
}

// Options converts the section into circuit breaker options
func (c CircuitBreakerConfig) Options(name string) []reliability.CircuitBreakerOption {
	return []reliability.CircuitBreakerOption{
		reliability.WithName(name),
		reliability.WithFailureThreshold(c.FailureThreshold),
		reliability.WithSuccessThreshold(c.SuccessThreshold),
		reliability.WithTimeout(c.Timeout),
		reliability.WithHalfOpenRequests(c.HalfOpenRequests),
	}
}
