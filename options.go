package dispatch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/naming"
	"github.com/glimte/mmate-dispatch/resultcache"
	"github.com/glimte/mmate-dispatch/schema"
)

// clientConfig holds client configuration
type clientConfig struct {
	logger       *slog.Logger
	types        naming.Registry
	handlers     []messaging.HandlerRegistration
	behaviors    []messaging.BehaviorRegistration
	selectors    []selectorOption
	eventTypes   []interface{}
	store        resultcache.Store
	validator    *schema.Validator
	promRegistry *prometheus.Registry
	dialTimeout  time.Duration
}

type selectorOption struct {
	selector messaging.HandlerSelector
	opts     []messaging.RegistrationOption
}

func (c *clientConfig) dialTimeoutOrDefault() time.Duration {
	if c.dialTimeout <= 0 {
		return 5 * time.Second
	}
	return c.dialTimeout
}

// ClientOption configures the client
type ClientOption func(*clientConfig)

// WithLogger sets the logger for all components
func WithLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithTypes sets the registry of explicit message names
func WithTypes(types naming.Registry) ClientOption {
	return func(cfg *clientConfig) {
		if types != nil {
			cfg.types = types
		}
	}
}

// WithHandlers registers message handlers
func WithHandlers(regs ...messaging.HandlerRegistration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.handlers = append(cfg.handlers, regs...)
	}
}

// WithBehaviors registers behaviors in addition to the configured ones
func WithBehaviors(regs ...messaging.BehaviorRegistration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.behaviors = append(cfg.behaviors, regs...)
	}
}

// WithSelector registers a custom handler selector
func WithSelector(selector messaging.HandlerSelector, opts ...messaging.RegistrationOption) ClientOption {
	return func(cfg *clientConfig) {
		cfg.selectors = append(cfg.selectors, selectorOption{selector: selector, opts: opts})
	}
}

// WithEventTypes marks message types as events, dispatched to all handlers
func WithEventTypes(samples ...interface{}) ClientOption {
	return func(cfg *clientConfig) {
		cfg.eventTypes = append(cfg.eventTypes, samples...)
	}
}

// WithStore replaces the configured result cache backend
func WithStore(store resultcache.Store) ClientOption {
	return func(cfg *clientConfig) {
		cfg.store = store
	}
}

// WithValidator uses a prepared schema validator
func WithValidator(validator *schema.Validator) ClientOption {
	return func(cfg *clientConfig) {
		cfg.validator = validator
	}
}

// WithDialTimeout bounds connecting to remote backends
func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.dialTimeout = timeout
	}
}

// WithPrometheusRegistry registers metrics into an existing registry
func WithPrometheusRegistry(registry *prometheus.Registry) ClientOption {
	return func(cfg *clientConfig) {
		cfg.promRegistry = registry
	}
}
