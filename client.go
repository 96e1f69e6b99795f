// Copyright 2024 Mmate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/glimte/mmate-dispatch/behaviors"
	"github.com/glimte/mmate-dispatch/config"
	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/health"
	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/metrics"
	"github.com/glimte/mmate-dispatch/naming"
	"github.com/glimte/mmate-dispatch/resultcache"
	"github.com/glimte/mmate-dispatch/schema"
)

// Client provides the main entry point for mmate-dispatch. It owns the
// registry, the message processor and the behaviors selected by the
// configuration.
type Client struct {
	cfg       *config.Config
	logger    *slog.Logger
	resolver  *naming.Resolver
	processor *messaging.MessageProcessor
	metrics   *metrics.DispatchMetrics
	breaker   *reliability.CircuitBreaker
	validator *schema.Validator
	store     resultcache.Store
	health    *health.Registry
	closers   []io.Closer
}

// New assembles a client from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &clientConfig{
		logger: slog.Default(),
		types:  naming.NewTypeRegistry(),
	}
	for _, opt := range options {
		opt(opts)
	}

	c := &Client{
		cfg:      cfg,
		logger:   opts.logger,
		resolver: naming.NewResolver(opts.types, cfg.Strategy()),
		health:   health.NewRegistry(),
	}

	chain, err := c.buildChain(opts)
	if err != nil {
		c.Close()
		return nil, err
	}

	builder := chain.Register(messaging.NewRegistryBuilder()).
		AddHandler(opts.handlers...).
		AddBehavior(opts.behaviors...).
		AddEventType(opts.eventTypes...)
	for _, s := range opts.selectors {
		builder.AddSelector(s.selector, s.opts...)
	}
	registry, err := builder.Build()
	if err != nil {
		c.Close()
		return nil, err
	}

	c.processor = messaging.NewMessageProcessor(registry,
		messaging.WithLogger(c.logger),
		messaging.WithResolver(c.resolver),
		messaging.WithEventMode(cfg.EventMode()),
	)

	c.health.Register(health.NewRoutesChecker(c.processor))
	if c.breaker != nil {
		c.health.Register(health.NewCircuitBreakerChecker(c.breaker))
	}
	if pinger, ok := c.store.(health.Pinger); ok {
		c.health.Register(health.NewStoreChecker("result_cache", pinger))
	}

	c.logger.Info("dispatcher ready",
		"handlers", len(registry.Handlers()),
		"selectors", len(registry.Selectors()),
		"behaviors", len(registry.Behaviors()),
		"eventMode", cfg.EventMode().String(),
	)
	return c, nil
}

// buildChain creates the configured behaviors, outermost first
func (c *Client) buildChain(opts *clientConfig) (*behaviors.ChainBuilder, error) {
	b := c.cfg.Behaviors
	chain := behaviors.NewChainBuilder(c.logger)

	if b.Correlation {
		chain.WithCorrelation()
	}
	if b.Logging {
		chain.WithLogging()
	}
	if c.cfg.Metrics.Enabled {
		m, err := metrics.New(
			metrics.WithNamespace(c.cfg.Metrics.Namespace),
			metrics.WithRegistry(opts.promRegistry),
		)
		if err != nil {
			return nil, err
		}
		c.metrics = m
		chain.WithMetrics(m)
	}
	if b.ErrorTranslation {
		chain.WithErrorTranslation(nil)
	}
	if b.Validation.Enabled {
		c.validator = opts.validator
		if c.validator == nil {
			c.validator = schema.NewValidator(
				schema.WithResolver(c.resolver),
				schema.WithStrictMode(b.Validation.Strict),
			)
		}
		if b.Validation.SchemaDir != "" {
			n, err := c.validator.LoadDir(b.Validation.SchemaDir)
			if err != nil {
				return nil, fmt.Errorf("failed to load schemas: %w", err)
			}
			c.logger.Debug("schemas loaded", "dir", b.Validation.SchemaDir, "count", n)
		}
		chain.WithValidation(c.validator)
	}
	if b.Cache.Enabled {
		store, err := c.openStore(opts)
		if err != nil {
			return nil, err
		}
		c.store = store
		chain.WithCaching(store, b.Cache.TTL)
	}
	if b.CircuitBreaker.Enabled {
		breakerOpts := b.CircuitBreaker.Options("dispatch")
		if c.metrics != nil {
			breakerOpts = append(breakerOpts, reliability.WithStateListener(c.metrics))
		}
		c.breaker = behaviors.NewDispatchCircuitBreaker(breakerOpts...)
		chain.WithCircuitBreaker(c.breaker)
	}
	if b.Retry.Enabled {
		chain.WithRetry(b.Retry.RetryPolicy())
	}
	if b.Timeout > 0 {
		chain.WithTimeout(b.Timeout)
	}
	return chain, nil
}

func (c *Client) openStore(opts *clientConfig) (resultcache.Store, error) {
	if opts.store != nil {
		return opts.store, nil
	}
	cache := c.cfg.Behaviors.Cache
	if cache.Backend != config.CacheRedis {
		return resultcache.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.dialTimeoutOrDefault())
	defer cancel()
	store, err := resultcache.DialRedis(ctx, cache.Redis.Addr, cache.Redis.Password, cache.Redis.DB,
		resultcache.WithKeyPrefix(cache.Redis.KeyPrefix))
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, store)
	return store, nil
}

// Process dispatches a message and returns its result
func (c *Client) Process(ctx context.Context, msg contracts.Message, opts ...messaging.ContextOption) (interface{}, error) {
	return c.processor.Process(ctx, msg, opts...)
}

// Send dispatches a command, discarding its result
func (c *Client) Send(ctx context.Context, cmd contracts.Command, opts ...messaging.ContextOption) error {
	_, err := c.processor.Process(ctx, cmd, opts...)
	return err
}

// Publish dispatches an event to all of its handlers
func (c *Client) Publish(ctx context.Context, event contracts.Event, opts ...messaging.ContextOption) error {
	_, err := c.processor.Process(ctx, event, opts...)
	return err
}

// Query dispatches a query and returns its typed reply
func Query[R any](ctx context.Context, c *Client, query contracts.Message, opts ...messaging.ContextOption) (R, error) {
	return messaging.Process[R](ctx, c.processor, query, opts...)
}

// Processor returns the message processor
func (c *Client) Processor() *messaging.MessageProcessor {
	return c.processor
}

// Resolver returns the message name resolver
func (c *Client) Resolver() *naming.Resolver {
	return c.resolver
}

// Metrics returns the dispatch metrics, or nil when disabled
func (c *Client) Metrics() *metrics.DispatchMetrics {
	return c.metrics
}

// Validator returns the schema validator, or nil when validation is disabled
func (c *Client) Validator() *schema.Validator {
	return c.validator
}

// CircuitBreaker returns the dispatch circuit breaker, or nil when disabled
func (c *Client) CircuitBreaker() *reliability.CircuitBreaker {
	return c.breaker
}

// Health returns the health check registry
func (c *Client) Health() *health.Registry {
	return c.health
}

// Routes describes how every registered message is dispatched
func (c *Client) Routes() []messaging.Plan {
	return c.processor.Routes()
}

// Validate checks every registered message resolves to a valid route
func (c *Client) Validate() error {
	return c.processor.Validate()
}

// Close closes all resources
func (c *Client) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
