package messaging

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/naming"
	"github.com/google/uuid"
)

type contextKey string

const messagingContextKey contextKey = "mmate:dispatch:messaging-context"

// MessagingContext carries the state of one dispatch: the message, its
// resolved name, a shared value bag and the result produced so far.
// Behaviors and handlers of the same dispatch share a single instance.
type MessagingContext struct {
	id       string
	message  contracts.Message
	resolver *naming.Resolver
	logger   *slog.Logger
	parent   *MessagingContext

	mu        sync.RWMutex
	name      string
	values    map[string]interface{}
	result    interface{}
	hasResult bool
}

// ContextOption configures a MessagingContext before the pipeline runs
type ContextOption func(*MessagingContext)

// WithMessageName overrides the name the message resolves to
func WithMessageName(name string) ContextOption {
	return func(c *MessagingContext) {
		c.name = name
	}
}

// WithValue seeds a value into the context bag
func WithValue(key string, value interface{}) ContextOption {
	return func(c *MessagingContext) {
		c.values[key] = value
	}
}

// WithValues seeds several values into the context bag
func WithValues(values map[string]interface{}) ContextOption {
	return func(c *MessagingContext) {
		for k, v := range values {
			c.values[k] = v
		}
	}
}

// WithParent makes the new context inherit ambient data from parent
func WithParent(parent *MessagingContext) ContextOption {
	return func(c *MessagingContext) {
		c.Impersonate(parent)
	}
}

// NewMessagingContext creates the context for dispatching msg
func NewMessagingContext(msg contracts.Message, resolver *naming.Resolver, logger *slog.Logger, opts ...ContextOption) *MessagingContext {
	if resolver == nil {
		resolver = naming.NewResolver(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &MessagingContext{
		id:       uuid.New().String(),
		message:  msg,
		resolver: resolver,
		logger:   logger,
		values:   make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID uniquely identifies this dispatch
func (c *MessagingContext) ID() string {
	return c.id
}

// Message returns the message being dispatched
func (c *MessagingContext) Message() contracts.Message {
	return c.message
}

// Parent returns the context this one impersonates, if any
func (c *MessagingContext) Parent() *MessagingContext {
	return c.parent
}

// MessageName returns the name override if set, otherwise the name
// derived from the message.
func (c *MessagingContext) MessageName() string {
	c.mu.RLock()
	name := c.name
	c.mu.RUnlock()
	if name != "" {
		return name
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name == "" && c.message != nil {
		c.name = c.resolver.NameOf(c.message)
	}
	return c.name
}

// Logger returns a logger annotated with the dispatch identity
func (c *MessagingContext) Logger() *slog.Logger {
	return c.logger.With("dispatchId", c.id)
}

// Set stores a value in the context bag
func (c *MessagingContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get retrieves a value from the context bag
func (c *MessagingContext) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, exists := c.values[key]
	return value, exists
}

// GetString retrieves a string value from the context bag
func (c *MessagingContext) GetString(key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Delete removes a value from the context bag
func (c *MessagingContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Keys lists the bag keys in sorted order
func (c *MessagingContext) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Result returns the result produced so far, or nil
func (c *MessagingContext) Result() interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.result
}

// HasResult reports whether any step stored a result
func (c *MessagingContext) HasResult() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hasResult
}

// SetResult replaces the dispatch result. Behaviors call it from their
// after step to substitute what the caller receives.
func (c *MessagingContext) SetResult(result interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = result
	c.hasResult = true
}

// Impersonate copies ambient data from parent: bag entries missing here
// and the correlation id when the message has none. Results, names and
// identity stay local.
func (c *MessagingContext) Impersonate(parent *MessagingContext) {
	if parent == nil || parent == c {
		return
	}

	parent.mu.RLock()
	inherited := make(map[string]interface{}, len(parent.values))
	for k, v := range parent.values {
		inherited[k] = v
	}
	parent.mu.RUnlock()

	c.mu.Lock()
	for k, v := range inherited {
		if _, exists := c.values[k]; !exists {
			c.values[k] = v
		}
	}
	c.parent = parent
	c.mu.Unlock()

	if c.message != nil && parent.message != nil && c.message.GetCorrelationID() == "" {
		if correlationID := parent.message.GetCorrelationID(); correlationID != "" {
			c.message.SetCorrelationID(correlationID)
		}
	}
}

// NewContext returns a copy of ctx carrying mctx
func NewContext(ctx context.Context, mctx *MessagingContext) context.Context {
	return context.WithValue(ctx, messagingContextKey, mctx)
}

// FromContext returns the messaging context of the enclosing dispatch
func FromContext(ctx context.Context) (*MessagingContext, bool) {
	mctx, ok := ctx.Value(messagingContextKey).(*MessagingContext)
	return mctx, ok && mctx != nil
}
