package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/naming"
	"golang.org/x/sync/errgroup"
)

// EventMode controls how fan-out handlers run
type EventMode int

const (
	// EventModeSequential runs handlers one after another and stops at
	// the first failure
	EventModeSequential EventMode = iota

	// EventModeConcurrent runs handlers in parallel; the first failure
	// cancels the context of the others
	EventModeConcurrent
)

func (m EventMode) String() string {
	switch m {
	case EventModeSequential:
		return "sequential"
	case EventModeConcurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("EventMode(%d)", int(m))
	}
}

// ParseEventMode parses "sequential" or "concurrent"
func ParseEventMode(s string) (EventMode, error) {
	switch s {
	case "", "sequential":
		return EventModeSequential, nil
	case "concurrent":
		return EventModeConcurrent, nil
	default:
		return EventModeSequential, fmt.Errorf("unknown event mode %q", s)
	}
}

// MessageProcessor is the dispatch entry point. It resolves the message
// name, picks the selector that owns the message, wraps the handlers in
// the applicable behaviors and runs the result.
type MessageProcessor struct {
	registry  *Registry
	resolver  *naming.Resolver
	logger    *slog.Logger
	eventMode EventMode

	selection lazyCache[dispatchKey, *SelectorRegistration]
	pipelines lazyCache[dispatchKey, []BehaviorRegistration]
}

// ProcessorOption configures the MessageProcessor
type ProcessorOption func(*MessageProcessor)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *MessageProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithResolver sets the message name resolver
func WithResolver(resolver *naming.Resolver) ProcessorOption {
	return func(p *MessageProcessor) {
		if resolver != nil {
			p.resolver = resolver
		}
	}
}

// WithEventMode sets how fan-out handlers run
func WithEventMode(mode EventMode) ProcessorOption {
	return func(p *MessageProcessor) {
		p.eventMode = mode
	}
}

// NewMessageProcessor creates a processor over a built registry
func NewMessageProcessor(registry *Registry, options ...ProcessorOption) *MessageProcessor {
	if registry == nil {
		registry, _ = NewRegistryBuilder().Build()
	}
	p := &MessageProcessor{
		registry: registry,
		resolver: naming.NewResolver(nil, nil),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Registry returns the registry the processor dispatches with
func (p *MessageProcessor) Registry() *Registry {
	return p.registry
}

// Resolver returns the message name resolver
func (p *MessageProcessor) Resolver() *naming.Resolver {
	return p.resolver
}

// Process implements Dispatcher
func (p *MessageProcessor) Process(ctx context.Context, msg contracts.Message, opts ...ContextOption) (interface{}, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	mctx := NewMessagingContext(msg, p.resolver, p.logger, opts...)
	messageType := contracts.TypeOf(msg)
	messageName := mctx.MessageName()
	logger := mctx.Logger().With("messageType", typeName(messageType), "messageName", messageName)

	selected := p.selectorFor(messageType, messageName)
	if selected == nil {
		err := &ConfigurationError{Op: "select handlers", MessageType: messageType, MessageName: messageName, Err: ErrNoSelector}
		logger.Error("no selector for message", "error", err)
		return nil, err
	}

	factory := selected.Selector.GetHandlersFactory(messageType, messageName)
	fanOut := false
	if f, ok := selected.Selector.(FanOutSelector); ok {
		fanOut = f.FanOut()
	}

	terminal := func(ctx context.Context) (interface{}, error) {
		handlers, err := factory()
		if err != nil {
			return nil, err
		}
		if fanOut {
			return p.fanOut(ctx, msg, mctx, handlers)
		}
		return p.single(ctx, msg, mctx, handlers, messageType, messageName)
	}

	behaviors := p.behaviorsFor(messageType, messageName)
	pipeline := make([]Behavior, len(behaviors))
	for i, reg := range behaviors {
		pipeline[i] = reg.Behavior
	}

	logger.Debug("dispatching message",
		"messageId", msg.GetID(),
		"selector", selected.Name,
		"behaviors", len(pipeline),
	)

	result, err := NewPipeline(pipeline...).Execute(NewContext(ctx, mctx), mctx, terminal)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("message processing cancelled", "error", err)
		} else {
			logger.Error("message processing failed", "error", err, "duration", time.Since(start))
		}
		return nil, err
	}

	logger.Debug("message processed", "duration", time.Since(start))
	return result, nil
}

func (p *MessageProcessor) single(ctx context.Context, msg contracts.Message, mctx *MessagingContext, handlers []MessageHandler, messageType reflect.Type, messageName string) (interface{}, error) {
	switch len(handlers) {
	case 0:
		return nil, &MissingHandlerError{MessageType: messageType, MessageName: messageName}
	case 1:
		return handlers[0].Handle(ctx, msg, mctx)
	default:
		return nil, &AmbiguousHandlerError{MessageType: messageType, MessageName: messageName, Candidates: handlerNames(handlers)}
	}
}

func (p *MessageProcessor) fanOut(ctx context.Context, msg contracts.Message, mctx *MessagingContext, handlers []MessageHandler) (interface{}, error) {
	if p.eventMode == EventModeConcurrent && len(handlers) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for _, handler := range handlers {
			handler := handler
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, err := handler.Handle(gctx, msg, mctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return contracts.Empty{}, nil
	}

	for _, handler := range handlers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := handler.Handle(ctx, msg, mctx); err != nil {
			return nil, err
		}
	}
	return contracts.Empty{}, nil
}

// selectorFor returns the first selector claiming the message, or nil
func (p *MessageProcessor) selectorFor(messageType reflect.Type, messageName string) *SelectorRegistration {
	selectFirst := func() *SelectorRegistration {
		for _, reg := range p.registry.selectors {
			if reg.Selector.CanHandle(messageType, messageName) {
				reg := reg
				return &reg
			}
		}
		return nil
	}

	// Custom selectors may claim by any name, so only names the registry
	// or the resolver produce are cached.
	if !p.stableName(messageType, messageName) {
		return selectFirst()
	}
	key := dispatchKey{messageType: messageType, messageName: messageName}
	return p.selection.get(key, selectFirst)
}

// stableName reports whether name comes from the registrations or the
// resolver rather than from the individual dispatch
func (p *MessageProcessor) stableName(messageType reflect.Type, messageName string) bool {
	if messageName == "" || p.registry.knowsName(messageName) {
		return true
	}
	return messageType != nil && p.resolver.NameFor(messageType) == messageName
}

// behaviorsFor returns the behaviors wrapping the message, outermost first
func (p *MessageProcessor) behaviorsFor(messageType reflect.Type, messageName string) []BehaviorRegistration {
	key := p.registry.matchKey(messageType, messageName)
	return p.pipelines.get(key, func() []BehaviorRegistration {
		var out []BehaviorRegistration
		for _, reg := range p.registry.behaviors {
			if reg.AppliesTo(key.messageType, key.messageName) {
				out = append(out, reg)
			}
		}
		return out
	})
}

func handlerNames(handlers []MessageHandler) []string {
	names := make([]string, len(handlers))
	for i, h := range handlers {
		names[i] = fmt.Sprintf("%T", h)
	}
	return names
}
