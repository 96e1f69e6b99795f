package messaging

import (
	"context"
	"fmt"
	"reflect"

	"github.com/glimte/mmate-dispatch/contracts"
)

// MessageHandler processes a dispatched message and returns its result
type MessageHandler interface {
	Handle(ctx context.Context, msg contracts.Message, mctx *MessagingContext) (interface{}, error)
}

// MessageHandlerFunc is a function adapter for MessageHandler
type MessageHandlerFunc func(ctx context.Context, msg contracts.Message, mctx *MessagingContext) (interface{}, error)

// Handle implements MessageHandler
func (f MessageHandlerFunc) Handle(ctx context.Context, msg contracts.Message, mctx *MessagingContext) (interface{}, error) {
	return f(ctx, msg, mctx)
}

// CommandHandlerFunc handles commands that produce no result
type CommandHandlerFunc func(ctx context.Context, cmd contracts.Command) error

// Handle implements MessageHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, msg contracts.Message, _ *MessagingContext) (interface{}, error) {
	cmd, ok := msg.(contracts.Command)
	if !ok {
		return nil, fmt.Errorf("expected Command, got %T", msg)
	}
	if err := f(ctx, cmd); err != nil {
		return nil, err
	}
	return contracts.Empty{}, nil
}

// EventHandlerFunc handles events
type EventHandlerFunc func(ctx context.Context, event contracts.Event) error

// Handle implements MessageHandler
func (f EventHandlerFunc) Handle(ctx context.Context, msg contracts.Message, _ *MessagingContext) (interface{}, error) {
	event, ok := msg.(contracts.Event)
	if !ok {
		return nil, fmt.Errorf("expected Event, got %T", msg)
	}
	if err := f(ctx, event); err != nil {
		return nil, err
	}
	return contracts.Empty{}, nil
}

// QueryHandlerFunc answers queries with a reply
type QueryHandlerFunc func(ctx context.Context, query contracts.Query) (contracts.Reply, error)

// Handle implements MessageHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, msg contracts.Message, _ *MessagingContext) (interface{}, error) {
	query, ok := msg.(contracts.Query)
	if !ok {
		return nil, fmt.Errorf("expected Query, got %T", msg)
	}
	reply, err := f(ctx, query)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// NewHandler adapts a typed function into a MessageHandler. M may be a
// message type or the payload type carried by a message adapter.
func NewHandler[M any, R any](fn func(ctx context.Context, msg M, mctx *MessagingContext) (R, error)) MessageHandler {
	return MessageHandlerFunc(func(ctx context.Context, msg contracts.Message, mctx *MessagingContext) (interface{}, error) {
		typed, ok := extract[M](msg)
		if !ok {
			var zero M
			return nil, fmt.Errorf("expected %s, got %T", reflect.TypeOf(&zero).Elem(), msg)
		}
		return fn(ctx, typed, mctx)
	})
}

func extract[M any](msg contracts.Message) (M, bool) {
	if typed, ok := any(msg).(M); ok {
		return typed, true
	}
	var zero M
	adapter, ok := msg.(contracts.MessageAdapter)
	if !ok {
		return zero, false
	}
	payload := adapter.GetPayload()
	if typed, ok := payload.(M); ok {
		return typed, true
	}
	rv := reflect.ValueOf(payload)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		if typed, ok := rv.Elem().Interface().(M); ok {
			return typed, true
		}
	}
	return zero, false
}

// HandlerRegistration binds a handler factory to the messages it serves.
// A nil MessageType matches any type; an empty MessageName matches any name.
type HandlerRegistration struct {
	Metadata
	MessageType reflect.Type
	MessageName string
	Factory     func() MessageHandler
}

// Matches reports whether the registration serves the given type and name
func (r HandlerRegistration) Matches(messageType reflect.Type, messageName string) bool {
	if r.MessageType != nil && r.MessageType != messageType {
		return false
	}
	if r.MessageName != "" && r.MessageName != messageName {
		return false
	}
	return true
}

// Index is the registration order assigned by the builder
func (r HandlerRegistration) Index() int {
	return r.index
}

func (r HandlerRegistration) validate() error {
	if r.Factory == nil {
		return fmt.Errorf("%w: handler %q has no factory", ErrInvalidRegistration, r.Name)
	}
	if r.MessageType == nil && r.MessageName == "" {
		return fmt.Errorf("%w: handler %q matches neither a type nor a name", ErrInvalidRegistration, r.Name)
	}
	return nil
}

// Handle registers a shared handler instance for message type M
func Handle[M any](handler MessageHandler, opts ...RegistrationOption) HandlerRegistration {
	return newHandlerRegistration(contracts.TypeFor[M](), fmt.Sprintf("%T", handler), func() MessageHandler { return handler }, opts)
}

// HandleFactory registers a factory creating a handler per dispatch for M
func HandleFactory[M any](factory func() MessageHandler, opts ...RegistrationOption) HandlerRegistration {
	t := contracts.TypeFor[M]()
	return newHandlerRegistration(t, "factory:"+t.String(), factory, opts)
}

// HandleFunc registers a typed function for message type M
func HandleFunc[M any, R any](fn func(ctx context.Context, msg M, mctx *MessagingContext) (R, error), opts ...RegistrationOption) HandlerRegistration {
	t := contracts.TypeFor[M]()
	handler := NewHandler(fn)
	return newHandlerRegistration(t, "func:"+t.String(), func() MessageHandler { return handler }, opts)
}

// HandleName registers a handler for every message resolving to name
func HandleName(name string, handler MessageHandler, opts ...RegistrationOption) HandlerRegistration {
	reg := newHandlerRegistration(nil, fmt.Sprintf("%T", handler), func() MessageHandler { return handler }, opts)
	reg.MessageName = name
	return reg
}

func newHandlerRegistration(t reflect.Type, defaultName string, factory func() MessageHandler, opts []RegistrationOption) HandlerRegistration {
	o := applyRegistrationOptions(opts)
	if o.Name == "" {
		o.Name = defaultName
	}
	return HandlerRegistration{
		Metadata:    o.Metadata,
		MessageType: t,
		MessageName: o.messageName,
		Factory:     factory,
	}
}
