package messaging

import (
	"context"
	"fmt"
	"reflect"

	"github.com/glimte/mmate-dispatch/contracts"
)

// Next invokes the remainder of the pipeline
type Next func(ctx context.Context) (interface{}, error)

// Behavior wraps message processing. Calling next runs the inner
// behaviors and the handlers; its successful return value becomes the
// dispatch result unless the behavior returns something else.
type Behavior interface {
	// Invoke processes the message and calls next to continue the pipeline
	Invoke(ctx context.Context, mctx *MessagingContext, next Next) (interface{}, error)

	// Name returns the behavior name for logging and debugging
	Name() string
}

// BehaviorFunc is a function adapter for Behavior
type BehaviorFunc struct {
	name string
	fn   func(ctx context.Context, mctx *MessagingContext, next Next) (interface{}, error)
}

// NewBehaviorFunc creates a new function-based behavior
func NewBehaviorFunc(name string, fn func(ctx context.Context, mctx *MessagingContext, next Next) (interface{}, error)) *BehaviorFunc {
	return &BehaviorFunc{name: name, fn: fn}
}

// Invoke implements Behavior
func (b *BehaviorFunc) Invoke(ctx context.Context, mctx *MessagingContext, next Next) (interface{}, error) {
	return b.fn(ctx, mctx, next)
}

// Name implements Behavior
func (b *BehaviorFunc) Name() string {
	return b.name
}

// Hooks is the before/after form of a behavior
type Hooks interface {
	Before(ctx context.Context, mctx *MessagingContext) error
	After(ctx context.Context, mctx *MessagingContext) error
}

// NoopHooks can be embedded to implement only one of the hooks
type NoopHooks struct{}

// Before implements Hooks
func (NoopHooks) Before(context.Context, *MessagingContext) error { return nil }

// After implements Hooks
func (NoopHooks) After(context.Context, *MessagingContext) error { return nil }

// FromHooks builds a behavior running Before, the rest of the pipeline,
// then After. The result is read back from the context so After may
// replace it. After is skipped when an inner step fails or ctx ends
// while the inner steps run.
func FromHooks(name string, hooks Hooks) Behavior {
	return &hooksBehavior{name: name, hooks: hooks}
}

type hooksBehavior struct {
	name  string
	hooks Hooks
}

func (b *hooksBehavior) Invoke(ctx context.Context, mctx *MessagingContext, next Next) (interface{}, error) {
	if err := b.hooks.Before(ctx, mctx); err != nil {
		return nil, err
	}
	if _, err := next(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.hooks.After(ctx, mctx); err != nil {
		return nil, err
	}
	return mctx.Result(), nil
}

func (b *hooksBehavior) Name() string {
	return b.name
}

// BehaviorRegistration binds a behavior to the messages it applies to.
// An interface MessageType applies to every type implementing it.
type BehaviorRegistration struct {
	Metadata
	Behavior    Behavior
	MessageType reflect.Type
	MessageName string
}

// AppliesTo reports whether the behavior wraps dispatches of the given type and name
func (r BehaviorRegistration) AppliesTo(messageType reflect.Type, messageName string) bool {
	if r.MessageName != "" && r.MessageName != messageName {
		return false
	}
	if r.MessageType == nil {
		return true
	}
	if messageType == nil {
		return false
	}
	if r.MessageType == messageType {
		return true
	}
	if r.MessageType.Kind() == reflect.Interface {
		return messageType.Implements(r.MessageType) ||
			(messageType.Kind() != reflect.Ptr && reflect.PointerTo(messageType).Implements(r.MessageType))
	}
	return false
}

func (r BehaviorRegistration) validate() error {
	if r.Behavior == nil {
		return fmt.Errorf("%w: behavior %q is nil", ErrInvalidRegistration, r.Name)
	}
	return nil
}

// Use registers a behavior for every message
func Use(behavior Behavior, opts ...RegistrationOption) BehaviorRegistration {
	return newBehaviorRegistration(nil, behavior, opts)
}

// UseFor registers a behavior for messages of type M, or implementing M
// when M is an interface.
func UseFor[M any](behavior Behavior, opts ...RegistrationOption) BehaviorRegistration {
	return newBehaviorRegistration(contracts.TypeFor[M](), behavior, opts)
}

func newBehaviorRegistration(t reflect.Type, behavior Behavior, opts []RegistrationOption) BehaviorRegistration {
	o := applyRegistrationOptions(opts)
	if o.Name == "" && behavior != nil {
		o.Name = behavior.Name()
	}
	return BehaviorRegistration{
		Metadata:    o.Metadata,
		Behavior:    behavior,
		MessageType: t,
		MessageName: o.messageName,
	}
}
