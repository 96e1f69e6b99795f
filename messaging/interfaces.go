package messaging

import (
	"context"
	"fmt"
	"reflect"

	"github.com/glimte/mmate-dispatch/contracts"
)

// Dispatcher processes messages through the behavior pipeline
type Dispatcher interface {
	// Process dispatches msg and returns the handler result
	Process(ctx context.Context, msg contracts.Message, opts ...ContextOption) (interface{}, error)
}

// DispatcherFunc is a function adapter for Dispatcher
type DispatcherFunc func(ctx context.Context, msg contracts.Message, opts ...ContextOption) (interface{}, error)

// Process implements Dispatcher
func (f DispatcherFunc) Process(ctx context.Context, msg contracts.Message, opts ...ContextOption) (interface{}, error) {
	return f(ctx, msg, opts...)
}

// Process dispatches msg and converts the result to R. A nil result
// yields the zero value of R.
func Process[R any](ctx context.Context, d Dispatcher, msg contracts.Message, opts ...ContextOption) (R, error) {
	var zero R
	result, err := d.Process(ctx, msg, opts...)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("unexpected result type %T, want %s", result, reflect.TypeOf(&zero).Elem())
	}
	return typed, nil
}
