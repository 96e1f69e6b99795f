package messaging

import (
	"context"
)

// Pipeline composes behaviors around a terminal step. The first
// behavior is the outermost: its before logic runs first and its after
// logic runs last.
type Pipeline struct {
	behaviors []Behavior
}

// NewPipeline creates a pipeline in the given order
func NewPipeline(behaviors ...Behavior) *Pipeline {
	return &Pipeline{behaviors: behaviors}
}

// Len returns the number of behaviors
func (p *Pipeline) Len() int {
	return len(p.behaviors)
}

// Execute runs the behaviors and the terminal step. Every successful
// hop stores its return value as the context result while its ctx is
// live. Cancellation is checked before each hop; once ctx is done no
// further step starts.
func (p *Pipeline) Execute(ctx context.Context, mctx *MessagingContext, terminal Next) (interface{}, error) {
	next := hop(mctx, terminal)

	// Build the chain in reverse order
	for i := len(p.behaviors) - 1; i >= 0; i-- {
		behavior := p.behaviors[i]
		inner := next
		next = hop(mctx, func(ctx context.Context) (interface{}, error) {
			return behavior.Invoke(ctx, mctx, inner)
		})
	}

	return next(ctx)
}

func hop(mctx *MessagingContext, step Next) Next {
	return func(ctx context.Context) (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := step(ctx)
		if err != nil {
			return nil, err
		}
		// A step outliving its context, such as one abandoned by a
		// timeout, must not overwrite the result of the dispatch.
		if ctx.Err() == nil {
			mctx.SetResult(result)
		}
		return result, nil
	}
}
