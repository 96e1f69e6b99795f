package behaviors

import (
	"context"
	"fmt"
	"time"

	"github.com/glimte/mmate-dispatch/messaging"
)

// TimeoutBehavior bounds the processing time of the inner pipeline. On
// timeout the inner pipeline keeps running in the background until its
// steps observe the cancelled context; its late results are discarded
// and never stored as the dispatch result.
type TimeoutBehavior struct {
	timeout time.Duration
}

// NewTimeoutBehavior creates a new timeout behavior
func NewTimeoutBehavior(timeout time.Duration) *TimeoutBehavior {
	return &TimeoutBehavior{timeout: timeout}
}

type outcome struct {
	result interface{}
	err    error
}

// Invoke implements messaging.Behavior
func (b *TimeoutBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	if b.timeout <= 0 {
		return next(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		result, err := next(timeoutCtx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("message processing timeout after %v for message %s: %w",
			b.timeout, mctx.MessageName(), context.DeadlineExceeded)
	}
}

// Name implements messaging.Behavior
func (b *TimeoutBehavior) Name() string {
	return "TimeoutBehavior"
}
