package behaviors

import (
	"context"
	"log/slog"
	"time"

	"github.com/glimte/mmate-dispatch/internal/reliability"
	"github.com/glimte/mmate-dispatch/messaging"
)

// RetryBehavior re-runs the inner pipeline according to a retry policy.
// Resolution and configuration errors are never retried.
type RetryBehavior struct {
	retryPolicy reliability.RetryPolicy
	logger      *slog.Logger
}

// NewRetryBehavior creates a new retry behavior
func NewRetryBehavior(retryPolicy reliability.RetryPolicy) *RetryBehavior {
	return &RetryBehavior{
		retryPolicy: retryPolicy,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger for the retry behavior
func (b *RetryBehavior) WithLogger(logger *slog.Logger) *RetryBehavior {
	b.logger = logger
	return b
}

// Invoke implements messaging.Behavior
func (b *RetryBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	return reliability.Do(ctx, b.retryPolicy, func(ctx context.Context) (interface{}, error) {
		return next(ctx)
	},
		reliability.WithRetryIf(retryable),
		reliability.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			b.logger.Warn("retrying message processing",
				"messageName", mctx.MessageName(),
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
		}),
	)
}

// Name implements messaging.Behavior
func (b *RetryBehavior) Name() string {
	return "RetryBehavior"
}

func retryable(err error) bool {
	if messaging.IsResolutionError(err) || messaging.IsConfigurationError(err) {
		return false
	}
	return reliability.IsRetryable(err)
}
