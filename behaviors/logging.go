package behaviors

import (
	"context"
	"log/slog"
	"time"

	"github.com/glimte/mmate-dispatch/messaging"
)

// LoggingBehavior logs message processing
type LoggingBehavior struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLoggingBehavior creates a new logging behavior. Successful dispatches
// are logged at Info, failures at Error.
func NewLoggingBehavior(logger *slog.Logger) *LoggingBehavior {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingBehavior{logger: logger, level: slog.LevelInfo}
}

// WithLevel sets the level used for successful dispatches
func (b *LoggingBehavior) WithLevel(level slog.Level) *LoggingBehavior {
	b.level = level
	return b
}

// Invoke implements messaging.Behavior
func (b *LoggingBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	start := time.Now()
	msg := mctx.Message()

	b.logger.Log(ctx, b.level, "processing message",
		"messageId", msg.GetID(),
		"messageName", mctx.MessageName(),
		"correlationId", msg.GetCorrelationID(),
		"dispatchId", mctx.ID(),
	)

	result, err := next(ctx)
	duration := time.Since(start)

	if err != nil {
		b.logger.Error("message processing failed",
			"messageId", msg.GetID(),
			"messageName", mctx.MessageName(),
			"duration", duration,
			"error", err,
		)
		return nil, err
	}

	b.logger.Log(ctx, b.level, "message processed successfully",
		"messageId", msg.GetID(),
		"messageName", mctx.MessageName(),
		"duration", duration,
	)
	return result, nil
}

// Name implements messaging.Behavior
func (b *LoggingBehavior) Name() string {
	return "LoggingBehavior"
}
