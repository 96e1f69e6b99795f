package behaviors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
)

// ErrorCoder maps an error to the code placed in an error reply
type ErrorCoder func(err error) string

// ErrorTranslationBehavior turns failures of query dispatches into a
// contracts.ErrorReply result. Commands and events keep their error.
// Cancellation is never translated: once the caller's context is done the
// failure propagates as is, while a deadline set by an inner
// TimeoutBehavior is still reported as a reply.
type ErrorTranslationBehavior struct {
	coder  ErrorCoder
	logger *slog.Logger
}

// NewErrorTranslationBehavior creates a new error translation behavior.
// A nil coder uses ErrorType.
func NewErrorTranslationBehavior(coder ErrorCoder, logger *slog.Logger) *ErrorTranslationBehavior {
	if coder == nil {
		coder = ErrorType
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ErrorTranslationBehavior{coder: coder, logger: logger}
}

// Invoke implements messaging.Behavior
func (b *ErrorTranslationBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	result, err := next(ctx)
	if err == nil {
		return result, nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || !contracts.Classify(mctx.Message()).Has(contracts.ShapeQuery) {
		return nil, err
	}

	reply := contracts.NewErrorReply(mctx.MessageName(), b.coder(err), err.Error())
	reply.CorrelationID = mctx.Message().GetCorrelationID()

	b.logger.Warn("translated query failure to error reply",
		"messageName", mctx.MessageName(),
		"errorCode", reply.ErrorCode,
		"error", err,
	)
	return reply, nil
}

// Name implements messaging.Behavior
func (b *ErrorTranslationBehavior) Name() string {
	return "ErrorTranslationBehavior"
}
