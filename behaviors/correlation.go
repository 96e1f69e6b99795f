package behaviors

import (
	"context"

	"github.com/google/uuid"

	"github.com/glimte/mmate-dispatch/messaging"
)

// CorrelationIDKey is the context bag key holding the correlation id
const CorrelationIDKey = "correlationId"

// CorrelationBehavior makes sure every dispatch carries a correlation id.
// An id already on the message wins, then one in the context bag, then
// the parent dispatch's; otherwise a new one is generated.
type CorrelationBehavior struct{}

// NewCorrelationBehavior creates a new correlation behavior
func NewCorrelationBehavior() *CorrelationBehavior {
	return &CorrelationBehavior{}
}

// Invoke implements messaging.Behavior
func (b *CorrelationBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	msg := mctx.Message()
	correlationID := msg.GetCorrelationID()
	if correlationID == "" {
		correlationID, _ = mctx.GetString(CorrelationIDKey)
	}
	if correlationID == "" && mctx.Parent() != nil && mctx.Parent().Message() != nil {
		correlationID = mctx.Parent().Message().GetCorrelationID()
	}
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	if msg.GetCorrelationID() == "" {
		msg.SetCorrelationID(correlationID)
	}
	mctx.Set(CorrelationIDKey, correlationID)

	return next(ctx)
}

// Name implements messaging.Behavior
func (b *CorrelationBehavior) Name() string {
	return "CorrelationBehavior"
}
