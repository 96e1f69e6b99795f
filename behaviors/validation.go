package behaviors

import (
	"context"
	"fmt"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
)

// MessageValidator defines the interface for message validation
type MessageValidator interface {
	Validate(ctx context.Context, msg contracts.Message) error
}

// NamedValidator validates a message against the schema of an explicit name
type NamedValidator interface {
	ValidateNamed(ctx context.Context, messageName string, msg contracts.Message) error
}

// ValidationBehavior validates messages before processing
type ValidationBehavior struct {
	validator MessageValidator
}

// NewValidationBehavior creates a new validation behavior
func NewValidationBehavior(validator MessageValidator) *ValidationBehavior {
	return &ValidationBehavior{validator: validator}
}

// Invoke implements messaging.Behavior. Validators that support names
// are given the dispatch name so name overrides pick the right schema.
func (b *ValidationBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	var err error
	if named, ok := b.validator.(NamedValidator); ok {
		err = named.ValidateNamed(ctx, mctx.MessageName(), mctx.Message())
	} else {
		err = b.validator.Validate(ctx, mctx.Message())
	}
	if err != nil {
		return nil, fmt.Errorf("message validation failed: %w", err)
	}

	return next(ctx)
}

// Name implements messaging.Behavior
func (b *ValidationBehavior) Name() string {
	return "ValidationBehavior"
}
