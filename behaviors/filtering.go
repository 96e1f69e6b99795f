package behaviors

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
)

// MessageFilter defines the interface for message filtering
type MessageFilter interface {
	// ShouldProcess returns true if the message should be processed
	ShouldProcess(ctx context.Context, mctx *messaging.MessagingContext) (bool, error)
}

// MessageFilterFunc is a function adapter for MessageFilter
type MessageFilterFunc func(ctx context.Context, mctx *messaging.MessagingContext) (bool, error)

// ShouldProcess implements MessageFilter
func (f MessageFilterFunc) ShouldProcess(ctx context.Context, mctx *messaging.MessagingContext) (bool, error) {
	return f(ctx, mctx)
}

// SkipBehavior defines what happens when a message is filtered out
type SkipBehavior int

const (
	// SkipSilently skips the message without error
	SkipSilently SkipBehavior = iota
	// SkipWithError returns a *FilteredError when message is filtered
	SkipWithError
	// SkipWithLog logs that the message was skipped
	SkipWithLog
)

// FilteredError is returned by SkipWithError filtering
type FilteredError struct {
	MessageName string
	MessageID   string
}

func (e *FilteredError) Error() string {
	return fmt.Sprintf("message filtered: name=%s, id=%s", e.MessageName, e.MessageID)
}

// FilteringBehavior stops messages a filter rejects. A skipped dispatch
// yields a nil result.
type FilteringBehavior struct {
	filter       MessageFilter
	skipBehavior SkipBehavior
	logger       *slog.Logger
}

// NewFilteringBehavior creates a new filtering behavior
func NewFilteringBehavior(filter MessageFilter, skipBehavior SkipBehavior, logger *slog.Logger) *FilteringBehavior {
	if logger == nil {
		logger = slog.Default()
	}

	return &FilteringBehavior{
		filter:       filter,
		skipBehavior: skipBehavior,
		logger:       logger,
	}
}

// Invoke implements messaging.Behavior
func (b *FilteringBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	shouldProcess, err := b.filter.ShouldProcess(ctx, mctx)
	if err != nil {
		return nil, fmt.Errorf("filter error: %w", err)
	}

	if !shouldProcess {
		switch b.skipBehavior {
		case SkipWithError:
			return nil, &FilteredError{MessageName: mctx.MessageName(), MessageID: mctx.Message().GetID()}
		case SkipWithLog:
			b.logger.Info("message skipped by filter",
				"messageId", mctx.Message().GetID(),
				"messageName", mctx.MessageName(),
			)
		}
		return nil, nil
	}

	return next(ctx)
}

// Name implements messaging.Behavior
func (b *FilteringBehavior) Name() string {
	return "FilteringBehavior"
}

// CompositeFilter combines multiple filters with AND logic
type CompositeFilter struct {
	filters []MessageFilter
}

// NewCompositeFilter creates a new composite filter
func NewCompositeFilter(filters ...MessageFilter) *CompositeFilter {
	return &CompositeFilter{filters: filters}
}

// ShouldProcess implements MessageFilter - all filters must return true
func (f *CompositeFilter) ShouldProcess(ctx context.Context, mctx *messaging.MessagingContext) (bool, error) {
	for _, filter := range f.filters {
		shouldProcess, err := filter.ShouldProcess(ctx, mctx)
		if err != nil {
			return false, err
		}
		if !shouldProcess {
			return false, nil
		}
	}
	return true, nil
}

// OrFilter combines multiple filters with OR logic
type OrFilter struct {
	filters []MessageFilter
}

// NewOrFilter creates a new OR filter
func NewOrFilter(filters ...MessageFilter) *OrFilter {
	return &OrFilter{filters: filters}
}

// ShouldProcess implements MessageFilter - at least one filter must return true
func (f *OrFilter) ShouldProcess(ctx context.Context, mctx *messaging.MessagingContext) (bool, error) {
	for _, filter := range f.filters {
		shouldProcess, err := filter.ShouldProcess(ctx, mctx)
		if err != nil {
			return false, err
		}
		if shouldProcess {
			return true, nil
		}
	}
	return false, nil
}

// NotFilter inverts a filter
func NotFilter(filter MessageFilter) MessageFilter {
	return MessageFilterFunc(func(ctx context.Context, mctx *messaging.MessagingContext) (bool, error) {
		ok, err := filter.ShouldProcess(ctx, mctx)
		return !ok && err == nil, err
	})
}

// MessageNameFilter filters messages by their dispatch name
type MessageNameFilter struct {
	allowedNames map[string]bool
}

// NewMessageNameFilter creates a filter that only allows specific message names
func NewMessageNameFilter(allowedNames ...string) *MessageNameFilter {
	nameMap := make(map[string]bool)
	for _, n := range allowedNames {
		nameMap[n] = true
	}
	return &MessageNameFilter{allowedNames: nameMap}
}

// ShouldProcess implements MessageFilter
func (f *MessageNameFilter) ShouldProcess(_ context.Context, mctx *messaging.MessagingContext) (bool, error) {
	return f.allowedNames[mctx.MessageName()], nil
}

// ShapeFilter filters messages by classification, e.g. only queries
type ShapeFilter struct {
	shape contracts.Shape
}

// NewShapeFilter creates a filter that allows messages having all tags of shape
func NewShapeFilter(shape contracts.Shape) *ShapeFilter {
	return &ShapeFilter{shape: shape}
}

// ShouldProcess implements MessageFilter
func (f *ShapeFilter) ShouldProcess(_ context.Context, mctx *messaging.MessagingContext) (bool, error) {
	return contracts.Classify(mctx.Message()).Has(f.shape), nil
}

// ContextValueFilter filters based on values in the messaging context bag
type ContextValueFilter struct {
	key           string
	expectedValue interface{}
}

// NewContextValueFilter creates a filter that checks context values
func NewContextValueFilter(key string, expectedValue interface{}) *ContextValueFilter {
	return &ContextValueFilter{
		key:           key,
		expectedValue: expectedValue,
	}
}

// ShouldProcess implements MessageFilter
func (f *ContextValueFilter) ShouldProcess(_ context.Context, mctx *messaging.MessagingContext) (bool, error) {
	value, exists := mctx.Get(f.key)
	if !exists {
		return false, nil
	}

	return value == f.expectedValue, nil
}

// ConditionalBehavior executes a behavior only if a condition is met
type ConditionalBehavior struct {
	condition MessageFilter
	behavior  messaging.Behavior
}

// NewConditionalBehavior creates a new conditional behavior
func NewConditionalBehavior(condition MessageFilter, behavior messaging.Behavior) *ConditionalBehavior {
	return &ConditionalBehavior{
		condition: condition,
		behavior:  behavior,
	}
}

// Invoke implements messaging.Behavior
func (b *ConditionalBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	shouldExecute, err := b.condition.ShouldProcess(ctx, mctx)
	if err != nil {
		return nil, err
	}

	if shouldExecute {
		return b.behavior.Invoke(ctx, mctx, next)
	}

	return next(ctx)
}

// Name implements messaging.Behavior
func (b *ConditionalBehavior) Name() string {
	return fmt.Sprintf("ConditionalBehavior[%s]", b.behavior.Name())
}
