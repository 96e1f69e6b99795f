package behaviors

import (
	"context"
	"fmt"
	"time"

	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/resultcache"
)

// ShortCircuitEvaluator determines if the pipeline should stop before the
// handlers. When it does, result becomes the dispatch result.
type ShortCircuitEvaluator interface {
	ShouldShortCircuit(ctx context.Context, mctx *messaging.MessagingContext) (bool, interface{}, error)
}

// ShortCircuitEvaluatorFunc is a function adapter for ShortCircuitEvaluator
type ShortCircuitEvaluatorFunc func(ctx context.Context, mctx *messaging.MessagingContext) (bool, interface{}, error)

// ShouldShortCircuit implements ShortCircuitEvaluator
func (f ShortCircuitEvaluatorFunc) ShouldShortCircuit(ctx context.Context, mctx *messaging.MessagingContext) (bool, interface{}, error) {
	return f(ctx, mctx)
}

// ShortCircuitBehavior can skip the rest of the pipeline based on conditions
type ShortCircuitBehavior struct {
	evaluator ShortCircuitEvaluator
}

// NewShortCircuitBehavior creates a new short-circuit behavior
func NewShortCircuitBehavior(evaluator ShortCircuitEvaluator) *ShortCircuitBehavior {
	return &ShortCircuitBehavior{evaluator: evaluator}
}

// Invoke implements messaging.Behavior
func (b *ShortCircuitBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	shouldShortCircuit, result, err := b.evaluator.ShouldShortCircuit(ctx, mctx)
	if err != nil {
		return nil, err
	}

	if shouldShortCircuit {
		return result, nil
	}

	return next(ctx)
}

// Name implements messaging.Behavior
func (b *ShortCircuitBehavior) Name() string {
	return "ShortCircuitBehavior"
}

// DuplicateDetector defines the interface for duplicate detection
type DuplicateDetector interface {
	IsDuplicate(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
}

// StoreDuplicateDetector records processed message ids in a result store
type StoreDuplicateDetector struct {
	store resultcache.Store
	ttl   time.Duration
}

// NewStoreDuplicateDetector creates a detector remembering ids for ttl
func NewStoreDuplicateDetector(store resultcache.Store, ttl time.Duration) *StoreDuplicateDetector {
	return &StoreDuplicateDetector{store: store, ttl: ttl}
}

func (d *StoreDuplicateDetector) key(messageID string) string {
	return "processed:" + messageID
}

// IsDuplicate implements DuplicateDetector
func (d *StoreDuplicateDetector) IsDuplicate(ctx context.Context, messageID string) (bool, error) {
	_, found, err := d.store.Get(ctx, d.key(messageID))
	return found, err
}

// MarkProcessed implements DuplicateDetector
func (d *StoreDuplicateDetector) MarkProcessed(ctx context.Context, messageID string) error {
	return d.store.Set(ctx, d.key(messageID), []byte{1}, d.ttl)
}

// DuplicateDetectionBehavior prevents duplicate message processing. A
// duplicate yields a nil result.
type DuplicateDetectionBehavior struct {
	detector DuplicateDetector
}

// NewDuplicateDetectionBehavior creates a new duplicate detection behavior
func NewDuplicateDetectionBehavior(detector DuplicateDetector) *DuplicateDetectionBehavior {
	return &DuplicateDetectionBehavior{detector: detector}
}

// Invoke implements messaging.Behavior
func (b *DuplicateDetectionBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	messageID := mctx.Message().GetID()
	if messageID == "" {
		return next(ctx)
	}

	isDuplicate, err := b.detector.IsDuplicate(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	if isDuplicate {
		mctx.Logger().Debug("duplicate message skipped", "messageId", messageID)
		return nil, nil
	}

	result, err := next(ctx)
	if err != nil {
		return nil, err
	}

	if err := b.detector.MarkProcessed(ctx, messageID); err != nil {
		return nil, fmt.Errorf("failed to mark message processed: %w", err)
	}
	return result, nil
}

// Name implements messaging.Behavior
func (b *DuplicateDetectionBehavior) Name() string {
	return "DuplicateDetectionBehavior"
}
