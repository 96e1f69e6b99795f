package behaviors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/resultcache"
)

func TestShortCircuitBehavior(t *testing.T) {
	t.Run("returns the evaluator result without running handlers", func(t *testing.T) {
		calls := &callCounter{}
		evaluator := ShortCircuitEvaluatorFunc(func(context.Context, *messaging.MessagingContext) (bool, interface{}, error) {
			return true, "from evaluator", nil
		})
		processor := newProcessor([]messaging.HandlerRegistration{placeOrderHandler(func(context.Context, *PlaceOrder) (string, error) {
			calls.inc()
			return "accepted", nil
		})}, NewShortCircuitBehavior(evaluator))

		result, err := processor.Process(context.Background(), newPlaceOrder("1"))

		require.NoError(t, err)
		assert.Equal(t, "from evaluator", result)
		assert.Equal(t, 0, calls.get())
	})

	t.Run("propagates evaluator errors", func(t *testing.T) {
		evaluator := ShortCircuitEvaluatorFunc(func(context.Context, *messaging.MessagingContext) (bool, interface{}, error) {
			return false, nil, errors.New("unavailable")
		})
		processor := newProcessor([]messaging.HandlerRegistration{placeOrderHandler(accepted)}, NewShortCircuitBehavior(evaluator))

		_, err := processor.Process(context.Background(), newPlaceOrder("1"))

		assert.EqualError(t, err, "unavailable")
	})
}

func TestDuplicateDetectionBehavior(t *testing.T) {
	t.Run("processes each message id once", func(t *testing.T) {
		calls := &callCounter{}
		detector := NewStoreDuplicateDetector(resultcache.NewMemoryStore(), time.Minute)
		processor := newProcessor([]messaging.HandlerRegistration{placeOrderHandler(func(context.Context, *PlaceOrder) (string, error) {
			calls.inc()
			return "accepted", nil
		})}, NewDuplicateDetectionBehavior(detector))
		cmd := newPlaceOrder("1")

		first, err := processor.Process(context.Background(), cmd)
		require.NoError(t, err)
		second, err := processor.Process(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, "accepted", first)
		assert.Nil(t, second)
		assert.Equal(t, 1, calls.get())
	})

	t.Run("does not mark failed messages", func(t *testing.T) {
		detector := NewStoreDuplicateDetector(resultcache.NewMemoryStore(), time.Minute)
		processor := newProcessor([]messaging.HandlerRegistration{placeOrderHandler(func(context.Context, *PlaceOrder) (string, error) {
			return "", errors.New("failed")
		})}, NewDuplicateDetectionBehavior(detector))
		cmd := newPlaceOrder("1")

		_, err := processor.Process(context.Background(), cmd)
		require.Error(t, err)

		duplicate, err := detector.IsDuplicate(context.Background(), cmd.GetID())
		require.NoError(t, err)
		assert.False(t, duplicate)
	})
}

func TestCachingBehavior(t *testing.T) {
	t.Run("serves repeated queries from the store", func(t *testing.T) {
		calls := &callCounter{}
		store := resultcache.NewMemoryStore()
		processor := newProcessor([]messaging.HandlerRegistration{orderViewHandler(calls)}, NewCachingBehavior(store, time.Minute))

		first, err := processor.Process(context.Background(), newGetOrder("9"))
		require.NoError(t, err)
		second, err := processor.Process(context.Background(), newGetOrder("9"))
		require.NoError(t, err)

		assert.Equal(t, 1, calls.get())
		assert.Equal(t, &OrderView{OrderID: "9", Status: "placed"}, first)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("keys by content", func(t *testing.T) {
		calls := &callCounter{}
		processor := newProcessor([]messaging.HandlerRegistration{orderViewHandler(calls)}, NewCachingBehavior(resultcache.NewMemoryStore(), time.Minute))

		_, err := processor.Process(context.Background(), newGetOrder("1"))
		require.NoError(t, err)
		_, err = processor.Process(context.Background(), newGetOrder("2"))
		require.NoError(t, err)

		assert.Equal(t, 2, calls.get())
	})

	t.Run("skips messages without a response type", func(t *testing.T) {
		store := resultcache.NewMemoryStore()
		processor := newProcessor([]messaging.HandlerRegistration{placeOrderHandler(accepted)}, NewCachingBehavior(store, time.Minute))

		_, err := processor.Process(context.Background(), newPlaceOrder("1"))

		require.NoError(t, err)
		assert.Equal(t, 0, store.Len())
	})

	t.Run("runs concurrent misses once", func(t *testing.T) {
		calls := &callCounter{}
		release := make(chan struct{})
		handler := messaging.HandleFunc(func(ctx context.Context, q *GetOrder, _ *messaging.MessagingContext) (*OrderView, error) {
			calls.inc()
			<-release
			return &OrderView{OrderID: q.OrderID, Status: "placed"}, nil
		})
		processor := newProcessor([]messaging.HandlerRegistration{handler}, NewCachingBehavior(resultcache.NewMemoryStore(), time.Minute))

		var wg sync.WaitGroup
		results := make([]interface{}, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = processor.Process(context.Background(), newGetOrder("3"))
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, 1, calls.get())
		for _, r := range results {
			assert.Equal(t, &OrderView{OrderID: "3", Status: "placed"}, r)
		}
	})
	t.Run("a cancelled caller does not fail others waiting on the same key", func(t *testing.T) {
		calls := &callCounter{}
		release := make(chan struct{})
		handler := messaging.HandleFunc(func(ctx context.Context, q *GetOrder, _ *messaging.MessagingContext) (*OrderView, error) {
			calls.inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return &OrderView{OrderID: q.OrderID, Status: "placed"}, nil
			}
		})
		processor := newProcessor([]messaging.HandlerRegistration{handler}, NewCachingBehavior(resultcache.NewMemoryStore(), time.Minute))

		ctxA, cancelA := context.WithCancel(context.Background())
		defer cancelA()
		errA := make(chan error, 1)
		go func() {
			_, err := processor.Process(ctxA, newGetOrder("4"))
			errA <- err
		}()
		require.Eventually(t, func() bool { return calls.get() == 1 }, time.Second, time.Millisecond)

		type dispatched struct {
			result interface{}
			err    error
		}
		doneB := make(chan dispatched, 1)
		go func() {
			result, err := processor.Process(context.Background(), newGetOrder("4"))
			doneB <- dispatched{result, err}
		}()
		time.Sleep(20 * time.Millisecond)
		cancelA()

		assert.ErrorIs(t, <-errA, context.Canceled)
		require.Eventually(t, func() bool { return calls.get() == 2 }, time.Second, time.Millisecond)
		close(release)

		b := <-doneB
		require.NoError(t, b.err)
		assert.Equal(t, &OrderView{OrderID: "4", Status: "placed"}, b.result)
	})
}

func TestContentKey(t *testing.T) {
	t.Run("ignores envelope fields", func(t *testing.T) {
		a := messaging.NewMessagingContext(newGetOrder("5"), nil, nil)
		b := messaging.NewMessagingContext(newGetOrder("5"), nil, nil)
		c := messaging.NewMessagingContext(newGetOrder("6"), nil, nil)

		ka, err := ContentKey(a)
		require.NoError(t, err)
		kb, _ := ContentKey(b)
		kc, _ := ContentKey(c)

		assert.Equal(t, ka, kb)
		assert.NotEqual(t, ka, kc)
		assert.Contains(t, ka, "GetOrder:")
	})
}
