package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	t.Run("creates with jitter enabled", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, 5*time.Second, 2.0, 3)

		assert.Equal(t, 100*time.Millisecond, eb.InitialInterval)
		assert.Equal(t, 3, eb.MaxRetries())
		assert.True(t, eb.Jitter)
	})

	t.Run("ShouldRetry respects max retries", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, time.Second, 2.0, 3)

		for i := 0; i < 3; i++ {
			shouldRetry, delay := eb.ShouldRetry(i, errors.New("test"))
			assert.True(t, shouldRetry)
			assert.Greater(t, delay, time.Duration(0))
		}

		shouldRetry, delay := eb.ShouldRetry(3, errors.New("test"))
		assert.False(t, shouldRetry)
		assert.Equal(t, time.Duration(0), delay)
	})

	t.Run("NextDelay grows exponentially up to the cap", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 2.0, 5)
		eb.Jitter = false

		tests := []struct {
			attempt  int
			expected time.Duration
		}{
			{0, 100 * time.Millisecond},
			{1, 200 * time.Millisecond},
			{3, 800 * time.Millisecond},
			{10, 10 * time.Second},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.expected, eb.NextDelay(tt.attempt))
		}
	})

	t.Run("jitter stays within fifteen percent", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Second, 10*time.Second, 2.0, 5)
		for i := 0; i < 50; i++ {
			delay := eb.NextDelay(0)
			assert.GreaterOrEqual(t, delay, 850*time.Millisecond)
			assert.LessOrEqual(t, delay, 1150*time.Millisecond)
		}
	})
}

func TestLinearAndFixedDelay(t *testing.T) {
	linear := NewLinearBackoff(100*time.Millisecond, 3)
	linear.MaxInterval = 250 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, linear.NextDelay(0))
	assert.Equal(t, 200*time.Millisecond, linear.NextDelay(1))
	assert.Equal(t, 250*time.Millisecond, linear.NextDelay(5))

	fixed := NewFixedDelay(50*time.Millisecond, 2)
	ok, delay := fixed.ShouldRetry(1, errors.New("x"))
	assert.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, delay)
	ok, _ = fixed.ShouldRetry(2, errors.New("x"))
	assert.False(t, ok)
}

func TestDo(t *testing.T) {
	t.Run("returns the first successful result", func(t *testing.T) {
		calls := 0
		result, err := Do(context.Background(), NewFixedDelay(time.Millisecond, 3), func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted policy yields RetryError", func(t *testing.T) {
		cause := errors.New("still failing")
		calls := 0
		_, err := Do(context.Background(), NewFixedDelay(time.Millisecond, 2), func(context.Context) (int, error) {
			calls++
			return 0, cause
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		var retryErr *RetryError
		require.ErrorAs(t, err, &retryErr)
		assert.Equal(t, 3, retryErr.Attempts)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		cause := errors.New("bad input")
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			calls++
			return Permanent(cause)
		})

		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrNonRetryable)
		assert.Equal(t, 1, calls)
	})

	t.Run("custom classifier", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			calls++
			return errors.New("never retry")
		}, WithRetryIf(func(error) bool { return false }))

		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("reports each retry", func(t *testing.T) {
		var attempts []int
		_ = Retry(context.Background(), NewFixedDelay(time.Millisecond, 2), func() error {
			return errors.New("x")
		}, WithOnRetry(func(attempt int, delay time.Duration, err error) {
			attempts = append(attempts, attempt)
		}))

		assert.Equal(t, []int{1, 2}, attempts)
	})

	t.Run("stops waiting when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := Retry(ctx, NewFixedDelay(time.Hour, 3), func() error {
			return errors.New("transient")
		})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("cancellation errors are not retried", func(t *testing.T) {
		assert.False(t, IsRetryable(context.Canceled))
		assert.False(t, IsRetryable(&CircuitBreakerError{State: StateOpen}))
		assert.True(t, IsRetryable(errors.New("io")))
		assert.False(t, IsRetryable(nil))
	})
}
