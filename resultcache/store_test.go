package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("stores and returns copies", func(t *testing.T) {
		store := NewMemoryStore()
		value := []byte("view")
		require.NoError(t, store.Set(ctx, "k", value, 0))
		value[0] = 'X'

		got, ok, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("view"), got)
	})

	t.Run("entries expire", func(t *testing.T) {
		now := time.Unix(100, 0)
		store := NewMemoryStore()
		store.now = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
		require.NoError(t, store.Set(ctx, "forever", []byte("2"), 0))
		now = now.Add(2 * time.Second)

		_, ok, err := store.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, _ = store.Get(ctx, "forever")
		assert.True(t, ok)
	})

	t.Run("purge removes expired entries", func(t *testing.T) {
		now := time.Unix(100, 0)
		store := NewMemoryStore()
		store.now = func() time.Time { return now }
		require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Second))
		require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
		now = now.Add(time.Minute)

		assert.Equal(t, 1, store.Purge())
		assert.Equal(t, 1, store.Len())
	})

	t.Run("delete and invalid keys", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
		require.NoError(t, store.Delete(ctx, "k"))
		_, ok, _ := store.Get(ctx, "k")
		assert.False(t, ok)

		assert.ErrorIs(t, store.Set(ctx, "", nil, 0), ErrInvalidKey)
		_, _, err := store.Get(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, WithKeyPrefix("test:"))
	t.Cleanup(func() { _ = store.Close() })

	t.Run("round trips values under the prefix", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "order-1", []byte(`{"id":"1"}`), 0))

		got, ok, err := store.Get(ctx, "order-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"id":"1"}`, string(got))
		assert.True(t, mr.Exists("test:order-1"))
	})

	t.Run("missing keys are not errors", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ttl expires entries", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "ttl", []byte("x"), time.Minute))
		mr.FastForward(2 * time.Minute)

		_, ok, err := store.Get(ctx, "ttl")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete removes entries", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gone", []byte("x"), 0))
		require.NoError(t, store.Delete(ctx, "gone"))
		assert.False(t, mr.Exists("test:gone"))
	})

	t.Run("dial verifies the connection", func(t *testing.T) {
		dialed, err := DialRedis(ctx, mr.Addr(), "", 0)
		require.NoError(t, err)
		assert.NoError(t, dialed.Ping(ctx))
		require.NoError(t, dialed.Close())

		mr2 := miniredis.RunT(t)
		addr := mr2.Addr()
		mr2.Close()
		_, err = DialRedis(ctx, addr, "", 0)
		assert.Error(t, err)
	})
}
