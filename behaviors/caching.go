package behaviors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/resultcache"
)

// KeyFunc derives the cache key of a dispatch
type KeyFunc func(mctx *messaging.MessagingContext) (string, error)

// envelope fields that differ between otherwise equal messages
var volatileFields = []string{"id", "timestamp", "correlationId", "type"}

// ContentKey keys a dispatch by message name and the JSON content of the
// message, ignoring its id, timestamp and correlation id.
func ContentKey(mctx *messaging.MessagingContext) (string, error) {
	var payload interface{} = mctx.Message()
	if a, ok := payload.(contracts.MessageAdapter); ok && a.GetPayload() != nil {
		payload = a.GetPayload()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode message for cache key: %w", err)
	}

	var fields map[string]interface{}
	if json.Unmarshal(data, &fields) == nil {
		for _, f := range volatileFields {
			delete(fields, f)
		}
		if data, err = json.Marshal(fields); err != nil {
			return "", fmt.Errorf("failed to encode message for cache key: %w", err)
		}
	}

	sum := sha256.Sum256(data)
	return mctx.MessageName() + ":" + hex.EncodeToString(sum[:]), nil
}

// CachingOption configures a CachingBehavior
type CachingOption func(*CachingBehavior)

// WithKeyFunc replaces ContentKey
func WithKeyFunc(fn KeyFunc) CachingOption {
	return func(b *CachingBehavior) {
		b.keyFunc = fn
	}
}

// WithCacheLogger sets the logger for cache store failures
func WithCacheLogger(logger *slog.Logger) CachingOption {
	return func(b *CachingBehavior) {
		b.logger = logger
	}
}

// CachingBehavior answers repeated queries from a result store. Only
// messages declaring a concrete response type are cached; concurrent
// misses for the same key run the handlers once.
type CachingBehavior struct {
	store   resultcache.Store
	ttl     time.Duration
	keyFunc KeyFunc
	logger  *slog.Logger
	group   singleflight.Group
}

// NewCachingBehavior creates a new caching behavior
func NewCachingBehavior(store resultcache.Store, ttl time.Duration, opts ...CachingOption) *CachingBehavior {
	b := &CachingBehavior{
		store:   store,
		ttl:     ttl,
		keyFunc: ContentKey,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke implements messaging.Behavior
func (b *CachingBehavior) Invoke(ctx context.Context, mctx *messaging.MessagingContext, next messaging.Next) (interface{}, error) {
	responseType := contracts.ResponseTypeOf(mctx.Message())
	if !cacheable(responseType) {
		return next(ctx)
	}

	key, err := b.keyFunc(mctx)
	if err != nil {
		return nil, err
	}

	if data, found, err := b.store.Get(ctx, key); err != nil {
		b.logger.Warn("result cache read failed", "key", key, "error", err)
	} else if found {
		if result, err := decode(data, responseType); err == nil {
			mctx.Logger().Debug("result cache hit", "key", key)
			return result, nil
		}
		b.logger.Warn("discarding undecodable cached result", "key", key, "error", err)
	}

	for {
		ch := b.group.DoChan(key, func() (interface{}, error) {
			result, err := next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return leaderGone{}, err
				}
				return nil, err
			}
			b.remember(ctx, key, result, responseType)
			return result, nil
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if _, gone := res.Val.(leaderGone); gone {
				// The caller running the query went away; those still
				// waiting run it again instead of sharing its failure.
				if ctx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			return res.Val, res.Err
		}
	}
}

// leaderGone marks a shared call that failed because its own caller's
// context ended
type leaderGone struct{}

func (b *CachingBehavior) remember(ctx context.Context, key string, result interface{}, responseType reflect.Type) {
	if result == nil || !reflect.TypeOf(result).AssignableTo(responseType) {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		b.logger.Warn("result not cacheable", "key", key, "error", err)
		return
	}
	if err := b.store.Set(ctx, key, data, b.ttl); err != nil {
		b.logger.Warn("result cache write failed", "key", key, "error", err)
	}
}

// Name implements messaging.Behavior
func (b *CachingBehavior) Name() string {
	return "CachingBehavior"
}

func cacheable(t reflect.Type) bool {
	if t == nil || t == contracts.EmptyType {
		return false
	}
	return contracts.Indirect(t).Kind() != reflect.Interface
}

func decode(data []byte, t reflect.Type) (interface{}, error) {
	if t.Kind() == reflect.Ptr {
		v := reflect.New(t.Elem())
		if err := json.Unmarshal(data, v.Interface()); err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}
	v := reflect.New(t)
	if err := json.Unmarshal(data, v.Interface()); err != nil {
		return nil, err
	}
	return v.Elem().Interface(), nil
}
