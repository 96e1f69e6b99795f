package messaging

import (
	"reflect"
	"sync"
)

// dispatchKey identifies a (message type, message name) pair
type dispatchKey struct {
	messageType reflect.Type
	messageName string
}

// lazyCache computes each value at most once, even under concurrent
// first access. Values must be deterministic for their key.
type lazyCache[K comparable, V any] struct {
	entries sync.Map
}

type lazyEntry[V any] struct {
	once  sync.Once
	value V
}

func (c *lazyCache[K, V]) len() int {
	n := 0
	c.entries.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// matchKeyer is implemented by handler sources that fold message names no
// registration refers to into one key
type matchKeyer interface {
	matchKey(messageType reflect.Type, messageName string) dispatchKey
}

// sourceKey returns the cache key for a lookup against source. Sources
// that cannot bound their keys are not cached.
func sourceKey(source HandlerSource, messageType reflect.Type, messageName string) (dispatchKey, bool) {
	if k, ok := source.(matchKeyer); ok {
		return k.matchKey(messageType, messageName), true
	}
	return dispatchKey{}, false
}

func (c *lazyCache[K, V]) get(key K, compute func() V) V {
	raw, _ := c.entries.LoadOrStore(key, &lazyEntry[V]{})
	entry := raw.(*lazyEntry[V])
	entry.once.Do(func() {
		entry.value = compute()
	})
	return entry.value
}
