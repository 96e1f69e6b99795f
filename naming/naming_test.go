package naming

import (
	"reflect"
	"sync"
	"testing"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type PlaceOrder struct {
	contracts.BaseCommand
	OrderID string `json:"orderId"`
}

type OrderPlaced struct {
	contracts.BaseEvent
}

type HTTPRequestReceived struct {
	contracts.BaseEvent
}

func TestTypeRegistry(t *testing.T) {
	t.Run("registers type with name", func(t *testing.T) {
		registry := NewTypeRegistry()

		err := registry.Register("orders.place", &PlaceOrder{})
		require.NoError(t, err)

		assert.True(t, registry.IsRegistered("orders.place"))
		name, ok := registry.NameOf(reflect.TypeOf(&PlaceOrder{}))
		assert.True(t, ok)
		assert.Equal(t, "orders.place", name)
	})

	t.Run("registers type automatically", func(t *testing.T) {
		registry := NewTypeRegistry()

		err := registry.RegisterType(&PlaceOrder{})
		require.NoError(t, err)

		types := registry.ListTypes()
		assert.Len(t, types, 1)
		assert.Contains(t, types[0], "naming.PlaceOrder")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		err := NewTypeRegistry().Register("", &PlaceOrder{})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "message name cannot be empty")
	})

	t.Run("rejects nil type", func(t *testing.T) {
		err := NewTypeRegistry().Register("Test", nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "message type cannot be nil")
	})

	t.Run("rejects non struct types", func(t *testing.T) {
		err := NewTypeRegistry().Register("Test", "text")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "must be a struct")
	})

	t.Run("same registration twice is a no-op", func(t *testing.T) {
		registry := NewTypeRegistry()

		require.NoError(t, registry.Register("place", &PlaceOrder{}))
		assert.NoError(t, registry.Register("place", PlaceOrder{}))
	})

	t.Run("rejects conflicting registrations", func(t *testing.T) {
		registry := NewTypeRegistry()
		require.NoError(t, registry.Register("place", &PlaceOrder{}))

		err := registry.Register("place", &OrderPlaced{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")

		err = registry.Register("other", &PlaceOrder{})
		assert.Error(t, err)
	})

	t.Run("creates instances", func(t *testing.T) {
		registry := NewTypeRegistry()
		require.NoError(t, registry.Register("place", PlaceOrder{}))

		instance, err := registry.CreateInstance("place")
		require.NoError(t, err)
		assert.IsType(t, &PlaceOrder{}, instance)

		_, err = registry.CreateInstance("missing")
		assert.Error(t, err)
	})

	t.Run("is safe for concurrent use", func(t *testing.T) {
		registry := NewTypeRegistry()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = registry.Register("place", &PlaceOrder{})
				_, _ = registry.Get("place")
			}()
		}
		wg.Wait()

		assert.Equal(t, []string{"place"}, registry.ListTypes())
	})
}

func TestStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		typ      reflect.Type
		expected string
	}{
		{"type naming", TypeNaming, reflect.TypeOf(OrderPlaced{}), "OrderPlaced"},
		{"kebab naming", KebabNaming, reflect.TypeOf(OrderPlaced{}), "order.placed"},
		{"snake naming", SnakeNaming, reflect.TypeOf(OrderPlaced{}), "order_placed"},
		{"kebab keeps acronyms together", KebabNaming, reflect.TypeOf(HTTPRequestReceived{}), "http.request.received"},
		{"nil type", TypeNaming, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.strategy.TypeName(tt.typ))
		})
	}

	t.Run("StrategyByName", func(t *testing.T) {
		s, ok := StrategyByName("kebab")
		assert.True(t, ok)
		assert.Equal(t, KebabNaming, s)

		s, ok = StrategyByName("")
		assert.True(t, ok)
		assert.Equal(t, TypeNaming, s)

		_, ok = StrategyByName("camel")
		assert.False(t, ok)
	})
}

func TestResolver(t *testing.T) {
	t.Run("registered name wins", func(t *testing.T) {
		registry := NewTypeRegistry()
		require.NoError(t, registry.Register("orders.place", PlaceOrder{}))
		resolver := NewResolver(registry, KebabNaming)

		msg := &PlaceOrder{BaseCommand: contracts.NewBaseCommand("Declared")}
		assert.Equal(t, "orders.place", resolver.NameOf(msg))
		assert.Equal(t, "orders.place", resolver.NameFor(reflect.TypeOf(msg)))
	})

	t.Run("declared name is used next", func(t *testing.T) {
		resolver := NewResolver(nil, KebabNaming)

		msg := &PlaceOrder{BaseCommand: contracts.NewBaseCommand("Declared")}
		assert.Equal(t, "Declared", resolver.NameOf(msg))
	})

	t.Run("derived name is the fallback", func(t *testing.T) {
		resolver := NewResolver(nil, KebabNaming)

		assert.Equal(t, "place.order", resolver.NameOf(&PlaceOrder{}))
		assert.Equal(t, "place.order", resolver.NameFor(reflect.TypeOf(PlaceOrder{})))
	})

	t.Run("adapters derive names from payloads", func(t *testing.T) {
		resolver := NewResolver(nil, nil)

		assert.Equal(t, "OrderPlaced", resolver.NameOf(contracts.Adapt(OrderPlaced{})))
	})

	t.Run("nil message", func(t *testing.T) {
		assert.Equal(t, "", NewResolver(nil, nil).NameOf(nil))
	})
}
