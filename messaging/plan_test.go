package messaging

import (
	"testing"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageProcessorPlan(t *testing.T) {
	handler := recordingHandler(&recorder{}, "h", nil)
	registry := mustBuild(NewRegistryBuilder().
		AddHandler(
			Handle[PlaceOrder](handler, Named("place")),
			Handle[OrderPlaced](handler, Named("billing")),
			Handle[OrderPlaced](handler, Named("audit"), WithProcessingPriority(High)),
		).
		AddBehavior(Use(FromHooks("logging", NoopHooks{}))))
	processor := NewMessageProcessor(registry)

	t.Run("single handler plan", func(t *testing.T) {
		plan, err := processor.Plan(newPlaceOrder("1"))

		require.NoError(t, err)
		assert.Equal(t, "PlaceOrder", plan.MessageName)
		assert.Equal(t, "command", plan.Shape)
		assert.Equal(t, "DefaultSelector", plan.Selector)
		assert.False(t, plan.FanOut)
		assert.Equal(t, []string{"place"}, plan.Handlers)
		assert.Equal(t, []string{"logging"}, plan.Behaviors)
	})

	t.Run("event plan lists subscribers in order", func(t *testing.T) {
		plan, err := processor.PlanFor(contracts.TypeFor[*OrderPlaced](), "")

		require.NoError(t, err)
		assert.Equal(t, "EventSelector", plan.Selector)
		assert.True(t, plan.FanOut)
		assert.Equal(t, []string{"audit", "billing"}, plan.Handlers)
	})

	t.Run("routes cover every target", func(t *testing.T) {
		routes := processor.Routes()

		require.Len(t, routes, 2)
		assert.Equal(t, "PlaceOrder", routes[0].MessageName)
		assert.Equal(t, "OrderPlaced", routes[1].MessageName)
		assert.Contains(t, routes[1].String(), "audit, billing")
	})

	t.Run("validate passes a consistent registry", func(t *testing.T) {
		assert.NoError(t, processor.Validate())
	})

	t.Run("validate reports ambiguity at startup", func(t *testing.T) {
		ambiguous := NewMessageProcessor(mustBuild(NewRegistryBuilder().AddHandler(
			Handle[PlaceOrder](handler, Named("one")),
			Handle[PlaceOrder](handler, Named("two")),
		)))

		err := ambiguous.Validate()

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAmbiguousHandler)
		assert.True(t, IsConfigurationError(err))
	})
}
