package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dispatch "github.com/glimte/mmate-dispatch"
	"github.com/glimte/mmate-dispatch/adapters/cloudevent"
	"github.com/glimte/mmate-dispatch/config"
)

func newTestClient(t *testing.T) *dispatch.Client {
	t.Helper()
	client, err := newDemoClient(config.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func send(t *testing.T, client *dispatch.Client, name, data string) (interface{}, error) {
	t.Helper()
	events, err := collectEvents([]string{name, data}, "", "test")
	require.NoError(t, err)
	require.Len(t, events, 1)

	msg, err := cloudevent.FromEvent(events[0], client.Resolver().Registry())
	require.NoError(t, err)
	return client.Process(context.Background(), msg, cloudevent.ContextOptions(events[0])...)
}

func TestDemoDomain(t *testing.T) {
	t.Run("placing an order publishes a confirmation", func(t *testing.T) {
		client := newTestClient(t)

		_, err := send(t, client, "orders.place", `{"orderId":"o-1","customer":"acme","amount":12.5}`)
		require.NoError(t, err)

		result, err := send(t, client, "orders.get", `{"orderId":"o-1"}`)
		require.NoError(t, err)
		view, ok := result.(*OrderView)
		require.True(t, ok)
		assert.Equal(t, "acme", view.Customer)
		assert.Equal(t, "confirmed", view.Status)
	})

	t.Run("placing the same order twice fails", func(t *testing.T) {
		client := newTestClient(t)

		_, err := send(t, client, "orders.place", `{"orderId":"o-2"}`)
		require.NoError(t, err)
		_, err = send(t, client, "orders.place", `{"orderId":"o-2"}`)

		assert.ErrorContains(t, err, "already placed")
	})

	t.Run("listing returns orders sorted by id", func(t *testing.T) {
		client := newTestClient(t)
		for _, id := range []string{"b", "a"} {
			_, err := send(t, client, "orders.place", `{"orderId":"`+id+`"}`)
			require.NoError(t, err)
		}

		result, err := send(t, client, "orders.list", `{}`)

		require.NoError(t, err)
		views := result.([]OrderView)
		require.Len(t, views, 2)
		assert.Equal(t, "a", views[0].OrderID)
	})

	t.Run("every demo route is valid", func(t *testing.T) {
		client := newTestClient(t)

		assert.NoError(t, client.Validate())
		assert.Len(t, client.Routes(), len(demoNames))
	})
}

func TestPrinting(t *testing.T) {
	client := newTestClient(t)

	t.Run("printPlan lists the fan-out handlers of an event", func(t *testing.T) {
		typ, err := client.Resolver().Registry().Get("orders.placed")
		require.NoError(t, err)
		plan, err := client.Processor().PlanFor(typ, "orders.placed")
		require.NoError(t, err)

		var buf bytes.Buffer
		printPlan(&buf, plan)

		assert.Contains(t, buf.String(), "order-audit")
		assert.Contains(t, buf.String(), "order-confirmation")
	})

	t.Run("printRoutes writes a line per route", func(t *testing.T) {
		var buf bytes.Buffer
		printRoutes(&buf, client.Routes())

		assert.Contains(t, buf.String(), "orders.place")
		assert.Contains(t, buf.String(), "orders.list")
	})

	t.Run("printResult supports yaml output", func(t *testing.T) {
		var buf bytes.Buffer
		err := printResult(&buf, "orders.get", &OrderView{OrderID: "o-9"}, "yaml")

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "orderId: o-9")
	})

	t.Run("printResult rejects unknown formats", func(t *testing.T) {
		err := printResult(io.Discard, "orders.get", &OrderView{}, "xml")

		assert.Error(t, err)
	})

	t.Run("collectEvents rejects malformed data", func(t *testing.T) {
		_, err := collectEvents([]string{"orders.get", "{not json"}, "", "test")

		assert.Error(t, err)
	})
}
