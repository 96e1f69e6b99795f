package behaviors

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
)

type PlaceOrder struct {
	contracts.BaseCommand
	OrderID string `json:"orderId"`
}

func newPlaceOrder(id string) *PlaceOrder {
	return &PlaceOrder{BaseCommand: contracts.NewBaseCommand(""), OrderID: id}
}

type GetOrder struct {
	contracts.BaseQuery
	OrderID string `json:"orderId"`
}

func (GetOrder) ResponseType() reflect.Type {
	return reflect.TypeOf(&OrderView{})
}

func newGetOrder(id string) *GetOrder {
	return &GetOrder{BaseQuery: contracts.NewBaseQuery(""), OrderID: id}
}

type OrderView struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// fakeCollector records metrics calls
type fakeCollector struct {
	mu        sync.Mutex
	counts    map[string]int
	durations map[string]time.Duration
	errors    map[string][]string
}

func newFakeCollector() *fakeCollector {
	return &fakeCollector{
		counts:    make(map[string]int),
		durations: make(map[string]time.Duration),
		errors:    make(map[string][]string),
	}
}

func (c *fakeCollector) IncrementMessageCount(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
}

func (c *fakeCollector) RecordProcessingTime(name string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.durations[name] += d
}

func (c *fakeCollector) IncrementErrorCount(name string, errorType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors[name] = append(c.errors[name], errorType)
}

// newProcessor registers handlers and the given behaviors in order
func newProcessor(handlers []messaging.HandlerRegistration, behaviors ...messaging.Behavior) *messaging.MessageProcessor {
	chain := NewChainBuilder(nil)
	for _, b := range behaviors {
		chain.WithCustom(b)
	}
	registry, err := chain.Register(messaging.NewRegistryBuilder()).AddHandler(handlers...).Build()
	if err != nil {
		panic(err)
	}
	return messaging.NewMessageProcessor(registry)
}

func orderViewHandler(calls *callCounter) messaging.HandlerRegistration {
	return messaging.HandleFunc(func(ctx context.Context, q *GetOrder, _ *messaging.MessagingContext) (*OrderView, error) {
		calls.inc()
		return &OrderView{OrderID: q.OrderID, Status: "placed"}, nil
	})
}

type callCounter struct {
	mu sync.Mutex
	n  int
}

func (c *callCounter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *callCounter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
