package main

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	dispatch "github.com/glimte/mmate-dispatch"
	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/naming"
)

// PlaceOrder asks the order book to record a new order
type PlaceOrder struct {
	contracts.BaseCommand
	OrderID  string  `json:"orderId"`
	Customer string  `json:"customer"`
	Amount   float64 `json:"amount"`
}

// OrderPlaced is published once an order is recorded
type OrderPlaced struct {
	contracts.BaseEvent
	OrderID string  `json:"orderId"`
	Amount  float64 `json:"amount"`
}

// GetOrder looks up a recorded order
type GetOrder struct {
	contracts.BaseQuery
	OrderID string `json:"orderId"`
}

func (GetOrder) ResponseType() reflect.Type {
	return reflect.TypeOf(&OrderView{})
}

// ListOrders returns every recorded order
type ListOrders struct {
	contracts.BaseQuery
}

func (ListOrders) ResponseType() reflect.Type {
	return reflect.TypeOf([]OrderView{})
}

// OrderView is the read model of an order
type OrderView struct {
	OrderID  string    `json:"orderId" yaml:"orderId"`
	Customer string    `json:"customer" yaml:"customer"`
	Amount   float64   `json:"amount" yaml:"amount"`
	Status   string    `json:"status" yaml:"status"`
	PlacedAt time.Time `json:"placedAt" yaml:"placedAt"`
}

var demoNames = map[string]interface{}{
	"orders.place":  PlaceOrder{},
	"orders.placed": OrderPlaced{},
	"orders.get":    GetOrder{},
	"orders.list":   ListOrders{},
}

// demoTypes registers the demo messages under their wire names
func demoTypes() (*naming.TypeRegistry, error) {
	types := naming.NewTypeRegistry()
	for name, sample := range demoNames {
		if err := types.Register(name, sample); err != nil {
			return nil, err
		}
	}
	return types, nil
}

// orderBook is the in-memory store behind the demo handlers
type orderBook struct {
	mu     sync.RWMutex
	orders map[string]OrderView
	client *dispatch.Client
}

func newOrderBook() *orderBook {
	return &orderBook{orders: make(map[string]OrderView)}
}

func (b *orderBook) handlers() []messaging.HandlerRegistration {
	return []messaging.HandlerRegistration{
		messaging.HandleFunc(b.place),
		messaging.HandleFunc(b.get),
		messaging.HandleFunc(b.list),
		messaging.HandleFunc(b.confirm, messaging.Named("order-confirmation")),
		messaging.HandleFunc(b.audit, messaging.Named("order-audit"), messaging.WithProcessingPriority(messaging.High)),
	}
}

func (b *orderBook) place(ctx context.Context, cmd *PlaceOrder, mctx *messaging.MessagingContext) (contracts.Empty, error) {
	if cmd.OrderID == "" {
		return contracts.Empty{}, fmt.Errorf("order id is required")
	}

	b.mu.Lock()
	if _, exists := b.orders[cmd.OrderID]; exists {
		b.mu.Unlock()
		return contracts.Empty{}, fmt.Errorf("order %s already placed", cmd.OrderID)
	}
	b.orders[cmd.OrderID] = OrderView{
		OrderID:  cmd.OrderID,
		Customer: cmd.Customer,
		Amount:   cmd.Amount,
		Status:   "placed",
		PlacedAt: time.Now().UTC(),
	}
	b.mu.Unlock()

	event := &OrderPlaced{
		BaseEvent: contracts.NewBaseEvent("orders.placed", cmd.OrderID),
		OrderID:   cmd.OrderID,
		Amount:    cmd.Amount,
	}
	event.SetCorrelationID(cmd.GetCorrelationID())
	return contracts.Empty{}, b.client.Publish(ctx, event, messaging.WithParent(mctx))
}

func (b *orderBook) confirm(ctx context.Context, e *OrderPlaced, mctx *messaging.MessagingContext) (contracts.Empty, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	view, ok := b.orders[e.OrderID]
	if !ok {
		return contracts.Empty{}, fmt.Errorf("order %s not found", e.OrderID)
	}
	view.Status = "confirmed"
	b.orders[e.OrderID] = view
	return contracts.Empty{}, nil
}

func (b *orderBook) audit(ctx context.Context, e *OrderPlaced, mctx *messaging.MessagingContext) (contracts.Empty, error) {
	mctx.Logger().Info("order placed", "orderId", e.OrderID, "amount", e.Amount)
	return contracts.Empty{}, nil
}

func (b *orderBook) get(ctx context.Context, q *GetOrder, _ *messaging.MessagingContext) (*OrderView, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	view, ok := b.orders[q.OrderID]
	if !ok {
		return nil, fmt.Errorf("order %s not found", q.OrderID)
	}
	return &view, nil
}

func (b *orderBook) list(ctx context.Context, _ *ListOrders, _ *messaging.MessagingContext) ([]OrderView, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	views := make([]OrderView, 0, len(b.orders))
	for _, v := range b.orders {
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].OrderID < views[j].OrderID })
	return views, nil
}
