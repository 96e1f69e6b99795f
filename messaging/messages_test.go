package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/glimte/mmate-dispatch/contracts"
)

type PlaceOrder struct {
	contracts.BaseCommand
	OrderID string `json:"orderId"`
}

func newPlaceOrder(id string) *PlaceOrder {
	return &PlaceOrder{BaseCommand: contracts.NewBaseCommand(""), OrderID: id}
}

type OrderPlaced struct {
	contracts.BaseEvent
	OrderID string `json:"orderId"`
}

func newOrderPlaced(id string) *OrderPlaced {
	return &OrderPlaced{BaseEvent: contracts.NewBaseEvent("", id), OrderID: id}
}

type GetOrder struct {
	contracts.BaseQuery
	OrderID string `json:"orderId"`
}

func newGetOrder(id string) *GetOrder {
	return &GetOrder{BaseQuery: contracts.NewBaseQuery(""), OrderID: id}
}

type OrderView struct {
	OrderID string
	Status  string
}

// recorder collects ordered entries from concurrent steps
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recorder) addf(format string, args ...interface{}) {
	r.add(fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

func recordingHandler(rec *recorder, name string, result interface{}) MessageHandler {
	return MessageHandlerFunc(func(ctx context.Context, msg contracts.Message, mctx *MessagingContext) (interface{}, error) {
		rec.add(name)
		return result, nil
	})
}

type recordingHooks struct {
	rec  *recorder
	name string
}

func (h *recordingHooks) Before(ctx context.Context, mctx *MessagingContext) error {
	h.rec.addf("%s.Before", h.name)
	return nil
}

func (h *recordingHooks) After(ctx context.Context, mctx *MessagingContext) error {
	h.rec.addf("%s.After", h.name)
	return nil
}

func mustBuild(b *RegistryBuilder) *Registry {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}
