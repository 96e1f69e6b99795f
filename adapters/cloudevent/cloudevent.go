package cloudevent

import (
	"encoding/json"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/messaging"
	"github.com/glimte/mmate-dispatch/naming"
)

// CorrelationExtension carries the correlation id between events and messages
const CorrelationExtension = "correlationid"

// AttributePrefix prefixes the context bag keys set by ContextOptions
const AttributePrefix = "ce-"

// FromEvent converts a CloudEvent into a dispatchable message. When the
// event type is registered, the data is decoded into a new instance of the
// registered type; otherwise the raw JSON data is adapted under the event
// type as message name.
func FromEvent(e *cloudevents.Event, registry naming.Registry) (contracts.Message, error) {
	if e == nil {
		return nil, fmt.Errorf("nil event")
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	var payload interface{}
	if registry != nil && registry.IsRegistered(e.Type()) {
		instance, err := registry.CreateInstance(e.Type())
		if err != nil {
			return nil, err
		}
		if len(e.Data()) > 0 {
			if err := e.DataAs(instance); err != nil {
				return nil, fmt.Errorf("decode %s data: %w", e.Type(), err)
			}
		}
		payload = instance
	} else if data := e.Data(); len(data) > 0 {
		payload = json.RawMessage(append([]byte(nil), data...))
	}

	correlationID, _ := e.Extensions()[CorrelationExtension].(string)

	if msg, ok := payload.(contracts.Message); ok {
		if correlationID != "" {
			msg.SetCorrelationID(correlationID)
		}
		return msg, nil
	}

	adapter := contracts.AdaptNamed(e.Type(), payload)
	adapter.ID = e.ID()
	if t := e.Time(); !t.IsZero() {
		adapter.Timestamp = t.UTC()
	}
	adapter.CorrelationID = correlationID
	return adapter, nil
}

// ContextOptions exposes the event attributes in the messaging context bag
// under AttributePrefix keys, e.g. "ce-source".
func ContextOptions(e *cloudevents.Event) []messaging.ContextOption {
	if e == nil {
		return nil
	}

	values := map[string]interface{}{
		AttributePrefix + "id":          e.ID(),
		AttributePrefix + "type":        e.Type(),
		AttributePrefix + "source":      e.Source(),
		AttributePrefix + "specversion": e.SpecVersion(),
	}
	if subj := e.Subject(); subj != "" {
		values[AttributePrefix+"subject"] = subj
	}
	if ds := e.DataSchema(); ds != "" {
		values[AttributePrefix+"dataschema"] = ds
	}
	if t := e.Time(); !t.IsZero() {
		values[AttributePrefix+"time"] = t.UTC().Format(time.RFC3339)
	}
	for k, v := range e.Extensions() {
		values[AttributePrefix+k] = v
	}

	return []messaging.ContextOption{messaging.WithValues(values)}
}

// ToEvent converts a message, typically a dispatch result, into a CloudEvent
// with JSON data. The event type is the message's resolved name.
func ToEvent(msg contracts.Message, resolver *naming.Resolver, source string) (*cloudevents.Event, error) {
	if msg == nil {
		return nil, fmt.Errorf("nil message")
	}
	if resolver == nil {
		resolver = naming.NewResolver(nil, nil)
	}

	e := cloudevents.NewEvent()
	e.SetID(msg.GetID())
	e.SetType(resolver.NameOf(msg))
	e.SetSource(source)
	if t := msg.GetTimestamp(); !t.IsZero() {
		e.SetTime(t)
	}
	if correlationID := msg.GetCorrelationID(); correlationID != "" {
		e.SetExtension(CorrelationExtension, correlationID)
	}

	var data interface{} = msg
	if a, ok := msg.(contracts.MessageAdapter); ok {
		data = a.GetPayload()
	}
	if data != nil {
		if err := e.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return nil, fmt.Errorf("set data: %w", err)
		}
	}

	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}
	return &e, nil
}
