package contracts

import (
	"reflect"
	"time"
)

// Message is the base interface for all messages
type Message interface {
	GetID() string
	GetTimestamp() time.Time
	GetType() string
	GetMessageType() string // Alias for GetType for compatibility
	GetCorrelationID() string
	SetCorrelationID(correlationID string)
}

// Command represents an action to be performed
type Command interface {
	Message
	GetTargetService() string
}

// Event represents something that has happened.
// Events may be processed by any number of handlers.
type Event interface {
	Message
	GetAggregateID() string
	GetSequence() int64
}

// Query represents a request for information
type Query interface {
	Message
	GetReplyTo() string
}

// Reply represents a response to a request
type Reply interface {
	Message
	IsSuccess() bool
	GetError() error
}

// MessageEnvelope wraps another message
type MessageEnvelope interface {
	Message
	GetInnerMessage() Message
}

// MessageAdapter bridges a payload that is not itself a Message
type MessageAdapter interface {
	Message
	GetPayload() interface{}
}

// ResponseTyper is implemented by messages that declare the type of their response
type ResponseTyper interface {
	ResponseType() reflect.Type
}

// Empty is the result of dispatches that produce no meaningful value
type Empty struct{}

// EmptyType is the reflect type of Empty
var EmptyType = reflect.TypeOf(Empty{})

// Shape is a set of message capability tags
type Shape uint8

const (
	ShapeCommand Shape = 1 << iota
	ShapeEvent
	ShapeQuery
	ShapeResponse
	ShapeEnvelope
	ShapeAdapter
)

// Has reports whether all tags in other are present
func (s Shape) Has(other Shape) bool {
	return s&other == other
}

func (s Shape) String() string {
	if s == 0 {
		return "message"
	}
	names := []struct {
		shape Shape
		name  string
	}{
		{ShapeCommand, "command"},
		{ShapeEvent, "event"},
		{ShapeQuery, "query"},
		{ShapeResponse, "response"},
		{ShapeEnvelope, "envelope"},
		{ShapeAdapter, "adapter"},
	}
	out := ""
	for _, n := range names {
		if s.Has(n.shape) {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

var (
	messageIface  = reflect.TypeOf((*Message)(nil)).Elem()
	commandIface  = reflect.TypeOf((*Command)(nil)).Elem()
	eventIface    = reflect.TypeOf((*Event)(nil)).Elem()
	queryIface    = reflect.TypeOf((*Query)(nil)).Elem()
	replyIface    = reflect.TypeOf((*Reply)(nil)).Elem()
	envelopeIface = reflect.TypeOf((*MessageEnvelope)(nil)).Elem()
	adapterIface  = reflect.TypeOf((*MessageAdapter)(nil)).Elem()
)

// Classify returns the capability tags of a message value
func Classify(msg Message) Shape {
	if msg == nil {
		return 0
	}
	var s Shape
	if _, ok := msg.(Command); ok {
		s |= ShapeCommand
	}
	if _, ok := msg.(Event); ok {
		s |= ShapeEvent
	}
	if _, ok := msg.(Query); ok {
		s |= ShapeQuery
	}
	if _, ok := msg.(Reply); ok {
		s |= ShapeResponse
	}
	if _, ok := msg.(MessageEnvelope); ok {
		s |= ShapeEnvelope
	}
	if _, ok := msg.(MessageAdapter); ok {
		s |= ShapeAdapter
	}
	return s
}

// ClassifyType returns the capability tags of a message type.
// Both the type and a pointer to it are considered, matching how
// message structs embed the Base* types.
func ClassifyType(t reflect.Type) Shape {
	if t == nil {
		return 0
	}
	implements := func(iface reflect.Type) bool {
		if t.Implements(iface) {
			return true
		}
		return t.Kind() != reflect.Ptr && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(iface)
	}
	var s Shape
	if implements(commandIface) {
		s |= ShapeCommand
	}
	if implements(eventIface) {
		s |= ShapeEvent
	}
	if implements(queryIface) {
		s |= ShapeQuery
	}
	if implements(replyIface) {
		s |= ShapeResponse
	}
	if implements(envelopeIface) {
		s |= ShapeEnvelope
	}
	if implements(adapterIface) {
		s |= ShapeAdapter
	}
	return s
}

// IsEvent reports whether the message has the event shape
func IsEvent(msg Message) bool { return Classify(msg).Has(ShapeEvent) }

// IsResponse reports whether the message is a reply
func IsResponse(msg Message) bool { return Classify(msg).Has(ShapeResponse) }

// IsMessageEnvelope reports whether the message wraps another message
func IsMessageEnvelope(msg Message) bool { return Classify(msg).Has(ShapeEnvelope) }

// IsMessageAdapter reports whether the message bridges a foreign payload
func IsMessageAdapter(msg Message) bool { return Classify(msg).Has(ShapeAdapter) }

// TypeOf returns the type used to resolve handlers for a message.
// Pointers are dereferenced and adapters resolve to their payload type.
func TypeOf(msg Message) reflect.Type {
	if msg == nil {
		return nil
	}
	if a, ok := msg.(MessageAdapter); ok && a.GetPayload() != nil {
		return Indirect(reflect.TypeOf(a.GetPayload()))
	}
	return Indirect(reflect.TypeOf(msg))
}

// Indirect dereferences pointer types
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// TypeFor returns the resolution type for M
func TypeFor[M any]() reflect.Type {
	return Indirect(reflect.TypeOf((*M)(nil)).Elem())
}

// ResponseTypeOf returns the declared response type of a message, or EmptyType
func ResponseTypeOf(msg Message) reflect.Type {
	if rt, ok := msg.(ResponseTyper); ok {
		if t := rt.ResponseType(); t != nil {
			return t
		}
	}
	if a, ok := msg.(MessageAdapter); ok {
		if rt, ok := a.GetPayload().(ResponseTyper); ok && rt.ResponseType() != nil {
			return rt.ResponseType()
		}
	}
	return EmptyType
}

// IsMessageType reports whether values of t (or *t) are messages
func IsMessageType(t reflect.Type) bool {
	if t == nil {
		return false
	}
	return t.Implements(messageIface) || (t.Kind() != reflect.Ptr && reflect.PointerTo(t).Implements(messageIface))
}
