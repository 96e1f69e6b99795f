package contracts

import (
	"reflect"
)

// Envelope wraps a message with headers. Handlers are resolved
// for the envelope type itself; use Unwrap to reach the inner message.
type Envelope struct {
	BaseMessage
	Headers map[string]interface{} `json:"headers,omitempty"`
	Inner   Message                `json:"body"`
}

// NewEnvelope wraps msg, inheriting its correlation ID
func NewEnvelope(msg Message, headers map[string]interface{}) *Envelope {
	env := &Envelope{
		BaseMessage: NewBaseMessage(""),
		Headers:     headers,
		Inner:       msg,
	}
	if msg != nil {
		env.CorrelationID = msg.GetCorrelationID()
	}
	if env.Headers == nil {
		env.Headers = make(map[string]interface{})
	}
	return env
}

// GetInnerMessage returns the wrapped message
func (e *Envelope) GetInnerMessage() Message {
	return e.Inner
}

// Unwrap follows envelopes down to the innermost message
func Unwrap(msg Message) Message {
	for {
		env, ok := msg.(MessageEnvelope)
		if !ok || env.GetInnerMessage() == nil {
			return msg
		}
		msg = env.GetInnerMessage()
	}
}

// Adapter bridges an arbitrary payload into a Message. Handlers for an
// adapter are resolved by the payload type.
type Adapter struct {
	BaseMessage
	Payload interface{} `json:"payload"`
}

// Adapt returns msg unchanged when payload already is a Message,
// otherwise wraps it in an Adapter
func Adapt(payload interface{}) Message {
	if msg, ok := payload.(Message); ok {
		return msg
	}
	return &Adapter{
		BaseMessage: NewBaseMessage(""),
		Payload:     payload,
	}
}

// AdaptNamed wraps payload under an explicit message name
func AdaptNamed(name string, payload interface{}) *Adapter {
	return &Adapter{
		BaseMessage: NewBaseMessage(name),
		Payload:     payload,
	}
}

// GetPayload returns the adapted payload
func (a *Adapter) GetPayload() interface{} {
	return a.Payload
}

// ResponseType forwards the payload's declared response type
func (a *Adapter) ResponseType() reflect.Type {
	if rt, ok := a.Payload.(ResponseTyper); ok {
		return rt.ResponseType()
	}
	return nil
}
