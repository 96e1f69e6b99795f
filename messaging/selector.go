package messaging

import (
	"fmt"
	"reflect"

	"github.com/glimte/mmate-dispatch/contracts"
)

// HandlersFactory creates the handlers for one dispatch
type HandlersFactory func() ([]MessageHandler, error)

// HandlerSelector decides which handlers receive a message. Selectors
// are consulted in priority order; the first that can handle a message
// owns it.
type HandlerSelector interface {
	Name() string
	CanHandle(messageType reflect.Type, messageName string) bool
	GetHandlersFactory(messageType reflect.Type, messageName string) HandlersFactory
}

// HandlerSource enumerates handler registrations matching a message
type HandlerSource interface {
	HandlersFor(messageType reflect.Type, messageName string) []HandlerRegistration
}

// Inspector is implemented by selectors that can report the
// registrations they would use without constructing handlers.
type Inspector interface {
	Resolve(messageType reflect.Type, messageName string) ([]HandlerRegistration, error)
}

// FanOutSelector is implemented by selectors whose handlers all run.
// Fan-out dispatches return contracts.Empty instead of a handler result.
type FanOutSelector interface {
	FanOut() bool
}

// SelectorRegistration ranks a selector. Lower override priority is
// consulted first, then lower processing priority, then registration order.
type SelectorRegistration struct {
	Metadata
	Selector HandlerSelector
}

func (r SelectorRegistration) validate() error {
	if r.Selector == nil {
		return fmt.Errorf("%w: selector %q is nil", ErrInvalidRegistration, r.Name)
	}
	return nil
}

// EventSelector claims event-shaped messages and fans them out to every
// matching handler ordered by processing priority, then registration order.
type EventSelector struct {
	source   HandlerSource
	isEvent  func(reflect.Type) bool
	claims   lazyCache[reflect.Type, bool]
	resolved lazyCache[dispatchKey, []HandlerRegistration]
}

// NewEventSelector creates an event selector. isEvent extends the
// structural event check; it may be nil.
func NewEventSelector(source HandlerSource, isEvent func(reflect.Type) bool) *EventSelector {
	return &EventSelector{source: source, isEvent: isEvent}
}

// Name implements HandlerSelector
func (s *EventSelector) Name() string {
	return "EventSelector"
}

// FanOut implements FanOutSelector
func (s *EventSelector) FanOut() bool {
	return true
}

// CanHandle implements HandlerSelector
func (s *EventSelector) CanHandle(messageType reflect.Type, _ string) bool {
	if messageType == nil {
		return false
	}
	return s.claims.get(messageType, func() bool {
		if contracts.ClassifyType(messageType).Has(contracts.ShapeEvent) {
			return true
		}
		return s.isEvent != nil && s.isEvent(messageType)
	})
}

// Resolve implements Inspector. An event without subscribers resolves
// to an empty list.
func (s *EventSelector) Resolve(messageType reflect.Type, messageName string) ([]HandlerRegistration, error) {
	resolve := func() []HandlerRegistration {
		regs := s.source.HandlersFor(messageType, messageName)
		sortByMetadata(regs, func(r HandlerRegistration) Metadata { return r.Metadata }, func(a, b Metadata) bool {
			if a.ProcessingPriority != b.ProcessingPriority {
				return a.ProcessingPriority < b.ProcessingPriority
			}
			return a.index < b.index
		})
		return regs
	}

	key, ok := sourceKey(s.source, messageType, messageName)
	if !ok {
		return resolve(), nil
	}
	return append([]HandlerRegistration(nil), s.resolved.get(key, resolve)...), nil
}

// GetHandlersFactory implements HandlerSelector
func (s *EventSelector) GetHandlersFactory(messageType reflect.Type, messageName string) HandlersFactory {
	return func() ([]MessageHandler, error) {
		regs, err := s.Resolve(messageType, messageName)
		if err != nil {
			return nil, err
		}
		return instantiate(regs)
	}
}

// DefaultSelector claims every message and resolves exactly one handler:
// the sole candidate at the best override priority.
type DefaultSelector struct {
	source   HandlerSource
	resolved lazyCache[dispatchKey, resolution]
}

type resolution struct {
	registration HandlerRegistration
	err          error
}

// NewDefaultSelector creates the single-handler selector
func NewDefaultSelector(source HandlerSource) *DefaultSelector {
	return &DefaultSelector{source: source}
}

// Name implements HandlerSelector
func (s *DefaultSelector) Name() string {
	return "DefaultSelector"
}

// CanHandle implements HandlerSelector
func (s *DefaultSelector) CanHandle(reflect.Type, string) bool {
	return true
}

// Resolve implements Inspector
func (s *DefaultSelector) Resolve(messageType reflect.Type, messageName string) ([]HandlerRegistration, error) {
	resolve := func() resolution {
		reg, err := ResolveSingle(s.source.HandlersFor(messageType, messageName), messageType, messageName)
		return resolution{registration: reg, err: err}
	}

	var res resolution
	key, ok := sourceKey(s.source, messageType, messageName)
	if ok {
		res = s.resolved.get(key, resolve)
		// Errors name the message; a folded key may have been filled by
		// another name.
		if res.err != nil && key.messageName != messageName {
			res = resolve()
		}
	} else {
		res = resolve()
	}
	if res.err != nil {
		return nil, res.err
	}
	return []HandlerRegistration{res.registration}, nil
}

// GetHandlersFactory implements HandlerSelector
func (s *DefaultSelector) GetHandlersFactory(messageType reflect.Type, messageName string) HandlersFactory {
	return func() ([]MessageHandler, error) {
		regs, err := s.Resolve(messageType, messageName)
		if err != nil {
			return nil, err
		}
		return instantiate(regs)
	}
}

// ResolveSingle applies the override policy: keep the candidates at the
// best override priority and require exactly one of them. Processing
// priority never breaks the tie.
func ResolveSingle(candidates []HandlerRegistration, messageType reflect.Type, messageName string) (HandlerRegistration, error) {
	if len(candidates) == 0 {
		return HandlerRegistration{}, &MissingHandlerError{MessageType: messageType, MessageName: messageName}
	}

	best := candidates[0].OverridePriority
	for _, c := range candidates[1:] {
		if c.OverridePriority < best {
			best = c.OverridePriority
		}
	}

	var winners []HandlerRegistration
	for _, c := range candidates {
		if c.OverridePriority == best {
			winners = append(winners, c)
		}
	}

	if len(winners) > 1 {
		names := make([]string, len(winners))
		for i, w := range winners {
			names[i] = w.Name
		}
		return HandlerRegistration{}, &AmbiguousHandlerError{
			MessageType:      messageType,
			MessageName:      messageName,
			OverridePriority: best,
			Candidates:       names,
		}
	}
	return winners[0], nil
}

func instantiate(regs []HandlerRegistration) ([]MessageHandler, error) {
	handlers := make([]MessageHandler, 0, len(regs))
	for _, reg := range regs {
		handler := reg.Factory()
		if handler == nil {
			return nil, fmt.Errorf("%w: factory of handler %q returned nil", ErrInvalidRegistration, reg.Name)
		}
		handlers = append(handlers, handler)
	}
	return handlers, nil
}
