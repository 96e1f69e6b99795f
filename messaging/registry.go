package messaging

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/glimte/mmate-dispatch/contracts"
)

// Registry is the immutable set of handlers, selectors and behaviors a
// MessageProcessor dispatches with. Build one with RegistryBuilder.
type Registry struct {
	handlers   []HandlerRegistration
	selectors  []SelectorRegistration
	behaviors  []BehaviorRegistration
	eventTypes map[reflect.Type]struct{}
	names      map[string]struct{}
	candidates lazyCache[dispatchKey, []HandlerRegistration]
}

// HandlersFor implements HandlerSource. Matches are returned in
// registration order; callers receive their own copy.
func (r *Registry) HandlersFor(messageType reflect.Type, messageName string) []HandlerRegistration {
	key := r.matchKey(messageType, messageName)
	matches := r.candidates.get(key, func() []HandlerRegistration {
		var out []HandlerRegistration
		for _, h := range r.handlers {
			if h.Matches(key.messageType, key.messageName) {
				out = append(out, h)
			}
		}
		return out
	})
	return append([]HandlerRegistration(nil), matches...)
}

// matchKey folds names that no handler or behavior registration refers
// to into the empty name. Such names match exactly the registrations the
// empty name matches, so cache entries stay bounded by registered types
// and names however many distinct names arrive from outside.
func (r *Registry) matchKey(messageType reflect.Type, messageName string) dispatchKey {
	if !r.knowsName(messageName) {
		messageName = ""
	}
	return dispatchKey{messageType: messageType, messageName: messageName}
}

// knowsName reports whether a handler or behavior registration is keyed by name
func (r *Registry) knowsName(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Handlers returns all handler registrations in registration order
func (r *Registry) Handlers() []HandlerRegistration {
	return append([]HandlerRegistration(nil), r.handlers...)
}

// Selectors returns the selectors in consultation order
func (r *Registry) Selectors() []SelectorRegistration {
	return append([]SelectorRegistration(nil), r.selectors...)
}

// Behaviors returns the behaviors in pipeline order
func (r *Registry) Behaviors() []BehaviorRegistration {
	return append([]BehaviorRegistration(nil), r.behaviors...)
}

// IsEventType reports whether t was declared an event on the builder
func (r *Registry) IsEventType(t reflect.Type) bool {
	_, ok := r.eventTypes[contracts.Indirect(t)]
	return ok
}

// RegistryBuilder collects registrations. Build validates them, assigns
// registration order and appends the default selectors.
type RegistryBuilder struct {
	handlers   []HandlerRegistration
	selectors  []selectorEntry
	behaviors  []BehaviorRegistration
	eventTypes map[reflect.Type]struct{}
	noDefaults bool
}

type selectorEntry struct {
	meta    Metadata
	factory func(HandlerSource) HandlerSelector
}

// NewRegistryBuilder creates an empty builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{eventTypes: make(map[reflect.Type]struct{})}
}

// AddHandler adds handler registrations
func (b *RegistryBuilder) AddHandler(regs ...HandlerRegistration) *RegistryBuilder {
	b.handlers = append(b.handlers, regs...)
	return b
}

// AddSelector adds a self-contained selector
func (b *RegistryBuilder) AddSelector(selector HandlerSelector, opts ...RegistrationOption) *RegistryBuilder {
	return b.AddSelectorFactory(func(HandlerSource) HandlerSelector { return selector }, append(defaultSelectorName(selector), opts...)...)
}

// AddSelectorFactory adds a selector built from the finished registry
func (b *RegistryBuilder) AddSelectorFactory(factory func(HandlerSource) HandlerSelector, opts ...RegistrationOption) *RegistryBuilder {
	o := applyRegistrationOptions(opts)
	b.selectors = append(b.selectors, selectorEntry{meta: o.Metadata, factory: factory})
	return b
}

// AddBehavior adds behavior registrations
func (b *RegistryBuilder) AddBehavior(regs ...BehaviorRegistration) *RegistryBuilder {
	b.behaviors = append(b.behaviors, regs...)
	return b
}

// AddEventType marks the types of the samples as events even when they
// do not implement contracts.Event, e.g. adapted payloads.
func (b *RegistryBuilder) AddEventType(samples ...interface{}) *RegistryBuilder {
	for _, s := range samples {
		var t reflect.Type
		if rt, ok := s.(reflect.Type); ok {
			t = rt
		} else {
			t = reflect.TypeOf(s)
		}
		if t = contracts.Indirect(t); t != nil {
			b.eventTypes[t] = struct{}{}
		}
	}
	return b
}

// WithoutDefaultSelectors skips the event and default selectors
func (b *RegistryBuilder) WithoutDefaultSelectors() *RegistryBuilder {
	b.noDefaults = true
	return b
}

// Build validates the registrations and produces the registry
func (b *RegistryBuilder) Build() (*Registry, error) {
	var errs []error

	r := &Registry{
		eventTypes: make(map[reflect.Type]struct{}, len(b.eventTypes)),
		names:      make(map[string]struct{}),
	}
	for t := range b.eventTypes {
		r.eventTypes[t] = struct{}{}
	}

	for i, h := range b.handlers {
		h.index = i
		if h.MessageType != nil {
			h.MessageType = contracts.Indirect(h.MessageType)
		}
		if err := h.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		r.handlers = append(r.handlers, h)
		if h.MessageName != "" {
			r.names[h.MessageName] = struct{}{}
		}
	}

	for i, reg := range b.behaviors {
		reg.index = i
		if err := reg.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		r.behaviors = append(r.behaviors, reg)
		if reg.MessageName != "" {
			r.names[reg.MessageName] = struct{}{}
		}
	}
	sortByMetadata(r.behaviors, func(reg BehaviorRegistration) Metadata { return reg.Metadata }, byProcessingThenOverride)

	entries := append([]selectorEntry(nil), b.selectors...)
	if !b.noDefaults {
		entries = append(entries,
			selectorEntry{
				meta:    Metadata{Name: "EventSelector"},
				factory: func(src HandlerSource) HandlerSelector { return NewEventSelector(src, r.IsEventType) },
			},
			selectorEntry{
				meta:    Metadata{Name: "DefaultSelector", OverridePriority: Lowest, ProcessingPriority: Lowest},
				factory: func(src HandlerSource) HandlerSelector { return NewDefaultSelector(src) },
			},
		)
	}

	seen := make(map[string]bool)
	for i, entry := range entries {
		if entry.factory == nil {
			errs = append(errs, fmt.Errorf("%w: selector %q has no factory", ErrInvalidRegistration, entry.meta.Name))
			continue
		}
		reg := SelectorRegistration{Metadata: entry.meta, Selector: entry.factory(r)}
		reg.index = i
		if err := reg.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if reg.Name == "" {
			reg.Name = reg.Selector.Name()
		}
		if seen[reg.Name] {
			errs = append(errs, fmt.Errorf("%w: duplicate selector %q", ErrInvalidRegistration, reg.Name))
			continue
		}
		seen[reg.Name] = true
		r.selectors = append(r.selectors, reg)
	}
	sortByMetadata(r.selectors, func(reg SelectorRegistration) Metadata { return reg.Metadata }, byOverrideThenProcessing)

	if len(errs) > 0 {
		return nil, &ConfigurationError{Op: "build registry", Err: errors.Join(errs...)}
	}
	return r, nil
}

func defaultSelectorName(selector HandlerSelector) []RegistrationOption {
	if selector == nil {
		return nil
	}
	return []RegistrationOption{Named(selector.Name())}
}
