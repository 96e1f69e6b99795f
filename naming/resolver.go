package naming

import (
	"reflect"

	"github.com/glimte/mmate-dispatch/contracts"
)

// Resolver computes canonical message names.
//
// Precedence: a name registered for the type, then the name the message
// declares through GetType, then the name derived by the strategy.
type Resolver struct {
	registry Registry
	strategy Strategy
}

// NewResolver creates a resolver. A nil registry or strategy falls back
// to an empty registry and TypeNaming.
func NewResolver(registry Registry, strategy Strategy) *Resolver {
	if registry == nil {
		registry = NewTypeRegistry()
	}
	if strategy == nil {
		strategy = TypeNaming
	}
	return &Resolver{registry: registry, strategy: strategy}
}

// Registry returns the underlying type registry
func (r *Resolver) Registry() Registry {
	return r.registry
}

// NameOf returns the canonical name of a message
func (r *Resolver) NameOf(msg contracts.Message) string {
	if msg == nil {
		return ""
	}
	t := contracts.TypeOf(msg)
	if name, ok := r.registry.NameOf(t); ok {
		return name
	}
	if declared := msg.GetType(); declared != "" {
		return declared
	}
	return r.strategy.TypeName(t)
}

// NameFor returns the canonical name of a message type
func (r *Resolver) NameFor(t reflect.Type) string {
	t = contracts.Indirect(t)
	if name, ok := r.registry.NameOf(t); ok {
		return name
	}
	return r.strategy.TypeName(t)
}
