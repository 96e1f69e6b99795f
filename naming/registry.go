package naming

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/glimte/mmate-dispatch/contracts"
)

// Registry maps message names to Go types and back
type Registry interface {
	// Register registers a message type under a name
	Register(name string, sample interface{}) error

	// RegisterType registers a message type under its package-qualified struct name
	RegisterType(sample interface{}) error

	// Get retrieves the type registered for a name
	Get(name string) (reflect.Type, error)

	// NameOf returns the name registered for a type
	NameOf(t reflect.Type) (string, bool)

	// CreateInstance creates a new pointer instance of the registered type
	CreateInstance(name string) (interface{}, error)

	// IsRegistered checks if a name is registered
	IsRegistered(name string) bool

	// ListTypes returns all registered names, sorted
	ListTypes() []string
}

// TypeRegistry is the default thread-safe Registry
type TypeRegistry struct {
	types map[string]reflect.Type
	names map[reflect.Type]string
	mu    sync.RWMutex
}

// NewTypeRegistry creates an empty type registry
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: make(map[string]reflect.Type),
		names: make(map[reflect.Type]string),
	}
}

// Register registers a message type with a name
func (r *TypeRegistry) Register(name string, sample interface{}) error {
	if name == "" {
		return fmt.Errorf("message name cannot be empty")
	}
	if sample == nil {
		return fmt.Errorf("message type cannot be nil")
	}

	t := contracts.Indirect(reflect.TypeOf(sample))
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("message type must be a struct, got %v", t.Kind())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.types[name]; exists {
		if existing == t {
			return nil
		}
		return fmt.Errorf("message name %s already registered to %v", name, existing)
	}
	if existing, exists := r.names[t]; exists {
		return fmt.Errorf("type %v already registered as %s", t, existing)
	}

	r.types[name] = t
	r.names[t] = name
	return nil
}

// RegisterType registers a message type using its package-qualified name
func (r *TypeRegistry) RegisterType(sample interface{}) error {
	if sample == nil {
		return fmt.Errorf("message type cannot be nil")
	}

	t := contracts.Indirect(reflect.TypeOf(sample))
	name := t.Name()
	if name == "" {
		return fmt.Errorf("cannot determine type name for %v", t)
	}
	if t.PkgPath() != "" {
		name = t.PkgPath() + "." + name
	}

	return r.Register(name, sample)
}

// Get retrieves the type for a given name
func (r *TypeRegistry) Get(name string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, exists := r.types[name]
	if !exists {
		return nil, fmt.Errorf("message name %s not registered", name)
	}
	return t, nil
}

// NameOf returns the registered name for a type
func (r *TypeRegistry) NameOf(t reflect.Type) (string, bool) {
	t = contracts.Indirect(t)

	r.mu.RLock()
	defer r.mu.RUnlock()

	name, exists := r.names[t]
	return name, exists
}

// CreateInstance creates a new instance of the registered type as a pointer
func (r *TypeRegistry) CreateInstance(name string) (interface{}, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return reflect.New(t).Interface(), nil
}

// IsRegistered checks if a name is registered
func (r *TypeRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.types[name]
	return exists
}

// ListTypes returns all registered names
func (r *TypeRegistry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ Registry = (*TypeRegistry)(nil)
