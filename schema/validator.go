package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/glimte/mmate-dispatch/contracts"
	"github.com/glimte/mmate-dispatch/naming"
	"github.com/xeipuuv/gojsonschema"
)

// FieldError is a single schema violation
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationError reports every violation found in a message
type ValidationError struct {
	MessageName string       `json:"messageName"`
	Errors      []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fmt.Sprintf("message %s failed schema validation: %s", e.MessageName, strings.Join(parts, "; "))
}

// Validator checks messages against JSON schemas registered per
// message name. Messages without a schema pass.
type Validator struct {
	resolver  *naming.Resolver
	generator *Generator
	strict    bool

	mu      sync.RWMutex
	schemas map[string]*entry
}

type entry struct {
	raw      json.RawMessage
	compiled *gojsonschema.Schema
}

// ValidatorOption configures the Validator
type ValidatorOption func(*Validator)

// WithResolver sets the resolver used to name messages
func WithResolver(resolver *naming.Resolver) ValidatorOption {
	return func(v *Validator) {
		if resolver != nil {
			v.resolver = resolver
		}
	}
}

// WithStrictMode rejects messages that have no registered schema
func WithStrictMode(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator creates a new schema validator
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		resolver:  naming.NewResolver(nil, nil),
		generator: NewGenerator(),
		schemas:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Register compiles and stores a schema document for a message name
func (v *Validator) Register(messageName string, document []byte) error {
	if messageName == "" {
		return fmt.Errorf("message name cannot be empty")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", messageName, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[messageName] = &entry{raw: append(json.RawMessage(nil), document...), compiled: compiled}
	return nil
}

// RegisterType generates the schema of sample's type and registers it
// under the type's resolved name.
func (v *Validator) RegisterType(sample interface{}) (string, error) {
	t := contracts.Indirect(reflect.TypeOf(sample))
	if t == nil {
		return "", fmt.Errorf("sample cannot be nil")
	}
	name := v.resolver.NameFor(t)
	document, err := v.generator.Generate(t, name)
	if err != nil {
		return "", err
	}
	return name, v.Register(name, document)
}

// LoadDir registers every *.json file in dir under its base name, so
// orders.placed.json holds the schema of "orders.placed".
func (v *Validator) LoadDir(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	for _, path := range paths {
		document, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to read schema %s: %w", path, err)
		}
		if err := v.Register(strings.TrimSuffix(filepath.Base(path), ".json"), document); err != nil {
			return 0, err
		}
	}
	return len(paths), nil
}

// Schema returns the raw schema registered for a message name
func (v *Validator) Schema(messageName string) (json.RawMessage, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.schemas[messageName]
	if !ok {
		return nil, false
	}
	return e.raw, true
}

// Names lists the message names that have schemas
func (v *Validator) Names() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.schemas))
	for name := range v.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks msg against the schema of its resolved name
func (v *Validator) Validate(ctx context.Context, msg contracts.Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	return v.ValidateNamed(ctx, v.resolver.NameOf(msg), msg)
}

// ValidateNamed checks msg against the schema registered for name.
// Adapters are validated by their payload.
func (v *Validator) ValidateNamed(ctx context.Context, name string, msg contracts.Message) error {
	v.mu.RLock()
	e, ok := v.schemas[name]
	v.mu.RUnlock()
	if !ok {
		if v.strict {
			return &ValidationError{MessageName: name, Errors: []FieldError{{
				Field: "(root)", Message: "no schema registered", Code: "schema_missing",
			}}}
		}
		return nil
	}

	var document interface{} = msg
	if adapter, ok := msg.(contracts.MessageAdapter); ok {
		document = adapter.GetPayload()
	}
	body, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal %s for validation: %w", name, err)
	}

	result, err := e.compiled.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{MessageName: name}
	for _, desc := range result.Errors() {
		verr.Errors = append(verr.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return verr
}
