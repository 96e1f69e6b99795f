package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/glimte/mmate-dispatch/contracts"
)

const draft07 = "http://json-schema.org/draft-07/schema#"

var timeType = reflect.TypeOf(time.Time{})

// Generator derives JSON schemas from Go types following encoding/json
// field rules: embedded structs are flattened, json tags rename fields
// and omitempty fields are optional.
type Generator struct {
	seen map[reflect.Type]bool
}

// NewGenerator creates a new JSON schema generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns the schema document for a message type
func (g *Generator) Generate(t reflect.Type, title string) (json.RawMessage, error) {
	t = contracts.Indirect(t)
	if t == nil {
		return nil, fmt.Errorf("type cannot be nil")
	}
	if title == "" {
		title = t.Name()
	}

	g.seen = make(map[reflect.Type]bool)
	doc := g.generate(t)
	doc["$schema"] = draft07
	doc["title"] = title
	return json.Marshal(doc)
}

func (g *Generator) generate(t reflect.Type) map[string]interface{} {
	t = contracts.Indirect(t)

	switch t.Kind() {
	case reflect.String:
		return map[string]interface{}{"type": "string"}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]interface{}{"type": "integer"}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]interface{}{"type": "integer", "minimum": 0}

	case reflect.Float32, reflect.Float64:
		return map[string]interface{}{"type": "number"}

	case reflect.Bool:
		return map[string]interface{}{"type": "boolean"}

	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return map[string]interface{}{"type": "string", "contentEncoding": "base64"}
		}
		return map[string]interface{}{"type": "array", "items": g.generate(t.Elem())}

	case reflect.Map:
		return map[string]interface{}{"type": "object", "additionalProperties": g.generate(t.Elem())}

	case reflect.Struct:
		if t == timeType {
			return map[string]interface{}{"type": "string", "format": "date-time"}
		}
		if g.seen[t] {
			// recursive reference
			return map[string]interface{}{"type": "object"}
		}
		g.seen[t] = true
		defer delete(g.seen, t)

		properties := make(map[string]interface{})
		var required []string
		g.collectFields(t, properties, &required)

		schema := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema

	default:
		// interfaces and anything JSON cannot describe statically
		return map[string]interface{}{}
	}
}

func (g *Generator) collectFields(t reflect.Type, properties map[string]interface{}, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, omitempty := parseTag(tag)

		if field.Anonymous && name == "" {
			ft := contracts.Indirect(field.Type)
			if ft.Kind() == reflect.Struct {
				g.collectFields(ft, properties, required)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		fieldSchema := g.generate(field.Type)
		if desc := field.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}
		properties[name] = fieldSchema
		if !omitempty && field.Type.Kind() != reflect.Ptr {
			*required = append(*required, name)
		}
	}
}

func parseTag(tag string) (name string, omitempty bool) {
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return parts[0], omitempty
}
