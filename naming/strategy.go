package naming

import (
	"reflect"
	"strings"
	"unicode"
)

// Strategy derives message names from Go types.
type Strategy interface {
	TypeName(t reflect.Type) string
}

// TypeNaming uses the Go type name unchanged.
// Example: OrderPlaced → "OrderPlaced"
var TypeNaming Strategy = typeNaming{}

// KebabNaming converts PascalCase to dot-separated lowercase.
// Example: OrderPlaced → "order.placed"
var KebabNaming Strategy = kebabNaming{}

// SnakeNaming converts PascalCase to underscore-separated lowercase.
// Example: OrderPlaced → "order_placed"
var SnakeNaming Strategy = snakeNaming{}

// StrategyByName returns the strategy for "type", "kebab" or "snake"
func StrategyByName(name string) (Strategy, bool) {
	switch strings.ToLower(name) {
	case "", "type":
		return TypeNaming, true
	case "kebab":
		return KebabNaming, true
	case "snake":
		return SnakeNaming, true
	default:
		return nil, false
	}
}

type typeNaming struct{}

func (typeNaming) TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

type kebabNaming struct{}

func (kebabNaming) TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return splitPascalCase(t.Name(), ".")
}

type snakeNaming struct{}

func (snakeNaming) TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return splitPascalCase(t.Name(), "_")
}

// splitPascalCase splits a PascalCase string into lowercase words joined by sep.
// Runs of capitals stay together: HTTPRequest → http.request
func splitPascalCase(s string, sep string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var words []string
	var current strings.Builder

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevUpper := unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !prevUpper || nextLower {
				words = append(words, strings.ToLower(current.String()))
				current.Reset()
			}
		}
		current.WriteRune(r)
	}

	if current.Len() > 0 {
		words = append(words, strings.ToLower(current.String()))
	}

	return strings.Join(words, sep)
}
