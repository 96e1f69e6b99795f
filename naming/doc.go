// Package naming resolves canonical message names.
//
// A message name is the secondary resolution key used by handler selectors.
// Names come from an explicit TypeRegistry, from the message itself, or are
// derived from the Go type by a Strategy (TypeNaming, KebabNaming, SnakeNaming).
package naming
