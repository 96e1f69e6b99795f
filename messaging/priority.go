package messaging

import (
	"math"
	"sort"
)

// Priority ranks registrations. Lower values take precedence: they win
// override contests and run earlier in processing order.
type Priority int

const (
	Highest     Priority = math.MinInt32
	High        Priority = -1000
	AboveNormal Priority = -100
	Normal      Priority = 0
	BelowNormal Priority = 100
	Low         Priority = 1000
	Lowest      Priority = math.MaxInt32
)

// Metadata carries the ranking shared by handler, selector and behavior registrations
type Metadata struct {
	Name string

	// OverridePriority decides which implementation replaces the others
	OverridePriority Priority

	// ProcessingPriority orders peers that do not replace each other
	ProcessingPriority Priority

	index int
}

// RegistrationOption configures a registration
type RegistrationOption func(*registrationOptions)

type registrationOptions struct {
	Metadata
	messageName string
}

// Named sets the registration name used in logs and diagnostics
func Named(name string) RegistrationOption {
	return func(o *registrationOptions) {
		o.Name = name
	}
}

// WithOverridePriority sets the override rank
func WithOverridePriority(p Priority) RegistrationOption {
	return func(o *registrationOptions) {
		o.OverridePriority = p
	}
}

// WithProcessingPriority sets the processing rank
func WithProcessingPriority(p Priority) RegistrationOption {
	return func(o *registrationOptions) {
		o.ProcessingPriority = p
	}
}

// ForMessageName restricts a handler or behavior to one message name
func ForMessageName(name string) RegistrationOption {
	return func(o *registrationOptions) {
		o.messageName = name
	}
}

func applyRegistrationOptions(opts []RegistrationOption) registrationOptions {
	o := registrationOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// byOverrideThenProcessing orders selector-style registrations
func byOverrideThenProcessing(a, b Metadata) bool {
	if a.OverridePriority != b.OverridePriority {
		return a.OverridePriority < b.OverridePriority
	}
	if a.ProcessingPriority != b.ProcessingPriority {
		return a.ProcessingPriority < b.ProcessingPriority
	}
	return a.index < b.index
}

// byProcessingThenOverride orders behavior-style registrations
func byProcessingThenOverride(a, b Metadata) bool {
	if a.ProcessingPriority != b.ProcessingPriority {
		return a.ProcessingPriority < b.ProcessingPriority
	}
	if a.OverridePriority != b.OverridePriority {
		return a.OverridePriority < b.OverridePriority
	}
	return a.index < b.index
}

func sortByMetadata[T any](items []T, meta func(T) Metadata, less func(a, b Metadata) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		return less(meta(items[i]), meta(items[j]))
	})
}
