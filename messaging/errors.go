package messaging

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrNilMessage is returned when a nil message is dispatched
	ErrNilMessage = errors.New("message cannot be nil")

	// ErrNoSelector is returned when no selector claims a message
	ErrNoSelector = errors.New("no handler selector claims the message")

	// ErrMissingHandler matches every MissingHandlerError
	ErrMissingHandler = errors.New("missing message handler")

	// ErrAmbiguousHandler matches every AmbiguousHandlerError
	ErrAmbiguousHandler = errors.New("ambiguous message handler")

	// ErrInvalidRegistration is returned for malformed registrations
	ErrInvalidRegistration = errors.New("invalid registration")
)

// MissingHandlerError reports that no handler matches a message
type MissingHandlerError struct {
	MessageType reflect.Type
	MessageName string
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("no handler registered for message type %s (name %q)", typeName(e.MessageType), e.MessageName)
}

// Is matches ErrMissingHandler
func (e *MissingHandlerError) Is(target error) bool {
	return target == ErrMissingHandler
}

// AmbiguousHandlerError reports several handlers sharing the best override rank
type AmbiguousHandlerError struct {
	MessageType      reflect.Type
	MessageName      string
	OverridePriority Priority
	Candidates       []string
}

func (e *AmbiguousHandlerError) Error() string {
	return fmt.Sprintf("ambiguous handlers for message type %s (name %q) at override priority %d: %s",
		typeName(e.MessageType), e.MessageName, e.OverridePriority, strings.Join(e.Candidates, ", "))
}

// Is matches ErrAmbiguousHandler
func (e *AmbiguousHandlerError) Is(target error) bool {
	return target == ErrAmbiguousHandler
}

// ConfigurationError wraps a resolution or registration failure with
// the operation and message it concerns.
type ConfigurationError struct {
	Op          string
	MessageType reflect.Type
	MessageName string
	Err         error
}

func (e *ConfigurationError) Error() string {
	if e.MessageType == nil && e.MessageName == "" {
		return fmt.Sprintf("configuration error in %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("configuration error in %s for %s (name %q): %v", e.Op, typeName(e.MessageType), e.MessageName, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err stems from the registry setup
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsResolutionError reports whether err is a missing or ambiguous handler
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrMissingHandler) || errors.Is(err, ErrAmbiguousHandler)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<any>"
	}
	return t.String()
}
