package graph

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrEmptyLabel     = errors.New("label is empty")
	ErrInvalidLabel   = errors.New("invalid label")
	ErrEmptyKey       = errors.New("property key is empty")
	ErrInvalidKey     = errors.New("invalid property key")
	ErrNilValue       = errors.New("property value is nil")
	ErrNilInVertex    = errors.New("in vertex is nil")
	ErrNilOutVertex   = errors.New("out vertex is nil")
	ErrLoaderClosed   = errors.New("loader is closed")
	ErrDuplicateIndex = errors.New("index descriptor already registered")
	ErrUnknownElement = errors.New("unknown element type")
	ErrValidationFail = errors.New("validation failed")
)

// Error provides structured error information for pipeline operations.
type Error struct {
	Op      string      // Operation that failed (e.g., "AddVertex", "SetProperty")
	Element ElementType // Element kind the operation targeted
	ID      ID          // Element ID (if known)
	Key     string      // Property key (for property operations)
	Cause   error       // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Element == ElementUnknown {
		if e.Key != "" {
			return fmt.Sprintf("%s (key %s): %v", e.Op, e.Key, e.Cause)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	entity := e.Element.String()
	if !e.ID.IsEmpty() {
		if e.Key != "" {
			return fmt.Sprintf("%s %s %s (key %s): %v", e.Op, entity, e.ID, e.Key, e.Cause)
		}
		return fmt.Sprintf("%s %s %s: %v", e.Op, entity, e.ID, e.Cause)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s %s (key %s): %v", e.Op, entity, e.Key, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, entity, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error or its cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// ErrorBuilder provides a fluent interface for building pipeline errors.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new error builder with the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Op: op}}
}

// Vertex sets the element to vertex with the given ID.
func (b *ErrorBuilder) Vertex(id ID) *ErrorBuilder {
	b.err.Element = VertexType
	b.err.ID = id
	return b
}

// Edge sets the element to edge with the given ID.
func (b *ErrorBuilder) Edge(id ID) *ErrorBuilder {
	b.err.Element = EdgeType
	b.err.ID = id
	return b
}

// Elem sets the element type and ID from an existing element.
func (b *ErrorBuilder) Elem(el Element) *ErrorBuilder {
	b.err.Element = el.Type()
	b.err.ID = el.ID()
	return b
}

// Key sets the property key for property operations.
func (b *ErrorBuilder) Key(key string) *ErrorBuilder {
	b.err.Key = key
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	return &b.err
}

// Convenience functions for common error patterns

// ValidationError wraps a validation failure for an operation.
func ValidationError(op string, cause error) error {
	return NewError(op).Cause(fmt.Errorf("%w: %w", ErrValidationFail, cause)).Err()
}

// IsValidation returns true if the error was raised by input validation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidationFail)
}

// IsClosed returns true if the error indicates the loader is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrLoaderClosed)
}
