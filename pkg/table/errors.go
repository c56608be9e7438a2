package table

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations
var (
	// ErrRowNotFound indicates a Get on an absent row
	ErrRowNotFound = errors.New("row not found")

	// ErrTableClosed indicates an operation on a closed table or connection
	ErrTableClosed = errors.New("table closed")

	// ErrBatcherClosed indicates a Submit after Close
	ErrBatcherClosed = errors.New("batcher closed")
)

// FlushError reports a failed batch flush against one table. It wraps the
// store's error and records how many mutations were in the failed batch.
type FlushError struct {
	Table     string
	Mutations int
	Cause     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush of %d mutations to table %q failed: %v", e.Mutations, e.Table, e.Cause)
}

// Unwrap returns the underlying store error.
func (e *FlushError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err indicates an absent row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRowNotFound)
}
