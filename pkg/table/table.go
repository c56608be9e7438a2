package table

import "context"

// Row is one materialized row read back from a table.
type Row struct {
	Key     []byte
	Columns map[string][]byte
}

// Table is one logical wide-column table.
//
// Apply commits a batch of mutations in slice order. Implementations honor
// each mutation's Durability tag as closely as the backend allows.
type Table interface {
	// Name returns the table's name.
	Name() string
	// Apply commits the batch. A non-nil error means the batch as a whole
	// was not durably applied.
	Apply(ctx context.Context, muts []Mutation) error
	// Get reads a single row. Returns ErrRowNotFound if absent.
	Get(ctx context.Context, row []byte) (*Row, error)
	// Scan visits rows with key in [start, end) in ascending key order,
	// stopping early when fn returns false. A nil end means "to the last
	// row".
	Scan(ctx context.Context, start, end []byte, fn func(*Row) bool) error
	// Close releases the table handle.
	Close() error
}

// Conn is a connection to a wide-column store. Table opens (creating if
// absent) a named table; handles remain valid until Close.
type Conn interface {
	Table(name string) (Table, error)
	Close() error
}

// FailureListener receives batches that failed an asynchronous flush,
// together with the flush error. It is invoked from the batcher's flusher
// goroutine; implementations must not block for long.
type FailureListener func(muts []Mutation, err error)

// OpenBatcher opens the named table on conn and wraps it in a Batcher.
func OpenBatcher(conn Conn, name string, cfg BatcherConfig) (*Batcher, error) {
	t, err := conn.Table(name)
	if err != nil {
		return nil, err
	}
	return NewBatcher(t, cfg), nil
}
