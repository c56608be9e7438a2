// Package table models a sparse wide-column store: named tables of rows,
// row-level mutations, and an asynchronous batcher that buffers mutations
// and flushes them in the background.
package table

// Durability selects how a mutation is persisted by the backing store.
type Durability uint8

const (
	// UseDefault applies the store's normal write-ahead logging.
	UseDefault Durability = iota
	// SkipWAL forgoes write-ahead logging for throughput. A crash can lose
	// mutations that were applied but not yet synced.
	SkipWAL
)

// String returns the string representation of a durability level
func (d Durability) String() string {
	switch d {
	case UseDefault:
		return "default"
	case SkipWAL:
		return "skip-wal"
	default:
		return "unknown"
	}
}

// Kind discriminates row mutations.
type Kind uint8

const (
	// KindPut writes one or more cells into a row.
	KindPut Kind = iota
	// KindDelete removes specific cells, or the whole row when no
	// qualifiers are named.
	KindDelete
)

// Cell is a single qualifier/value pair within a row.
type Cell struct {
	Qualifier string
	Value     []byte
}

// Mutation is one row-level change destined for a table.
//
// For KindPut, Cells holds the cells to write. For KindDelete, Cells names
// the qualifiers to remove (values ignored); an empty Cells deletes the row.
type Mutation struct {
	Kind       Kind
	Row        []byte
	Cells      []Cell
	Timestamp  int64 // unix milliseconds
	Durability Durability
}

// NewPut builds a put mutation for the given row.
func NewPut(row []byte, ts int64, cells ...Cell) Mutation {
	return Mutation{Kind: KindPut, Row: row, Cells: cells, Timestamp: ts}
}

// NewDelete builds a delete mutation for the given row. With no qualifiers
// the whole row is deleted.
func NewDelete(row []byte, ts int64, qualifiers ...string) Mutation {
	cells := make([]Cell, 0, len(qualifiers))
	for _, q := range qualifiers {
		cells = append(cells, Cell{Qualifier: q})
	}
	return Mutation{Kind: KindDelete, Row: row, Cells: cells, Timestamp: ts}
}

// Qualifiers returns the qualifier names carried by the mutation.
func (m Mutation) Qualifiers() []string {
	qs := make([]string, 0, len(m.Cells))
	for _, c := range m.Cells {
		qs = append(qs, c.Qualifier)
	}
	return qs
}
