package mutator

import (
	"sort"
	"time"

	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/table"
)

// VertexWriter composes primary-table mutations for vertices.
type VertexWriter struct{}

// Insert returns the put that materializes the vertex's primary row.
func (VertexWriter) Insert(v *graph.Vertex) table.Mutation {
	return table.NewPut(RowKey(v.ID()), v.UpdatedAt().UnixMilli(), elementCells(v)...)
}

// EdgeWriter composes primary-table mutations for edges.
type EdgeWriter struct{}

// Insert returns the put that materializes the edge's primary row,
// endpoint references included.
func (EdgeWriter) Insert(e *graph.Edge) table.Mutation {
	cells := elementCells(e)
	cells = append(cells,
		table.Cell{Qualifier: QualOut, Value: []byte(e.Out().ID)},
		table.Cell{Qualifier: QualOutLabel, Value: []byte(e.Out().Label)},
		table.Cell{Qualifier: QualIn, Value: []byte(e.In().ID)},
		table.Cell{Qualifier: QualInLabel, Value: []byte(e.In().Label)},
	)
	return table.NewPut(RowKey(e.ID()), e.UpdatedAt().UnixMilli(), cells...)
}

// PropertyWriter composes the primary-table mutation for a single property
// change on an already-loaded element.
type PropertyWriter struct{}

// Update returns the put recording the new value and the bumped update time.
func (PropertyWriter) Update(el graph.Element, key string, value graph.Value, now time.Time) table.Mutation {
	return table.NewPut(RowKey(el.ID()), now.UnixMilli(),
		table.Cell{Qualifier: key, Value: value.Encode()},
		table.Cell{Qualifier: QualUpdatedAt, Value: graph.TimestampValue(now).Encode()},
	)
}

// elementCells builds the reserved cells plus the user properties in sorted
// key order.
func elementCells(el graph.Element) []table.Cell {
	props := el.Properties()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cells := make([]table.Cell, 0, 3+len(keys))
	cells = append(cells,
		table.Cell{Qualifier: QualLabel, Value: []byte(el.Label())},
		table.Cell{Qualifier: QualCreatedAt, Value: graph.TimestampValue(el.CreatedAt()).Encode()},
		table.Cell{Qualifier: QualUpdatedAt, Value: graph.TimestampValue(el.UpdatedAt()).Encode()},
	)
	for _, k := range keys {
		cells = append(cells, table.Cell{Qualifier: k, Value: props[k].Encode()})
	}
	return cells
}
