package mutator

import (
	"time"

	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/table"
)

// VertexIndexWriter composes vertex-index insertions.
type VertexIndexWriter struct {
	indices *graph.IndexRegistry
}

// NewVertexIndexWriter creates a writer resolving descriptors from indices.
func NewVertexIndexWriter(indices *graph.IndexRegistry) *VertexIndexWriter {
	return &VertexIndexWriter{indices: indices}
}

// Insertions returns one index put per write-scope descriptor matching the
// vertex's label, for each indexed property the vertex actually carries.
func (w *VertexIndexWriter) Insertions(v *graph.Vertex) []table.Mutation {
	descriptors := w.indices.ResolveIndices(graph.VertexType, v.Label(), graph.WriteScope)
	muts := make([]table.Mutation, 0, len(descriptors))
	for _, d := range descriptors {
		if m, ok := indexInsertion(v, d.Property); ok {
			muts = append(muts, m)
		}
	}
	return muts
}

// Insertion returns the single index put mirroring el's current value for
// key. ok is false when the element does not carry the property.
func (w *VertexIndexWriter) Insertion(el graph.Element, key string) (table.Mutation, bool) {
	return indexInsertion(el, key)
}

// EdgeIndexWriter composes edge-index insertions, including the
// creation-time entry every edge receives.
type EdgeIndexWriter struct {
	indices *graph.IndexRegistry
}

// NewEdgeIndexWriter creates a writer resolving descriptors from indices.
func NewEdgeIndexWriter(indices *graph.IndexRegistry) *EdgeIndexWriter {
	return &EdgeIndexWriter{indices: indices}
}

// Insertions returns the descriptor-driven puts followed by the
// creation-time entry.
func (w *EdgeIndexWriter) Insertions(e *graph.Edge) []table.Mutation {
	descriptors := w.indices.ResolveIndices(graph.EdgeType, e.Label(), graph.WriteScope)
	muts := make([]table.Mutation, 0, len(descriptors)+1)
	for _, d := range descriptors {
		if m, ok := indexInsertion(e, d.Property); ok {
			muts = append(muts, m)
		}
	}
	muts = append(muts, w.CreationEntry(e))
	return muts
}

// Insertion returns the single index put mirroring el's current value for
// key. ok is false when the element does not carry the property.
func (w *EdgeIndexWriter) Insertion(el graph.Element, key string) (table.Mutation, bool) {
	return indexInsertion(el, key)
}

// CreationEntry returns the creation-time index entry, written for every
// edge regardless of registered descriptors so edges stay retrievable in
// creation order.
func (w *EdgeIndexWriter) CreationEntry(e *graph.Edge) table.Mutation {
	return indexPut(e, CreatedAtKey, graph.TimestampValue(e.CreatedAt()), e.CreatedAt().UnixMilli())
}

// IndexRemover composes the retraction of one index entry. The loader emits
// removals before the element mutation so a stale entry never survives the
// property change inside its table's ordering.
type IndexRemover struct{}

// Removal returns the delete retracting the entry keyed by the old value.
func (IndexRemover) Removal(el graph.Element, key string, old graph.Value, now time.Time) table.Mutation {
	return table.NewDelete(IndexRowKey(el.Label(), key, old, el.ID()), now.UnixMilli())
}

func indexInsertion(el graph.Element, key string) (table.Mutation, bool) {
	value, ok := el.Property(key)
	if !ok {
		return table.Mutation{}, false
	}
	return indexPut(el, key, value, el.UpdatedAt().UnixMilli()), true
}

func indexPut(el graph.Element, key string, value graph.Value, ts int64) table.Mutation {
	return table.NewPut(IndexRowKey(el.Label(), key, value, el.ID()), ts,
		table.Cell{Qualifier: QualElementID, Value: []byte(el.ID())},
		table.Cell{Qualifier: QualLabel, Value: []byte(el.Label())},
		table.Cell{Qualifier: QualValue, Value: value.Encode()},
		table.Cell{Qualifier: QualWrittenAt, Value: graph.TimestampValue(time.UnixMilli(ts)).Encode()},
	)
}
