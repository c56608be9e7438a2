package bulkload

import "github.com/dd0wney/widegraph/pkg/table"

// Stats is a point-in-time snapshot of the loader's four batchers.
type Stats struct {
	Vertices      table.BatcherStats
	VertexIndices table.BatcherStats
	Edges         table.BatcherStats
	EdgeIndices   table.BatcherStats
}

// Stats returns a snapshot of the loader's batcher counters.
func (l *Loader) Stats() Stats {
	return Stats{
		Vertices:      l.vertices.Stats(),
		VertexIndices: l.vertexIndices.Stats(),
		Edges:         l.edges.Stats(),
		EdgeIndices:   l.edgeIndices.Stats(),
	}
}

// Tables returns the per-table snapshots in the loader's close order.
func (s Stats) Tables() []table.BatcherStats {
	return []table.BatcherStats{s.Vertices, s.VertexIndices, s.Edges, s.EdgeIndices}
}

// Submitted returns total mutations submitted across all tables.
func (s Stats) Submitted() uint64 {
	var n uint64
	for _, t := range s.Tables() {
		n += t.Submitted
	}
	return n
}

// Flushed returns total mutations durably flushed across all tables.
func (s Stats) Flushed() uint64 {
	var n uint64
	for _, t := range s.Tables() {
		n += t.Flushed
	}
	return n
}

// Failed returns total mutations in failed flushes across all tables.
func (s Stats) Failed() uint64 {
	var n uint64
	for _, t := range s.Tables() {
		n += t.Failed
	}
	return n
}

// Buffered returns mutations currently awaiting flush across all tables.
func (s Stats) Buffered() int {
	var n int
	for _, t := range s.Tables() {
		n += t.Buffered
	}
	return n
}
