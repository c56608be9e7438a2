// Package bulkload orchestrates the indexed write pipeline: graph mutations
// go in, ordered row mutations come out through four per-table batchers.
//
// Ordering guarantees are per table only. Within an index table, the
// retraction of a stale entry is enqueued before the insertion that replaces
// it; nothing orders index tables against primary tables. The inconsistency
// windows that opens are bounded by the flush interval and are left to read
// paths to tolerate.
package bulkload

import (
	"fmt"
	"sync"
	"time"

	"github.com/dd0wney/widegraph/pkg/graph"
	"github.com/dd0wney/widegraph/pkg/logging"
	"github.com/dd0wney/widegraph/pkg/metrics"
	"github.com/dd0wney/widegraph/pkg/mutator"
	"github.com/dd0wney/widegraph/pkg/table"
	"github.com/dd0wney/widegraph/pkg/validation"
)

// Loader is the write pipeline's entry point. One loader owns four batchers
// (vertices, vertex indices, edges, edge indices) over a shared store
// connection; the connection itself stays with the caller.
type Loader struct {
	cfg     Config
	log     logging.Logger
	metrics *metrics.Registry

	indices *graph.IndexRegistry
	policy  graph.PropertyPolicy

	vertices      *table.Batcher
	vertexIndices *table.Batcher
	edges         *table.Batcher
	edgeIndices   *table.Batcher

	vertexWriter      mutator.VertexWriter
	edgeWriter        mutator.EdgeWriter
	propertyWriter    mutator.PropertyWriter
	vertexIndexWriter *mutator.VertexIndexWriter
	edgeIndexWriter   *mutator.EdgeIndexWriter
	remover           mutator.IndexRemover

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewLoader opens the four tables on conn and starts their batchers. A nil
// registry means no properties are indexed; edges still receive their
// creation-time entries.
func NewLoader(conn table.Conn, indices *graph.IndexRegistry, cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, graph.ValidationError("NewLoader", err)
	}
	cfg = cfg.withDefaults()
	if indices == nil {
		indices = graph.NewIndexRegistry()
	}

	l := &Loader{
		cfg:               cfg,
		log:               cfg.Logger.With(logging.Component("bulkload")),
		metrics:           cfg.Metrics,
		indices:           indices,
		policy:            validation.Policy{},
		vertexIndexWriter: mutator.NewVertexIndexWriter(indices),
		edgeIndexWriter:   mutator.NewEdgeIndexWriter(indices),
	}

	bcfg := cfg.batcherConfig()
	var err error
	open := func(name string) *table.Batcher {
		if err != nil {
			return nil
		}
		var b *table.Batcher
		b, err = table.OpenBatcher(conn, name, bcfg)
		return b
	}
	l.vertices = open(mutator.VertexTable)
	l.vertexIndices = open(mutator.VertexIndexTable)
	l.edges = open(mutator.EdgeTable)
	l.edgeIndices = open(mutator.EdgeIndexTable)
	if err != nil {
		for _, b := range []*table.Batcher{l.vertices, l.vertexIndices, l.edges, l.edgeIndices} {
			if b != nil {
				b.Close()
			}
		}
		return nil, fmt.Errorf("open batchers: %w", err)
	}

	l.log.Info("loader ready",
		logging.Bool("skip_wal", cfg.SkipWAL),
		logging.Int("max_buffered", cfg.MaxBuffered),
		logging.Duration("flush_interval", cfg.FlushInterval),
		logging.Count(indices.Len()))

	return l, nil
}

// AddVertex validates, constructs, and enqueues a vertex with a generated
// id: index insertions first, then the primary row.
func (l *Loader) AddVertex(label string, props map[string]graph.Value) (*graph.Vertex, error) {
	return l.AddVertexWithID("", label, props)
}

// AddVertexWithID is AddVertex with a caller-chosen id, for datasets whose
// edges reference pre-assigned vertex ids. An empty id is generated.
func (l *Loader) AddVertexWithID(id graph.ID, label string, props map[string]graph.Value) (*graph.Vertex, error) {
	const op = "AddVertex"
	start := time.Now()

	if err := l.checkOpen(op); err != nil {
		return nil, err
	}
	if err := validation.ValidateLabel(label); err != nil {
		l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
		return nil, graph.ValidationError(op, err)
	}
	for k, val := range props {
		if err := l.policy.ValidateProperty(graph.VertexType, label, k, val); err != nil {
			l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
			return nil, graph.ValidationError(op, fmt.Errorf("property %s: %w", k, err))
		}
	}

	v := graph.NewVertex(id, label, time.Now(), props, l.indices)

	if muts := l.vertexIndexWriter.Insertions(v); len(muts) > 0 {
		if err := l.vertexIndices.Submit(muts...); err != nil {
			return nil, graph.NewError(op).Vertex(v.ID()).Cause(err).Err()
		}
		l.metrics.IndexEntriesWritten.Add(float64(len(muts)))
	}
	if err := l.vertices.Submit(l.vertexWriter.Insert(v)); err != nil {
		return nil, graph.NewError(op).Vertex(v.ID()).Cause(err).Err()
	}

	l.metrics.ElementsLoaded.WithLabelValues("vertex").Inc()
	l.metrics.RecordLoaderOperation(op, "ok", time.Since(start))
	l.log.Debug("vertex loaded",
		logging.ElementID(string(v.ID())),
		logging.Label(label))
	return v, nil
}

// AddEdge validates, constructs, and enqueues an edge between two vertex
// references. Every edge receives a creation-time index entry whether or
// not its label has descriptors; descriptor-driven insertions precede it,
// and the primary row follows.
func (l *Loader) AddEdge(out, in graph.VertexRef, label string, props map[string]graph.Value) (*graph.Edge, error) {
	const op = "AddEdge"
	start := time.Now()

	if err := l.checkOpen(op); err != nil {
		return nil, err
	}
	if in.IsZero() {
		l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
		return nil, graph.ValidationError(op, graph.ErrNilInVertex)
	}
	if out.IsZero() {
		l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
		return nil, graph.ValidationError(op, graph.ErrNilOutVertex)
	}
	if err := validation.ValidateLabel(label); err != nil {
		l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
		return nil, graph.ValidationError(op, err)
	}
	for k, val := range props {
		if err := l.policy.ValidateProperty(graph.EdgeType, label, k, val); err != nil {
			l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
			return nil, graph.ValidationError(op, fmt.Errorf("property %s: %w", k, err))
		}
	}

	e, err := graph.NewEdge("", label, time.Now(), props, out, in, l.indices)
	if err != nil {
		return nil, graph.ValidationError(op, err)
	}

	muts := l.edgeIndexWriter.Insertions(e)
	if err := l.edgeIndices.Submit(muts...); err != nil {
		return nil, graph.NewError(op).Edge(e.ID()).Cause(err).Err()
	}
	l.metrics.IndexEntriesWritten.Add(float64(len(muts)))
	if err := l.edges.Submit(l.edgeWriter.Insert(e)); err != nil {
		return nil, graph.NewError(op).Edge(e.ID()).Cause(err).Err()
	}

	l.metrics.ElementsLoaded.WithLabelValues("edge").Inc()
	l.metrics.RecordLoaderOperation(op, "ok", time.Since(start))
	l.log.Debug("edge loaded",
		logging.ElementID(string(e.ID())),
		logging.Label(label))
	return e, nil
}

// SetProperty changes one property with index maintenance in a fixed order:
// retract the old index entry, mutate the element, insert the new entry,
// write the primary cell. Setting a property to its current value is a
// complete no-op that emits nothing.
//
// Elements are mutated in place and carry no locking; callers sharing one
// element across goroutines must serialize SetProperty calls on it.
func (l *Loader) SetProperty(el graph.Element, key string, value graph.Value) error {
	const op = "SetProperty"
	start := time.Now()

	if err := l.checkOpen(op); err != nil {
		return err
	}
	if el == nil {
		return graph.ValidationError(op, graph.ErrUnknownElement)
	}
	if err := l.policy.ValidateProperty(el.Type(), el.Label(), key, value); err != nil {
		l.metrics.RecordLoaderOperation(op, "invalid", time.Since(start))
		return graph.ValidationError(op, fmt.Errorf("property %s: %w", key, err))
	}

	indexed := el.HasIndex(graph.WriteScope, key)
	current, had := el.Property(key)

	if had && current.Equal(value) {
		l.metrics.PropertyNoOpsTotal.Inc()
		l.metrics.RecordLoaderOperation(op, "noop", time.Since(start))
		return nil
	}

	now := time.Now()

	// Retraction goes first so the stale entry never outlives the change
	// within the index table's ordering.
	if indexed && had {
		if err := l.indexBatcherFor(el).Submit(l.remover.Removal(el, key, current, now)); err != nil {
			return graph.NewError(op).Elem(el).Key(key).Cause(err).Err()
		}
		l.metrics.IndexEntriesRemoved.Inc()
	}

	el.SetPropertyInternal(key, value, now)

	if indexed {
		if m, ok := l.indexInsertionFor(el, key); ok {
			if err := l.indexBatcherFor(el).Submit(m); err != nil {
				return graph.NewError(op).Elem(el).Key(key).Cause(err).Err()
			}
			l.metrics.IndexEntriesWritten.Inc()
		}
	}

	if err := l.primaryBatcherFor(el).Submit(l.propertyWriter.Update(el, key, value, now)); err != nil {
		return graph.NewError(op).Elem(el).Key(key).Cause(err).Err()
	}

	l.metrics.RecordLoaderOperation(op, "ok", time.Since(start))
	return nil
}

// IndexVertex writes index entries for v under the supplied descriptors,
// regardless of what the registry currently holds. Used to populate a newly
// created index over elements loaded earlier. Descriptors for other element
// types or labels are skipped.
func (l *Loader) IndexVertex(v *graph.Vertex, descriptors []graph.IndexDescriptor) error {
	const op = "IndexVertex"
	start := time.Now()

	if err := l.checkOpen(op); err != nil {
		return err
	}

	muts := make([]table.Mutation, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Element != graph.VertexType || d.Label != v.Label() {
			continue
		}
		if m, ok := l.vertexIndexWriter.Insertion(v, d.Property); ok {
			muts = append(muts, m)
		}
	}
	if len(muts) == 0 {
		l.metrics.RecordLoaderOperation(op, "noop", time.Since(start))
		return nil
	}
	if err := l.vertexIndices.Submit(muts...); err != nil {
		return graph.NewError(op).Vertex(v.ID()).Cause(err).Err()
	}
	l.metrics.IndexEntriesWritten.Add(float64(len(muts)))
	l.metrics.RecordLoaderOperation(op, "ok", time.Since(start))
	return nil
}

// IndexEdge is IndexVertex for edges. The creation-time entry is not
// rewritten here; it exists from AddEdge.
func (l *Loader) IndexEdge(e *graph.Edge, descriptors []graph.IndexDescriptor) error {
	const op = "IndexEdge"
	start := time.Now()

	if err := l.checkOpen(op); err != nil {
		return err
	}

	muts := make([]table.Mutation, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Element != graph.EdgeType || d.Label != e.Label() {
			continue
		}
		if m, ok := l.edgeIndexWriter.Insertion(e, d.Property); ok {
			muts = append(muts, m)
		}
	}
	if len(muts) == 0 {
		l.metrics.RecordLoaderOperation(op, "noop", time.Since(start))
		return nil
	}
	if err := l.edgeIndices.Submit(muts...); err != nil {
		return graph.NewError(op).Edge(e.ID()).Cause(err).Err()
	}
	l.metrics.IndexEntriesWritten.Add(float64(len(muts)))
	l.metrics.RecordLoaderOperation(op, "ok", time.Since(start))
	return nil
}

// Flush synchronously flushes all four batchers in the close order and
// returns the first error.
func (l *Loader) Flush() error {
	var first error
	for _, b := range l.batchers() {
		if err := b.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close drains and closes the four batchers in fixed order: vertex rows,
// vertex index rows, edge rows, edge index rows. It returns the first flush
// error observed over the loader's lifetime. The store connection stays
// open; the caller owns it.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		for _, b := range l.batchers() {
			if err := b.Close(); err != nil && l.closeErr == nil {
				l.closeErr = graph.NewError("Close").Cause(err).Err()
			}
		}

		stats := l.Stats()
		l.log.Info("loader closed",
			logging.Uint64("submitted", stats.Submitted()),
			logging.Uint64("flushed", stats.Flushed()),
			logging.Uint64("failed", stats.Failed()))
	})
	return l.closeErr
}

func (l *Loader) checkOpen(op string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return graph.NewError(op).Cause(graph.ErrLoaderClosed).Err()
	}
	return nil
}

func (l *Loader) batchers() []*table.Batcher {
	return []*table.Batcher{l.vertices, l.vertexIndices, l.edges, l.edgeIndices}
}

func (l *Loader) primaryBatcherFor(el graph.Element) *table.Batcher {
	if el.Type() == graph.EdgeType {
		return l.edges
	}
	return l.vertices
}

func (l *Loader) indexBatcherFor(el graph.Element) *table.Batcher {
	if el.Type() == graph.EdgeType {
		return l.edgeIndices
	}
	return l.vertexIndices
}

func (l *Loader) indexInsertionFor(el graph.Element, key string) (table.Mutation, bool) {
	if el.Type() == graph.EdgeType {
		return l.edgeIndexWriter.Insertion(el, key)
	}
	return l.vertexIndexWriter.Insertion(el, key)
}
