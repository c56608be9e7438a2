package graph

import (
	"fmt"
	"time"
)

// ElementType discriminates vertices from edges.
type ElementType uint8

const (
	ElementUnknown ElementType = iota
	VertexType
	EdgeType
)

// String returns the element type name
func (t ElementType) String() string {
	switch t {
	case VertexType:
		return "vertex"
	case EdgeType:
		return "edge"
	default:
		return "element"
	}
}

// IndexScope identifies when an index descriptor applies. The write
// pipeline acts only on WriteScope descriptors; others are carried for
// completeness and ignored here.
type IndexScope uint8

const (
	WriteScope IndexScope = iota
	ReadScope
)

// IndexView is the narrow index-metadata lookup an element needs to answer
// HasIndex. An IndexRegistry implements it; a nil view means nothing is
// indexed.
type IndexView interface {
	HasIndex(et ElementType, label string, scope IndexScope, key string) bool
}

// Element is the common surface of Vertex and Edge. The pipeline operates
// on elements only through this interface.
//
// Elements are mutated in place by SetPropertyInternal and carry no
// internal locking: callers that share one element across goroutines must
// serialize access themselves.
type Element interface {
	ID() ID
	Label() string
	Type() ElementType
	CreatedAt() time.Time
	UpdatedAt() time.Time
	// Property returns the current value for key and whether it is set.
	Property(key string) (Value, bool)
	// Properties returns the live property map. Callers must not mutate it.
	Properties() map[string]Value
	// SetPropertyInternal overwrites the property and bumps UpdatedAt.
	// It performs no validation or index maintenance; that is the
	// pipeline's job.
	SetPropertyInternal(key string, value Value, now time.Time)
	// HasIndex reports whether key is indexed for this element's
	// type/label in the given scope.
	HasIndex(scope IndexScope, key string) bool
}

// elementCore carries the state shared by Vertex and Edge.
type elementCore struct {
	id        ID
	label     string
	createdAt time.Time
	updatedAt time.Time
	props     map[string]Value
	indices   IndexView
}

func (c *elementCore) ID() ID               { return c.id }
func (c *elementCore) Label() string        { return c.label }
func (c *elementCore) CreatedAt() time.Time { return c.createdAt }
func (c *elementCore) UpdatedAt() time.Time { return c.updatedAt }

func (c *elementCore) Property(key string) (Value, bool) {
	v, ok := c.props[key]
	return v, ok
}

func (c *elementCore) Properties() map[string]Value {
	return c.props
}

func (c *elementCore) SetPropertyInternal(key string, value Value, now time.Time) {
	c.props[key] = value
	if now.After(c.updatedAt) {
		c.updatedAt = now
	}
}

// Vertex is an element with no further structure.
type Vertex struct {
	elementCore
}

// Type returns VertexType.
func (v *Vertex) Type() ElementType { return VertexType }

// HasIndex reports whether key is indexed for this vertex's label.
func (v *Vertex) HasIndex(scope IndexScope, key string) bool {
	if v.indices == nil {
		return false
	}
	return v.indices.HasIndex(VertexType, v.label, scope, key)
}

// Ref returns a weak reference to the vertex.
func (v *Vertex) Ref() VertexRef {
	return VertexRef{ID: v.id, Label: v.label}
}

// NewVertex builds a vertex. An empty id is replaced with a generated one.
// The caller validates label and properties before construction.
func NewVertex(id ID, label string, now time.Time, props map[string]Value, indices IndexView) *Vertex {
	if props == nil {
		props = make(map[string]Value)
	}
	return &Vertex{elementCore{
		id:        GenerateID(id),
		label:     label,
		createdAt: now,
		updatedAt: now,
		props:     props,
		indices:   indices,
	}}
}

// VertexRef is a weak reference to a vertex: the id and label pair used for
// edge endpoints and index back-pointers. The pipeline never dereferences
// it or manages the referenced vertex's lifecycle.
type VertexRef struct {
	ID    ID
	Label string
}

// IsZero reports whether the reference is unset.
func (r VertexRef) IsZero() bool { return r.ID.IsEmpty() }

// String renders the reference for logs.
func (r VertexRef) String() string {
	return fmt.Sprintf("%s[%s]", r.Label, r.ID)
}

// Edge is an element connecting two vertices by weak reference.
type Edge struct {
	elementCore
	out VertexRef
	in  VertexRef
}

// Type returns EdgeType.
func (e *Edge) Type() ElementType { return EdgeType }

// HasIndex reports whether key is indexed for this edge's label.
func (e *Edge) HasIndex(scope IndexScope, key string) bool {
	if e.indices == nil {
		return false
	}
	return e.indices.HasIndex(EdgeType, e.label, scope, key)
}

// Out returns the outgoing endpoint reference.
func (e *Edge) Out() VertexRef { return e.out }

// In returns the incoming endpoint reference.
func (e *Edge) In() VertexRef { return e.in }

// NewEdge builds an edge. An empty id is replaced with a generated one.
// Returns ErrNilInVertex or ErrNilOutVertex for a zero endpoint reference;
// the caller validates label and properties before construction.
func NewEdge(id ID, label string, now time.Time, props map[string]Value, out, in VertexRef, indices IndexView) (*Edge, error) {
	if in.IsZero() {
		return nil, ErrNilInVertex
	}
	if out.IsZero() {
		return nil, ErrNilOutVertex
	}
	if props == nil {
		props = make(map[string]Value)
	}
	return &Edge{
		elementCore: elementCore{
			id:        GenerateID(id),
			label:     label,
			createdAt: now,
			updatedAt: now,
			props:     props,
			indices:   indices,
		},
		out: out,
		in:  in,
	}, nil
}
