package graph

import (
	"fmt"
	"sync"
)

// IndexDescriptor declares that a property key for one element type and
// label is mirrored into a secondary index table.
type IndexDescriptor struct {
	Element  ElementType
	Label    string
	Property string
	Scope    IndexScope
}

// String renders the descriptor for logs.
func (d IndexDescriptor) String() string {
	return fmt.Sprintf("%s/%s/%s", d.Element, d.Label, d.Property)
}

type indexKey struct {
	et    ElementType
	label string
	scope IndexScope
	prop  string
}

// IndexRegistry holds the declared index descriptors and resolves which
// apply to an element. Resolution preserves registration order so the
// mutations a writer emits are deterministic.
type IndexRegistry struct {
	mu          sync.RWMutex
	descriptors []IndexDescriptor
	byKey       map[indexKey]struct{}
}

// NewIndexRegistry creates an empty registry.
func NewIndexRegistry() *IndexRegistry {
	return &IndexRegistry{
		byKey: make(map[indexKey]struct{}),
	}
}

// Register adds a descriptor. Duplicate registrations return
// ErrDuplicateIndex.
func (r *IndexRegistry) Register(d IndexDescriptor) error {
	if d.Element != VertexType && d.Element != EdgeType {
		return fmt.Errorf("descriptor %s: %w", d, ErrUnknownElement)
	}
	if d.Label == "" {
		return fmt.Errorf("descriptor for %s: %w", d.Element, ErrEmptyLabel)
	}
	if d.Property == "" {
		return fmt.Errorf("descriptor %s/%s: %w", d.Element, d.Label, ErrEmptyKey)
	}

	key := indexKey{et: d.Element, label: d.Label, scope: d.Scope, prop: d.Property}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[key]; exists {
		return fmt.Errorf("descriptor %s: %w", d, ErrDuplicateIndex)
	}
	r.byKey[key] = struct{}{}
	r.descriptors = append(r.descriptors, d)
	return nil
}

// ResolveIndices returns the descriptors applying to the given element
// type, label, and scope, in registration order.
func (r *IndexRegistry) ResolveIndices(et ElementType, label string, scope IndexScope) []IndexDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []IndexDescriptor
	for _, d := range r.descriptors {
		if d.Element == et && d.Label == label && d.Scope == scope {
			matched = append(matched, d)
		}
	}
	return matched
}

// HasIndex reports whether the property key is indexed for the element
// type and label in the given scope.
func (r *IndexRegistry) HasIndex(et ElementType, label string, scope IndexScope, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byKey[indexKey{et: et, label: label, scope: scope, prop: key}]
	return ok
}

// Len returns the number of registered descriptors.
func (r *IndexRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}
