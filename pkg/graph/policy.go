package graph

// PropertyPolicy decides whether a property assignment is legal for a given
// element type and label. The pipeline consults it before constructing any
// mutation, so an illegal assignment never causes a partial write.
type PropertyPolicy interface {
	ValidateProperty(et ElementType, label, key string, value Value) error
}

// PolicyFunc adapts a function to the PropertyPolicy interface.
type PolicyFunc func(et ElementType, label, key string, value Value) error

// ValidateProperty calls f.
func (f PolicyFunc) ValidateProperty(et ElementType, label, key string, value Value) error {
	return f(et, label, key, value)
}
