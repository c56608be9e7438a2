package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/widegraph/pkg/graph"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxLabelLength = 50
	MaxProperties  = 100
	MaxPropertyKey = 100
	MaxBatchSize   = 65536
	MinBatchSize   = 1

	// Regular expressions
	labelPattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	propKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func init() {
	validate = validator.New()
}

// VertexRequest represents a request to load a vertex. ID is optional; when
// empty the loader assigns one, but edges can only reference vertices whose
// ID the caller chose.
type VertexRequest struct {
	ID         string         `json:"id,omitempty" validate:"omitempty,min=1,max=128"`
	Label      string         `json:"label" validate:"required,min=1,max=50"`
	Properties map[string]any `json:"properties" validate:"omitempty,max=100"`
}

// EdgeRequest represents a request to load an edge between two vertices
type EdgeRequest struct {
	Out        string         `json:"out" validate:"required,min=1"`
	In         string         `json:"in" validate:"required,min=1"`
	Label      string         `json:"label" validate:"required,min=1,max=50"`
	Properties map[string]any `json:"properties" validate:"omitempty,max=100"`
}

// ValidateVertexRequest validates a vertex load request
func ValidateVertexRequest(req *VertexRequest) error {
	if req == nil {
		return errors.New("vertex request cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if err := ValidateLabel(req.Label); err != nil {
		return fmt.Errorf("Label: %w", err)
	}

	// Additional properties validation
	if len(req.Properties) > MaxProperties {
		return fmt.Errorf("Properties: maximum %d properties allowed, got %d", MaxProperties, len(req.Properties))
	}

	// Validate property keys
	for key := range req.Properties {
		if err := ValidatePropertyKey(key); err != nil {
			return fmt.Errorf("Properties: %w", err)
		}
	}

	return nil
}

// ValidateEdgeRequest validates an edge load request
func ValidateEdgeRequest(req *EdgeRequest) error {
	if req == nil {
		return errors.New("edge request cannot be nil")
	}

	// Validate using struct tags
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}

	if err := ValidateLabel(req.Label); err != nil {
		return fmt.Errorf("Label: %w", err)
	}

	// Additional properties validation
	if len(req.Properties) > MaxProperties {
		return fmt.Errorf("Properties: maximum %d properties allowed, got %d", MaxProperties, len(req.Properties))
	}

	// Validate property keys
	for key := range req.Properties {
		if err := ValidatePropertyKey(key); err != nil {
			return fmt.Errorf("Properties: %w", err)
		}
	}

	return nil
}

// ValidateBatchSize validates the size of a mutation batch
func ValidateBatchSize(size int) error {
	if size < MinBatchSize {
		return fmt.Errorf("batch size must be at least %d, got %d", MinBatchSize, size)
	}
	if size > MaxBatchSize {
		return fmt.Errorf("batch size must not exceed %d, got %d", MaxBatchSize, size)
	}
	return nil
}

// ValidateLabel validates a vertex or edge label
func ValidateLabel(label string) error {
	if label == "" {
		return graph.ErrEmptyLabel
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("%w: label %q exceeds maximum length of %d characters", graph.ErrInvalidLabel, label, MaxLabelLength)
	}
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("%w: label %q contains invalid characters (only alphanumeric and underscore allowed)", graph.ErrInvalidLabel, label)
	}
	return nil
}

// ValidatePropertyKey validates a property key
func ValidatePropertyKey(key string) error {
	if key == "" {
		return graph.ErrEmptyKey
	}
	if len(key) > MaxPropertyKey {
		return fmt.Errorf("%w: property key %q exceeds maximum length of %d characters", graph.ErrInvalidKey, key, MaxPropertyKey)
	}
	if !propKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: property key %q must start with a letter or underscore, followed by alphanumeric or underscore", graph.ErrInvalidKey, key)
	}
	return nil
}

// ValidateValue validates a property value. Null values are rejected so that
// absence stays representable as a missing key rather than a stored null.
func ValidateValue(value graph.Value) error {
	if value.IsZero() {
		return graph.ErrNilValue
	}
	return nil
}

// Policy is the structural property policy applied by the loader: labels and
// keys must be well formed and values non-null. It carries no per-label
// schema.
type Policy struct{}

// ValidateProperty implements graph.PropertyPolicy.
func (Policy) ValidateProperty(et graph.ElementType, label, key string, value graph.Value) error {
	if et == graph.ElementUnknown {
		return graph.ErrUnknownElement
	}
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if err := ValidatePropertyKey(key); err != nil {
		return err
	}
	return ValidateValue(value)
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "dive":
			// For array elements
			return fmt.Errorf("%s: invalid element in array", field)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
