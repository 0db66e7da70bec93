package schema

import (
	"errors"
	"fmt"
)

// NormalizationError reports a schema that cannot be normalized: an
// unresolvable or non-local $ref, or a reference cycle that never reaches a
// concrete schema.
type NormalizationError struct {
	// Pointer locates the offending reference or node.
	Pointer string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error at %s: %s", e.Pointer, e.Message)
}

// ConstraintError reports a schema construct the normalizer refuses:
// schema-valued additionalProperties or additionalItems, properties and
// patternProperties on one node, $ref beside a combinator, or a malformed
// combinator.
type ConstraintError struct {
	Pointer string
	Message string
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint error at %s: %s", e.Pointer, e.Message)
}

// IsNormalizationError returns true if err is or wraps a *NormalizationError.
func IsNormalizationError(err error) bool {
	var ne *NormalizationError
	return errors.As(err, &ne)
}

// IsConstraintError returns true if err is or wraps a *ConstraintError.
func IsConstraintError(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsSpecificationError returns true for either error kind. Specification
// errors are fatal to a whole run: no scenario can be derived from a schema
// that does not normalize.
func IsSpecificationError(err error) bool {
	return IsNormalizationError(err) || IsConstraintError(err)
}

// ErrorPointer extracts the pointer carried by a specification error.
// Returns "" for any other error.
func ErrorPointer(err error) string {
	var ne *NormalizationError
	if errors.As(err, &ne) {
		return ne.Pointer
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Pointer
	}
	return ""
}
