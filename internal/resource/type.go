package resource

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/rcontract/internal/schema"
)

// Type is the resource type model derived once from a schema document.
type Type struct {
	Name     string
	Document *schema.Document
	Schema   schema.Map

	PrimaryIdentifierPaths    []Path
	AdditionalIdentifierPaths [][]Path
	CreateOnlyPaths           []Path
	ReadOnlyPaths             []Path
	WriteOnlyPaths            []Path

	Handlers map[string]schema.Handler
}

// New normalizes doc and derives the type model. Specification errors from
// the normalizer are returned unwrapped so callers can classify them.
func New(doc *schema.Document) (*Type, error) {
	m, err := doc.Normalize()
	if err != nil {
		return nil, err
	}

	t := &Type{
		Name:     doc.TypeName,
		Document: doc,
		Schema:   m,
		Handlers: doc.Handlers,
	}

	if t.PrimaryIdentifierPaths, err = parsePaths(doc.PrimaryIdentifier); err != nil {
		return nil, &schema.ConstraintError{Pointer: "#/primaryIdentifier", Message: err.Error()}
	}
	for i, set := range doc.AdditionalIdentifiers {
		paths, err := parsePaths(set)
		if err != nil {
			return nil, &schema.ConstraintError{Pointer: fmt.Sprintf("#/additionalIdentifiers/%d", i), Message: err.Error()}
		}
		t.AdditionalIdentifierPaths = append(t.AdditionalIdentifierPaths, paths)
	}
	if t.CreateOnlyPaths, err = parsePaths(doc.CreateOnlyProperties); err != nil {
		return nil, &schema.ConstraintError{Pointer: "#/createOnlyProperties", Message: err.Error()}
	}
	if t.ReadOnlyPaths, err = parsePaths(doc.ReadOnlyProperties); err != nil {
		return nil, &schema.ConstraintError{Pointer: "#/readOnlyProperties", Message: err.Error()}
	}
	if t.WriteOnlyPaths, err = parsePaths(doc.WriteOnlyProperties); err != nil {
		return nil, &schema.ConstraintError{Pointer: "#/writeOnlyProperties", Message: err.Error()}
	}

	for _, p := range t.PrimaryIdentifierPaths {
		if _, ok := t.PropertySchema(p); !ok {
			return nil, &schema.ConstraintError{
				Pointer: "#/primaryIdentifier",
				Message: fmt.Sprintf("identifier %s is not a declared property", p),
			}
		}
	}

	slog.Debug("resource type loaded",
		"type", t.Name,
		"identifiers", len(t.PrimaryIdentifierPaths),
		"read_only", len(t.ReadOnlyPaths),
		"handlers", len(t.Handlers),
	)
	return t, nil
}

// SupportsAction reports whether the schema declares a handler for action
// (case-insensitive).
func (t *Type) SupportsAction(action string) bool {
	_, ok := t.Handlers[strings.ToLower(action)]
	return ok
}

// HasWritableIdentifier reports whether any primary identifier can be
// chosen by the caller, that is, is not readOnly.
func (t *Type) HasWritableIdentifier() bool {
	for _, p := range t.PrimaryIdentifierPaths {
		if !t.IsReadOnly(p) {
			return true
		}
	}
	return false
}

// IsReadOnly reports whether p or one of its ancestors is readOnly.
func (t *Type) IsReadOnly(p Path) bool { return coveredBy(p, t.ReadOnlyPaths) }

// IsWriteOnly reports whether p or one of its ancestors is writeOnly.
func (t *Type) IsWriteOnly(p Path) bool { return coveredBy(p, t.WriteOnlyPaths) }

// IsCreateOnly reports whether p or one of its ancestors is createOnly.
func (t *Type) IsCreateOnly(p Path) bool { return coveredBy(p, t.CreateOnlyPaths) }

// IsPrimaryIdentifier reports whether p is exactly a primary identifier.
func (t *Type) IsPrimaryIdentifier(p Path) bool {
	for _, id := range t.PrimaryIdentifierPaths {
		if id.Equal(p) {
			return true
		}
	}
	return false
}

// AdditionalIdentifierUnion flattens every additional identifier set.
func (t *Type) AdditionalIdentifierUnion() []Path {
	var out []Path
	for _, set := range t.AdditionalIdentifierPaths {
		out = append(out, set...)
	}
	return out
}

func coveredBy(p Path, paths []Path) bool {
	for _, candidate := range paths {
		if p.HasPrefix(candidate) {
			return true
		}
	}
	return false
}

// PropertySchema returns the normalized schema node for the property at p,
// following references through the canonical map.
func (t *Type) PropertySchema(p Path) (map[string]any, bool) {
	node := t.Schema.Root()
	if node == nil {
		return nil, false
	}
	for _, key := range p {
		node = t.Schema.Deref(node)
		props, ok := node["properties"].(map[string]any)
		if !ok {
			return nil, false
		}
		child, ok := props[key].(map[string]any)
		if !ok {
			return nil, false
		}
		node = child
	}
	return t.Schema.Deref(node), true
}
