package schema

// Kind classifies a schema node for the normalizer walk.
type Kind int

const (
	// KindPrimitive is a leaf: string, integer, number, boolean, or an
	// object/array without children.
	KindPrimitive Kind = iota

	// KindReference is a node carrying "$ref". Sibling keys are ignored.
	KindReference

	// KindObject has properties, patternProperties or a schema-valued
	// additionalProperties.
	KindObject

	// KindArray has items or additionalItems.
	KindArray

	// KindCombinator carries allOf, anyOf or oneOf (and no $ref).
	KindCombinator
)

// combinatorKeys lists combinators in merge order.
var combinatorKeys = []string{"allOf", "anyOf", "oneOf"}

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindReference:
		return "reference"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindCombinator:
		return "combinator"
	}
	return "unknown"
}

// Classify returns the kind of node. Precedence: reference, combinator,
// object, array, primitive.
func Classify(node map[string]any) Kind {
	if _, ok := node["$ref"]; ok {
		return KindReference
	}
	if hasCombinator(node) {
		return KindCombinator
	}
	if _, ok := node["properties"]; ok {
		return KindObject
	}
	if _, ok := node["patternProperties"]; ok {
		return KindObject
	}
	if _, ok := node["additionalProperties"].(map[string]any); ok {
		return KindObject
	}
	if _, ok := node["items"]; ok {
		return KindArray
	}
	if _, ok := node["additionalItems"]; ok {
		return KindArray
	}
	return KindPrimitive
}

func hasCombinator(node map[string]any) bool {
	for _, k := range combinatorKeys {
		if _, ok := node[k]; ok {
			return true
		}
	}
	return false
}

// RefTarget returns the $ref value of node, if it is a string.
func RefTarget(node map[string]any) (string, bool) {
	ref, ok := node["$ref"].(string)
	return ref, ok
}

// Ref builds a reference node.
func Ref(ptr string) map[string]any {
	return map[string]any{"$ref": ptr}
}

// isSelfRef reports whether node is exactly {"$ref": ptr}.
func isSelfRef(node map[string]any, ptr string) bool {
	if len(node) != 1 {
		return false
	}
	ref, ok := RefTarget(node)
	return ok && ref == ptr
}
