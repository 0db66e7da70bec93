package schema

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mohae/deepcopy"

	"github.com/roach88/rcontract/internal/pointer"
)

// resolveFunc returns a private copy of the node a pointer addresses.
type resolveFunc func(ptr string) (map[string]any, error)

// normalizer holds the memo state of one normalization pass.
//
// A pointer is in at most one of these states at a time:
//   - inflight: being walked, nothing recorded yet
//   - placeholder: being walked and already promised as a map entry;
//     re-entry returns {"$ref": ptr}
//   - done: its entry is in schemaMap
type normalizer struct {
	resolve      resolveFunc
	schemaMap    Map
	placeholders map[string]bool
	inflight     map[string]bool
}

func newNormalizer(resolve resolveFunc) *normalizer {
	return &normalizer{
		resolve:      resolve,
		schemaMap:    make(Map),
		placeholders: make(map[string]bool),
		inflight:     make(map[string]bool),
	}
}

// Normalize resolves every $ref in doc, flattens allOf/anyOf/oneOf and
// breaks cycles, returning the canonical pointer-keyed map. doc is not
// modified. The root is recorded under "#" when it has properties.
func Normalize(doc map[string]any) (Map, error) {
	root, err := copyNode(doc)
	if err != nil {
		return nil, err
	}
	n := newNormalizer(documentResolver(root))
	if _, err := n.walk(pointer.Root, root); err != nil {
		return nil, err
	}
	slog.Debug("schema normalized", "entries", len(n.schemaMap))
	return n.schemaMap, nil
}

// documentResolver resolves local pointers against a document.
func documentResolver(doc map[string]any) resolveFunc {
	return func(ptr string) (map[string]any, error) {
		if !strings.HasPrefix(ptr, pointer.Root) {
			return nil, &NormalizationError{Pointer: ptr, Message: "only local references are supported"}
		}
		segments, err := pointer.Split(ptr)
		if err != nil {
			return nil, &NormalizationError{Pointer: ptr, Message: err.Error()}
		}
		var cur any = doc
		for _, seg := range segments {
			switch v := cur.(type) {
			case map[string]any:
				next, ok := v[seg]
				if !ok {
					return nil, &NormalizationError{Pointer: ptr, Message: fmt.Sprintf("unresolvable reference: no %q", seg)}
				}
				cur = next
			case []any:
				idx, err := strconv.Atoi(seg)
				if err != nil || idx < 0 || idx >= len(v) {
					return nil, &NormalizationError{Pointer: ptr, Message: fmt.Sprintf("unresolvable reference: bad index %q", seg)}
				}
				cur = v[idx]
			default:
				return nil, &NormalizationError{Pointer: ptr, Message: fmt.Sprintf("unresolvable reference: %q is not a container", seg)}
			}
		}
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, &NormalizationError{Pointer: ptr, Message: "reference target is not a schema object"}
		}
		return copyNode(node)
	}
}

// walk collapses node found at ptr. Objects with children are recorded in
// the map and returned as {"$ref": ptr}; everything else is returned inline.
func (n *normalizer) walk(ptr string, node map[string]any) (map[string]any, error) {
	if _, ok := n.schemaMap[ptr]; ok {
		return Ref(ptr), nil
	}
	if n.placeholders[ptr] {
		return Ref(ptr), nil
	}
	if n.inflight[ptr] {
		n.placeholders[ptr] = true
		return Ref(ptr), nil
	}
	if isSelfRef(node, ptr) {
		// A map entry referenced from its own location.
		resolved, err := n.resolve(ptr)
		if err != nil {
			return nil, err
		}
		node = resolved
	}
	if _, ok := node["$ref"]; ok && hasCombinator(node) {
		return nil, &ConstraintError{Pointer: ptr, Message: "$ref cannot be combined with allOf, anyOf or oneOf"}
	}
	n.inflight[ptr] = true
	defer delete(n.inflight, ptr)

	node, err := n.squash(ptr, node, nil)
	if err != nil {
		return nil, err
	}

	switch kind := Classify(node); kind {
	case KindReference:
		out, err := n.collapseRef(ptr, node)
		if err != nil {
			return nil, err
		}
		return n.finish(ptr, out)
	case KindArray:
		out, err := n.collapseArray(ptr, node)
		if err != nil {
			return nil, err
		}
		return n.finish(ptr, out)
	case KindObject:
		n.placeholders[ptr] = true
		out, err := n.collapseObject(ptr, node)
		if err != nil {
			return nil, err
		}
		delete(n.placeholders, ptr)
		n.schemaMap[ptr] = out
		return Ref(ptr), nil
	case KindPrimitive:
		return node, nil
	case KindCombinator:
		return nil, &NormalizationError{Pointer: ptr, Message: "combinator survived squashing"}
	default:
		return nil, &NormalizationError{Pointer: ptr, Message: fmt.Sprintf("unhandled node kind %s", kind)}
	}
}

// finish records an inline result when ptr was re-entered while being
// walked, so the cycle closes on a map entry.
func (n *normalizer) finish(ptr string, out map[string]any) (map[string]any, error) {
	if !n.placeholders[ptr] {
		return out, nil
	}
	delete(n.placeholders, ptr)
	if isSelfRef(out, ptr) {
		return nil, &NormalizationError{Pointer: ptr, Message: "reference cycle does not reach a concrete schema"}
	}
	n.schemaMap[ptr] = out
	return Ref(ptr), nil
}

// collapseRef walks the target of a reference node at its own pointer, so
// every reference to one definition shares one map entry.
func (n *normalizer) collapseRef(ptr string, node map[string]any) (map[string]any, error) {
	target, ok := RefTarget(node)
	if !ok {
		return nil, &NormalizationError{Pointer: ptr, Message: "$ref must be a string"}
	}
	if _, done := n.schemaMap[target]; done || n.placeholders[target] || n.inflight[target] {
		return n.walk(target, nil)
	}
	resolved, err := n.resolve(target)
	if err != nil {
		return nil, err
	}
	return n.walk(target, resolved)
}

// collapseObject walks each property and pattern property at its own
// pointer. The result is the object with children replaced.
func (n *normalizer) collapseObject(ptr string, node map[string]any) (map[string]any, error) {
	if _, ok := node["additionalProperties"].(map[string]any); ok {
		return nil, &ConstraintError{Pointer: ptr, Message: "additionalProperties must be a boolean, schemas are not supported"}
	}
	props, hasProps := node["properties"]
	patterns, hasPatterns := node["patternProperties"]
	if hasProps && hasPatterns {
		return nil, &ConstraintError{Pointer: ptr, Message: "properties and patternProperties are mutually exclusive"}
	}

	out := make(map[string]any, len(node))
	for k, v := range node {
		// Definitions are reachable only through $ref and land under their
		// own pointers.
		if k != "definitions" {
			out[k] = v
		}
	}

	if hasProps {
		children, err := n.collapseChildren(ptr, "properties", props, func(name string) string {
			return pointer.Join(ptr, "properties", name)
		})
		if err != nil {
			return nil, err
		}
		out["properties"] = children
	}
	if hasPatterns {
		children, err := n.collapseChildren(ptr, "patternProperties", patterns, func(pattern string) string {
			return pointer.JoinPattern(ptr, pattern)
		})
		if err != nil {
			return nil, err
		}
		out["patternProperties"] = children
	}
	return out, nil
}

func (n *normalizer) collapseChildren(ptr, key string, value any, childPtr func(string) string) (map[string]any, error) {
	children, ok := value.(map[string]any)
	if !ok {
		return nil, &ConstraintError{Pointer: ptr, Message: fmt.Sprintf("%s must be an object", key)}
	}
	out := make(map[string]any, len(children))
	for _, name := range sortedKeys(children) {
		child, ok := children[name].(map[string]any)
		if !ok {
			// Boolean schemas have no children to collapse.
			out[name] = children[name]
			continue
		}
		collapsed, err := n.walk(childPtr(name), child)
		if err != nil {
			return nil, err
		}
		out[name] = collapsed
	}
	return out, nil
}

// collapseArray collapses items inline at <ptr>/items.
func (n *normalizer) collapseArray(ptr string, node map[string]any) (map[string]any, error) {
	if _, ok := node["additionalItems"].(map[string]any); ok {
		return nil, &ConstraintError{Pointer: ptr, Message: "additionalItems must be a boolean, schemas are not supported"}
	}
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = v
	}
	items, ok := node["items"].(map[string]any)
	if !ok {
		return out, nil
	}
	collapsed, err := n.collapseItems(ptr+"/items", items)
	if err != nil {
		return nil, err
	}
	out["items"] = collapsed
	return out, nil
}

// collapseItems collapses an items schema without recording it; only its
// own children become map entries.
func (n *normalizer) collapseItems(ptr string, items map[string]any) (map[string]any, error) {
	items, err := n.squash(ptr, items, nil)
	if err != nil {
		return nil, err
	}
	switch Classify(items) {
	case KindReference:
		return n.collapseRef(ptr, items)
	case KindObject:
		return n.collapseObject(ptr, items)
	case KindArray:
		return n.collapseArray(ptr, items)
	case KindPrimitive, KindCombinator:
		return items, nil
	}
	return items, nil
}

func copyNode(node map[string]any) (map[string]any, error) {
	if node == nil {
		return map[string]any{}, nil
	}
	copied, ok := deepcopy.Copy(node).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("failed to copy schema node")
	}
	return copied, nil
}
