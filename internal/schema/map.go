package schema

import (
	"maps"
	"slices"

	"github.com/roach88/rcontract/internal/pointer"
)

// Map is the canonical schema map: pointer to resolved node. Every $ref
// inside a node names a key of the map and no node carries a combinator.
type Map map[string]map[string]any

// Lookup returns the entry recorded for ptr.
func (m Map) Lookup(ptr string) (map[string]any, bool) {
	node, ok := m[ptr]
	return node, ok
}

// Root returns the entry for the whole document, or nil when the document
// had no properties.
func (m Map) Root() map[string]any {
	return m[pointer.Root]
}

// Pointers returns every key in sorted order.
func (m Map) Pointers() []string {
	return slices.Sorted(maps.Keys(m))
}

// Deref follows node's $ref into the map. Nodes without $ref, and refs
// that are not map keys, are returned as given.
func (m Map) Deref(node map[string]any) map[string]any {
	ref, ok := RefTarget(node)
	if !ok {
		return node
	}
	if target, ok := m[ref]; ok {
		return target
	}
	return node
}

// Normalize re-runs normalization over an already canonical map, resolving
// references by map lookup. For a map produced by Normalize the result is
// identical to the input.
func (m Map) Normalize() (Map, error) {
	src := make(map[string]any, len(m))
	for k, v := range m {
		src[k] = v
	}
	copied, err := copyNode(src)
	if err != nil {
		return nil, err
	}

	n := newNormalizer(func(ptr string) (map[string]any, error) {
		node, ok := copied[ptr].(map[string]any)
		if !ok {
			return nil, &NormalizationError{Pointer: ptr, Message: "reference is not a map entry"}
		}
		return copyNode(node)
	})

	ptrs := m.Pointers()
	if _, ok := m[pointer.Root]; ok {
		ptrs = append([]string{pointer.Root}, slices.DeleteFunc(ptrs, func(p string) bool { return p == pointer.Root })...)
	}
	for _, ptr := range ptrs {
		node, err := copyNode(copied[ptr].(map[string]any))
		if err != nil {
			return nil, err
		}
		if _, err := n.walk(ptr, node); err != nil {
			return nil, err
		}
	}
	return n.schemaMap, nil
}

// Generic returns the map as plain JSON-shaped data for encoding.
func (m Map) Generic() any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
