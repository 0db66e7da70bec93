package schema

import (
	"fmt"
	"slices"
)

// squash flattens allOf, anyOf and oneOf (in that order) into node. Each
// branch is squashed first; a branch carrying $ref is replaced by its
// target with the branch's other keys laid over it. seen guards against
// combinator branches that reference their own ancestors.
func (n *normalizer) squash(ptr string, node map[string]any, seen map[string]bool) (map[string]any, error) {
	if !hasCombinator(node) {
		return node, nil
	}

	out := make(map[string]any, len(node))
	for k, v := range node {
		if !slices.Contains(combinatorKeys, k) {
			out[k] = v
		}
	}

	for _, key := range combinatorKeys {
		raw, ok := node[key]
		if !ok {
			continue
		}
		branches, ok := raw.([]any)
		if !ok {
			return nil, &ConstraintError{Pointer: ptr, Message: fmt.Sprintf("%s must be a list of schemas", key)}
		}
		for i, b := range branches {
			branch, ok := b.(map[string]any)
			if !ok {
				return nil, &ConstraintError{Pointer: ptr, Message: fmt.Sprintf("%s[%d] must be a schema object", key, i)}
			}
			branch, err := n.squashBranch(ptr, branch, seen)
			if err != nil {
				return nil, err
			}
			if err := mergeInto(ptr, out, branch); err != nil {
				return nil, err
			}
		}
	}

	_, hasProps := out["properties"]
	_, hasPatterns := out["patternProperties"]
	if hasProps && hasPatterns {
		return nil, &ConstraintError{Pointer: ptr, Message: "properties and patternProperties are mutually exclusive"}
	}
	return out, nil
}

func (n *normalizer) squashBranch(ptr string, branch map[string]any, seen map[string]bool) (map[string]any, error) {
	if target, ok := RefTarget(branch); ok {
		if seen[target] {
			return nil, &NormalizationError{Pointer: target, Message: "combinator branch references itself"}
		}
		resolved, err := n.resolve(target)
		if err != nil {
			return nil, err
		}
		next := make(map[string]bool, len(seen)+1)
		for k := range seen {
			next[k] = true
		}
		next[target] = true

		for k, v := range branch {
			if k != "$ref" {
				resolved[k] = v
			}
		}
		return n.squash(ptr, resolved, next)
	}
	return n.squash(ptr, branch, seen)
}

// mergeInto lays src over dst. properties and patternProperties merge key by
// key with src's entry replacing dst's whole; required is concatenated
// without duplicates; every other key is overwritten.
func mergeInto(ptr string, dst, src map[string]any) error {
	for _, k := range sortedKeys(src) {
		v := src[k]
		switch k {
		case "properties", "patternProperties":
			srcProps, ok := v.(map[string]any)
			if !ok {
				return &ConstraintError{Pointer: ptr, Message: fmt.Sprintf("%s must be an object", k)}
			}
			dstProps, _ := dst[k].(map[string]any)
			merged := make(map[string]any, len(dstProps)+len(srcProps))
			for name, child := range dstProps {
				merged[name] = child
			}
			for name, child := range srcProps {
				merged[name] = child
			}
			dst[k] = merged
		case "required":
			dst[k] = mergeRequired(dst[k], v)
		default:
			dst[k] = v
		}
	}
	return nil
}

func mergeRequired(a, b any) []any {
	out := []any{}
	seen := make(map[string]bool)
	for _, list := range []any{a, b} {
		items, _ := list.([]any)
		for _, item := range items {
			key := fmt.Sprint(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}
