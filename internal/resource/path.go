package resource

import (
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"

	"github.com/roach88/rcontract/internal/pointer"
)

// Model is a concrete resource value tree as exchanged with a handler.
type Model = map[string]any

// Path addresses a value inside a Model.
type Path []string

// ParsePath converts a schema path such as "/properties/Foo/Bar" into
// Path{"Foo", "Bar"}.
func ParsePath(p string) (Path, error) {
	segments, err := pointer.SplitPath(p)
	if err != nil {
		return nil, err
	}
	if len(segments) < 2 || segments[0] != "properties" {
		return nil, fmt.Errorf("path %q must address a property", p)
	}
	return Path(segments[1:]), nil
}

func parsePaths(raw []string) ([]Path, error) {
	out := make([]Path, 0, len(raw))
	for _, p := range raw {
		path, err := ParsePath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, nil
}

// String renders the path back in schema form.
func (p Path) String() string {
	return "/properties/" + strings.Join(escapeAll(p), "/")
}

// Equal reports element-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses p or one of its ancestors.
func (p Path) HasPrefix(prefix Path) bool {
	return len(prefix) <= len(p) && p[:len(prefix)].Equal(prefix)
}

func escapeAll(p Path) []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = pointer.Escape(s)
	}
	return out
}

// Get returns the value at path.
func Get(model Model, path Path) (any, bool) {
	var cur any = model
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at path, creating intermediate objects.
func Set(model Model, path Path, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("cannot set empty path")
	}
	cur := model
	for i, key := range path[:len(path)-1] {
		next, ok := cur[key]
		if !ok {
			child := map[string]any{}
			cur[key] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not an object", path, Path(path[:i+1]))
		}
		cur = child
	}
	cur[path[len(path)-1]] = value
	return nil
}

// Delete removes the value at path and reports whether it was present.
func Delete(model Model, path Path) bool {
	if len(path) == 0 {
		return false
	}
	parent, ok := Get(model, path[:len(path)-1])
	if !ok {
		return false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m[path[len(path)-1]]; !ok {
		return false
	}
	delete(m, path[len(path)-1])
	return true
}

// ModelWithPaths returns a copy of model restricted to paths, as sent for
// identifier-only requests. Paths absent from model are skipped.
func ModelWithPaths(model Model, paths []Path) Model {
	out := Model{}
	for _, p := range paths {
		v, ok := Get(model, p)
		if !ok {
			continue
		}
		_ = Set(out, p, deepcopy.Copy(v))
	}
	return out
}

// Prune returns a copy of model without paths. Objects left empty by the
// removal are removed as well.
func Prune(model Model, paths []Path) Model {
	out := CopyModel(model)
	for _, p := range paths {
		if !Delete(out, p) {
			continue
		}
		for i := len(p) - 1; i > 0; i-- {
			parent, ok := Get(out, p[:i])
			if !ok {
				break
			}
			if m, ok := parent.(map[string]any); ok && len(m) == 0 {
				Delete(out, p[:i])
				continue
			}
			break
		}
	}
	return out
}

// CopyModel returns a deep copy of model.
func CopyModel(model Model) Model {
	if model == nil {
		return nil
	}
	copied, _ := deepcopy.Copy(model).(map[string]any)
	return copied
}
