package resource

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lucasjones/reggen"
	"github.com/mohae/deepcopy"
)

// ErrNoReadOnlyProperties is returned by InvalidCreateExample for types
// without readOnly properties.
var ErrNoReadOnlyProperties = errors.New("resource type has no readOnly properties")

// maxDepth bounds synthesis through recursive schemas.
const maxDepth = 8

const (
	// patternRepeatLimit caps how often a pattern's *, + or range repeats.
	patternRepeatLimit = 16

	// patternAttempts bounds the candidates drawn for one patterned string.
	patternAttempts = 32
)

// variant selects which of two distinct value sets a synthesized model uses.
type variant int

const (
	variantCreate variant = iota
	variantUpdate
)

// Generator synthesizes example models for a resource type. It is
// deterministic for a given ID source.
type Generator struct {
	typ       *Type
	newID     func() string
	overrides Overrides
	inputs    *Inputs
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithIDSource replaces the uuid source behind unique string suffixes.
func WithIDSource(f func() string) GeneratorOption {
	return func(g *Generator) { g.newID = f }
}

// WithOverrides applies per-action pointer overrides to every example.
func WithOverrides(o Overrides) GeneratorOption {
	return func(g *Generator) { g.overrides = o }
}

// WithInputs makes the generator return fixed input models instead of
// synthesizing them.
func WithInputs(in *Inputs) GeneratorOption {
	return func(g *Generator) { g.inputs = in }
}

// NewGenerator creates a generator for t.
func NewGenerator(t *Type, opts ...GeneratorOption) *Generator {
	g := &Generator{
		typ:       t,
		newID:     uuid.NewString,
		overrides: EmptyOverrides(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Type returns the resource type the generator was built for.
func (g *Generator) Type() *Type { return g.typ }

// CreateExample returns a minimal valid model: every required writable
// property plus every writable primary identifier.
func (g *Generator) CreateExample() (Model, error) {
	var model Model
	if g.inputs != nil && g.inputs.Create != nil {
		model = CopyModel(g.inputs.Create)
	} else {
		var err error
		if model, err = g.synthesize(variantCreate); err != nil {
			return nil, err
		}
	}
	g.overrides.Apply(ActionCreate, model)
	return model, nil
}

// UpdateExample returns a fresh model whose primary identifier and
// createOnly values are copied from existing.
func (g *Generator) UpdateExample(existing Model) (Model, error) {
	var model Model
	if g.inputs != nil && g.inputs.Update != nil {
		model = CopyModel(g.inputs.Update)
	} else {
		var err error
		if model, err = g.synthesize(variantUpdate); err != nil {
			return nil, err
		}
	}

	for _, p := range g.typ.ReadOnlyPaths {
		Delete(model, p)
	}
	carried := slices.Concat(g.typ.PrimaryIdentifierPaths, g.typ.CreateOnlyPaths)
	for _, p := range carried {
		v, ok := Get(existing, p)
		if !ok {
			continue
		}
		if err := Set(model, p, deepcopy.Copy(v)); err != nil {
			return nil, fmt.Errorf("update example: %w", err)
		}
	}

	g.overrides.Apply(ActionUpdate, model)
	return model, nil
}

// InvalidCreateExample returns a create example that also sets the first
// readOnly property, which a conforming handler must reject.
func (g *Generator) InvalidCreateExample() (Model, error) {
	if g.inputs != nil && g.inputs.Invalid != nil {
		return CopyModel(g.inputs.Invalid), nil
	}
	if len(g.typ.ReadOnlyPaths) == 0 {
		return nil, ErrNoReadOnlyProperties
	}
	model, err := g.CreateExample()
	if err != nil {
		return nil, err
	}

	path := g.typ.ReadOnlyPaths[0]
	s := g.newSynth(variantCreate)
	var value any = s.token
	if node, ok := g.typ.PropertySchema(path); ok {
		if v, ok := s.value(path, node, 0, true); ok {
			value = v
		}
	}
	if err := Set(model, path, value); err != nil {
		return nil, fmt.Errorf("invalid create example: %w", err)
	}
	return model, nil
}

func (g *Generator) synthesize(v variant) (Model, error) {
	s := g.newSynth(v)
	root := g.typ.Schema.Root()
	model := Model{}
	if root == nil {
		return model, nil
	}

	for _, name := range requiredNames(root) {
		path := Path{name}
		if s.omitted(path, false) {
			continue
		}
		node, ok := g.typ.PropertySchema(path)
		if !ok {
			slog.Warn("required property is not declared", "type", g.typ.Name, "property", name)
			continue
		}
		if value, ok := s.value(path, node, 0, false); ok {
			model[name] = value
		}
	}

	for _, id := range g.typ.PrimaryIdentifierPaths {
		if s.omitted(id, false) {
			continue
		}
		if _, ok := Get(model, id); ok {
			continue
		}
		node, ok := g.typ.PropertySchema(id)
		if !ok {
			continue
		}
		value, ok := s.value(id, node, 0, false)
		if !ok {
			continue
		}
		if err := Set(model, id, value); err != nil {
			return nil, err
		}
	}
	return model, nil
}

// synth holds the state of one synthesized model.
type synth struct {
	g       *Generator
	variant variant
	token   string
	strings int
}

func (g *Generator) newSynth(v variant) *synth {
	token := strings.ReplaceAll(g.newID(), "-", "")
	return &synth{g: g, variant: v, token: "rc" + token}
}

// omitted reports whether synthesis leaves p unset. Update examples never
// synthesize createOnly values; UpdateExample copies them from the
// existing model.
func (s *synth) omitted(p Path, ignoreReadOnly bool) bool {
	if !ignoreReadOnly && s.g.typ.IsReadOnly(p) {
		return true
	}
	return s.variant == variantUpdate && s.g.typ.IsCreateOnly(p)
}

// value synthesizes a value for node at path. ignoreReadOnly lets the
// invalid example fill a readOnly property.
func (s *synth) value(path Path, node map[string]any, depth int, ignoreReadOnly bool) (any, bool) {
	if depth > maxDepth {
		return nil, false
	}
	node = s.g.typ.Schema.Deref(node)

	if c, ok := node["const"]; ok {
		return deepcopy.Copy(c), true
	}
	if enum, ok := node["enum"].([]any); ok && len(enum) > 0 {
		return deepcopy.Copy(enum[int(s.variant)%len(enum)]), true
	}
	if s.variant == variantCreate {
		if d, ok := node["default"]; ok {
			return deepcopy.Copy(d), true
		}
		if ex, ok := node["examples"].([]any); ok && len(ex) > 0 {
			return deepcopy.Copy(ex[0]), true
		}
	}

	switch schemaType(node) {
	case "string":
		return s.str(node), true
	case "integer":
		return s.integer(node), true
	case "number":
		return s.number(node), true
	case "boolean":
		return s.variant == variantCreate, true
	case "array":
		return s.array(path, node, depth, ignoreReadOnly), true
	case "object":
		return s.object(path, node, depth, ignoreReadOnly), true
	case "null":
		return nil, true
	}
	return s.str(node), true
}

func (s *synth) str(node map[string]any) string {
	s.strings++
	base := fmt.Sprintf("%s%d", s.token, s.strings)
	switch node["format"] {
	case "date-time":
		base = fmt.Sprintf("2024-01-%02dT00:00:%02dZ", 1+int(s.variant), s.strings%60)
	case "date":
		base = fmt.Sprintf("2024-01-%02d", 1+int(s.variant))
	case "uri":
		base = "https://example.com/" + base
	case "email":
		base = base + "@example.com"
	}
	base = fitLength(node, base)

	pattern, ok := node["pattern"].(string)
	if !ok {
		return base
	}
	if v, ok := s.matching(pattern, node, base); ok {
		return v
	}
	slog.Warn("could not synthesize a string matching pattern", "type", s.g.typ.Name, "pattern", pattern)
	return base
}

// fitLength pads or trims v to the node's minLength and maxLength.
func fitLength(node map[string]any, v string) string {
	if minLen, ok := numberField(node, "minLength"); ok {
		for utf8.RuneCountInString(v) < int(minLen) {
			v += "x"
		}
	}
	if maxLen, ok := numberField(node, "maxLength"); ok && utf8.RuneCountInString(v) > int(maxLen) {
		// Keep the tail, which carries the counter.
		runes := []rune(v)
		v = string(runes[len(runes)-int(maxLen):])
	}
	return v
}

// matching returns a string matching pattern within the node's length
// bounds. base is kept when it already matches; otherwise candidates are
// drawn from the pattern, seeded from the synth token so a run is
// reproducible for a fixed ID source.
func (s *synth) matching(pattern string, node map[string]any, base string) (string, bool) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		slog.Debug("pattern is not a Go regexp", "pattern", pattern, "error", err)
		return "", false
	}
	if re.MatchString(base) {
		return base, true
	}
	gen, err := reggen.NewGenerator(pattern)
	if err != nil {
		return "", false
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d", s.token, s.strings)
	gen.SetSeed(int64(h.Sum64()))

	limit := patternRepeatLimit
	if minLen, ok := numberField(node, "minLength"); ok {
		limit = max(limit, int(minLen))
	}
	if maxLen, ok := numberField(node, "maxLength"); ok {
		limit = min(limit, max(int(maxLen), 1))
	}
	for range patternAttempts {
		if v := fitLength(node, gen.Generate(limit)); re.MatchString(v) {
			return v, true
		}
	}
	return "", false
}

func (s *synth) integer(node map[string]any) int {
	lo, hi := bounds(node, 1)
	v := int(math.Ceil(lo)) + int(s.variant)
	if hi != nil && float64(v) > *hi {
		v = int(math.Floor(*hi))
	}
	return v
}

func (s *synth) number(node map[string]any) float64 {
	lo, hi := bounds(node, 1)
	v := lo + float64(s.variant) + 0.5
	if hi != nil && v > *hi {
		v = *hi
	}
	return v
}

func (s *synth) array(path Path, node map[string]any, depth int, ignoreReadOnly bool) []any {
	items, ok := node["items"].(map[string]any)
	if !ok {
		return []any{}
	}
	n := 1
	if minItems, ok := numberField(node, "minItems"); ok && int(minItems) > n {
		n = int(minItems)
	}
	if maxItems, ok := numberField(node, "maxItems"); ok && int(maxItems) < n {
		n = int(maxItems)
	}
	out := make([]any, 0, n)
	for range n {
		v, ok := s.value(path, items, depth+1, ignoreReadOnly)
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func (s *synth) object(path Path, node map[string]any, depth int, ignoreReadOnly bool) map[string]any {
	out := map[string]any{}
	props, _ := node["properties"].(map[string]any)
	for _, name := range requiredNames(node) {
		child := append(slices.Clone(path), name)
		if s.omitted(child, ignoreReadOnly) {
			continue
		}
		childNode, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := s.value(child, childNode, depth+1, ignoreReadOnly); ok {
			out[name] = v
		}
	}
	return out
}

// schemaType returns the first non-null declared type, inferring object
// and array from structure when type is absent.
func schemaType(node map[string]any) string {
	switch t := node["type"].(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "null" {
				return s
			}
		}
		return "null"
	}
	if _, ok := node["properties"]; ok {
		return "object"
	}
	if _, ok := node["items"]; ok {
		return "array"
	}
	return ""
}

func requiredNames(node map[string]any) []string {
	raw, _ := node["required"].([]any)
	names := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && !slices.Contains(names, s) {
			names = append(names, s)
		}
	}
	slices.Sort(names)
	return names
}

// bounds returns the inclusive lower bound (fallback when absent) and the
// inclusive upper bound if any. Both the numeric (draft 6+) and boolean
// (draft 4) exclusive forms are understood.
func bounds(node map[string]any, fallback float64) (float64, *float64) {
	lo := fallback
	if minimum, ok := numberField(node, "minimum"); ok {
		lo = minimum
		if node["exclusiveMinimum"] == true {
			lo = minimum + 1
		}
	}
	if exMin, ok := numberField(node, "exclusiveMinimum"); ok {
		lo = exMin + 1
	}

	var hi *float64
	if maximum, ok := numberField(node, "maximum"); ok {
		if node["exclusiveMaximum"] == true {
			maximum--
		}
		hi = &maximum
	}
	if exMax, ok := numberField(node, "exclusiveMaximum"); ok {
		v := exMax - 1
		hi = &v
	}
	return lo, hi
}

func numberField(node map[string]any, key string) (float64, bool) {
	switch v := node[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
