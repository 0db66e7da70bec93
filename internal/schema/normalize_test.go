package schema

import (
	"testing"

	"github.com/mohae/deepcopy"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rcontract/internal/canonical"
)

var primitiveTypes = []map[string]any{
	{"type": "string"},
	{"type": "integer"},
	{"type": "number"},
	{"type": "object"},
	{"type": "array"},
	{"type": "boolean"},
}

func loadRaw(t *testing.T, name string) map[string]any {
	t.Helper()
	doc, err := LoadFile("testdata/" + name)
	require.NoError(t, err)
	return doc.Raw
}

func newTestNormalizer(doc map[string]any) *normalizer {
	return newNormalizer(documentResolver(doc))
}

func TestNormalize_Golden(t *testing.T) {
	for _, name := range []string{"area", "circular", "allof"} {
		t.Run(name, func(t *testing.T) {
			m, err := Normalize(loadRaw(t, name+".json"))
			require.NoError(t, err)

			data, err := canonical.Marshal(m)
			require.NoError(t, err)

			g := goldie.New(t,
				goldie.WithFixtureDir("testdata/golden"),
				goldie.WithNameSuffix(".golden"),
			)
			g.Assert(t, name+"_normalized", data)
		})
	}
}

func TestNormalize_FixedPoint(t *testing.T) {
	for _, name := range []string{"area", "circular", "allof"} {
		t.Run(name, func(t *testing.T) {
			m, err := Normalize(loadRaw(t, name+".json"))
			require.NoError(t, err)

			again, err := m.Normalize()
			require.NoError(t, err)
			assert.Equal(t, m, again)
		})
	}
}

func TestNormalize_DeterministicAndNonMutating(t *testing.T) {
	raw := loadRaw(t, "area.json")
	before := deepcopy.Copy(raw)

	first, err := Normalize(raw)
	require.NoError(t, err)
	second, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, raw, "input document must not be modified")
}

func TestNormalize_MapInvariants(t *testing.T) {
	for _, name := range []string{"area", "circular", "allof"} {
		t.Run(name, func(t *testing.T) {
			m, err := Normalize(loadRaw(t, name+".json"))
			require.NoError(t, err)

			for ptr, node := range m {
				for _, ref := range collectRefs(node) {
					assert.Contains(t, m, ref, "dangling $ref in %s", ptr)
				}
				for _, key := range combinatorKeys {
					assert.False(t, containsKey(node, key), "%s still carries %s", ptr, key)
				}
			}
		})
	}
}

func TestNormalize_DeduplicatesReferences(t *testing.T) {
	m, err := Normalize(loadRaw(t, "area.json"))
	require.NoError(t, err)

	box := m["#/definitions/boundary/properties/box"]
	props := box["properties"].(map[string]any)
	assert.Equal(t, Ref("#/definitions/coordinate"), props["north"])
	assert.Equal(t, Ref("#/definitions/coordinate"), props["south"])

	count := 0
	for _, ptr := range m.Pointers() {
		if ptr == "#/definitions/coordinate" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.NotContains(t, m, "#/definitions/boundary/properties/box/properties/north")
}

func TestNormalize_MergePrecedence(t *testing.T) {
	doc := map[string]any{
		"properties": map[string]any{
			"Foo": map[string]any{"type": "object"},
		},
		"anyOf": []any{
			map[string]any{"properties": map[string]any{"Foo": map[string]any{"type": "integer"}}},
		},
	}

	m, err := Normalize(doc)
	require.NoError(t, err)

	foo := m.Root()["properties"].(map[string]any)["Foo"].(map[string]any)
	assert.Equal(t, "integer", foo["type"])
	assert.NotContains(t, m.Root(), "anyOf")
}

func TestWalk_PrimitiveType(t *testing.T) {
	for _, prim := range primitiveTypes {
		n := newTestNormalizer(map[string]any{})
		result, err := n.walk("", deepcopy.Copy(prim).(map[string]any))
		require.NoError(t, err)

		assert.Equal(t, prim, result)
		assert.Empty(t, n.schemaMap)
	}
}

func TestWalk_RefToPrimitiveType(t *testing.T) {
	for _, prim := range primitiveTypes {
		n := newTestNormalizer(map[string]any{"definitions": deepcopy.Copy(prim)})
		result, err := n.walk("", Ref("#/definitions"))
		require.NoError(t, err)

		assert.Equal(t, prim, result)
		assert.Empty(t, n.schemaMap)
	}
}

func TestWalk_PathAlreadyProcessed(t *testing.T) {
	n := newTestNormalizer(map[string]any{})
	ptr := "#/properties/City"
	n.schemaMap = Map{ptr: nil}

	result, err := n.walk(ptr, nil)
	require.NoError(t, err)

	assert.Equal(t, Ref(ptr), result)
	assert.Len(t, n.schemaMap, 1)
}

func TestCollapseRef(t *testing.T) {
	raw := loadRaw(t, "area.json")
	expected, err := Normalize(raw)
	require.NoError(t, err)

	t.Run("leaf", func(t *testing.T) {
		n := newTestNormalizer(raw)
		got, err := n.collapseRef(
			"#/definitions/boundary/properties/box/properties/north",
			Ref("#/definitions/coordinate"),
		)
		require.NoError(t, err)

		assert.Equal(t, Ref("#/definitions/coordinate"), got)
		assert.Equal(t, expected["#/definitions/coordinate"], n.schemaMap["#/definitions/coordinate"])
		assert.Len(t, n.schemaMap, 1)
	})

	t.Run("nested", func(t *testing.T) {
		n := newTestNormalizer(raw)
		ptr := "#/definitions/boundary/properties/box"
		got, err := n.collapseRef(ptr, Ref(ptr))
		require.NoError(t, err)

		assert.Equal(t, Ref(ptr), got)
		assert.Equal(t, expected[ptr], n.schemaMap[ptr])
		assert.Equal(t, expected["#/definitions/coordinate"], n.schemaMap["#/definitions/coordinate"])
		assert.Len(t, n.schemaMap, 2)
	})
}

func TestCollapseArray_PatternPropertiesKey(t *testing.T) {
	raw := loadRaw(t, "area.json")
	expected, err := Normalize(raw)
	require.NoError(t, err)

	n := newTestNormalizer(raw)
	ptr := "#/properties/city/properties/neighborhoods"
	unresolved, err := n.resolve(ptr)
	require.NoError(t, err)

	got, err := n.collapseArray(ptr, unresolved)
	require.NoError(t, err)

	newKey := "#/properties/city/properties/neighborhoods/items/patternProperties/%5BA-Za-z0-9%5D%7B1%2C64%7D"
	assert.Equal(t, map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":              "object",
			"patternProperties": map[string]any{"[A-Za-z0-9]{1,64}": Ref(newKey)},
			"insertionOrder":    true,
		},
	}, got)
	assert.Equal(t, expected[newKey], n.schemaMap[newKey])
	assert.Len(t, n.schemaMap, 1)
}

func TestResolve(t *testing.T) {
	raw := loadRaw(t, "area.json")
	n := newTestNormalizer(raw)

	location, err := n.resolve("#/definitions/location")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"country":  map[string]any{"type": "string"},
			"boundary": Ref("#/definitions/boundary"),
		},
	}, location)

	street, err := n.resolve("#/properties/city/properties/neighborhoods/items/patternProperties/%5BA-Za-z0-9%5D%7B1%2C64%7D/properties/street")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "string"}, street)

	whole, err := n.resolve("#")
	require.NoError(t, err)
	assert.Equal(t, raw, whole)

	ref := "#/this/is/not/a/path"
	_, err = n.resolve(ref)
	require.Error(t, err)
	assert.True(t, IsNormalizationError(err))
	assert.Contains(t, err.Error(), ref)
	assert.Equal(t, ref, ErrorPointer(err))
}

func TestNormalize_UnresolvableReference(t *testing.T) {
	doc := map[string]any{
		"properties": map[string]any{
			"Foo": Ref("#/definitions/Missing"),
		},
	}
	_, err := Normalize(doc)
	require.Error(t, err)
	assert.True(t, IsSpecificationError(err))
	assert.Contains(t, err.Error(), "#/definitions/Missing")
}

func TestNormalize_NonLocalReference(t *testing.T) {
	doc := map[string]any{
		"properties": map[string]any{
			"Foo": Ref("https://example.com/schema.json#/Foo"),
		},
	}
	_, err := Normalize(doc)
	require.Error(t, err)
	assert.True(t, IsNormalizationError(err))
}

func TestNormalize_ReferenceCycleWithoutSchema(t *testing.T) {
	tests := []struct {
		name        string
		definitions map[string]any
	}{
		{"self", map[string]any{"a": Ref("#/definitions/a")}},
		{"pair", map[string]any{"a": Ref("#/definitions/b"), "b": Ref("#/definitions/a")}},
		{"combinator", map[string]any{"a": map[string]any{"allOf": []any{Ref("#/definitions/a")}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]any{
				"definitions": tt.definitions,
				"properties":  map[string]any{"Foo": Ref("#/definitions/a")},
			}
			_, err := Normalize(doc)
			require.Error(t, err)
			assert.True(t, IsNormalizationError(err))
			assert.Contains(t, err.Error(), "#/definitions/")
		})
	}
}

func TestNormalize_SelfReferentialRoot(t *testing.T) {
	doc := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"Next": Ref("#"),
		},
	}
	m, err := Normalize(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"#"}, m.Pointers())
	assert.Equal(t, Ref("#"), m.Root()["properties"].(map[string]any)["Next"])
}

func TestWalk_CombinatorBecomesInvalid(t *testing.T) {
	node := map[string]any{
		"properties": map[string]any{"Foo": map[string]any{"type": "string"}},
		"anyOf": []any{
			map[string]any{"patternProperties": map[string]any{"Test": map[string]any{"type": "string"}}},
		},
	}
	n := newTestNormalizer(map[string]any{})
	_, err := n.walk("#/properties/Foo", node)
	require.Error(t, err)

	assert.True(t, IsConstraintError(err))
	assert.Contains(t, err.Error(), "mutually exclusive")
	assert.Contains(t, err.Error(), "#/properties/Foo")
}

func TestWalk_RefBesideCombinator(t *testing.T) {
	doc := map[string]any{
		"definitions": map[string]any{
			"Base": map[string]any{"properties": map[string]any{"Id": map[string]any{"type": "string"}}},
		},
		"properties": map[string]any{
			"Foo": map[string]any{
				"$ref":  "#/definitions/Base",
				"allOf": []any{map[string]any{"properties": map[string]any{"Extra": map[string]any{"type": "integer"}}}},
			},
		},
	}

	_, err := Normalize(doc)
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))
	assert.Equal(t, "#/properties/Foo", ErrorPointer(err))
	assert.Contains(t, err.Error(), "$ref cannot be combined")
}

func TestSquash_OverwriteRef(t *testing.T) {
	node := map[string]any{
		"properties": map[string]any{"Test": Ref("#/definitions/Id")},
		"anyOf": []any{
			map[string]any{"properties": map[string]any{"Test": Ref("#/definitions/Other")}},
		},
	}
	n := newTestNormalizer(map[string]any{})
	n.schemaMap = Map{"#/definitions/Other": {}}

	got, err := n.squash("#/properties/Foo", node, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"properties": map[string]any{"Test": Ref("#/definitions/Other")},
	}, got)
	assert.Len(t, n.schemaMap, 1)
}

func TestSquash_OverwriteType(t *testing.T) {
	node := map[string]any{
		"properties": map[string]any{"Test": map[string]any{"type": "object"}},
		"anyOf": []any{
			map[string]any{"properties": map[string]any{"Test": map[string]any{"type": "integer"}}},
		},
	}
	assertSquash(t, node, map[string]any{
		"properties": map[string]any{"Test": map[string]any{"type": "integer"}},
	})
}

func TestSquash_PatternPropertiesReplacedWhole(t *testing.T) {
	node := map[string]any{
		"patternProperties": map[string]any{"test": Ref("#/definitions")},
		"anyOf": []any{
			map[string]any{"patternProperties": map[string]any{"test": map[string]any{"type": "object"}}},
			map[string]any{"required": []any{"Foo"}},
		},
	}
	assertSquash(t, node, map[string]any{
		"patternProperties": map[string]any{"test": map[string]any{"type": "object"}},
		"required":          []any{"Foo"},
	})
}

func TestSquash_Objects(t *testing.T) {
	expected := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"Baz": map[string]any{"type": "array"},
			"Foo": map[string]any{"type": "string", "pattern": "[a-z]+"},
			"Bar": map[string]any{"type": "number"},
		},
	}

	nodes := []map[string]any{{
		"type":       "object",
		"properties": map[string]any{"Baz": map[string]any{"type": "array"}},
		"allOf":      []any{map[string]any{"properties": map[string]any{"Foo": map[string]any{"type": "string"}}}},
		"oneOf":      []any{map[string]any{"properties": map[string]any{"Foo": map[string]any{"type": "string", "pattern": "[a-z]+"}}}},
		"anyOf":      []any{map[string]any{"properties": map[string]any{"Bar": map[string]any{"type": "number"}}}},
	}}
	for _, key := range combinatorKeys {
		nodes = append(nodes, map[string]any{
			"type":       "object",
			"properties": map[string]any{"Baz": map[string]any{"type": "array"}},
			key: []any{
				map[string]any{"properties": map[string]any{"Foo": map[string]any{"type": "string"}}},
				map[string]any{"properties": map[string]any{
					"Foo": map[string]any{"type": "string", "pattern": "[a-z]+"},
					"Bar": map[string]any{"type": "number"},
				}},
			},
		})
	}

	for _, node := range nodes {
		assertSquash(t, node, expected)
	}
}

func TestSquash_RequiredDeduplicated(t *testing.T) {
	node := map[string]any{
		"required": []any{"A", "B"},
		"allOf": []any{
			map[string]any{"required": []any{"B", "C"}},
			map[string]any{"required": []any{"A", "D"}},
		},
	}
	assertSquash(t, node, map[string]any{"required": []any{"A", "B", "C", "D"}})
}

func TestSquash_RefBranchResolved(t *testing.T) {
	doc := map[string]any{
		"definitions": map[string]any{
			"named": map[string]any{
				"properties": map[string]any{"Name": map[string]any{"type": "string"}},
				"required":   []any{"Name"},
			},
		},
	}
	node := map[string]any{
		"type":  "object",
		"allOf": []any{Ref("#/definitions/named")},
	}
	n := newTestNormalizer(doc)
	got, err := n.squash("#/properties/Foo", node, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{"Name": map[string]any{"type": "string"}},
		"required":   []any{"Name"},
	}, got)
}

func TestSquash_MalformedCombinator(t *testing.T) {
	n := newTestNormalizer(map[string]any{})

	_, err := n.squash("#/properties/Foo", map[string]any{"allOf": map[string]any{}}, nil)
	assert.True(t, IsConstraintError(err))

	_, err = n.squash("#/properties/Foo", map[string]any{"oneOf": []any{"nope"}}, nil)
	assert.True(t, IsConstraintError(err))
	assert.Equal(t, "#/properties/Foo", ErrorPointer(err))
}

const uniqueKey = "OWSAZD"

func TestConstraint_ArrayAdditionalItems(t *testing.T) {
	n := newTestNormalizer(map[string]any{})

	got, err := n.collapseArray(uniqueKey, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	got, err = n.collapseArray(uniqueKey, map[string]any{"additionalItems": false})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"additionalItems": false}, got)

	_, err = n.collapseArray(uniqueKey, map[string]any{"additionalItems": map[string]any{"type": "string"}})
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))
	assert.Contains(t, err.Error(), uniqueKey)
}

func TestConstraint_ObjectAdditionalProperties(t *testing.T) {
	n := newTestNormalizer(map[string]any{})

	got, err := n.collapseObject(uniqueKey, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	_, err = n.collapseObject(uniqueKey, map[string]any{"additionalProperties": map[string]any{"type": "string"}})
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))
	assert.Contains(t, err.Error(), uniqueKey)
}

func TestConstraint_PropertiesAndPatternProperties(t *testing.T) {
	n := newTestNormalizer(map[string]any{})
	_, err := n.collapseObject(uniqueKey, map[string]any{
		"properties":        map[string]any{"foo": map[string]any{"type": "string"}},
		"patternProperties": map[string]any{"type": "string"},
	})
	require.Error(t, err)
	assert.True(t, IsConstraintError(err))
	assert.Contains(t, err.Error(), uniqueKey)
}

func TestNormalize_ConstraintNamesNestedPointer(t *testing.T) {
	doc := map[string]any{
		"properties": map[string]any{
			"Tags": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
		},
	}
	_, err := Normalize(doc)
	require.Error(t, err)
	assert.Equal(t, "#/properties/Tags", ErrorPointer(err))
}

func assertSquash(t *testing.T, node, expected map[string]any) {
	t.Helper()
	n := newTestNormalizer(map[string]any{})
	got, err := n.squash("#/properties/Foo", node, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, got)
	assert.Empty(t, n.schemaMap)
}

func collectRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case map[string]any:
		if ref, ok := val["$ref"].(string); ok {
			refs = append(refs, ref)
		}
		for _, child := range val {
			refs = append(refs, collectRefs(child)...)
		}
	case []any:
		for _, child := range val {
			refs = append(refs, collectRefs(child)...)
		}
	}
	return refs
}

func containsKey(v any, key string) bool {
	switch val := v.(type) {
	case map[string]any:
		if _, ok := val[key]; ok {
			return true
		}
		for _, child := range val {
			if containsKey(child, key) {
				return true
			}
		}
	case []any:
		for _, child := range val {
			if containsKey(child, key) {
				return true
			}
		}
	}
	return false
}
