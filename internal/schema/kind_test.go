package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		node map[string]any
		want Kind
	}{
		{"nil", nil, KindPrimitive},
		{"string", map[string]any{"type": "string"}, KindPrimitive},
		{"childless object", map[string]any{"type": "object"}, KindPrimitive},
		{"childless array", map[string]any{"type": "array"}, KindPrimitive},
		{"boolean additionalProperties", map[string]any{"type": "object", "additionalProperties": false}, KindPrimitive},
		{"reference wins", map[string]any{"$ref": "#/definitions/a", "allOf": []any{}}, KindReference},
		{"combinator", map[string]any{"oneOf": []any{}}, KindCombinator},
		{"properties", map[string]any{"properties": map[string]any{}}, KindObject},
		{"pattern properties", map[string]any{"patternProperties": map[string]any{}}, KindObject},
		{"schema additionalProperties", map[string]any{"additionalProperties": map[string]any{}}, KindObject},
		{"items", map[string]any{"type": "array", "items": map[string]any{}}, KindArray},
		{"additionalItems", map[string]any{"additionalItems": true}, KindArray},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.node))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "reference", KindReference.String())
	assert.Equal(t, "combinator", KindCombinator.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestIsSelfRef(t *testing.T) {
	assert.True(t, isSelfRef(Ref("#/a"), "#/a"))
	assert.False(t, isSelfRef(Ref("#/b"), "#/a"))
	assert.False(t, isSelfRef(map[string]any{"$ref": "#/a", "type": "object"}, "#/a"))
}
