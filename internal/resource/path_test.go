package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/properties/Config/Port")
	require.NoError(t, err)
	assert.Equal(t, Path{"Config", "Port"}, p)
	assert.Equal(t, "/properties/Config/Port", p.String())

	p, err = ParsePath("/properties/a~1b")
	require.NoError(t, err)
	assert.Equal(t, Path{"a/b"}, p)

	_, err = ParsePath("/definitions/Foo")
	assert.Error(t, err)
	_, err = ParsePath("properties/Foo")
	assert.Error(t, err)
}

func TestPathPrefix(t *testing.T) {
	assert.True(t, Path{"A", "B"}.HasPrefix(Path{"A"}))
	assert.True(t, Path{"A"}.HasPrefix(Path{"A"}))
	assert.False(t, Path{"A"}.HasPrefix(Path{"A", "B"}))
	assert.False(t, Path{"AB"}.HasPrefix(Path{"A"}))
}

func TestGetSetDelete(t *testing.T) {
	model := Model{}
	require.NoError(t, Set(model, Path{"Config", "Port"}, 80))
	require.NoError(t, Set(model, Path{"Name"}, "x"))

	v, ok := Get(model, Path{"Config", "Port"})
	require.True(t, ok)
	assert.Equal(t, 80, v)

	_, ok = Get(model, Path{"Config", "Missing"})
	assert.False(t, ok)
	_, ok = Get(model, Path{"Name", "Nested"})
	assert.False(t, ok)

	assert.Error(t, Set(model, Path{"Name", "Nested"}, 1))
	assert.Error(t, Set(model, nil, 1))

	assert.True(t, Delete(model, Path{"Config", "Port"}))
	assert.False(t, Delete(model, Path{"Config", "Port"}))
	assert.Equal(t, Model{"Config": map[string]any{}, "Name": "x"}, model)
}

func TestModelWithPaths(t *testing.T) {
	model := Model{
		"Name":   "widget",
		"Config": map[string]any{"Port": 80, "Mode": "fast"},
		"Size":   3,
	}
	got := ModelWithPaths(model, []Path{{"Name"}, {"Config", "Port"}, {"Missing"}})
	assert.Equal(t, Model{"Name": "widget", "Config": map[string]any{"Port": 80}}, got)

	got["Config"].(map[string]any)["Port"] = 1
	assert.Equal(t, 80, model["Config"].(map[string]any)["Port"], "result must not alias the input")
}

func TestPrune(t *testing.T) {
	model := Model{
		"Name":   "widget",
		"Config": map[string]any{"Port": 80},
	}
	got := Prune(model, []Path{{"Config", "Port"}, {"Nope"}})
	assert.Equal(t, Model{"Name": "widget"}, got)
	assert.Contains(t, model, "Config")
}
