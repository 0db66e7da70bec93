package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePattern(t *testing.T) {
	assert.Equal(t, "%5BA-Za-z0-9%5D%7B1%2C64%7D", EncodePattern("[A-Za-z0-9]{1,64}"))
	assert.Equal(t, "plain_key.v1~x", EncodePattern("plain_key.v1~x"))
	assert.Equal(t, "%5E%2Fa%2B%24", EncodePattern("^/a+$"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "#/properties/a~1b/properties/c~0d", Join(Root, "properties", "a/b", "properties", "c~d"))
	assert.Equal(t,
		"#/properties/city/patternProperties/%5BA-Z%5D%2B",
		JoinPattern("#/properties/city", "[A-Z]+"),
	)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		ptr  string
		want []string
	}{
		{"root", "#", nil},
		{"simple", "#/definitions/coordinate", []string{"definitions", "coordinate"}},
		{"rfc6901 escapes", "#/properties/a~1b/c~0d", []string{"properties", "a/b", "c~d"}},
		{
			"percent encoded pattern",
			"#/items/patternProperties/%5BA-Za-z0-9%5D%7B1%2C64%7D/properties/street",
			[]string{"items", "patternProperties", "[A-Za-z0-9]{1,64}", "properties", "street"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.ptr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit_RoundTripsPattern(t *testing.T) {
	ptr := JoinPattern("#/properties/tags", "^[a-z/]+$")
	segments, err := Split(ptr)
	require.NoError(t, err)
	assert.Equal(t, []string{"properties", "tags", "patternProperties", "^[a-z/]+$"}, segments)
}

func TestSplit_Invalid(t *testing.T) {
	_, err := Split("/properties/Foo")
	assert.Error(t, err)

	_, err = Split("#/properties/%zz")
	assert.Error(t, err)
}

func TestSplitPath(t *testing.T) {
	segments, err := SplitPath("/properties/Name")
	require.NoError(t, err)
	assert.Equal(t, []string{"properties", "Name"}, segments)

	_, err = SplitPath("properties/Name")
	assert.Error(t, err)

	assert.Equal(t, "#/properties/Name", FromPath("/properties/Name"))
	assert.Equal(t, "#/properties/Name", FromPath("#/properties/Name"))
}
