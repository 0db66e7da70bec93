package testutil

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rcontract/internal/resource"
	"github.com/roach88/rcontract/internal/schema"
)

//go:embed schemas/*.json
var schemas embed.FS

// Schema file names under schemas/.
const (
	// WidgetSchema has a caller-chosen primary identifier (Name), a
	// readOnly additional identifier (Arn) and a writeOnly Secret.
	WidgetSchema = "widget.json"

	// MintedSchema has a readOnly primary identifier assigned by the
	// handler.
	MintedSchema = "minted.json"
)

// SchemaBytes returns an embedded schema document.
func SchemaBytes(t testing.TB, name string) []byte {
	t.Helper()
	data, err := schemas.ReadFile("schemas/" + name)
	require.NoError(t, err)
	return data
}

// LoadType parses and normalizes an embedded schema.
func LoadType(t testing.TB, name string) *resource.Type {
	t.Helper()
	raw, err := schema.DecodeBytes(name, SchemaBytes(t, name))
	require.NoError(t, err)
	doc, err := schema.ParseDocument(raw)
	require.NoError(t, err)
	typ, err := resource.New(doc)
	require.NoError(t, err)
	return typ
}

// WidgetType is LoadType(t, WidgetSchema).
func WidgetType(t testing.TB) *resource.Type { return LoadType(t, WidgetSchema) }

// MintedType is LoadType(t, MintedSchema).
func MintedType(t testing.TB) *resource.Type { return LoadType(t, MintedSchema) }
