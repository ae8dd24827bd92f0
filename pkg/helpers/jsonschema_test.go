package helpers

import (
	"encoding/json"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookArgs struct {
	BookID int `json:"book_id" jsonschema:"required,description=The ID of the book"`
}

func TestSchemaToMap(t *testing.T) {
	r := &jsonschema.Reflector{DoNotReference: true}
	m, err := SchemaToMap(r.Reflect(bookArgs{}))
	require.NoError(t, err)

	assert.NotContains(t, m, "$schema")
	assert.NotContains(t, m, "$id")
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, []any{"book_id"}, m["required"])
	props := m["properties"].(map[string]any)
	assert.Contains(t, props, "book_id")
}

func TestSchemaToMapNil(t *testing.T) {
	m, err := SchemaToMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])

	raw, err := SchemaToRawMessage(nil)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, map[string]any{}, back["properties"])
}
