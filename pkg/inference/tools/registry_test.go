package tools

import (
	"context"
	"iter"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/render"
)

type listItemsInput struct {
	Genre string `json:"genre,omitempty" jsonschema:"description=Filter by genre"`
}

type getItemInput struct {
	ItemID int `json:"item_id" jsonschema:"required,description=The item id"`
}

func mustTool(t *testing.T, name string, fn interface{}) *ToolDefinition {
	t.Helper()
	def, err := NewToolFromFunc(name, name+" tool", fn)
	require.NoError(t, err)
	return def
}

func newTestRegistry(t *testing.T) *Registry {
	r := NewRegistry()
	require.NoError(t, r.RegisterAll(
		mustTool(t, "list_items", func(in listItemsInput) ([]string, error) {
			return []string{"The Hobbit"}, nil
		}),
		mustTool(t, "get_item", func(in getItemInput) (map[string]any, error) {
			return map[string]any{"id": in.ItemID}, nil
		}),
	))
	return r
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(mustTool(t, "list_items", func() int { return 1 }))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateToolName))
	assert.Equal(t, 2, r.Len())
}

func TestRegisterRejectsIncompleteDefinitions(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register(nil))
	require.Error(t, r.Register(&ToolDefinition{Handler: func(context.Context, map[string]any) (any, error) { return nil, nil }}))
	require.Error(t, r.Register(&ToolDefinition{Name: "x"}))
}

func TestLookup(t *testing.T) {
	r := newTestRegistry(t)

	def, err := r.Lookup("get_item")
	require.NoError(t, err)
	assert.Equal(t, "get_item", def.Name)

	_, err = r.Lookup("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestSchemasKeepRegistrationOrder(t *testing.T) {
	r := newTestRegistry(t)
	schemas := r.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "list_items", schemas[0].Name)
	assert.Equal(t, "get_item", schemas[1].Name)
	assert.Equal(t, "object", schemas[1].InputSchema["type"])
	assert.NotContains(t, schemas[1].InputSchema, "$schema")
	assert.Equal(t, []string{"list_items", "get_item"}, r.Names())
}

func TestValidateArguments(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.ValidateArguments("get_item", map[string]any{"item_id": 3}))
	require.NoError(t, r.ValidateArguments("list_items", nil))

	err := r.ValidateArguments("get_item", map[string]any{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArgumentValidation))
	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ErrorKindValidation, te.Kind)
	assert.Contains(t, te.Message, "item_id")
	require.NotEmpty(t, te.Details)

	err = r.ValidateArguments("get_item", map[string]any{"item_id": "three"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item_id")

	err = r.ValidateArguments("unknown", nil)
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestLookupFormatter(t *testing.T) {
	r := NewRegistry()
	def := mustTool(t, "list_items", func() []string { return nil }).
		WithFormatter(func(any) iter.Seq[render.Chunk] { return render.Single("formatted", true) })
	require.NoError(t, r.Register(def))
	require.NoError(t, r.Register(mustTool(t, "plain", func() int { return 1 })))

	f, ok := r.LookupFormatter("list_items")
	require.True(t, ok)
	assert.Equal(t, "formatted", render.Join(render.Collect(f(nil))))

	_, ok = r.LookupFormatter("plain")
	assert.False(t, ok)

	out := render.NewFormatter(r).Format("plain", 1)
	assert.Equal(t, "1", render.Join(render.Collect(out)))
}
