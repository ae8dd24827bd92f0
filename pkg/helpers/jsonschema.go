package helpers

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// SchemaToMap converts a reflected schema into the plain JSON object sent to model backends
// and fed to validators. The draft identifiers invopop adds are dropped.
func SchemaToMap(schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal schema")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal schema")
	}
	delete(m, "$schema")
	delete(m, "$id")
	if _, ok := m["type"]; !ok {
		m["type"] = "object"
	}
	if m["type"] == "object" {
		if _, ok := m["properties"]; !ok {
			m["properties"] = map[string]any{}
		}
	}
	return m, nil
}

// SchemaToRawMessage is SchemaToMap encoded as JSON.
func SchemaToRawMessage(schema *jsonschema.Schema) (json.RawMessage, error) {
	m, err := SchemaToMap(schema)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal schema")
	}
	return b, nil
}
