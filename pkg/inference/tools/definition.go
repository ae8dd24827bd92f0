package tools

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/go-go-golems/librarian/pkg/render"
)

// HandlerFunc executes a tool with already validated arguments.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolDefinition represents a tool that can be called by AI models
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Handler     HandlerFunc        `json:"-"`
	// Formatter renders the raw handler result into user-facing chunks. Optional.
	Formatter render.FormatFunc `json:"-"`
	Tags      []string          `json:"tags,omitempty"`
}

// WithFormatter sets the result formatter and returns the definition.
func (t *ToolDefinition) WithFormatter(f render.FormatFunc) *ToolDefinition {
	t.Formatter = f
	return t
}

// WithTags appends tags and returns the definition.
func (t *ToolDefinition) WithTags(tags ...string) *ToolDefinition {
	t.Tags = append(t.Tags, tags...)
	return t
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// NewToolFromFunc creates a ToolDefinition from a Go function. Supported signatures:
//
//	func(Input) (Result, error)
//	func(context.Context, Input) (Result, error)
//	func(context.Context) (Result, error)
//	func() (Result, error)
//
// The error return is optional. The argument schema is reflected from Input.
func NewToolFromFunc(name, description string, fn interface{}) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}

	if funcType.NumOut() == 0 || funcType.NumOut() > 2 {
		return nil, errors.New("function must return (result) or (result, error)")
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be an error")
	}

	inputType, takesContext, err := inputOf(funcType)
	if err != nil {
		return nil, err
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  generateSchema(inputType),
		Handler:     createHandler(reflect.ValueOf(fn), inputType, takesContext),
	}, nil
}

func inputOf(funcType reflect.Type) (reflect.Type, bool, error) {
	switch funcType.NumIn() {
	case 0:
		return nil, false, nil
	case 1:
		if funcType.In(0) == contextType {
			return nil, true, nil
		}
		return funcType.In(0), false, nil
	case 2:
		if funcType.In(0) != contextType {
			return nil, false, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		return funcType.In(1), true, nil
	default:
		return nil, false, errors.New("function must take (Input), (context.Context, Input), (context.Context) or nothing")
	}
}

// generateSchema creates a JSON schema from the input type
func generateSchema(inputType reflect.Type) *jsonschema.Schema {
	if inputType == nil {
		return &jsonschema.Schema{Type: "object"}
	}

	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
	}
	schema := reflector.Reflect(reflect.New(inputType).Elem().Interface())
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema
}

func createHandler(fn reflect.Value, inputType reflect.Type, takesContext bool) HandlerFunc {
	return func(ctx context.Context, args map[string]any) (any, error) {
		var in []reflect.Value
		if takesContext {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inputType != nil {
			input := reflect.New(inputType)
			if args == nil {
				args = map[string]any{}
			}
			b, err := json.Marshal(args)
			if err != nil {
				return nil, errors.Wrap(err, "failed to marshal arguments")
			}
			if err := json.Unmarshal(b, input.Interface()); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal arguments")
			}
			in = append(in, input.Elem())
		}
		return extractResults(fn.Call(in))
	}
}

// extractResults extracts the result and error from function call results
func extractResults(results []reflect.Value) (interface{}, error) {
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		result := results[0].Interface()
		errV := results[1]
		switch errV.Kind() {
		case reflect.Interface, reflect.Pointer:
			if errV.IsNil() {
				return result, nil
			}
		}
		return result, errV.Interface().(error)
	}
	return nil, errors.Errorf("unexpected number of return values: %d", len(results))
}
