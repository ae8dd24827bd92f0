package tools

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"

	"github.com/go-go-golems/librarian/pkg/helpers"
	"github.com/go-go-golems/librarian/pkg/render"
)

// Schema is the provider-neutral description of a tool sent with every model request.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type registryEntry struct {
	def       *ToolDefinition
	schema    Schema
	validator *gojsonschema.Schema
}

// Registry maps tool names to definitions and keeps registration order.
//
// Tools are registered at startup. The registry is then only read, and may be shared
// by concurrently running loops.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
	order   []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
	}
}

// Register adds a tool. It fails with ErrDuplicateToolName if the name is taken.
func (r *Registry) Register(def *ToolDefinition) error {
	if def == nil {
		return errors.New("tool definition cannot be nil")
	}
	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if def.Handler == nil {
		return errors.Errorf("tool %s has no handler", def.Name)
	}

	inputSchema, err := helpers.SchemaToMap(def.Parameters)
	if err != nil {
		return errors.Wrapf(err, "tool %s", def.Name)
	}
	validator, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(inputSchema))
	if err != nil {
		return errors.Wrapf(err, "tool %s: invalid argument schema", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[def.Name]; ok {
		return errors.Wrapf(ErrDuplicateToolName, "tool %s", def.Name)
	}
	r.entries[def.Name] = &registryEntry{
		def: def,
		schema: Schema{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: inputSchema,
		},
		validator: validator,
	}
	r.order = append(r.order, def.Name)
	return nil
}

// RegisterAll registers several tools, stopping at the first failure.
func (r *Registry) RegisterAll(defs ...*ToolDefinition) error {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the definition registered under name, or ErrUnknownTool.
func (r *Registry) Lookup(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTool, "tool not found: %s", name)
	}
	return e.def, nil
}

// Schemas returns the schema of every tool in registration order.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ret := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		ret = append(ret, r.entries[name].schema)
	}
	return ret
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// LookupFormatter implements render.FormatterSource.
func (r *Registry) LookupFormatter(name string) (render.FormatFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok || e.def.Formatter == nil {
		return nil, false
	}
	return e.def.Formatter, true
}

var _ render.FormatterSource = (*Registry)(nil)

// ValidateArguments checks args against the tool's schema. Failures are *ToolError values
// of kind validation listing each offending field.
func (r *Registry) ValidateArguments(name string, args map[string]any) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return newNotFoundError(name, "")
	}

	if args == nil {
		args = map[string]any{}
	}
	res, err := e.validator.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &ToolError{
			ToolName: name,
			Kind:     ErrorKindValidation,
			Message:  fmt.Sprintf("invalid arguments for %s: %s", name, err.Error()),
			cause:    err,
		}
	}
	if res.Valid() {
		return nil
	}

	details := make([]string, 0, len(res.Errors()))
	for _, re := range res.Errors() {
		details = append(details, describeResultError(re))
	}
	return &ToolError{
		ToolName: name,
		Kind:     ErrorKindValidation,
		Message:  fmt.Sprintf("invalid arguments for %s: %s", name, strings.Join(details, "; ")),
		Details:  details,
	}
}

func describeResultError(re gojsonschema.ResultError) string {
	field := re.Field()
	if field == "" || field == "(root)" {
		return re.Description()
	}
	return field + ": " + re.Description()
}
