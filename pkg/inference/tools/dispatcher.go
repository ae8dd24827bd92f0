package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/librarian/pkg/events"
	"github.com/go-go-golems/librarian/pkg/turns"
)

type currentToolCallKey struct{}

// WithCurrentToolCall annotates context with the tool call being executed.
func WithCurrentToolCall(ctx context.Context, call turns.ToolCall) context.Context {
	return context.WithValue(ctx, currentToolCallKey{}, call)
}

// CurrentToolCallFromContext returns the tool call being executed, if any.
func CurrentToolCallFromContext(ctx context.Context) (turns.ToolCall, bool) {
	if ctx == nil {
		return turns.ToolCall{}, false
	}
	call, ok := ctx.Value(currentToolCallKey{}).(turns.ToolCall)
	return call, ok
}

// Execution is the outcome of dispatching one tool call.
type Execution struct {
	Call turns.ToolCall
	// Result is the raw handler result; nil when Err is set.
	Result any
	Err    *ToolError
	// Payload is the text sent back to the model.
	Payload  string
	Duration time.Duration
}

// IsError reports whether the call failed at any stage.
func (e Execution) IsError() bool {
	return e.Err != nil
}

// ToolResult converts the execution into the content block appended to the conversation.
func (e Execution) ToolResult() turns.ToolResult {
	return turns.ToolResult{
		CallID:  e.Call.ID,
		Payload: e.Payload,
		IsError: e.IsError(),
	}
}

// Dispatcher resolves, validates and runs tool calls against a Registry.
// Failures never escape Dispatch: they come back as error executions.
type Dispatcher struct {
	registry *Registry
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source used to measure durations.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{registry: registry, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch executes a single call: lookup, argument validation, then the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, call turns.ToolCall) Execution {
	start := d.now()
	events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(
		events.MetadataFromContext(ctx),
		events.ToolCall{ID: call.ID, Name: call.Name, Input: compactArguments(call.Arguments)},
	))

	exec := d.execute(ctx, call)
	exec.Duration = d.now().Sub(start)

	logger := log.With().Str("tool", call.Name).Str("call_id", call.ID).Dur("duration", exec.Duration).Logger()
	if exec.Err != nil {
		logger.Warn().Str("kind", string(exec.Err.Kind)).Str("error", exec.Err.Message).Msg("tool call failed")
	} else {
		logger.Debug().Int("payload_len", len(exec.Payload)).Msg("tool call succeeded")
	}

	events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(
		events.MetadataFromContext(ctx),
		events.ToolResult{ID: call.ID, Name: call.Name, Result: exec.Payload, IsError: exec.IsError()},
	))
	return exec
}

func (d *Dispatcher) execute(ctx context.Context, call turns.ToolCall) Execution {
	exec := Execution{Call: call}

	def, err := d.registry.Lookup(call.Name)
	if err != nil {
		return exec.fail(newNotFoundError(call.Name, call.ID))
	}

	if err := d.registry.ValidateArguments(call.Name, call.Arguments); err != nil {
		var te *ToolError
		if !errors.As(err, &te) {
			te = &ToolError{ToolName: call.Name, Kind: ErrorKindValidation, Message: err.Error(), cause: err}
		}
		te.CallID = call.ID
		return exec.fail(te)
	}

	result, err := invoke(WithCurrentToolCall(ctx, call), def.Handler, call.Arguments)
	if err != nil {
		return exec.fail(newHandlerError(call.Name, call.ID, err))
	}

	payload, err := resultPayload(result)
	if err != nil {
		return exec.fail(newHandlerError(call.Name, call.ID, err))
	}
	exec.Result = result
	exec.Payload = payload
	return exec
}

func (e Execution) fail(te *ToolError) Execution {
	e.Err = te
	e.Result = nil
	e.Payload = te.Payload()
	return e
}

func invoke(ctx context.Context, h HandlerFunc, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx, args)
}

// resultPayload renders a handler result as JSON text; strings are passed through.
func resultPayload(result any) (string, error) {
	switch v := result.(type) {
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", errors.Wrap(err, "could not serialize tool result")
	}
	return string(b), nil
}

func compactArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}
