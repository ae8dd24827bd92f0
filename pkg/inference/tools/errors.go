package tools

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrDuplicateToolName  = errors.New("duplicate tool name")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrArgumentValidation = errors.New("argument validation failed")
	ErrHandler            = errors.New("tool handler failed")
)

// ErrorKind classifies recoverable tool failures.
type ErrorKind string

const (
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindExecution  ErrorKind = "execution"
)

// ToolError represents an error that occurred while dispatching a tool call.
// It is reported back to the model as an error-flagged tool result.
type ToolError struct {
	ToolName string    `json:"tool_name"`
	CallID   string    `json:"call_id,omitempty"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Details  []string  `json:"details,omitempty"`

	cause error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s]: %s", e.Kind, e.Message)
}

// Unwrap returns the sentinel matching the error kind, so errors.Is works on ToolErrors.
func (e *ToolError) Unwrap() error {
	switch e.Kind {
	case ErrorKindNotFound:
		return ErrUnknownTool
	case ErrorKindValidation:
		return ErrArgumentValidation
	case ErrorKindExecution:
		return ErrHandler
	}
	return e.cause
}

// Cause returns the underlying handler error, if any.
func (e *ToolError) Cause() error {
	return e.cause
}

// Payload is the JSON text fed back to the model.
func (e *ToolError) Payload() string {
	out := map[string]any{"error": e.Message}
	if len(e.Details) > 0 {
		out["details"] = e.Details
	}
	b, err := json.Marshal(out)
	if err != nil {
		return e.Message
	}
	return string(b)
}

func newNotFoundError(name, callID string) *ToolError {
	return &ToolError{
		ToolName: name,
		CallID:   callID,
		Kind:     ErrorKindNotFound,
		Message:  fmt.Sprintf("tool not found: %s", name),
	}
}

func newHandlerError(name, callID string, err error) *ToolError {
	return &ToolError{
		ToolName: name,
		CallID:   callID,
		Kind:     ErrorKindExecution,
		Message:  fmt.Sprintf("Error executing tool %s: %s", name, err.Error()),
		cause:    err,
	}
}
