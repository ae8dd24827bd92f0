package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// A request to the model backend is about to be sent
	EventTypeModelRequest EventType = "model-request"
	// The model backend replied (end_turn or tool_use)
	EventTypeModelReply EventType = "model-reply"

	// Execution-phase events (we are actually executing tools locally)
	EventTypeToolCallExecute         EventType = "tool-call-execute"
	EventTypeToolCallExecutionResult EventType = "tool-call-result"

	EventTypeLoopFinished EventType = "loop-finished"
	EventTypeError        EventType = "error"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Error_    error         `json:"-"`
	Metadata_ EventMetadata `json:"meta,omitempty"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	if e.Error_ != nil {
		ev.Err(e.Error_)
	}
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Error() error {
	return e.Error_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// ToolCall is the event-side view of a tool call; Input is the JSON-encoded arguments.
type ToolCall struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Input string `json:"input" yaml:"input"`
}

// ToolResult is the event-side view of a tool result.
type ToolResult struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Result  string `json:"result" yaml:"result"`
	IsError bool   `json:"is_error,omitempty" yaml:"is_error,omitempty"`
}

type EventModelRequest struct {
	EventImpl
	Iteration int `json:"iteration"`
	TurnCount int `json:"turn_count"`
	ToolCount int `json:"tool_count"`
}

func NewModelRequestEvent(metadata EventMetadata, iteration, turnCount, toolCount int) *EventModelRequest {
	return &EventModelRequest{
		EventImpl: EventImpl{Type_: EventTypeModelRequest, Metadata_: metadata},
		Iteration: iteration,
		TurnCount: turnCount,
		ToolCount: toolCount,
	}
}

var _ Event = &EventModelRequest{}

type EventModelReply struct {
	EventImpl
	Iteration  int        `json:"iteration"`
	StopReason string     `json:"stop_reason"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

func NewModelReplyEvent(metadata EventMetadata, iteration int, stopReason string, text string, calls []ToolCall) *EventModelReply {
	return &EventModelReply{
		EventImpl:  EventImpl{Type_: EventTypeModelReply, Metadata_: metadata},
		Iteration:  iteration,
		StopReason: stopReason,
		Text:       text,
		ToolCalls:  calls,
	}
}

var _ Event = &EventModelReply{}

// EventToolCallExecute captures the intent to execute a tool locally
type EventToolCallExecute struct {
	EventImpl
	ToolCall ToolCall `json:"tool_call"`
}

func NewToolCallExecuteEvent(metadata EventMetadata, toolCall ToolCall) *EventToolCallExecute {
	return &EventToolCallExecute{
		EventImpl: EventImpl{Type_: EventTypeToolCallExecute, Metadata_: metadata},
		ToolCall:  toolCall,
	}
}

var _ Event = &EventToolCallExecute{}

// EventToolCallExecutionResult captures the result of executing a tool locally
type EventToolCallExecutionResult struct {
	EventImpl
	ToolResult ToolResult `json:"tool_result"`
}

func NewToolCallExecutionResultEvent(metadata EventMetadata, toolResult ToolResult) *EventToolCallExecutionResult {
	return &EventToolCallExecutionResult{
		EventImpl:  EventImpl{Type_: EventTypeToolCallExecutionResult, Metadata_: metadata},
		ToolResult: toolResult,
	}
}

var _ Event = &EventToolCallExecutionResult{}

type EventLoopFinished struct {
	EventImpl
	Reason     string `json:"reason"`
	Iterations int    `json:"iterations"`
	ModelCalls int    `json:"model_calls"`
	FinalText  string `json:"final_text,omitempty"`
}

func NewLoopFinishedEvent(metadata EventMetadata, reason string, iterations, modelCalls int, finalText string) *EventLoopFinished {
	return &EventLoopFinished{
		EventImpl:  EventImpl{Type_: EventTypeLoopFinished, Metadata_: metadata},
		Reason:     reason,
		Iterations: iterations,
		ModelCalls: modelCalls,
		FinalText:  finalText,
	}
}

var _ Event = &EventLoopFinished{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl:   EventImpl{Type_: EventTypeError, Error_: err, Metadata_: metadata},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

// NewEventFromJson decodes a JSON-serialized event back into its typed form.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.New("empty event")
	}
	e.payload = b

	switch e.Type_ {
	case EventTypeModelRequest:
		return decodeTyped[EventModelRequest](e)
	case EventTypeModelReply:
		return decodeTyped[EventModelReply](e)
	case EventTypeToolCallExecute:
		return decodeTyped[EventToolCallExecute](e)
	case EventTypeToolCallExecutionResult:
		return decodeTyped[EventToolCallExecutionResult](e)
	case EventTypeLoopFinished:
		return decodeTyped[EventLoopFinished](e)
	case EventTypeError:
		ret, err := decodeTyped[EventError](e)
		if err != nil {
			return nil, err
		}
		ret.Error_ = errors.New(ret.ErrorString)
		return ret, nil
	}

	return nil, errors.Errorf("unknown event type: %s", e.Type_)
}

type typedEvent interface {
	Event
	setPayload([]byte)
}

func (e *EventImpl) setPayload(b []byte) { e.payload = b }

func decodeTyped[T any, PT interface {
	*T
	typedEvent
}](e Event) (PT, error) {
	ret, ok := ToTypedEvent[T](e)
	if !ok || ret == nil {
		return nil, errors.Errorf("could not cast event to %s", e.Type())
	}
	PT(ret).setPayload(e.Payload())
	return PT(ret), nil
}

// ToTypedEvent decodes the raw payload of e into T.
func ToTypedEvent[T any](e Event) (*T, bool) {
	var ret *T
	err := json.Unmarshal(e.Payload(), &ret)
	if err != nil {
		return nil, false
	}
	return ret, true
}
