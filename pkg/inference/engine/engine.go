package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/go-go-golems/librarian/pkg/inference/tools"
	"github.com/go-go-golems/librarian/pkg/turns"
)

// StopReason is the backend's signal whether a reply is a final answer or a tool-use request.
type StopReason string

const (
	StopReasonEndTurn StopReason = "end_turn"
	StopReasonToolUse StopReason = "tool_use"
)

// Request is everything a backend needs for one stateless model call.
type Request struct {
	System string
	Turns  []*turns.Turn
	// Tools is the full catalog, sent on every call.
	Tools []tools.Schema
}

type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

// Reply is the structured answer of a backend: ordered text and tool call blocks plus a stop reason.
type Reply struct {
	Blocks     []turns.Block
	StopReason StopReason
	Model      string
	Usage      *Usage
}

// Text concatenates the reply's text blocks.
func (r *Reply) Text() string {
	if r == nil {
		return ""
	}
	t := turns.Turn{Blocks: r.Blocks}
	return t.Text()
}

// ToolCalls returns the reply's tool calls in emission order.
func (r *Reply) ToolCalls() []turns.ToolCall {
	if r == nil {
		return nil
	}
	t := turns.Turn{Blocks: r.Blocks}
	return t.ToolCalls()
}

// Engine is the model backend client. Implementations own transport, auth and retry policy.
// Every failure that is not a normal stop signal is returned as an error.
type Engine interface {
	RunInference(ctx context.Context, req *Request) (*Reply, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req *Request) (*Reply, error)

func (f EngineFunc) RunInference(ctx context.Context, req *Request) (*Reply, error) {
	return f(ctx, req)
}

var _ Engine = EngineFunc(nil)

// ErrMalformedReply marks replies that violate the backend contract.
var ErrMalformedReply = errors.New("malformed model reply")

// Validate checks the reply against the backend contract.
func (r *Reply) Validate() error {
	if r == nil {
		return errors.Wrap(ErrMalformedReply, "nil reply")
	}
	switch r.StopReason {
	case StopReasonEndTurn:
	case StopReasonToolUse:
		if len(r.ToolCalls()) == 0 {
			return errors.Wrap(ErrMalformedReply, "tool_use reply without tool calls")
		}
	default:
		return errors.Wrapf(ErrMalformedReply, "unknown stop reason %q", r.StopReason)
	}
	for i, b := range r.Blocks {
		switch b.Kind {
		case turns.BlockKindText:
		case turns.BlockKindToolCall:
			if b.ToolCall == nil || b.ToolCall.Name == "" {
				return errors.Wrapf(ErrMalformedReply, "block %d: tool call without name", i)
			}
		default:
			return errors.Wrapf(ErrMalformedReply, "block %d: unexpected %s block", i, b.Kind)
		}
	}
	return nil
}
