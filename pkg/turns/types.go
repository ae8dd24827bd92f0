package turns

import (
	"strings"
	"time"

	"github.com/huandu/go-clone"
)

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser       Role = "user"
	RoleModel      Role = "model"
	RoleToolResult Role = "tool_result"
)

// BlockKind is the tag of the Block variant.
type BlockKind string

const (
	BlockKindText       BlockKind = "text"
	BlockKindToolCall   BlockKind = "tool_call"
	BlockKindToolResult BlockKind = "tool_result"
)

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID        string         `yaml:"id" json:"id"`
	Name      string         `yaml:"name" json:"name"`
	Arguments map[string]any `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ToolResult is the outcome of executing a ToolCall. Payload is the text fed back to the model.
type ToolResult struct {
	CallID  string `yaml:"call_id" json:"call_id"`
	Payload string `yaml:"payload" json:"payload"`
	IsError bool   `yaml:"is_error,omitempty" json:"is_error,omitempty"`
}

// Block is a single content block. Exactly one of Text, ToolCall or ToolResult is meaningful,
// selected by Kind.
type Block struct {
	Kind       BlockKind   `yaml:"kind" json:"kind"`
	Text       string      `yaml:"text,omitempty" json:"text,omitempty"`
	ToolCall   *ToolCall   `yaml:"tool_call,omitempty" json:"tool_call,omitempty"`
	ToolResult *ToolResult `yaml:"tool_result,omitempty" json:"tool_result,omitempty"`
}

// Turn is one entry in a conversation.
type Turn struct {
	ID        string    `yaml:"id,omitempty" json:"id,omitempty"`
	Role      Role      `yaml:"role" json:"role"`
	Blocks    []Block   `yaml:"blocks" json:"blocks"`
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// Clone returns a deep copy of the Turn, including tool call arguments.
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	return clone.Clone(t).(*Turn)
}

// Text concatenates all text blocks of the turn in order.
func (t *Turn) Text() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range t.Blocks {
		if b.Kind == BlockKindText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolCalls returns the tool calls of the turn in emission order.
func (t *Turn) ToolCalls() []ToolCall {
	if t == nil {
		return nil
	}
	var calls []ToolCall
	for _, b := range t.Blocks {
		if b.Kind == BlockKindToolCall && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// ToolResults returns the tool results of the turn in order.
func (t *Turn) ToolResults() []ToolResult {
	if t == nil {
		return nil
	}
	var results []ToolResult
	for _, b := range t.Blocks {
		if b.Kind == BlockKindToolResult && b.ToolResult != nil {
			results = append(results, *b.ToolResult)
		}
	}
	return results
}

// TextBlocks returns only the text blocks of the turn.
func (t *Turn) TextBlocks() []Block {
	if t == nil {
		return nil
	}
	var out []Block
	for _, b := range t.Blocks {
		if b.Kind == BlockKindText {
			out = append(out, b)
		}
	}
	return out
}
