package turns

import (
	"time"

	"github.com/google/uuid"
)

// Convenience constructors for commonly used Block and Turn shapes.

// NewTextBlock returns a text Block.
func NewTextBlock(text string) Block {
	return Block{Kind: BlockKindText, Text: text}
}

// NewToolCallBlock returns a Block requesting invocation of a tool.
// id correlates the call with its ToolResult.
func NewToolCallBlock(id string, name string, args map[string]any) Block {
	return Block{
		Kind: BlockKindToolCall,
		ToolCall: &ToolCall{
			ID:        id,
			Name:      name,
			Arguments: args,
		},
	}
}

// NewToolResultBlock returns a Block capturing the result of a tool execution.
// callID must match the corresponding tool call id.
func NewToolResultBlock(callID string, payload string, isError bool) Block {
	return Block{
		Kind: BlockKindToolResult,
		ToolResult: &ToolResult{
			CallID:  callID,
			Payload: payload,
			IsError: isError,
		},
	}
}

func newTurn(role Role, blocks ...Block) *Turn {
	return &Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Blocks:    blocks,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserTurn returns a user turn with a single text block.
func NewUserTurn(text string) *Turn {
	return newTurn(RoleUser, NewTextBlock(text))
}

// NewModelTurn returns a model turn made of the given blocks.
func NewModelTurn(blocks ...Block) *Turn {
	return newTurn(RoleModel, blocks...)
}

// NewToolResultTurn returns a tool_result turn answering a single call.
func NewToolResultTurn(result ToolResult) *Turn {
	return newTurn(RoleToolResult, NewToolResultBlock(result.CallID, result.Payload, result.IsError))
}
