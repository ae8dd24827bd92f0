package claude

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
	"github.com/go-go-golems/librarian/pkg/turns"
)

// turnToContent converts one turn into Claude content blocks. Empty text blocks are dropped.
func turnToContent(t *turns.Turn) (string, []api.Content, error) {
	role := RoleUser
	if t.Role == turns.RoleModel {
		role = RoleAssistant
	}

	var content []api.Content
	for _, b := range t.Blocks {
		switch b.Kind {
		case turns.BlockKindText:
			if b.Text != "" {
				content = append(content, api.NewTextContent(b.Text))
			}
		case turns.BlockKindToolCall:
			input := json.RawMessage(`{}`)
			if len(b.ToolCall.Arguments) > 0 {
				raw, err := json.Marshal(b.ToolCall.Arguments)
				if err != nil {
					return "", nil, errors.Wrapf(err, "marshal arguments of %s", b.ToolCall.Name)
				}
				input = raw
			}
			content = append(content, api.NewToolUseContent(b.ToolCall.ID, b.ToolCall.Name, input))
		case turns.BlockKindToolResult:
			content = append(content, api.NewToolResultContent(b.ToolResult.CallID, b.ToolResult.Payload, b.ToolResult.IsError))
		}
	}
	return role, content, nil
}

// TurnsToMessages builds the Messages API history. Consecutive turns of the same API role are merged,
// so the tool results answering one assistant message travel together in the next user message.
func TurnsToMessages(ts []*turns.Turn) ([]api.Message, error) {
	msgs := []api.Message{}
	for _, t := range ts {
		role, content, err := turnToContent(t)
		if err != nil {
			return nil, err
		}
		if len(content) == 0 {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, content...)
			continue
		}
		msgs = append(msgs, api.Message{Role: role, Content: content})
	}
	return msgs, nil
}

// MakeMessageRequest builds a Claude MessageRequest from settings and an engine request
func MakeMessageRequest(s *settings.StepSettings, req *engine.Request) (*api.MessageRequest, error) {
	if s == nil || s.Chat == nil {
		return nil, errors.New("no chat settings")
	}
	chatSettings := s.Chat

	msgs, err := TurnsToMessages(req.Turns)
	if err != nil {
		return nil, err
	}

	var tools []api.Tool
	for _, schema := range req.Tools {
		raw, err := json.Marshal(schema.InputSchema)
		if err != nil {
			return nil, errors.Wrapf(err, "marshal schema of %s", schema.Name)
		}
		tools = append(tools, api.Tool{
			Name:        schema.Name,
			Description: schema.Description,
			InputSchema: raw,
		})
	}

	maxTokens := settings.DefaultMaxResponseTokens
	if chatSettings.MaxResponseTokens != nil && *chatSettings.MaxResponseTokens > 0 {
		maxTokens = *chatSettings.MaxResponseTokens
	}

	ret := &api.MessageRequest{
		Model:         chatSettings.Model(),
		Messages:      msgs,
		MaxTokens:     maxTokens,
		StopSequences: chatSettings.Stop,
		System:        req.System,
		Temperature:   chatSettings.Temperature,
		TopP:          chatSettings.TopP,
		Tools:         tools,
	}
	if s.Claude != nil {
		ret.TopK = s.Claude.TopK
		if s.Claude.UserID != nil && *s.Claude.UserID != "" {
			ret.Metadata = &api.Metadata{UserID: *s.Claude.UserID}
		}
	}
	return ret, nil
}

// ResponseToReply maps a Messages API response onto the backend contract.
// max_tokens and stop_sequence count as end_turn.
func ResponseToReply(resp *api.MessageResponse) (*engine.Reply, error) {
	reply := &engine.Reply{
		Model: resp.Model,
		Usage: &engine.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}
	switch resp.StopReason {
	case StopReasonToolUse:
		reply.StopReason = engine.StopReasonToolUse
	case StopReasonEndTurn, StopReasonMaxTokens, StopReasonStopSequence:
		reply.StopReason = engine.StopReasonEndTurn
	default:
		reply.StopReason = engine.StopReason(resp.StopReason)
	}

	for _, c := range resp.Content {
		switch c := c.(type) {
		case api.TextContent:
			reply.Blocks = append(reply.Blocks, turns.NewTextBlock(c.Text))
		case api.ToolUseContent:
			var args map[string]any
			if len(c.Input) > 0 && string(c.Input) != "null" {
				if err := json.Unmarshal(c.Input, &args); err != nil {
					return nil, errors.Wrapf(engine.ErrMalformedReply, "tool_use %s input: %v", c.ID, err)
				}
			}
			reply.Blocks = append(reply.Blocks, turns.NewToolCallBlock(c.ID, c.Name, args))
		}
	}
	return reply, nil
}
