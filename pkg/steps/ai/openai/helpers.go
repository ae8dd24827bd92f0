package openai

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
	"github.com/go-go-golems/librarian/pkg/turns"
)

func GetToolCallString(toolCalls []go_openai.ToolCall) string {
	msg := ""
	for _, call := range toolCalls {
		msg += call.Function.Name
		msg += call.Function.Arguments
	}

	return msg
}

// MakeClient builds a go-openai client from the step settings.
func MakeClient(s *settings.StepSettings) (*go_openai.Client, error) {
	apiKey := s.APIKey()
	if apiKey == "" {
		return nil, errors.New("no API key for openai")
	}
	config := go_openai.DefaultConfig(apiKey)
	if s.OpenAI != nil && s.OpenAI.BaseURL != nil && *s.OpenAI.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(*s.OpenAI.BaseURL, "/")
	}
	if s.Client != nil && s.Client.HTTPClient != nil {
		config.HTTPClient = s.Client.HTTPClient
	}
	return go_openai.NewClientWithConfig(config), nil
}

// TurnsToMessages converts the history. Each tool result becomes its own tool message.
func TurnsToMessages(system string, ts []*turns.Turn) ([]go_openai.ChatCompletionMessage, error) {
	var msgs []go_openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleSystem, Content: system})
	}
	for _, t := range ts {
		switch t.Role {
		case turns.RoleUser:
			msgs = append(msgs, go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleUser, Content: t.Text()})
		case turns.RoleModel:
			msg := go_openai.ChatCompletionMessage{Role: go_openai.ChatMessageRoleAssistant, Content: t.Text()}
			for _, c := range t.ToolCalls() {
				args := "{}"
				if len(c.Arguments) > 0 {
					b, err := json.Marshal(c.Arguments)
					if err != nil {
						return nil, errors.Wrapf(err, "marshal arguments of %s", c.Name)
					}
					args = string(b)
				}
				msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
					ID:       c.ID,
					Type:     go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{Name: c.Name, Arguments: args},
				})
			}
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				continue
			}
			msgs = append(msgs, msg)
		case turns.RoleToolResult:
			for _, r := range t.ToolResults() {
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:       go_openai.ChatMessageRoleTool,
					Content:    r.Payload,
					ToolCallID: r.CallID,
				})
			}
		}
	}
	return msgs, nil
}

// MakeCompletionRequest builds a chat completion request from settings and an engine request.
func MakeCompletionRequest(s *settings.StepSettings, req *engine.Request) (*go_openai.ChatCompletionRequest, error) {
	if s == nil || s.Chat == nil {
		return nil, errors.New("no chat settings")
	}
	chatSettings := s.Chat

	msgs, err := TurnsToMessages(req.System, req.Turns)
	if err != nil {
		return nil, err
	}

	var tools []go_openai.Tool
	for _, schema := range req.Tools {
		tools = append(tools, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.InputSchema,
			},
		})
	}

	ret := &go_openai.ChatCompletionRequest{
		Model:    chatSettings.Model(),
		Messages: msgs,
		Stop:     chatSettings.Stop,
		Tools:    tools,
	}
	if chatSettings.MaxResponseTokens != nil {
		ret.MaxTokens = *chatSettings.MaxResponseTokens
	}
	if chatSettings.Temperature != nil {
		ret.Temperature = float32(*chatSettings.Temperature)
	}
	if chatSettings.TopP != nil {
		ret.TopP = float32(*chatSettings.TopP)
	}
	if o := s.OpenAI; o != nil {
		if o.PresencePenalty != nil {
			ret.PresencePenalty = float32(*o.PresencePenalty)
		}
		if o.FrequencyPenalty != nil {
			ret.FrequencyPenalty = float32(*o.FrequencyPenalty)
		}
		if o.User != nil {
			ret.User = *o.User
		}
		if o.ParallelToolCalls != nil && len(tools) > 0 {
			ret.ParallelToolCalls = *o.ParallelToolCalls
		}
	}
	return ret, nil
}

// ResponseToReply maps the first choice onto the backend contract.
// length and content_filter count as end_turn.
func ResponseToReply(resp *go_openai.ChatCompletionResponse) (*engine.Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(engine.ErrMalformedReply, "response without choices")
	}
	choice := resp.Choices[0]
	reply := &engine.Reply{
		Model: resp.Model,
		Usage: &engine.Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens},
	}

	switch choice.FinishReason {
	case go_openai.FinishReasonToolCalls, go_openai.FinishReasonFunctionCall:
		reply.StopReason = engine.StopReasonToolUse
	case go_openai.FinishReasonStop, go_openai.FinishReasonLength, go_openai.FinishReasonContentFilter, go_openai.FinishReasonNull, "":
		reply.StopReason = engine.StopReasonEndTurn
		// some compatible servers answer "stop" while still requesting tools
		if len(choice.Message.ToolCalls) > 0 {
			reply.StopReason = engine.StopReasonToolUse
		}
	default:
		reply.StopReason = engine.StopReason(choice.FinishReason)
	}

	if choice.Message.Content != "" {
		reply.Blocks = append(reply.Blocks, turns.NewTextBlock(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if a := strings.TrimSpace(tc.Function.Arguments); a != "" && a != "null" {
			if err := json.Unmarshal([]byte(a), &args); err != nil {
				return nil, errors.Wrapf(engine.ErrMalformedReply, "tool call %s arguments: %v", tc.ID, err)
			}
		}
		reply.Blocks = append(reply.Blocks, turns.NewToolCallBlock(tc.ID, tc.Function.Name, args))
	}
	return reply, nil
}
