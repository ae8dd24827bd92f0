package openai

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
)

const providerName = "openai"

// OpenAIEngine implements the Engine interface on the chat completions API.
type OpenAIEngine struct {
	settings *settings.StepSettings
	client   *go_openai.Client
}

var _ engine.Engine = (*OpenAIEngine)(nil)

func NewOpenAIEngine(s *settings.StepSettings) (*OpenAIEngine, error) {
	if s == nil || s.Chat == nil {
		return nil, errors.New("incomplete openai settings")
	}
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	return &OpenAIEngine{settings: s, client: client}, nil
}

func (e *OpenAIEngine) RunInference(ctx context.Context, req *engine.Request) (*engine.Reply, error) {
	chatReq, err := MakeCompletionRequest(e.settings, req)
	if err != nil {
		return nil, engine.NewBackendError(providerName, err)
	}
	log.Debug().
		Str("model", chatReq.Model).
		Int("messages", len(chatReq.Messages)).
		Int("tools", len(chatReq.Tools)).
		Msg("OpenAI RunInference started")

	resp, err := e.client.CreateChatCompletion(ctx, *chatReq)
	if err != nil {
		return nil, mapError(err)
	}

	reply, err := ResponseToReply(&resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) > 0 {
		log.Debug().
			Str("finish_reason", string(resp.Choices[0].FinishReason)).
			Str("tool_calls", GetToolCallString(resp.Choices[0].Message.ToolCalls)).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("OpenAI RunInference completed")
	}
	return reply, nil
}

func mapError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return engine.NewStatusError(providerName, apiErr.HTTPStatusCode, apiErr.Type, apiErr.Message)
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return engine.NewStatusError(providerName, reqErr.HTTPStatusCode, "request_error", reqErr.Error())
	}
	return engine.NewBackendError(providerName, err)
}
