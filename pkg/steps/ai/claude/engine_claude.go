package claude

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
)

const providerName = "claude"

// ClaudeEngine implements the Engine interface for the Anthropic Messages API.
// It owns transport, auth and retry; the loop sees one call per RunInference.
type ClaudeEngine struct {
	settings *settings.StepSettings
	client   *api.Client
}

var _ engine.Engine = (*ClaudeEngine)(nil)

// NewClaudeEngine creates a new Claude inference engine with the given settings.
func NewClaudeEngine(s *settings.StepSettings) (*ClaudeEngine, error) {
	if s == nil || s.Chat == nil || s.Client == nil || s.Claude == nil {
		return nil, errors.New("incomplete claude settings")
	}
	apiKey := s.APIKey()
	if apiKey == "" {
		return nil, errors.New("no API key for claude")
	}

	retry := api.DefaultRetryConfig()
	if s.Client.RetryMax != nil {
		retry.MaxRetries = *s.Client.RetryMax
	}
	if s.Client.RetryBackoff != nil {
		retry.BackoffBase = *s.Client.RetryBackoff
	}

	client := api.NewClient(apiKey, s.Claude.GetBaseURL(),
		api.WithHTTPClient(s.Client.HTTPClient),
		api.WithRetry(retry),
	)
	return &ClaudeEngine{settings: s, client: client}, nil
}

// RunInference sends the history and tool catalog and maps the answer onto an engine.Reply.
func (e *ClaudeEngine) RunInference(ctx context.Context, req *engine.Request) (*engine.Reply, error) {
	msgReq, err := MakeMessageRequest(e.settings, req)
	if err != nil {
		return nil, engine.NewBackendError(providerName, err)
	}
	log.Debug().
		Str("model", msgReq.Model).
		Int("messages", len(msgReq.Messages)).
		Int("tools", len(msgReq.Tools)).
		Msg("Claude RunInference started")

	resp, err := e.client.SendMessage(ctx, msgReq)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return nil, engine.NewStatusError(providerName, se.StatusCode, se.Type, se.Message)
		}
		return nil, engine.NewBackendError(providerName, err)
	}

	reply, err := ResponseToReply(resp)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("stop_reason", resp.StopReason).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Msg("Claude RunInference completed")
	return reply, nil
}
