package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/helpers"
	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/inference/tools"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
	"github.com/go-go-golems/librarian/pkg/steps/ai/types"
	"github.com/go-go-golems/librarian/pkg/turns"
)

func newSettings(baseURL string) *settings.StepSettings {
	st := settings.NewStepSettings()
	apiType := types.ApiTypeOpenAI
	st.Chat.ApiType = &apiType
	st.OpenAI.APIKey = helpers.ToPtr("sk-test")
	st.OpenAI.BaseURL = helpers.ToPtr(baseURL)
	return st
}

func TestTurnsToMessages(t *testing.T) {
	msgs, err := TurnsToMessages("sys", []*turns.Turn{
		turns.NewUserTurn("hi"),
		turns.NewModelTurn(
			turns.NewToolCallBlock("c1", "list_genres", nil),
			turns.NewToolCallBlock("c2", "list_books", map[string]any{"limit": 2}),
		),
		turns.NewToolResultTurn(turns.ToolResult{CallID: "c1", Payload: "[]"}),
		turns.NewToolResultTurn(turns.ToolResult{CallID: "c2", Payload: "[]"}),
		turns.NewModelTurn(),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, go_openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, go_openai.ChatMessageRoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 2)
	assert.Equal(t, "{}", msgs[2].ToolCalls[0].Function.Arguments)
	assert.JSONEq(t, `{"limit":2}`, msgs[2].ToolCalls[1].Function.Arguments)
	assert.Equal(t, go_openai.ChatMessageRoleTool, msgs[4].Role)
	assert.Equal(t, "c2", msgs[4].ToolCallID)
}

func TestMakeCompletionRequest(t *testing.T) {
	st := newSettings("http://localhost")
	req, err := MakeCompletionRequest(st, &engine.Request{
		Turns: []*turns.Turn{turns.NewUserTurn("hi")},
		Tools: []tools.Schema{{Name: "list_genres", InputSchema: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, settings.DefaultOpenAIModel, req.Model)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 0.0001)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "list_genres", req.Tools[0].Function.Name)
}

func TestResponseToReply(t *testing.T) {
	r, err := ResponseToReply(&go_openai.ChatCompletionResponse{
		Choices: []go_openai.ChatCompletionChoice{{
			FinishReason: go_openai.FinishReasonToolCalls,
			Message: go_openai.ChatCompletionMessage{ToolCalls: []go_openai.ToolCall{{
				ID: "c1", Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{Name: "get_book_details", Arguments: `{"book_id":7}`},
			}}},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())
	assert.Equal(t, float64(7), r.ToolCalls()[0].Arguments["book_id"])

	r, err = ResponseToReply(&go_openai.ChatCompletionResponse{
		Choices: []go_openai.ChatCompletionChoice{{FinishReason: go_openai.FinishReasonLength, Message: go_openai.ChatCompletionMessage{Content: "cut"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.StopReasonEndTurn, r.StopReason)

	_, err = ResponseToReply(&go_openai.ChatCompletionResponse{})
	assert.True(t, errors.Is(err, engine.ErrMalformedReply))

	_, err = ResponseToReply(&go_openai.ChatCompletionResponse{
		Choices: []go_openai.ChatCompletionChoice{{
			FinishReason: go_openai.FinishReasonToolCalls,
			Message: go_openai.ChatCompletionMessage{ToolCalls: []go_openai.ToolCall{{
				ID: "c1", Function: go_openai.FunctionCall{Name: "x", Arguments: `{not json`},
			}}},
		}},
	})
	assert.True(t, errors.Is(err, engine.ErrMalformedReply))
}

func TestOpenAIEngineRunInference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		var req go_openai.ChatCompletionRequest
		assert.NoError(t, json.Unmarshal(b, &req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hello"}}],
			"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEngine(newSettings(srv.URL + "/v1"))
	require.NoError(t, err)
	reply, err := e.RunInference(context.Background(), &engine.Request{Turns: []*turns.Turn{turns.NewUserTurn("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply.Text())
	assert.Equal(t, engine.StopReasonEndTurn, reply.StopReason)
	assert.Equal(t, 5, reply.Usage.InputTokens)
}

func TestOpenAIEngineMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEngine(newSettings(srv.URL + "/v1"))
	require.NoError(t, err)
	_, err = e.RunInference(context.Background(), &engine.Request{Turns: []*turns.Turn{turns.NewUserTurn("hi")}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrBackend))
	assert.True(t, engine.IsRetryable(err))
}
