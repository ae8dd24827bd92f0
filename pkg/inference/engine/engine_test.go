package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/turns"
)

func TestReplyValidate(t *testing.T) {
	tests := []struct {
		name  string
		reply *Reply
		ok    bool
	}{
		{"end turn text", &Reply{StopReason: StopReasonEndTurn, Blocks: []turns.Block{turns.NewTextBlock("hi")}}, true},
		{"empty end turn", &Reply{StopReason: StopReasonEndTurn}, true},
		{"tool use", &Reply{StopReason: StopReasonToolUse, Blocks: []turns.Block{turns.NewToolCallBlock("1", "list_books", nil)}}, true},
		{"tool use without calls", &Reply{StopReason: StopReasonToolUse, Blocks: []turns.Block{turns.NewTextBlock("hm")}}, false},
		{"unknown stop reason", &Reply{StopReason: "max_tokens"}, false},
		{"nameless call", &Reply{StopReason: StopReasonToolUse, Blocks: []turns.Block{turns.NewToolCallBlock("1", "", nil)}}, false},
		{"result block", &Reply{StopReason: StopReasonEndTurn, Blocks: []turns.Block{turns.NewToolResultBlock("1", "x", false)}}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reply.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedReply))
		})
	}
}

func TestReplyAccessors(t *testing.T) {
	r := &Reply{Blocks: []turns.Block{
		turns.NewTextBlock("a"),
		turns.NewToolCallBlock("1", "x", nil),
		turns.NewTextBlock("b"),
	}}
	assert.Equal(t, "ab", r.Text())
	require.Len(t, r.ToolCalls(), 1)
}

func TestBackendError(t *testing.T) {
	err := NewStatusError("claude", http.StatusTooManyRequests, "rate_limit_error", "slow down")
	assert.True(t, errors.Is(err, ErrBackend))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "429")

	wrapped := errors.Wrap(NewBackendError("openai", context.DeadlineExceeded), "call failed")
	assert.True(t, errors.Is(wrapped, ErrBackend))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))
	assert.False(t, IsRetryable(wrapped))

	assert.False(t, IsRetryable(NewStatusError("claude", http.StatusUnauthorized, "authentication_error", "bad key")))
}

func TestEngineFunc(t *testing.T) {
	var e Engine = EngineFunc(func(ctx context.Context, req *Request) (*Reply, error) {
		return &Reply{StopReason: StopReasonEndTurn, Blocks: []turns.Block{turns.NewTextBlock(req.System)}}, nil
	})
	r, err := e.RunInference(context.Background(), &Request{System: "sys"})
	require.NoError(t, err)
	assert.Equal(t, "sys", r.Text())
}
