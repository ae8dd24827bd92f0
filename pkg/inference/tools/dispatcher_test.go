package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/events"
	"github.com/go-go-golems/librarian/pkg/turns"
)

func errorPayload(t *testing.T, payload string) string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &m))
	msg, _ := m["error"].(string)
	return msg
}

func TestDispatchSuccess(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	exec := d.Dispatch(context.Background(), turns.ToolCall{ID: "1", Name: "list_items", Arguments: map[string]any{"genre": "Fantasy"}})

	require.False(t, exec.IsError())
	assert.Equal(t, []string{"The Hobbit"}, exec.Result)
	assert.Equal(t, `["The Hobbit"]`, exec.Payload)
	assert.Equal(t, turns.ToolResult{CallID: "1", Payload: `["The Hobbit"]`}, exec.ToolResult())
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	exec := d.Dispatch(context.Background(), turns.ToolCall{ID: "x", Name: "missing"})

	require.True(t, exec.IsError())
	assert.Equal(t, ErrorKindNotFound, exec.Err.Kind)
	assert.True(t, errors.Is(exec.Err, ErrUnknownTool))
	assert.Contains(t, errorPayload(t, exec.Payload), "tool not found")
	r := exec.ToolResult()
	assert.True(t, r.IsError)
	assert.Equal(t, "x", r.CallID)
}

func TestDispatchMissingRequiredField(t *testing.T) {
	d := NewDispatcher(newTestRegistry(t))
	exec := d.Dispatch(context.Background(), turns.ToolCall{ID: "2", Name: "get_item", Arguments: map[string]any{}})

	require.True(t, exec.IsError())
	assert.Equal(t, ErrorKindValidation, exec.Err.Kind)
	assert.Equal(t, "2", exec.Err.CallID)
	assert.Contains(t, exec.Payload, "item_id")
}

func TestDispatchHandlerErrorAndPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustTool(t, "fails", func(in getItemInput) (any, error) {
		return nil, errors.Errorf("Book with ID %d not found", in.ItemID)
	})))
	require.NoError(t, r.Register(mustTool(t, "panics", func() int { panic("kaboom") })))
	d := NewDispatcher(r)

	exec := d.Dispatch(context.Background(), turns.ToolCall{ID: "a", Name: "fails", Arguments: map[string]any{"item_id": 99}})
	require.True(t, exec.IsError())
	assert.Equal(t, ErrorKindExecution, exec.Err.Kind)
	assert.Equal(t, "Error executing tool fails: Book with ID 99 not found", errorPayload(t, exec.Payload))
	assert.EqualError(t, exec.Err.Cause(), "Book with ID 99 not found")

	exec = d.Dispatch(context.Background(), turns.ToolCall{ID: "b", Name: "panics"})
	require.True(t, exec.IsError())
	assert.Contains(t, exec.Err.Message, "kaboom")
}

func TestDispatchPublishesEvents(t *testing.T) {
	sink := &events.CollectingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)
	ctx = events.WithEventMetadata(ctx, events.NewMetadata("conv", "run"))

	d := NewDispatcher(newTestRegistry(t))
	d.Dispatch(ctx, turns.ToolCall{ID: "1", Name: "list_items"})

	assert.Equal(t, []events.EventType{events.EventTypeToolCallExecute, events.EventTypeToolCallExecutionResult}, sink.Types())
	evs := sink.Events()
	exec := evs[0].(*events.EventToolCallExecute)
	assert.Equal(t, "{}", exec.ToolCall.Input)
	assert.Equal(t, "conv", exec.Metadata().ConversationID)
	res := evs[1].(*events.EventToolCallExecutionResult)
	assert.False(t, res.ToolResult.IsError)
	assert.NotEqual(t, evs[0].Metadata().ID, evs[1].Metadata().ID)
}

func TestHandlerSeesCurrentToolCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(mustTool(t, "who", func(ctx context.Context) (string, error) {
		call, ok := CurrentToolCallFromContext(ctx)
		if !ok {
			return "", errors.New("no call")
		}
		return call.ID, nil
	})))
	exec := NewDispatcher(r).Dispatch(context.Background(), turns.ToolCall{ID: "abc", Name: "who"})
	require.False(t, exec.IsError())
	assert.Equal(t, "abc", exec.Payload)
}
