package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONRoundTrip(t *testing.T) {
	md := NewMetadata("conv-1", "run-1")
	tests := []Event{
		NewModelRequestEvent(md, 1, 3, 4),
		NewModelReplyEvent(md, 1, "tool_use", "checking", []ToolCall{{ID: "1", Name: "list_books", Input: `{"genre_id":6}`}}),
		NewToolCallExecuteEvent(md, ToolCall{ID: "1", Name: "list_books", Input: "{}"}),
		NewToolCallExecutionResultEvent(md, ToolResult{ID: "1", Name: "list_books", Result: "[]"}),
		NewLoopFinishedEvent(md, "model_finished", 1, 2, "done"),
		NewErrorEvent(md, errors.New("backend down")),
	}
	for _, ev := range tests {
		t.Run(string(ev.Type()), func(t *testing.T) {
			b, err := json.Marshal(ev)
			require.NoError(t, err)

			decoded, err := NewEventFromJson(b)
			require.NoError(t, err)
			assert.Equal(t, ev.Type(), decoded.Type())
			assert.Equal(t, "conv-1", decoded.Metadata().ConversationID)
			assert.Equal(t, "run-1", decoded.Metadata().RunID)
			assert.Equal(t, b, decoded.Payload())
		})
	}

	b, err := json.Marshal(NewErrorEvent(md, errors.New("backend down")))
	require.NoError(t, err)
	decoded, err := NewEventFromJson(b)
	require.NoError(t, err)
	ee, ok := decoded.(*EventError)
	require.True(t, ok)
	assert.Equal(t, "backend down", ee.Error().Error())

	_, err = NewEventFromJson([]byte(`{"type":"nope"}`))
	require.Error(t, err)
}

type failingSink struct{}

func (failingSink) PublishEvent(Event) error { return errors.New("sink broken") }

func TestContextSinks(t *testing.T) {
	ctx := context.Background()
	PublishEventToContext(ctx, NewErrorEvent(EventMetadata{}, errors.New("x")))

	a, b := &CollectingSink{}, &CollectingSink{}
	ctx = WithEventSinks(ctx, a, failingSink{})
	ctx = WithEventSinks(ctx, b)
	require.Len(t, GetEventSinks(ctx), 3)

	ctx = WithEventMetadata(ctx, NewMetadata("conv", "run"))
	first := MetadataFromContext(ctx)
	second := MetadataFromContext(ctx)
	assert.Equal(t, "conv", first.ConversationID)
	assert.NotEqual(t, first.ID, second.ID)

	PublishEventToContext(ctx, NewLoopFinishedEvent(first, "model_finished", 0, 1, "hi"))
	assert.Equal(t, []EventType{EventTypeLoopFinished}, a.Types())
	assert.Equal(t, []EventType{EventTypeLoopFinished}, b.Types())
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

func TestRouterPrintsToolActivity(t *testing.T) {
	router, err := NewEventRouter()
	require.NoError(t, err)

	out := &lockedBuffer{}
	router.AddHandler("printer", TopicLoop, StepPrinterFunc(out, false))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()

	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	sink := router.Sink(TopicLoop)
	md := NewMetadata("conv", "run")
	require.NoError(t, sink.PublishEvent(NewModelRequestEvent(md, 0, 1, 4)))
	require.NoError(t, sink.PublishEvent(NewToolCallExecuteEvent(md, ToolCall{ID: "1", Name: "list_genres", Input: "{}"})))
	require.NoError(t, sink.PublishEvent(NewToolCallExecutionResultEvent(md, ToolResult{ID: "1", Name: "list_genres", Result: "[]"})))

	assert.Eventually(t, func() bool {
		s := out.String()
		return bytes.Contains([]byte(s), []byte("tool_result:"))
	}, 5*time.Second, 10*time.Millisecond)
	s := out.String()
	assert.Contains(t, s, "tool_call:")
	assert.Contains(t, s, "name: list_genres")
	assert.NotContains(t, s, "[model]")

	require.NoError(t, router.Close())
	cancel()
	<-done
}
