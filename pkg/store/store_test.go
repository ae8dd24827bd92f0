package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/turns"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newStore(t *testing.T) *Store {
	t.Helper()
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := Open(filepath.Join(t.TempDir(), "conversations.db"), WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTurns() []*turns.Turn {
	user := turns.NewUserTurn("what fantasy books do I have?")
	call := turns.NewModelTurn(
		turns.NewTextBlock("Let me check."),
		turns.NewToolCallBlock("toolu_1", "list_books", map[string]any{"genre_id": float64(6)}),
	)
	result := turns.NewToolResultTurn(turns.ToolResult{CallID: "toolu_1", Payload: `[{"id":7}]`})
	final := turns.NewModelTurn(turns.NewTextBlock("You have The Hobbit."))
	return []*turns.Turn{user, call, result, final}
}

func TestCreateGetList(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "first")
	require.NoError(t, err)
	b, err := s.Create(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 26)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, 0, got.TurnCount)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)

	// appending moves a conversation to the front
	require.NoError(t, s.AppendTurns(ctx, a.ID, sampleTurns()[:1]))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, 1, list[0].TurnCount)

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestAppendAndLoadTurns(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c, err := s.Create(ctx, "books")
	require.NoError(t, err)

	ts := sampleTurns()
	require.NoError(t, s.AppendTurns(ctx, c.ID, ts[:2]))
	require.NoError(t, s.AppendTurns(ctx, c.ID, ts[2:]))
	require.NoError(t, s.AppendTurns(ctx, c.ID, nil))

	loaded, err := s.LoadTurns(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, loaded, len(ts))
	for i := range ts {
		assert.Equal(t, ts[i].ID, loaded[i].ID)
		assert.Equal(t, ts[i].Role, loaded[i].Role)
		assert.Equal(t, ts[i].Blocks, loaded[i].Blocks)
		assert.True(t, ts[i].CreatedAt.Truncate(time.Millisecond).Equal(loaded[i].CreatedAt))
	}
	calls := loaded[1].ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, float64(6), calls[0].Arguments["genre_id"])

	err = s.AppendTurns(ctx, "missing", ts)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	_, err = s.LoadTurns(ctx, "missing")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestRecordToolCalls(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c, err := s.Create(ctx, "")
	require.NoError(t, err)

	require.NoError(t, s.RecordToolCalls(ctx, c.ID, []ToolCallRecord{
		{CallID: "1", ToolName: "list_genres", Result: "[]", Duration: 12 * time.Millisecond},
		{CallID: "2", ToolName: "get_book_details", Arguments: map[string]any{"book_id": float64(999)}, Result: `{"error":"Book with ID 999 not found"}`, IsError: true},
	}))

	records, err := s.ToolCalls(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "list_genres", records[0].ToolName)
	assert.Equal(t, 12*time.Millisecond, records[0].Duration)
	assert.False(t, records[0].IsError)
	assert.True(t, records[1].IsError)
	assert.Equal(t, float64(999), records[1].Arguments["book_id"])
	assert.Equal(t, c.ID, records[1].ConversationID)
	assert.False(t, records[1].CreatedAt.IsZero())

	err = s.RecordToolCalls(ctx, "missing", []ToolCallRecord{{CallID: "3"}})
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestUpdateTitleAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	c, err := s.Create(ctx, "old")
	require.NoError(t, err)
	require.NoError(t, s.AppendTurns(ctx, c.ID, sampleTurns()))
	require.NoError(t, s.RecordToolCalls(ctx, c.ID, []ToolCallRecord{{CallID: "toolu_1", ToolName: "list_books", Result: "[]"}}))

	require.NoError(t, s.UpdateTitle(ctx, c.ID, "new"))
	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Title)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	assert.True(t, errors.Is(s.UpdateTitle(ctx, "missing", "x"), ErrConversationNotFound))

	require.NoError(t, s.Delete(ctx, c.ID))
	_, err = s.Get(ctx, c.ID)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	records, err := s.ToolCalls(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, errors.Is(s.Delete(ctx, c.ID), ErrConversationNotFound))
}
