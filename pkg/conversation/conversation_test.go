package conversation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/turns"
)

func modelWithCalls(ids ...string) *turns.Turn {
	blocks := []turns.Block{}
	for _, id := range ids {
		blocks = append(blocks, turns.NewToolCallBlock(id, "list_books", map[string]any{}))
	}
	return turns.NewModelTurn(blocks...)
}

func result(id string) *turns.Turn {
	return turns.NewToolResultTurn(turns.ToolResult{CallID: id, Payload: "ok"})
}

func TestAppendTracksOutstandingCalls(t *testing.T) {
	c := New("")
	require.NotEmpty(t, c.ID)

	require.NoError(t, c.Append(turns.NewUserTurn("hi")))
	require.NoError(t, c.Append(modelWithCalls("a", "b")))
	assert.Equal(t, []string{"a", "b"}, c.OutstandingCalls())

	require.NoError(t, c.Append(result("b")))
	assert.Equal(t, []string{"a"}, c.OutstandingCalls())

	require.NoError(t, c.Append(result("a")))
	assert.Empty(t, c.OutstandingCalls())

	require.NoError(t, c.Append(turns.NewModelTurn(turns.NewTextBlock("done"))))
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, "done", c.Last().Text())
}

func TestAppendRejectsOrderViolations(t *testing.T) {
	tests := []struct {
		name  string
		setup []*turns.Turn
		next  *turns.Turn
	}{
		{
			name: "result without call",
			next: result("x"),
		},
		{
			name:  "result for unknown id",
			setup: []*turns.Turn{turns.NewUserTurn("q"), modelWithCalls("a")},
			next:  result("zzz"),
		},
		{
			name:  "result answered twice",
			setup: []*turns.Turn{turns.NewUserTurn("q"), modelWithCalls("a", "b"), result("a")},
			next:  result("a"),
		},
		{
			name:  "model turn with unanswered calls",
			setup: []*turns.Turn{turns.NewUserTurn("q"), modelWithCalls("a")},
			next:  turns.NewModelTurn(turns.NewTextBlock("hello")),
		},
		{
			name:  "user turn with unanswered calls",
			setup: []*turns.Turn{turns.NewUserTurn("q"), modelWithCalls("a")},
			next:  turns.NewUserTurn("again"),
		},
		{
			name:  "reused call id",
			setup: []*turns.Turn{turns.NewUserTurn("q"), modelWithCalls("a"), result("a")},
			next:  modelWithCalls("a"),
		},
		{
			name: "duplicate call id within turn",
			next: modelWithCalls("a", "a"),
		},
		{
			name: "empty call id",
			next: modelWithCalls(""),
		},
		{
			name: "unknown role",
			next: &turns.Turn{Role: "system"},
		},
		{
			name: "nil turn",
			next: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New("c")
			for _, s := range tt.setup {
				require.NoError(t, c.Append(s))
			}
			before := c.Len()
			err := c.Append(tt.next)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrOrderViolation))
			assert.Equal(t, before, c.Len())
		})
	}
}

func TestSnapshotIsIsolated(t *testing.T) {
	c := New("c")
	require.NoError(t, c.Append(turns.NewUserTurn("q")))
	require.NoError(t, c.Append(modelWithCalls("a")))

	snap := c.Snapshot()
	require.Len(t, snap, 2)
	snap[1].Blocks[0].ToolCall.Arguments["genre_id"] = 7
	snap[0].Blocks[0].Text = "changed"

	again := c.Snapshot()
	assert.Equal(t, "q", again[0].Text())
	assert.NotContains(t, again[1].Blocks[0].ToolCall.Arguments, "genre_id")
}

func TestAppendCopiesInput(t *testing.T) {
	c := New("c")
	u := turns.NewUserTurn("q")
	require.NoError(t, c.Append(u))
	u.Blocks[0].Text = "mutated"
	assert.Equal(t, "q", c.Last().Text())
}

func TestSince(t *testing.T) {
	c := New("c")
	require.NoError(t, c.Append(turns.NewUserTurn("one")))
	require.NoError(t, c.Append(turns.NewModelTurn(turns.NewTextBlock("two"))))

	assert.Len(t, c.Since(0), 2)
	tail := c.Since(1)
	require.Len(t, tail, 1)
	assert.Equal(t, "two", tail[0].Text())
	assert.Empty(t, c.Since(5))
}

func TestFromTurns(t *testing.T) {
	ts := []*turns.Turn{turns.NewUserTurn("q"), modelWithCalls("a"), result("a")}
	c, err := FromTurns("abc", ts)
	require.NoError(t, err)
	assert.Equal(t, "abc", c.ID)
	assert.Equal(t, 3, c.Len())

	_, err = FromTurns("abc", []*turns.Turn{result("a")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrderViolation))
}
