package turns

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnAccessors(t *testing.T) {
	turn := NewModelTurn(
		NewTextBlock("Looking "),
		NewToolCallBlock("a", "list_books", map[string]any{"limit": 3}),
		NewTextBlock("it up."),
		NewToolCallBlock("b", "list_genres", nil),
	)

	assert.Equal(t, RoleModel, turn.Role)
	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, "Looking it up.", turn.Text())

	calls := turn.ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].ID)
	assert.Equal(t, "list_genres", calls[1].Name)
	assert.Len(t, turn.TextBlocks(), 2)
	assert.Empty(t, turn.ToolResults())
}

func TestTurnCloneIsDeep(t *testing.T) {
	orig := NewModelTurn(NewToolCallBlock("a", "list_books", map[string]any{"limit": 3}))
	cp := orig.Clone()

	cp.Blocks[0].ToolCall.Arguments["limit"] = 10
	cp.Blocks = append(cp.Blocks, NewTextBlock("extra"))

	assert.Equal(t, 3, orig.Blocks[0].ToolCall.Arguments["limit"])
	assert.Len(t, orig.Blocks, 1)
	assert.Equal(t, orig.ID, cp.ID)
}

func TestNilTurnAccessors(t *testing.T) {
	var turn *Turn
	assert.Nil(t, turn.Clone())
	assert.Equal(t, "", turn.Text())
	assert.Nil(t, turn.ToolCalls())
}

func TestPrettyPrinter(t *testing.T) {
	ts := []*Turn{
		NewUserTurn("hi"),
		NewModelTurn(NewToolCallBlock("a", "list_genres", map[string]any{})),
		NewToolResultTurn(ToolResult{CallID: "a", Payload: "boom", IsError: true}),
	}

	var buf bytes.Buffer
	FprintTurns(&buf, ts)
	out := buf.String()
	assert.Contains(t, out, "user: hi\n")
	assert.Contains(t, out, "model: tool_call: name=list_genres id=a\n")
	assert.Contains(t, out, "  args: {}\n")
	assert.Contains(t, out, "tool_result: tool_result: id=a error\n")
	assert.Contains(t, out, "  result: boom\n")

	buf.Reset()
	FprintTurns(&buf, ts[1:2], WithToolDetail(false), WithRoles(false))
	assert.Equal(t, "tool_call: list_genres\n", buf.String())
}

func TestPrettyPrinterMaxLines(t *testing.T) {
	var buf bytes.Buffer
	FprintTurns(&buf, []*Turn{NewUserTurn("a\nb\nc")}, WithMaxTextLines(2), WithRoles(false))
	assert.Equal(t, "a\nb …\n", buf.String())
}
