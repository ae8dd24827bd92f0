package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcnksm/go-input"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/librarian/pkg/assistant"
	"github.com/go-go-golems/librarian/pkg/turns"
)

const genresScript = `
replies:
  - stop_reason: tool_use
    blocks:
      - tool_call: {id: "toolu_1", name: list_genres}
  - blocks:
      - text: "You have ten genres, from Biography to Thriller."
`

func setupViper(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	fixture := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(script), 0o644))

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("provider", "fixture")
	viper.Set("fixture", fixture)
	viper.Set("books-db", filepath.Join(dir, "data", "books.db"))
	viper.Set("conversations-db", filepath.Join(dir, "data", "conversations.db"))
	viper.Set("cache-ttl", "1m")
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestAskJSON(t *testing.T) {
	dir := setupViper(t, genresScript)
	eventsPath := filepath.Join(dir, "events.ndjson")

	out := execute(t, NewAskCommand(), "-o", "json", "--events", eventsPath, "what", "genres", "do", "I", "have?")

	var resp assistant.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "You have ten genres, from Biography to Thriller.", resp.FullText)
	require.Len(t, resp.ToolChunks, 1)
	assert.Equal(t, "Available genres in your collection:\n\n", resp.ToolChunks[0].Chunks[0].Content)

	b, err := os.ReadFile(eventsPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"tool-call-execute"`)

	out = execute(t, NewConversationsCommand(), "list")
	assert.Contains(t, out, "what genres do I have?")

	out = execute(t, NewConversationsCommand(), "show", resp.ConversationID, "--yaml")
	assert.Contains(t, out, "conversation_id: "+resp.ConversationID)
	assert.Contains(t, out, "list_genres")

	out = execute(t, NewConversationsCommand(), "stats", resp.ConversationID)
	assert.Contains(t, out, "tool calls: 1")
	assert.Contains(t, out, "tool_result")
}

func TestComputeStats(t *testing.T) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	require.NoError(t, err)

	ts := []*turns.Turn{
		turns.NewUserTurn("which genres do I have?"),
		turns.NewModelTurn(turns.NewToolCallBlock("1", "list_genres", nil)),
		turns.NewToolResultTurn(turns.ToolResult{CallID: "1", Payload: `[{"id":1,"name":"Biography"}]`}),
		turns.NewModelTurn(turns.NewTextBlock("You have one genre.")),
	}
	stats, err := ComputeStats(ts, codec)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total.Turns)
	assert.Equal(t, 1, stats.ToolCalls)
	assert.Equal(t, 2, stats.Roles[turns.RoleModel].Turns)
	assert.Greater(t, stats.Roles[turns.RoleToolResult].Tokens, 0)
	assert.Equal(t, stats.Total.Tokens,
		stats.Roles[turns.RoleUser].Tokens+stats.Roles[turns.RoleModel].Tokens+stats.Roles[turns.RoleToolResult].Tokens)
}

func TestAskText(t *testing.T) {
	setupViper(t, genresScript)

	out := execute(t, NewAskCommand(), "--show-tools", "genres?")
	assert.Contains(t, out, "[list_genres]\nAvailable genres in your collection:")
	assert.True(t, strings.HasSuffix(out, "Assistant: You have ten genres, from Biography to Thriller.\n"))
}

func TestInitDB(t *testing.T) {
	setupViper(t, genresScript)

	out := execute(t, NewInitDBCommand())
	assert.Contains(t, out, "with 25 books in 10 genres")
}

func TestConversationsRenameDelete(t *testing.T) {
	setupViper(t, genresScript)

	out := execute(t, NewAskCommand(), "-o", "json", "genres?")
	var resp assistant.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	execute(t, NewConversationsCommand(), "rename", resp.ConversationID, "my", "genres")
	out = execute(t, NewConversationsCommand(), "list")
	assert.Contains(t, out, "my genres")

	out = execute(t, NewConversationsCommand(), "delete", resp.ConversationID)
	assert.Contains(t, out, "Deleted "+resp.ConversationID)
	out = execute(t, NewConversationsCommand(), "list")
	assert.Contains(t, out, "No conversations yet.")
}

func TestChatSession(t *testing.T) {
	setupViper(t, genresScript)
	ctx := context.Background()
	app, err := NewApp(ctx)
	require.NoError(t, err)
	defer app.Close()

	var out bytes.Buffer
	c := &chat{
		service: app.Service,
		ui:      &input.UI{Writer: &out, Reader: strings.NewReader("what genres do I have?\nexit\n")},
		out:     &out,
	}
	require.NoError(t, c.run(ctx))
	assert.Contains(t, out.String(), "Assistant: You have ten genres, from Biography to Thriller.")
	assert.NotEmpty(t, c.conversationID)

	stored, err := app.Store.LoadTurns(ctx, c.conversationID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}
