package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/librarian/pkg/store"
	"github.com/go-go-golems/librarian/pkg/turns"
)

// RoleStats counts the turns and tokens of one role.
type RoleStats struct {
	Turns  int
	Tokens int
}

// ConversationStats is the size of a stored history, i.e. what is resent to the model every call.
type ConversationStats struct {
	ToolCalls int
	Roles     map[turns.Role]*RoleStats
	Total     RoleStats
}

func blockText(b turns.Block) string {
	switch b.Kind {
	case turns.BlockKindText:
		return b.Text
	case turns.BlockKindToolCall:
		if b.ToolCall == nil {
			return ""
		}
		args, _ := json.Marshal(b.ToolCall.Arguments)
		return b.ToolCall.Name + " " + string(args)
	case turns.BlockKindToolResult:
		if b.ToolResult == nil {
			return ""
		}
		return b.ToolResult.Payload
	}
	return ""
}

// ComputeStats counts tokens per role with codec.
func ComputeStats(ts []*turns.Turn, codec tokenizer.Codec) (*ConversationStats, error) {
	s := &ConversationStats{Roles: map[turns.Role]*RoleStats{}}
	for _, t := range ts {
		rs, ok := s.Roles[t.Role]
		if !ok {
			rs = &RoleStats{}
			s.Roles[t.Role] = rs
		}
		rs.Turns++
		s.Total.Turns++
		s.ToolCalls += len(t.ToolCalls())
		for _, b := range t.Blocks {
			ids, _, err := codec.Encode(blockText(b))
			if err != nil {
				return nil, errors.Wrapf(err, "could not encode turn %s", t.ID)
			}
			rs.Tokens += len(ids)
			s.Total.Tokens += len(ids)
		}
	}
	return s, nil
}

func (s *ConversationStats) Fprint(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ROLE\tTURNS\tTOKENS")
	for _, role := range []turns.Role{turns.RoleUser, turns.RoleModel, turns.RoleToolResult} {
		rs, ok := s.Roles[role]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\n", role, rs.Turns, rs.Tokens)
	}
	_, _ = fmt.Fprintf(tw, "total\t%d\t%d\n", s.Total.Turns, s.Total.Tokens)
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "tool calls: %d\n", s.ToolCalls)
	return err
}

func newConversationsStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats ID",
		Short: "Count the turns and tokens of a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoding, _ := cmd.Flags().GetString("encoding")
			codec, err := tokenizer.Get(tokenizer.Encoding(encoding))
			if err != nil {
				return errors.Wrapf(err, "could not load tokenizer %s", encoding)
			}
			return withStore(func(s *store.Store) error {
				ts, err := s.LoadTurns(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				stats, err := ComputeStats(ts, codec)
				if err != nil {
					return err
				}
				return stats.Fprint(cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().String("encoding", string(tokenizer.Cl100kBase), "Tokenizer encoding")
	return cmd
}
