package cmds

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/librarian/pkg/store"
	"github.com/go-go-golems/librarian/pkg/turns"
	"github.com/go-go-golems/librarian/pkg/turns/serde"
)

func NewConversationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Inspect and manage stored conversations",
	}
	cmd.AddCommand(
		newConversationsListCommand(),
		newConversationsShowCommand(),
		newConversationsRenameCommand(),
		newConversationsDeleteCommand(),
		newConversationsStatsCommand(),
	)
	return cmd
}

// withStore opens the conversation store for the duration of fn.
func withStore(fn func(s *store.Store) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()
	return fn(s)
}

func newConversationsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				convs, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(convs) == 0 {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tUPDATED\tTURNS\tTITLE")
				for _, c := range convs {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", c.ID, c.UpdatedAt.Local().Format(time.DateTime), c.TurnCount, c.Title)
				}
				return tw.Flush()
			})
		},
	}
}

func newConversationsShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print the turns of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asYAML, _ := cmd.Flags().GetBool("yaml")
			showTools, _ := cmd.Flags().GetBool("tools")
			exportPath, _ := cmd.Flags().GetString("export")

			return withStore(func(s *store.Store) error {
				ctx := cmd.Context()
				id := args[0]
				ts, err := s.LoadTurns(ctx, id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				switch {
				case exportPath != "":
					if err := serde.SaveTranscript(exportPath, id, ts); err != nil {
						return err
					}
					_, err = fmt.Fprintf(out, "Wrote %d turns to %s\n", len(ts), exportPath)
					return err
				case asYAML:
					b, err := serde.ToYAML(id, ts)
					if err != nil {
						return err
					}
					_, err = out.Write(b)
					return err
				}

				turns.FprintTurns(out, ts, turns.WithToolDetail(showTools))
				if !showTools {
					return nil
				}
				records, err := s.ToolCalls(ctx, id)
				if err != nil {
					return err
				}
				for _, r := range records {
					status := "ok"
					if r.IsError {
						status = "error"
					}
					_, err = fmt.Fprintf(out, "- %s %s (%s, %s)\n", r.CreatedAt.Local().Format(time.DateTime), r.ToolName, status, r.Duration)
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("yaml", false, "Print the conversation as a YAML transcript")
	cmd.Flags().Bool("tools", false, "Include tool arguments, payloads and the tool call log")
	cmd.Flags().String("export", "", "Write the YAML transcript to this file")
	return cmd
}

func newConversationsRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE...",
		Short: "Change the title of a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				return s.UpdateTitle(cmd.Context(), args[0], strings.Join(args[1:], " "))
			})
		},
	}
}

func newConversationsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete conversations with their turns and tool call log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				for _, id := range args {
					if err := s.Delete(cmd.Context(), id); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
				}
				return nil
			})
		},
	}
}
