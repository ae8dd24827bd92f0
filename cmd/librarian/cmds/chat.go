package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/librarian/pkg/assistant"
	"github.com/go-go-golems/librarian/pkg/events"
	"github.com/go-go-golems/librarian/pkg/render"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the library assistant interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID, _ := cmd.Flags().GetString("conversation")
			showTools, _ := cmd.Flags().GetBool("show-tools")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			verbose := viper.GetBool("verbose")
			router, err := events.NewEventRouter(events.WithVerbose(verbose))
			if err != nil {
				return err
			}
			router.AddHandler("tool-printer", events.TopicLoop, events.StepPrinterFunc(cmd.ErrOrStderr(), verbose))

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				return router.Run(ctx)
			})
			eg.Go(func() error {
				defer cancel()
				defer func() {
					_ = router.Close()
				}()
				<-router.Running()

				c := &chat{
					service:        app.Service,
					conversationID: conversationID,
					ui:             &input.UI{Writer: cmd.OutOrStdout(), Reader: cmd.InOrStdin()},
					out:            cmd.OutOrStdout(),
					showTools:      showTools,
					markdown:       isatty.IsTerminal(os.Stdout.Fd()),
				}
				return c.run(events.WithEventSinks(ctx, router.Sink(events.TopicLoop)))
			})
			return eg.Wait()
		},
	}
	cmd.Flags().String("conversation", "", "Continue the conversation with this ID")
	cmd.Flags().Bool("show-tools", false, "Print the formatted output of every tool call")
	return cmd
}

type chat struct {
	service        *assistant.Service
	conversationID string
	ui             *input.UI
	out            io.Writer
	showTools      bool
	markdown       bool
}

func (c *chat) run(ctx context.Context) error {
	_, _ = fmt.Fprintln(c.out, "Book library assistant. Type 'exit' or 'quit' to leave.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := c.ui.Ask("You:", &input.Options{
			Required:  true,
			Loop:      true,
			HideOrder: true,
		})
		if err != nil {
			// EOF and interrupts end the session
			log.Debug().Err(err).Msg("Input closed")
			return nil
		}
		line = strings.TrimSpace(line)
		switch strings.ToLower(line) {
		case "exit", "quit":
			return nil
		}

		resp, err := c.service.Respond(ctx, c.conversationID, line)
		if resp != nil {
			c.conversationID = resp.ConversationID
		}
		if err != nil {
			if errors.Is(err, assistant.ErrAssistantUnavailable) {
				_, _ = fmt.Fprintln(c.out, "Assistant: Sorry, the assistant is unavailable right now. Please try again.")
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := printResponse(c.out, resp, c.showTools, c.markdown); err != nil {
			return err
		}
	}
}

// printResponse writes the rendered tool outputs (optionally) and the final answer.
func printResponse(w io.Writer, resp *assistant.Response, showTools bool, markdown bool) error {
	if showTools {
		for _, t := range resp.ToolChunks {
			if _, err := fmt.Fprintf(w, "[%s]\n%s\n", t.ToolName, render.Join(t.Chunks)); err != nil {
				return err
			}
		}
	}

	text := render.Join(resp.Chunks)
	if markdown {
		rendered, err := glamour.Render(text, "dark")
		if err != nil {
			log.Debug().Err(err).Msg("Could not render markdown")
		} else {
			text = rendered
		}
	}
	_, err := fmt.Fprintf(w, "Assistant: %s\n", strings.TrimRight(text, "\n"))
	return err
}
