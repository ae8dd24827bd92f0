package cmds

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/librarian/pkg/events"
	"github.com/go-go-golems/librarian/pkg/inference/fixtures"
)

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask the library assistant a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID, _ := cmd.Flags().GetString("conversation")
			output, _ := cmd.Flags().GetString("output")
			eventsPath, _ := cmd.Flags().GetString("events")
			showTools, _ := cmd.Flags().GetBool("show-tools")

			ctx := cmd.Context()
			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			if eventsPath != "" {
				var w io.Writer = cmd.ErrOrStderr()
				if eventsPath != "-" {
					f, err := os.Create(eventsPath)
					if err != nil {
						return errors.Wrap(err, "could not create events file")
					}
					defer func() {
						_ = f.Close()
					}()
					w = f
				}
				ctx = events.WithEventSinks(ctx, fixtures.NewNDJSONSink(w))
			}

			resp, err := app.Service.Respond(ctx, conversationID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch output {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			case "yaml":
				b, err := yaml.Marshal(resp)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			case "text":
				return printResponse(out, resp, showTools, isatty.IsTerminal(os.Stdout.Fd()))
			default:
				return errors.Errorf("unknown output format %q", output)
			}
		},
	}
	cmd.Flags().String("conversation", "", "Ask within the conversation with this ID")
	cmd.Flags().StringP("output", "o", "text", "Output format (text, json, yaml)")
	cmd.Flags().String("events", "", "Write loop events as NDJSON to this file (- for stderr)")
	cmd.Flags().Bool("show-tools", false, "Print the formatted output of every tool call")
	return cmd
}
