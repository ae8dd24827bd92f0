package events

import (
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a router handler that prints tool activity as YAML.
// With verbose set, model requests and replies are printed too.
func StepPrinterFunc(w io.Writer, verbose bool) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("could not decode event")
			return nil
		}

		switch p_ := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error] %s\n", p_.ErrorString)
			return err

		case *EventModelRequest:
			if verbose {
				_, err = fmt.Fprintf(w, "\n[model] request #%d (%d turns, %d tools)\n", p_.Iteration, p_.TurnCount, p_.ToolCount)
			}

		case *EventModelReply:
			if verbose {
				_, err = fmt.Fprintf(w, "[model] reply: %s\n", p_.StopReason)
			}

		case *EventToolCallExecute:
			v_, err := yaml.Marshal(map[string]any{"tool_call": p_.ToolCall})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s", v_)
			if err != nil {
				return err
			}

		case *EventToolCallExecutionResult:
			v_, err := yaml.Marshal(map[string]any{"tool_result": p_.ToolResult})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s", v_)
			if err != nil {
				return err
			}

		case *EventLoopFinished:
			if verbose {
				_, err = fmt.Fprintf(w, "[loop] finished: %s after %d model calls\n", p_.Reason, p_.ModelCalls)
			}
		}

		return err
	}
}
