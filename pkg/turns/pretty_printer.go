package turns

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// PrettyPrinter renders turns in a configurable human-friendly way.
type PrettyPrinter struct {
	IncludeIDs        bool
	IncludeRoles      bool
	IncludeToolDetail bool
	IndentSpaces      int
	MaxTextLines      int // 0 => unlimited
}

// PrintOption configures a PrettyPrinter.
type PrintOption func(*PrettyPrinter)

// WithIDs toggles inclusion of turn IDs.
func WithIDs(include bool) PrintOption { return func(p *PrettyPrinter) { p.IncludeIDs = include } }

// WithRoles toggles inclusion of roles in output.
func WithRoles(include bool) PrintOption { return func(p *PrettyPrinter) { p.IncludeRoles = include } }

// WithToolDetail toggles inclusion of tool args/result details.
func WithToolDetail(include bool) PrintOption {
	return func(p *PrettyPrinter) { p.IncludeToolDetail = include }
}

// WithIndent sets the number of spaces used for indentation.
func WithIndent(spaces int) PrintOption { return func(p *PrettyPrinter) { p.IndentSpaces = spaces } }

// WithMaxTextLines limits how many lines of text to print for message bodies (0 = unlimited).
func WithMaxTextLines(n int) PrintOption { return func(p *PrettyPrinter) { p.MaxTextLines = n } }

// NewPrettyPrinter creates a PrettyPrinter with sensible defaults.
func NewPrettyPrinter(opts ...PrintOption) *PrettyPrinter {
	p := &PrettyPrinter{
		IncludeRoles:      true,
		IncludeToolDetail: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FprintTurns prints the provided turns using an ephemeral PrettyPrinter configured via options.
func FprintTurns(w io.Writer, ts []*Turn, opts ...PrintOption) {
	pp := NewPrettyPrinter(opts...)
	for _, t := range ts {
		pp.FprintTurn(w, t)
	}
}

// FprintTurn emits a human-readable rendering of a Turn.
func (p *PrettyPrinter) FprintTurn(w io.Writer, t *Turn) {
	if t == nil {
		return
	}
	pad := strings.Repeat(" ", p.IndentSpaces)
	if p.IncludeIDs && t.ID != "" {
		fmt.Fprintf(w, "%s--- %s\n", pad, t.ID)
	}
	label := ""
	if p.IncludeRoles {
		label = string(t.Role) + ": "
	}

	for _, b := range t.Blocks {
		switch b.Kind {
		case BlockKindText:
			p.fprintText(w, pad+label, b.Text)
		case BlockKindToolCall:
			if b.ToolCall == nil {
				continue
			}
			if p.IncludeToolDetail {
				fmt.Fprintf(w, "%s%stool_call: name=%s id=%s\n", pad, label, b.ToolCall.Name, b.ToolCall.ID)
				if b.ToolCall.Arguments != nil {
					fmt.Fprintf(w, "%s  args: %s\n", pad, toOneLineJSON(b.ToolCall.Arguments))
				}
			} else {
				fmt.Fprintf(w, "%s%stool_call: %s\n", pad, label, b.ToolCall.Name)
			}
		case BlockKindToolResult:
			if b.ToolResult == nil {
				continue
			}
			status := ""
			if b.ToolResult.IsError {
				status = " error"
			}
			fmt.Fprintf(w, "%s%stool_result: id=%s%s\n", pad, label, b.ToolResult.CallID, status)
			if p.IncludeToolDetail {
				p.fprintText(w, pad+"  result: ", b.ToolResult.Payload)
			}
		}
	}
}

func (p *PrettyPrinter) fprintText(w io.Writer, head string, text string) {
	if p.MaxTextLines > 0 {
		lines := strings.Split(text, "\n")
		if len(lines) > p.MaxTextLines {
			text = strings.Join(lines[:p.MaxTextLines], "\n") + " …"
		}
	}
	fmt.Fprintf(w, "%s%s\n", head, text)
}

func toOneLineJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
