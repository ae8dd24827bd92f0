package assistant

import (
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
)

// DefaultSystemPromptTemplate is the book library assistant prompt.
const DefaultSystemPromptTemplate = `You are a helpful book library assistant. You can help users browse their book collection,
get information about specific books, and provide recommendations.
Be concise, friendly, and informative in your responses.
{{- if .Tools }}

Available tools: {{ .Tools | join ", " }}.
{{- end }}
Today is {{ .Now | date "January 2, 2006" }}.

CRITICAL CONTEXT RULES:
1. Assume 'when' refers to publication dates from conversation history
2. If uncertain, use list_books tool with title_search from previous context
3. Never ask for clarification - use tools to find answers
4. Remember these temporal patterns:
   - 'when' without context = most recent book's publication date
   - 'when did [author] write' = use list_books with author search
`

// PromptData is the data the system prompt template is rendered with.
type PromptData struct {
	Tools []string
	Now   time.Time
}

// RenderSystemPrompt renders tmpl with the sprig function map.
func RenderSystemPrompt(tmpl string, data PromptData) (string, error) {
	t, err := template.New("system-prompt").Funcs(sprig.TxtFuncMap()).Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "could not parse system prompt template")
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}
	return strings.TrimSpace(sb.String()), nil
}
