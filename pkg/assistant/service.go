package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/librarian/pkg/conversation"
	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/inference/toolloop"
	"github.com/go-go-golems/librarian/pkg/inference/tools"
	"github.com/go-go-golems/librarian/pkg/render"
	"github.com/go-go-golems/librarian/pkg/store"
	"github.com/go-go-golems/librarian/pkg/turns"
)

var (
	// ErrAssistantUnavailable is reported when the model backend failed and no answer was produced.
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	ErrEmptyMessage         = errors.New("message is empty")
)

const titleMaxRunes = 60

// UnavailableError wraps the backend failure behind ErrAssistantUnavailable.
type UnavailableError struct {
	ConversationID string
	cause          error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("assistant unavailable for conversation %s: %v", e.ConversationID, e.cause)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrAssistantUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.cause
}

// ConversationStore is the persistence the service needs.
type ConversationStore interface {
	Create(ctx context.Context, title string) (*store.Conversation, error)
	LoadTurns(ctx context.Context, id string) ([]*turns.Turn, error)
	AppendTurns(ctx context.Context, id string, ts []*turns.Turn) error
	RecordToolCalls(ctx context.Context, id string, calls []store.ToolCallRecord) error
}

var _ ConversationStore = (*store.Store)(nil)

// ToolOutput is the rendered result of one executed tool call.
type ToolOutput struct {
	CallID   string         `json:"call_id" yaml:"call_id"`
	ToolName string         `json:"tool_name" yaml:"tool_name"`
	IsError  bool           `json:"is_error" yaml:"is_error"`
	Chunks   []render.Chunk `json:"chunks" yaml:"chunks"`
}

// Response is what a single Respond call produces.
type Response struct {
	ConversationID string            `json:"conversation_id" yaml:"conversation_id"`
	FullText       string            `json:"full_response" yaml:"full_response"`
	Chunks         []render.Chunk    `json:"speakable_chunks" yaml:"speakable_chunks"`
	ToolChunks     []ToolOutput      `json:"tool_outputs,omitempty" yaml:"tool_outputs,omitempty"`
	Outcome        *toolloop.Outcome `json:"-" yaml:"-"`
}

// Service answers user messages: it loads the conversation, runs the tool loop,
// renders the outcome and persists the new turns.
type Service struct {
	eng       engine.Engine
	registry  *tools.Registry
	store     ConversationStore
	formatter *render.Formatter

	loopCfg        toolloop.LoopConfig
	promptTemplate string
	now            func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Service)

func WithLoopConfig(cfg toolloop.LoopConfig) Option {
	return func(s *Service) { s.loopCfg = cfg }
}

// WithSystemPromptTemplate overrides DefaultSystemPromptTemplate.
func WithSystemPromptTemplate(tmpl string) Option {
	return func(s *Service) {
		if tmpl != "" {
			s.promptTemplate = tmpl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(eng engine.Engine, registry *tools.Registry, st ConversationStore, opts ...Option) (*Service, error) {
	if eng == nil {
		return nil, errors.New("assistant: engine is nil")
	}
	if registry == nil {
		return nil, errors.New("assistant: tool registry is nil")
	}
	if st == nil {
		return nil, errors.New("assistant: conversation store is nil")
	}
	s := &Service{
		eng:            eng,
		registry:       registry,
		store:          st,
		formatter:      render.NewFormatter(registry),
		loopCfg:        toolloop.DefaultLoopConfig(),
		promptTemplate: DefaultSystemPromptTemplate,
		now:            time.Now,
		locks:          map[string]*sync.Mutex{},
	}
	for _, o := range opts {
		o(s)
	}
	if _, err := s.systemPrompt(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) systemPrompt() (string, error) {
	return RenderSystemPrompt(s.promptTemplate, PromptData{Tools: s.registry.Names(), Now: s.now()})
}

func (s *Service) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Respond appends message to the conversation and runs the tool loop until the model answers.
// An empty conversationID starts a new conversation. Turns produced by the run are persisted
// on every exit path, so a failed run can be retried from the stored state.
func (s *Service) Respond(ctx context.Context, conversationID string, message string) (*Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	if conversationID == "" {
		c, err := s.store.Create(ctx, titleFromMessage(message))
		if err != nil {
			return nil, err
		}
		conversationID = c.ID
		log.Info().Str("conversation_id", conversationID).Msg("Created conversation")
	}
	defer s.lock(conversationID)()

	history, err := s.store.LoadTurns(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conv, err := conversation.FromTurns(conversationID, history)
	if err != nil {
		return nil, errors.Wrapf(err, "stored conversation %s is inconsistent", conversationID)
	}
	before := conv.Len()
	if err := conv.Append(turns.NewUserTurn(message)); err != nil {
		return nil, err
	}

	prompt, err := s.systemPrompt()
	if err != nil {
		return nil, err
	}
	loop := toolloop.New(
		toolloop.WithEngine(s.eng),
		toolloop.WithRegistry(s.registry),
		toolloop.WithLoopConfig(s.loopCfg),
		toolloop.WithSystemPrompt(prompt),
	)

	log.Debug().Str("conversation_id", conversationID).Int("history", before).Msg("Running tool loop")
	outcome, runErr := loop.Run(ctx, conv)
	if outcome == nil {
		return nil, runErr
	}

	// a cancelled caller still gets its partial state persisted
	persistCtx := context.WithoutCancel(ctx)
	if err := s.store.AppendTurns(persistCtx, conversationID, conv.Since(before)); err != nil {
		return nil, errors.Wrap(err, "could not persist conversation turns")
	}
	if err := s.store.RecordToolCalls(persistCtx, conversationID, toolCallRecords(conversationID, outcome.ExecutedToolCalls)); err != nil {
		return nil, errors.Wrap(err, "could not persist tool calls")
	}

	resp := &Response{
		ConversationID: conversationID,
		FullText:       outcome.FinalText,
		Chunks:         render.Collect(s.formatter.FormatFinal(outcome.FinalText)),
		ToolChunks:     s.renderTools(outcome.ExecutedToolCalls),
		Outcome:        outcome,
	}

	switch outcome.TerminatedReason {
	case toolloop.ReasonFatalError:
		log.Error().Err(runErr).Str("conversation_id", conversationID).Msg("Assistant unavailable")
		return resp, &UnavailableError{ConversationID: conversationID, cause: runErr}
	case toolloop.ReasonCancelled:
		return resp, runErr
	case toolloop.ReasonIterationLimit:
		log.Warn().Str("conversation_id", conversationID).Int("iterations", outcome.Iterations).
			Msg("Answer stopped at the tool iteration limit")
	}
	return resp, nil
}

func (s *Service) renderTools(execs []tools.Execution) []ToolOutput {
	if len(execs) == 0 {
		return nil
	}
	out := make([]ToolOutput, 0, len(execs))
	for _, e := range execs {
		o := ToolOutput{CallID: e.Call.ID, ToolName: e.Call.Name, IsError: e.IsError()}
		if e.IsError() {
			o.Chunks = render.Collect(render.Single(e.Err.Message, true))
		} else {
			o.Chunks = render.Collect(s.formatter.Format(e.Call.Name, e.Result))
		}
		out = append(out, o)
	}
	return out
}

func toolCallRecords(conversationID string, execs []tools.Execution) []store.ToolCallRecord {
	ret := make([]store.ToolCallRecord, 0, len(execs))
	for _, e := range execs {
		ret = append(ret, store.ToolCallRecord{
			ConversationID: conversationID,
			CallID:         e.Call.ID,
			ToolName:       e.Call.Name,
			Arguments:      e.Call.Arguments,
			Result:         e.Payload,
			IsError:        e.IsError(),
			Duration:       e.Duration,
		})
	}
	return ret
}

func titleFromMessage(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(title) <= titleMaxRunes {
		return title
	}
	return string([]rune(title)[:titleMaxRunes-1]) + "…"
}
