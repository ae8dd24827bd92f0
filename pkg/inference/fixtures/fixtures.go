package fixtures

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/librarian/pkg/events"
	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/turns"
	"github.com/go-go-golems/librarian/pkg/turns/serde"
)

// ErrScriptExhausted is returned once a ScriptedEngine has replayed every step.
var ErrScriptExhausted = errors.New("fixture script exhausted")

// Step is one scripted backend answer: either a reply or an error.
type Step struct {
	StopReason engine.StopReason `yaml:"stop_reason,omitempty"`
	Blocks     []turns.Block     `yaml:"blocks,omitempty"`
	Error      string            `yaml:"error,omitempty"`
}

// ScriptDoc is the YAML fixture format: an ordered list of replies.
type ScriptDoc struct {
	Version int    `yaml:"version,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Repeat  bool   `yaml:"repeat,omitempty"`
	Replies []Step `yaml:"replies"`
}

// ScriptedEngine is a stub backend that replays a fixed sequence of steps and records every request.
type ScriptedEngine struct {
	mu       sync.Mutex
	model    string
	steps    []Step
	pos      int
	repeat   bool
	delay    time.Duration
	requests []*engine.Request
}

var _ engine.Engine = (*ScriptedEngine)(nil)

type Option func(*ScriptedEngine)

// WithRepeat replays the last step forever instead of failing with ErrScriptExhausted.
func WithRepeat(repeat bool) Option {
	return func(e *ScriptedEngine) { e.repeat = repeat }
}

// WithDelay makes every call wait d or until the context is done.
func WithDelay(d time.Duration) Option {
	return func(e *ScriptedEngine) { e.delay = d }
}

func WithModel(model string) Option {
	return func(e *ScriptedEngine) { e.model = model }
}

func NewScriptedEngine(steps []Step, opts ...Option) *ScriptedEngine {
	e := &ScriptedEngine{model: "fixture", steps: steps}
	for _, o := range opts {
		o(e)
	}
	return e
}

// EndTurn is a step answering with text blocks.
func EndTurn(texts ...string) Step {
	s := Step{StopReason: engine.StopReasonEndTurn}
	for _, t := range texts {
		s.Blocks = append(s.Blocks, turns.NewTextBlock(t))
	}
	return s
}

// ToolUse is a step requesting the given calls.
func ToolUse(calls ...turns.ToolCall) Step {
	s := Step{StopReason: engine.StopReasonToolUse}
	for _, c := range calls {
		s.Blocks = append(s.Blocks, turns.NewToolCallBlock(c.ID, c.Name, c.Arguments))
	}
	return s
}

// Fail is a step returning a backend error.
func Fail(message string) Step {
	return Step{Error: message}
}

func (e *ScriptedEngine) RunInference(ctx context.Context, req *engine.Request) (*engine.Reply, error) {
	e.mu.Lock()
	recorded := &engine.Request{System: req.System, Tools: req.Tools}
	for _, t := range req.Turns {
		recorded.Turns = append(recorded.Turns, t.Clone())
	}
	e.requests = append(e.requests, recorded)

	var step Step
	exhausted := false
	switch {
	case e.pos < len(e.steps):
		step = e.steps[e.pos]
		e.pos++
	case e.repeat && len(e.steps) > 0:
		step = e.steps[len(e.steps)-1]
	default:
		exhausted = true
	}
	delay := e.delay
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, engine.NewBackendError("fixture", ctx.Err())
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, engine.NewBackendError("fixture", err)
	}
	if exhausted {
		return nil, engine.NewBackendError("fixture", ErrScriptExhausted)
	}
	if step.Error != "" {
		return nil, engine.NewBackendError("fixture", errors.New(step.Error))
	}

	t := &turns.Turn{Blocks: step.Blocks}
	t = t.Clone()
	return &engine.Reply{
		Blocks:     t.Blocks,
		StopReason: step.StopReason,
		Model:      e.model,
	}, nil
}

// Requests returns every request received so far.
func (e *ScriptedEngine) Requests() []*engine.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*engine.Request(nil), e.requests...)
}

// Calls returns the number of requests received so far.
func (e *ScriptedEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// LoadScript reads a ScriptDoc from a YAML file.
func LoadScript(path string) (*ScriptedEngine, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read fixture %s", path)
	}
	return ParseScript(b)
}

func ParseScript(b []byte) (*ScriptedEngine, error) {
	var doc ScriptDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "parse fixture")
	}
	if len(doc.Replies) == 0 {
		return nil, errors.New("fixture has no replies")
	}
	for i := range doc.Replies {
		s := &doc.Replies[i]
		t := &turns.Turn{Blocks: s.Blocks}
		serde.NormalizeTurn(t)
		s.Blocks = t.Blocks
		if s.Error == "" && s.StopReason == "" {
			s.StopReason = engine.StopReasonEndTurn
		}
	}
	opts := []Option{WithRepeat(doc.Repeat)}
	if doc.Model != "" {
		opts = append(opts, WithModel(doc.Model))
	}
	return NewScriptedEngine(doc.Replies, opts...), nil
}

// NDJSONSink writes events as newline-delimited JSON.
type NDJSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ events.EventSink = (*NDJSONSink)(nil)

func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{w: w}
}

func (s *NDJSONSink) PublishEvent(e events.Event) error {
	b, err := json.Marshal(map[string]any{
		"type":  string(e.Type()),
		"event": e,
		"ts":    time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(b, '\n'))
	return err
}
