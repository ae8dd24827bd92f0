package toolloop

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/librarian/pkg/conversation"
	"github.com/go-go-golems/librarian/pkg/events"
	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/inference/tools"
	"github.com/go-go-golems/librarian/pkg/turns"
)

// State is a node of the loop state machine.
type State string

const (
	StateAwaitingModel    State = "AWAITING_MODEL"
	StateDispatchingTools State = "DISPATCHING_TOOLS"
	StateDone             State = "DONE"
	StateAborted          State = "ABORTED"
)

// TerminatedReason tells why a run stopped.
type TerminatedReason string

const (
	ReasonModelFinished  TerminatedReason = "model_finished"
	ReasonIterationLimit TerminatedReason = "iteration_limit"
	ReasonFatalError     TerminatedReason = "fatal_error"
	ReasonCancelled      TerminatedReason = "cancelled"
)

const (
	iterationLimitMessage = "tool call not executed: iteration limit reached"
	cancelledMessage      = "tool call not executed: cancelled"
)

// Outcome is produced once per Run.
type Outcome struct {
	FinalText string
	// ExecutedToolCalls lists every dispatched call in execution order, failed ones included.
	ExecutedToolCalls []tools.Execution
	TerminatedReason  TerminatedReason
	State             State
	// Err is the cause of a fatal_error or cancelled run.
	Err error

	// Iterations counts model→tools cycles, ModelCalls counts backend requests.
	Iterations int
	ModelCalls int
	// Trace is the sequence of states the run went through.
	Trace []State
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

// Succeeded reports whether the model produced a final answer.
func (o *Outcome) Succeeded() bool {
	return o != nil && o.TerminatedReason == ReasonModelFinished
}

type Loop struct {
	eng          engine.Engine
	dispatcher   *tools.Dispatcher
	loopCfg      LoopConfig
	systemPrompt string

	snapshotHook SnapshotHook
}

type Option func(*Loop)

func New(opts ...Option) *Loop {
	l := &Loop{
		loopCfg: DefaultLoopConfig(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func WithEngine(eng engine.Engine) Option {
	return func(l *Loop) { l.eng = eng }
}

// WithRegistry dispatches tool calls against reg with a default dispatcher.
func WithRegistry(reg *tools.Registry) Option {
	return func(l *Loop) { l.dispatcher = tools.NewDispatcher(reg) }
}

func WithDispatcher(d *tools.Dispatcher) Option {
	return func(l *Loop) { l.dispatcher = d }
}

func WithLoopConfig(cfg LoopConfig) Option {
	return func(l *Loop) { l.loopCfg = cfg }
}

func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) { l.systemPrompt = prompt }
}

func WithSnapshotHook(h SnapshotHook) Option {
	return func(l *Loop) { l.snapshotHook = h }
}

func (l *Loop) snapshot(ctx context.Context, conv *conversation.Conversation, phase string) {
	h := l.snapshotHook
	if h == nil {
		var ok bool
		if h, ok = SnapshotHookFromContext(ctx); !ok {
			return
		}
	}
	h(ctx, conv.Snapshot(), phase)
}

// Run drives conv from AWAITING_MODEL until the model finishes or the run aborts.
// Turns produced by the run are appended to conv, which stays consistent on every exit path.
// The returned error is nil for model_finished and iteration_limit.
func (l *Loop) Run(ctx context.Context, conv *conversation.Conversation) (*Outcome, error) {
	if l == nil {
		return nil, errors.New("tool loop is nil")
	}
	if l.eng == nil {
		return nil, errors.New("tool loop engine is nil")
	}
	if l.dispatcher == nil || l.dispatcher.Registry() == nil {
		return nil, errors.New("tool loop registry is nil")
	}
	if conv == nil {
		return nil, errors.New("conversation is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pending := conv.OutstandingCalls(); len(pending) > 0 {
		return nil, errors.Wrapf(conversation.ErrOrderViolation, "conversation has %d unanswered tool calls", len(pending))
	}

	maxIterations := l.loopCfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultLoopConfig().MaxIterations
	}

	runID := uuid.NewString()
	ctx = events.WithEventMetadata(ctx, events.NewMetadata(conv.ID, runID))
	logger := log.With().Str("conversation_id", conv.ID).Str("run_id", runID).Logger()
	logger.Info().Int("turns", conv.Len()).Int("max_iterations", maxIterations).Msg("toolloop: starting run")

	run := &runState{loop: l, conv: conv, outcome: &Outcome{}}
	run.outcome.enter(StateAwaitingModel)
	schemas := l.dispatcher.Registry().Schemas()

	for {
		if err := ctx.Err(); err != nil {
			run.abort(ctx, ReasonCancelled, errors.Wrap(err, "run cancelled before model call"))
			break
		}

		reply, err := run.callModel(ctx, schemas)
		if err != nil {
			reason := ReasonFatalError
			if ctx.Err() != nil {
				reason = ReasonCancelled
			}
			run.abort(ctx, reason, err)
			break
		}

		if reply.StopReason == engine.StopReasonEndTurn {
			if err := run.appendFinal(reply); err != nil {
				run.abort(ctx, ReasonFatalError, err)
				break
			}
			l.snapshot(ctx, conv, PhasePostInference)
			run.outcome.FinalText = reply.Text()
			run.outcome.TerminatedReason = ReasonModelFinished
			run.outcome.enter(StateDone)
			break
		}

		calls, err := run.appendToolUse(reply)
		if err != nil {
			run.abort(ctx, ReasonFatalError, err)
			break
		}
		l.snapshot(ctx, conv, PhasePostInference)

		if run.outcome.Iterations >= maxIterations {
			logger.Warn().Int("max_iterations", maxIterations).Int("pending_calls", len(calls)).
				Msg("toolloop: iteration limit reached")
			if err := run.answerSkipped(calls, iterationLimitMessage); err != nil {
				run.abort(ctx, ReasonFatalError, err)
				break
			}
			run.abort(ctx, ReasonIterationLimit, nil)
			break
		}

		run.outcome.Iterations++
		run.outcome.enter(StateDispatchingTools)
		if err := run.dispatch(ctx, calls); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				run.abort(ctx, ReasonCancelled, err)
			} else {
				run.abort(ctx, ReasonFatalError, err)
			}
			break
		}
		l.snapshot(ctx, conv, PhasePostTools)
		run.outcome.enter(StateAwaitingModel)
	}

	o := run.outcome
	events.PublishEventToContext(ctx, events.NewLoopFinishedEvent(
		events.MetadataFromContext(ctx), string(o.TerminatedReason), o.Iterations, o.ModelCalls, o.FinalText,
	))
	logger.Info().
		Str("reason", string(o.TerminatedReason)).
		Int("iterations", o.Iterations).
		Int("model_calls", o.ModelCalls).
		Int("tool_calls", len(o.ExecutedToolCalls)).
		Msg("toolloop: run finished")

	if o.TerminatedReason == ReasonFatalError || o.TerminatedReason == ReasonCancelled {
		return o, o.Err
	}
	return o, nil
}

// runState carries the mutable bookkeeping of one Run.
type runState struct {
	loop    *Loop
	conv    *conversation.Conversation
	outcome *Outcome
	// texts collects model text across the run for aborted outcomes.
	texts []string
}

func (r *runState) callModel(ctx context.Context, schemas []tools.Schema) (*engine.Reply, error) {
	l := r.loop
	r.outcome.ModelCalls++
	iteration := r.outcome.ModelCalls

	l.snapshot(ctx, r.conv, PhasePreInference)
	req := &engine.Request{
		System: l.systemPrompt,
		Turns:  r.conv.Snapshot(),
		Tools:  schemas,
	}
	events.PublishEventToContext(ctx, events.NewModelRequestEvent(
		events.MetadataFromContext(ctx), iteration, len(req.Turns), len(req.Tools),
	))
	log.Debug().Int("iteration", iteration).Int("turns", len(req.Turns)).Msg("toolloop: engine inference step")

	callCtx := ctx
	if l.loopCfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.loopCfg.ModelTimeout)
		defer cancel()
	}

	reply, err := l.eng.RunInference(callCtx, req)
	if err != nil {
		log.Error().Err(err).Int("iteration", iteration).Msg("toolloop: model call failed")
		return nil, errors.Wrap(err, "model call failed")
	}
	if err := reply.Validate(); err != nil {
		log.Error().Err(err).Int("iteration", iteration).Msg("toolloop: malformed model reply")
		return nil, err
	}

	md := events.MetadataFromContext(ctx)
	md.Model = reply.Model
	if reply.Usage != nil {
		md.Usage = &events.Usage{InputTokens: reply.Usage.InputTokens, OutputTokens: reply.Usage.OutputTokens}
	}
	var calls []events.ToolCall
	for _, c := range reply.ToolCalls() {
		calls = append(calls, events.ToolCall{ID: c.ID, Name: c.Name, Input: argumentsJSON(c.Arguments)})
	}
	events.PublishEventToContext(ctx, events.NewModelReplyEvent(md, iteration, string(reply.StopReason), reply.Text(), calls))

	if t := reply.Text(); t != "" {
		r.texts = append(r.texts, t)
	}
	return reply, nil
}

// appendFinal stores the text blocks of an end_turn reply as the closing model turn.
func (r *runState) appendFinal(reply *engine.Reply) error {
	var blocks []turns.Block
	for _, b := range reply.Blocks {
		if b.Kind == turns.BlockKindText {
			blocks = append(blocks, b)
		}
	}
	return errors.Wrap(r.conv.Append(turns.NewModelTurn(blocks...)), "append model turn")
}

// appendToolUse stores a tool_use reply and returns its calls in emission order.
func (r *runState) appendToolUse(reply *engine.Reply) ([]turns.ToolCall, error) {
	blocks := make([]turns.Block, 0, len(reply.Blocks))
	for _, b := range reply.Blocks {
		if b.Kind == turns.BlockKindToolCall && b.ToolCall != nil && b.ToolCall.ID == "" {
			call := *b.ToolCall
			call.ID = "call_" + ulid.Make().String()
			b.ToolCall = &call
		}
		blocks = append(blocks, b)
	}
	t := turns.NewModelTurn(blocks...)
	if err := r.conv.Append(t); err != nil {
		return nil, errors.Wrap(err, "append model turn")
	}
	return t.ToolCalls(), nil
}

// dispatch runs the batch left to right and appends one tool_result turn per call.
// Handlers run detached from ctx; cancellation is honoured between calls only.
func (r *runState) dispatch(ctx context.Context, calls []turns.ToolCall) error {
	handlerCtx := context.WithoutCancel(ctx)
	for i, call := range calls {
		if err := ctx.Err(); err != nil {
			if aerr := r.answerSkipped(calls[i:], cancelledMessage); aerr != nil {
				return aerr
			}
			return errors.Wrap(err, "run cancelled during tool dispatch")
		}

		exec := r.loop.dispatcher.Dispatch(handlerCtx, call)
		r.outcome.ExecutedToolCalls = append(r.outcome.ExecutedToolCalls, exec)
		if err := r.conv.Append(turns.NewToolResultTurn(exec.ToolResult())); err != nil {
			return errors.Wrap(err, "append tool result")
		}
	}
	return nil
}

// answerSkipped closes calls that will not run with an error result each.
func (r *runState) answerSkipped(calls []turns.ToolCall, message string) error {
	payload := errorPayload(message)
	for _, call := range calls {
		res := turns.ToolResult{CallID: call.ID, Payload: payload, IsError: true}
		if err := r.conv.Append(turns.NewToolResultTurn(res)); err != nil {
			return errors.Wrap(err, "append tool result")
		}
	}
	return nil
}

func (r *runState) abort(ctx context.Context, reason TerminatedReason, err error) {
	o := r.outcome
	o.TerminatedReason = reason
	o.Err = err
	o.FinalText = strings.Join(r.texts, "\n")
	o.enter(StateAborted)
	if err != nil {
		events.PublishEventToContext(ctx, events.NewErrorEvent(events.MetadataFromContext(ctx), err))
	}
}

func errorPayload(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return string(b)
}

func argumentsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
