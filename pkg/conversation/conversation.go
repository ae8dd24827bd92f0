package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"

	"github.com/go-go-golems/librarian/pkg/turns"
)

// ErrOrderViolation is returned when a turn would break the user/model/tool_result ordering.
var ErrOrderViolation = errors.New("conversation order violation")

// Conversation is the ordered, append-only log of turns of one session.
//
// Appended turns are copied; callers never hold a reference into the log.
type Conversation struct {
	ID string

	mu    sync.RWMutex
	turns []*turns.Turn
	// every tool call id ever emitted in this conversation
	callIDs map[string]struct{}
	// ids of the latest model turn still waiting for a result, in emission order
	outstanding []string
}

// New creates an empty conversation. An empty id gets a fresh uuid.
func New(id string) *Conversation {
	if id == "" {
		id = uuid.NewString()
	}
	return &Conversation{
		ID:      id,
		callIDs: map[string]struct{}{},
	}
}

// FromTurns rebuilds a conversation from a persisted sequence, validating ordering as it goes.
func FromTurns(id string, ts []*turns.Turn) (*Conversation, error) {
	c := New(id)
	for i, t := range ts {
		if err := c.Append(t); err != nil {
			return nil, errors.Wrapf(err, "turn %d", i)
		}
	}
	return c, nil
}

// Append adds a copy of t to the end of the log.
func (c *Conversation) Append(t *turns.Turn) error {
	if t == nil {
		return errors.Wrap(ErrOrderViolation, "nil turn")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch t.Role {
	case turns.RoleUser:
		err = c.checkUser(t)
	case turns.RoleModel:
		err = c.checkModel(t)
	case turns.RoleToolResult:
		err = c.checkToolResult(t)
	default:
		err = errors.Wrapf(ErrOrderViolation, "unknown role %q", t.Role)
	}
	if err != nil {
		return err
	}

	cp := t.Clone()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	switch cp.Role {
	case turns.RoleModel:
		for _, call := range cp.ToolCalls() {
			c.callIDs[call.ID] = struct{}{}
			c.outstanding = append(c.outstanding, call.ID)
		}
	case turns.RoleToolResult:
		for _, r := range cp.ToolResults() {
			c.removeOutstanding(r.CallID)
		}
	}
	c.turns = append(c.turns, cp)
	return nil
}

func (c *Conversation) checkUser(t *turns.Turn) error {
	if len(c.outstanding) > 0 {
		return errors.Wrapf(ErrOrderViolation, "user turn while %d tool calls are unanswered", len(c.outstanding))
	}
	for _, b := range t.Blocks {
		if b.Kind != turns.BlockKindText {
			return errors.Wrapf(ErrOrderViolation, "user turn with %s block", b.Kind)
		}
	}
	return nil
}

func (c *Conversation) checkModel(t *turns.Turn) error {
	if len(c.outstanding) > 0 {
		return errors.Wrapf(ErrOrderViolation, "model turn while %d tool calls are unanswered", len(c.outstanding))
	}
	seen := map[string]struct{}{}
	for _, b := range t.Blocks {
		switch b.Kind {
		case turns.BlockKindText:
		case turns.BlockKindToolCall:
			if b.ToolCall == nil || b.ToolCall.ID == "" {
				return errors.Wrap(ErrOrderViolation, "tool call without id")
			}
			id := b.ToolCall.ID
			if _, ok := c.callIDs[id]; ok {
				return errors.Wrapf(ErrOrderViolation, "tool call id %q already used in this conversation", id)
			}
			if _, ok := seen[id]; ok {
				return errors.Wrapf(ErrOrderViolation, "tool call id %q repeated in one turn", id)
			}
			seen[id] = struct{}{}
		default:
			return errors.Wrapf(ErrOrderViolation, "model turn with %s block", b.Kind)
		}
	}
	return nil
}

func (c *Conversation) checkToolResult(t *turns.Turn) error {
	if len(t.Blocks) == 0 {
		return errors.Wrap(ErrOrderViolation, "empty tool_result turn")
	}
	pending := map[string]struct{}{}
	for _, id := range c.outstanding {
		pending[id] = struct{}{}
	}
	for _, b := range t.Blocks {
		if b.Kind != turns.BlockKindToolResult || b.ToolResult == nil {
			return errors.Wrapf(ErrOrderViolation, "tool_result turn with %s block", b.Kind)
		}
		id := b.ToolResult.CallID
		if _, ok := pending[id]; !ok {
			return errors.Wrapf(ErrOrderViolation, "tool result for %q does not answer an outstanding call", id)
		}
		delete(pending, id)
	}
	return nil
}

func (c *Conversation) removeOutstanding(id string) {
	for i, o := range c.outstanding {
		if o == id {
			c.outstanding = append(c.outstanding[:i], c.outstanding[i+1:]...)
			return
		}
	}
}

// Snapshot returns a deep copy of the full ordered log.
func (c *Conversation) Snapshot() []*turns.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return []*turns.Turn{}
	}
	return clone.Clone(c.turns).([]*turns.Turn)
}

// Since returns copies of the turns appended at index n and later.
func (c *Conversation) Since(n int) []*turns.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(c.turns) {
		return []*turns.Turn{}
	}
	return clone.Clone(c.turns[n:]).([]*turns.Turn)
}

// OutstandingCalls returns the ids of the latest model turn's tool calls that have no result yet.
func (c *Conversation) OutstandingCalls() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.outstanding))
	copy(out, c.outstanding)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// Last returns a copy of the most recent turn, or nil.
func (c *Conversation) Last() *turns.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1].Clone()
}
