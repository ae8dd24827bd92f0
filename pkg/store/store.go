package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/go-go-golems/librarian/pkg/turns"
)

// ErrConversationNotFound is returned for operations on an unknown conversation id.
var ErrConversationNotFound = errors.New("conversation not found")

const storeSchemaV1 = `
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    created_at_ms INTEGER NOT NULL DEFAULT 0,
    updated_at_ms INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS turns (
    conversation_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    turn_id TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    blocks_json TEXT NOT NULL,
    created_at_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (conversation_id, seq),
    FOREIGN KEY (conversation_id) REFERENCES conversations (id)
);

CREATE TABLE IF NOT EXISTS tool_calls (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    call_id TEXT NOT NULL,
    tool_name TEXT NOT NULL,
    arguments_json TEXT NOT NULL,
    result TEXT NOT NULL,
    is_error INTEGER NOT NULL DEFAULT 0,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at_ms INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (conversation_id) REFERENCES conversations (id)
);

CREATE INDEX IF NOT EXISTS idx_tool_calls_conversation_id ON tool_calls(conversation_id, id);
`

// Conversation is the metadata row of a stored conversation.
type Conversation struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
	TurnCount int       `json:"turn_count" yaml:"turn_count"`
}

// ToolCallRecord is one executed tool call, kept for auditing.
type ToolCallRecord struct {
	ConversationID string         `json:"conversation_id" yaml:"conversation_id"`
	CallID         string         `json:"call_id" yaml:"call_id"`
	ToolName       string         `json:"tool_name" yaml:"tool_name"`
	Arguments      map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
	Result         string         `json:"result" yaml:"result"`
	IsError        bool           `json:"is_error" yaml:"is_error"`
	Duration       time.Duration  `json:"duration" yaml:"duration"`
	CreatedAt      time.Time      `json:"created_at" yaml:"created_at"`
}

// Store persists conversations, their turns and the tool calls executed in them.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens the conversation database at dsn and applies the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("conversation store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "could not open conversation database")
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if _, err := db.Exec(storeSchemaV1); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "could not create conversation schema")
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create starts a new, empty conversation with a fresh ULID.
func (s *Store) Create(ctx context.Context, title string) (*Conversation, error) {
	now := s.now()
	c := &Conversation{
		ID:        ulid.Make().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, created_at_ms, updated_at_ms) VALUES (?, ?, ?, ?)`,
		c.ID, c.Title, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "could not create conversation")
	}
	return c, nil
}

const selectConversation = `
SELECT c.id, c.title, c.created_at_ms, c.updated_at_ms,
       (SELECT COUNT(*) FROM turns t WHERE t.conversation_id = c.id)
FROM conversations c`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var (
		c                  Conversation
		createdMs, updated int64
	)
	if err := row.Scan(&c.ID, &c.Title, &createdMs, &updated, &c.TurnCount); err != nil {
		return nil, err
	}
	c.CreatedAt = fromMillis(createdMs)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx, selectConversation+` WHERE c.id = ?`, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errors.Wrapf(ErrConversationNotFound, "conversation %s", id)
	case err != nil:
		return nil, errors.Wrapf(err, "could not load conversation %s", id)
	}
	return c, nil
}

// List returns all conversations, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, selectConversation+` ORDER BY c.updated_at_ms DESC, c.id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "could not list conversations")
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "could not scan conversation")
		}
		ret = append(ret, *c)
	}
	return ret, errors.Wrap(rows.Err(), "could not iterate conversations")
}

// Delete removes a conversation together with its turns and tool calls.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, id); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM tool_calls WHERE conversation_id = ?`,
			`DELETE FROM turns WHERE conversation_id = ?`,
			`DELETE FROM conversations WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return errors.Wrapf(err, "could not delete conversation %s", id)
			}
		}
		return nil
	})
}

func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at_ms = ? WHERE id = ?`,
		title, s.now().UnixMilli(), id)
	if err != nil {
		return errors.Wrapf(err, "could not rename conversation %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(ErrConversationNotFound, "conversation %s", id)
	}
	return nil
}

// LoadTurns returns the stored turns of a conversation in append order.
func (s *Store) LoadTurns(ctx context.Context, id string) ([]*turns.Turn, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_id, role, blocks_json, created_at_ms FROM turns WHERE conversation_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load turns of %s", id)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []*turns.Turn
	for rows.Next() {
		var (
			t         turns.Turn
			role      string
			blocks    string
			createdMs int64
		)
		if err := rows.Scan(&t.ID, &role, &blocks, &createdMs); err != nil {
			return nil, errors.Wrap(err, "could not scan turn")
		}
		if err := json.Unmarshal([]byte(blocks), &t.Blocks); err != nil {
			return nil, errors.Wrapf(err, "could not decode blocks of turn %s", t.ID)
		}
		t.Role = turns.Role(role)
		t.CreatedAt = fromMillis(createdMs)
		ret = append(ret, &t)
	}
	return ret, errors.Wrap(rows.Err(), "could not iterate turns")
}

// AppendTurns stores ts after the turns already recorded for the conversation.
func (s *Store) AppendTurns(ctx context.Context, id string, ts []*turns.Turn) error {
	if len(ts) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, id); err != nil {
			return err
		}
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), -1) + 1 FROM turns WHERE conversation_id = ?`, id).Scan(&next); err != nil {
			return errors.Wrap(err, "could not read turn sequence")
		}
		for i, t := range ts {
			if t == nil {
				return errors.Errorf("turn %d is nil", i)
			}
			b, err := json.Marshal(t.Blocks)
			if err != nil {
				return errors.Wrapf(err, "could not encode turn %s", t.ID)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO turns (conversation_id, seq, turn_id, role, blocks_json, created_at_ms) VALUES (?, ?, ?, ?, ?, ?)`,
				id, next+i, t.ID, string(t.Role), string(b), toMillis(t.CreatedAt)); err != nil {
				return errors.Wrapf(err, "could not insert turn %s", t.ID)
			}
		}
		return s.touch(ctx, tx, id)
	})
}

// RecordToolCalls appends executed tool calls to the audit log of a conversation.
func (s *Store) RecordToolCalls(ctx context.Context, id string, calls []ToolCallRecord) error {
	if len(calls) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, id); err != nil {
			return err
		}
		now := s.now()
		for _, c := range calls {
			args, err := json.Marshal(c.Arguments)
			if err != nil {
				return errors.Wrapf(err, "could not encode arguments of %s", c.CallID)
			}
			created := c.CreatedAt
			if created.IsZero() {
				created = now
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO tool_calls (conversation_id, call_id, tool_name, arguments_json, result, is_error, duration_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, c.CallID, c.ToolName, string(args), c.Result, c.IsError, c.Duration.Milliseconds(), created.UnixMilli()); err != nil {
				return errors.Wrapf(err, "could not record tool call %s", c.CallID)
			}
		}
		return nil
	})
}

// ToolCalls returns the recorded tool calls of a conversation in execution order.
func (s *Store) ToolCalls(ctx context.Context, id string) ([]ToolCallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT call_id, tool_name, arguments_json, result, is_error, duration_ms, created_at_ms
FROM tool_calls WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load tool calls of %s", id)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ret []ToolCallRecord
	for rows.Next() {
		var (
			r                     ToolCallRecord
			args                  string
			durationMs, createdMs int64
		)
		if err := rows.Scan(&r.CallID, &r.ToolName, &args, &r.Result, &r.IsError, &durationMs, &createdMs); err != nil {
			return nil, errors.Wrap(err, "could not scan tool call")
		}
		if err := json.Unmarshal([]byte(args), &r.Arguments); err != nil {
			return nil, errors.Wrapf(err, "could not decode arguments of %s", r.CallID)
		}
		r.ConversationID = id
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.CreatedAt = fromMillis(createdMs)
		ret = append(ret, r)
	}
	return ret, errors.Wrap(rows.Err(), "could not iterate tool calls")
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "could not commit transaction")
}

func (s *Store) touch(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at_ms = ? WHERE id = ?`, s.now().UnixMilli(), id)
	return errors.Wrap(err, "could not update conversation timestamp")
}

func mustExist(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return errors.Wrapf(ErrConversationNotFound, "conversation %s", id)
	case err != nil:
		return errors.Wrapf(err, "could not load conversation %s", id)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
