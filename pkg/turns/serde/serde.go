package serde

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/librarian/pkg/turns"
)

// Transcript is the on-disk YAML shape of a sequence of turns.
type Transcript struct {
	ConversationID string        `yaml:"conversation_id,omitempty"`
	Turns          []*turns.Turn `yaml:"turns"`
}

// NormalizeTurn applies serde defaults without mutating order.
func NormalizeTurn(t *turns.Turn) {
	if t == nil {
		return
	}
	if t.Blocks == nil {
		t.Blocks = []turns.Block{}
	}
	for i := range t.Blocks {
		b := &t.Blocks[i]
		// infer the kind from the populated variant when it was left out
		if b.Kind == "" {
			switch {
			case b.ToolCall != nil:
				b.Kind = turns.BlockKindToolCall
			case b.ToolResult != nil:
				b.Kind = turns.BlockKindToolResult
			default:
				b.Kind = turns.BlockKindText
			}
		}
	}
}

// ValidateTurn checks that every block carries the variant its kind names.
func ValidateTurn(t *turns.Turn) error {
	if t == nil {
		return errors.New("nil turn")
	}
	switch t.Role {
	case turns.RoleUser, turns.RoleModel, turns.RoleToolResult:
	default:
		return errors.Errorf("unknown role %q", t.Role)
	}
	for i, b := range t.Blocks {
		switch b.Kind {
		case turns.BlockKindText:
		case turns.BlockKindToolCall:
			if b.ToolCall == nil {
				return errors.Errorf("block %d: tool_call block without tool_call", i)
			}
		case turns.BlockKindToolResult:
			if b.ToolResult == nil {
				return errors.Errorf("block %d: tool_result block without tool_result", i)
			}
		default:
			return errors.Errorf("block %d: unknown kind %q", i, b.Kind)
		}
	}
	return nil
}

// ToYAML marshals a transcript to YAML.
func ToYAML(conversationID string, ts []*turns.Turn) ([]byte, error) {
	for _, t := range ts {
		NormalizeTurn(t)
	}
	return yaml.Marshal(Transcript{ConversationID: conversationID, Turns: ts})
}

// FromYAML unmarshals and validates a transcript.
func FromYAML(b []byte) (*Transcript, error) {
	var tr Transcript
	if err := yaml.Unmarshal(b, &tr); err != nil {
		return nil, errors.Wrap(err, "could not parse transcript")
	}
	for i, t := range tr.Turns {
		NormalizeTurn(t)
		if err := ValidateTurn(t); err != nil {
			return nil, errors.Wrapf(err, "turn %d", i)
		}
	}
	return &tr, nil
}

// SaveTranscript writes a transcript to a YAML file.
func SaveTranscript(path string, conversationID string, ts []*turns.Turn) error {
	data, err := ToYAML(conversationID, ts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadTranscript reads a transcript from a YAML file.
func LoadTranscript(path string) (*Transcript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(b)
}
