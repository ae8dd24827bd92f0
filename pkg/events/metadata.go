package events

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Usage represents token usage information common across LLM providers
type Usage struct {
	InputTokens  int `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
}

type EventMetadata struct {
	ID uuid.UUID `json:"message_id" yaml:"message_id"`
	// Correlation identifiers
	ConversationID string `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	RunID          string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	TurnID         string `json:"turn_id,omitempty" yaml:"turn_id,omitempty"`

	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	Usage *Usage `json:"usage,omitempty" yaml:"usage,omitempty"`
	// Extra carries provider-specific/context values
	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewMetadata returns metadata with a fresh message id.
func NewMetadata(conversationID, runID string) EventMetadata {
	return EventMetadata{
		ID:             uuid.New(),
		ConversationID: conversationID,
		RunID:          runID,
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	if em.TurnID != "" {
		e.Str("turn_id", em.TurnID)
	}
	if em.Model != "" {
		e.Str("model", em.Model)
	}
	if em.Usage != nil {
		e.Int("input_tokens", em.Usage.InputTokens)
		e.Int("output_tokens", em.Usage.OutputTokens)
	}
	if len(em.Extra) > 0 {
		e.Interface("extra", em.Extra)
	}
}
