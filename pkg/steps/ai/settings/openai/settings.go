package openai

import (
	"github.com/huandu/go-clone"
)

type Settings struct {
	// PresencePenalty to use
	PresencePenalty *float64 `yaml:"presence_penalty,omitempty"`
	// FrequencyPenalty to use
	FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty"`
	// ParallelToolCalls is left unset unless configured; the loop runs calls sequentially either way.
	ParallelToolCalls *bool   `yaml:"parallel_tool_calls,omitempty"`
	BaseURL           *string `yaml:"base_url,omitempty"`
	APIKey            *string `yaml:"api_key,omitempty"`
	User              *string `yaml:"user,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
