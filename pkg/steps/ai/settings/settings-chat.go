package settings

import (
	"github.com/huandu/go-clone"

	"github.com/go-go-golems/librarian/pkg/helpers"
	"github.com/go-go-golems/librarian/pkg/steps/ai/types"
)

type ChatSettings struct {
	ApiType           *types.ApiType    `yaml:"api_type,omitempty" mapstructure:"provider"`
	Engine            *string           `yaml:"engine,omitempty" mapstructure:"model"`
	MaxResponseTokens *int              `yaml:"max_response_tokens,omitempty" mapstructure:"max-tokens"`
	TopP              *float64          `yaml:"top_p,omitempty" mapstructure:"top-p"`
	Temperature       *float64          `yaml:"temperature,omitempty" mapstructure:"temperature"`
	Stop              []string          `yaml:"stop,omitempty" mapstructure:"stop"`
	APIKeys           map[string]string `yaml:"api_keys,omitempty"`
	// FixturePath is the script replayed by the fixture backend.
	FixturePath string `yaml:"fixture_path,omitempty" mapstructure:"fixture"`
}

const (
	DefaultClaudeModel       = "claude-3-5-sonnet-20241022"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultMaxResponseTokens = 1024
	DefaultTemperature       = 0.1
)

func NewChatSettings() *ChatSettings {
	apiType := types.ApiTypeClaude
	return &ChatSettings{
		ApiType:           &apiType,
		MaxResponseTokens: helpers.ToPtr(DefaultMaxResponseTokens),
		Temperature:       helpers.ToPtr(DefaultTemperature),
		Stop:              []string{},
		APIKeys:           map[string]string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// Model returns the configured engine or the provider's default model.
func (s *ChatSettings) Model() string {
	if s.Engine != nil && *s.Engine != "" {
		return *s.Engine
	}
	if s.ApiType != nil && *s.ApiType == types.ApiTypeOpenAI {
		return DefaultOpenAIModel
	}
	return DefaultClaudeModel
}

// Provider returns the configured api type, claude when unset.
func (s *ChatSettings) Provider() types.ApiType {
	if s.ApiType == nil || *s.ApiType == "" {
		return types.ApiTypeClaude
	}
	return *s.ApiType
}
