package factory

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/librarian/pkg/inference/engine"
	"github.com/go-go-golems/librarian/pkg/inference/fixtures"
	"github.com/go-go-golems/librarian/pkg/steps/ai/claude"
	"github.com/go-go-golems/librarian/pkg/steps/ai/openai"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings"
	"github.com/go-go-golems/librarian/pkg/steps/ai/types"
)

// EngineFactory creates model backends based on provider settings.
// Callers stay unaware of the concrete provider implementation.
type EngineFactory interface {
	// CreateEngine creates an Engine instance based on the provided settings.
	// The actual provider is determined from settings.Chat.ApiType.
	CreateEngine(settings *settings.StepSettings) (engine.Engine, error)

	// SupportedProviders returns a list of provider names this factory supports.
	SupportedProviders() []string

	// DefaultProvider returns the name of the default provider used when
	// settings.Chat.ApiType is nil or not specified.
	DefaultProvider() string
}

// StandardEngineFactory is the default implementation of EngineFactory.
type StandardEngineFactory struct{}

func NewStandardEngineFactory() *StandardEngineFactory {
	return &StandardEngineFactory{}
}

var _ EngineFactory = (*StandardEngineFactory)(nil)

// CreateEngine creates an Engine instance based on the provider specified in settings.Chat.ApiType.
// "anthropic" is accepted as an alias for claude.
func (f *StandardEngineFactory) CreateEngine(settings *settings.StepSettings) (engine.Engine, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}

	provider := f.DefaultProvider()
	if settings.Chat != nil && settings.Chat.ApiType != nil && *settings.Chat.ApiType != "" {
		provider = strings.ToLower(string(*settings.Chat.ApiType))
	}

	if err := f.validateSettings(settings, provider); err != nil {
		return nil, errors.Wrapf(err, "invalid settings for provider %s", provider)
	}

	switch provider {
	case string(types.ApiTypeOpenAI):
		return openai.NewOpenAIEngine(settings)

	case string(types.ApiTypeClaude), "anthropic":
		return claude.NewClaudeEngine(settings)

	case string(types.ApiTypeFixture):
		return fixtures.LoadScript(settings.Chat.FixturePath)

	default:
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s", provider, supported)
	}
}

// SupportedProviders returns the list of providers this factory can create engines for.
func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(types.ApiTypeClaude),
		"anthropic", // alias for claude
		string(types.ApiTypeOpenAI),
		string(types.ApiTypeFixture),
	}
}

// DefaultProvider returns the default provider name used when no ApiType is specified.
func (f *StandardEngineFactory) DefaultProvider() string {
	return string(types.ApiTypeClaude)
}

// validateSettings performs basic validation of settings for the specified provider.
func (f *StandardEngineFactory) validateSettings(settings *settings.StepSettings, provider string) error {
	if settings.Chat == nil {
		return errors.New("chat settings cannot be nil")
	}

	switch provider {
	case string(types.ApiTypeOpenAI):
		if settings.OpenAI == nil {
			return errors.New("openai settings cannot be nil")
		}
		if settings.APIKey() == "" {
			return errors.New("missing API key openai-api-key")
		}
	case string(types.ApiTypeClaude), "anthropic":
		if settings.Claude == nil || settings.Client == nil {
			return errors.New("claude settings cannot be nil")
		}
		if settings.APIKey() == "" {
			return errors.New("missing API key anthropic-api-key")
		}
	case string(types.ApiTypeFixture):
		if settings.Chat.FixturePath == "" {
			return errors.New("fixture provider needs a fixture file")
		}
	}
	return nil
}
