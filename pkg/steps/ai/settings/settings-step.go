package settings

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/librarian/pkg/steps/ai/settings/claude"
	"github.com/go-go-golems/librarian/pkg/steps/ai/settings/openai"
	"github.com/go-go-golems/librarian/pkg/steps/ai/types"
)

type factoryConfigFileWrapper struct {
	Factories *StepSettings
}

// StepSettings groups everything needed to build a model backend.
type StepSettings struct {
	Chat   *ChatSettings    `yaml:"chat,omitempty"`
	OpenAI *openai.Settings `yaml:"openai,omitempty"`
	Client *ClientSettings  `yaml:"client,omitempty"`
	Claude *claude.Settings `yaml:"claude,omitempty"`
}

func NewStepSettings() *StepSettings {
	return &StepSettings{
		Chat:   NewChatSettings(),
		OpenAI: openai.NewSettings(),
		Client: NewClientSettings(),
		Claude: claude.NewSettings(),
	}
}

func NewStepSettingsFromYAML(s io.Reader) (*StepSettings, error) {
	settings_ := factoryConfigFileWrapper{
		Factories: NewStepSettings(),
	}
	if err := yaml.NewDecoder(s).Decode(&settings_); err != nil {
		return nil, err
	}

	return settings_.Factories, nil
}

// UpdateFromViper overrides settings with the keys set in v.
// Keys follow the CLI flag names: provider, model, max-tokens, temperature,
// anthropic-api-key, anthropic-base-url, openai-api-key, openai-base-url,
// model-timeout, retry-max, retry-backoff, fixture.
func (ss *StepSettings) UpdateFromViper(v *viper.Viper) error {
	if v == nil {
		v = viper.GetViper()
	}

	if v.IsSet("provider") {
		apiType := types.ApiType(strings.ToLower(v.GetString("provider")))
		if apiType == "anthropic" {
			apiType = types.ApiTypeClaude
		}
		if !apiType.Valid() {
			return errors.Errorf("unknown provider %q", apiType)
		}
		ss.Chat.ApiType = &apiType
	}
	setString(v, "model", &ss.Chat.Engine)
	if v.IsSet("max-tokens") {
		n := v.GetInt("max-tokens")
		ss.Chat.MaxResponseTokens = &n
	}
	if v.IsSet("temperature") {
		t := v.GetFloat64("temperature")
		ss.Chat.Temperature = &t
	}
	if v.IsSet("fixture") {
		ss.Chat.FixturePath = v.GetString("fixture")
	}

	setString(v, "anthropic-api-key", &ss.Claude.APIKey)
	setString(v, "anthropic-base-url", &ss.Claude.BaseURL)
	setString(v, "openai-api-key", &ss.OpenAI.APIKey)
	setString(v, "openai-base-url", &ss.OpenAI.BaseURL)

	if v.IsSet("model-timeout") {
		d := v.GetDuration("model-timeout")
		secs := int(d / time.Second)
		ss.Client.Timeout = &d
		ss.Client.TimeoutSeconds = &secs
	}
	if v.IsSet("retry-max") {
		n := v.GetInt("retry-max")
		ss.Client.RetryMax = &n
	}
	if v.IsSet("retry-backoff") {
		d := v.GetDuration("retry-backoff")
		ss.Client.RetryBackoff = &d
	}

	for provider, key := range map[types.ApiType]*string{
		types.ApiTypeClaude: ss.Claude.APIKey,
		types.ApiTypeOpenAI: ss.OpenAI.APIKey,
	} {
		if key != nil && *key != "" {
			ss.Chat.APIKeys[string(provider)] = *key
		}
	}
	return nil
}

func setString(v *viper.Viper, key string, dst **string) {
	if !v.IsSet(key) {
		return
	}
	s := v.GetString(key)
	if s == "" {
		return
	}
	*dst = &s
}

// APIKey returns the key configured for the selected provider.
func (ss *StepSettings) APIKey() string {
	switch ss.Chat.Provider() {
	case types.ApiTypeClaude, "anthropic":
		if ss.Claude != nil && ss.Claude.APIKey != nil && *ss.Claude.APIKey != "" {
			return *ss.Claude.APIKey
		}
	case types.ApiTypeOpenAI:
		if ss.OpenAI != nil && ss.OpenAI.APIKey != nil && *ss.OpenAI.APIKey != "" {
			return *ss.OpenAI.APIKey
		}
	case types.ApiTypeFixture:
		return ""
	}
	return ss.Chat.APIKeys[string(ss.Chat.Provider())]
}

func (ss *StepSettings) GetMetadata() map[string]interface{} {
	metadata := make(map[string]interface{})

	if ss.Chat != nil {
		metadata["ai-api-type"] = string(ss.Chat.Provider())
		metadata["ai-engine"] = ss.Chat.Model()
		if ss.Chat.MaxResponseTokens != nil {
			metadata["ai-max-response-tokens"] = *ss.Chat.MaxResponseTokens
		}
		if ss.Chat.TopP != nil && *ss.Chat.TopP != 1 {
			metadata["ai-top-p"] = *ss.Chat.TopP
		}
		if ss.Chat.Temperature != nil {
			metadata["ai-temperature"] = *ss.Chat.Temperature
		}
		if len(ss.Chat.Stop) > 0 {
			metadata["ai-stop"] = ss.Chat.Stop
		}
	}

	if ss.OpenAI != nil {
		if ss.OpenAI.PresencePenalty != nil && *ss.OpenAI.PresencePenalty != 0 {
			metadata["openai-presence-penalty"] = *ss.OpenAI.PresencePenalty
		}
		if ss.OpenAI.FrequencyPenalty != nil && *ss.OpenAI.FrequencyPenalty != 0 {
			metadata["openai-frequency-penalty"] = *ss.OpenAI.FrequencyPenalty
		}
		if ss.OpenAI.BaseURL != nil {
			metadata["openai-base-url"] = *ss.OpenAI.BaseURL
		}
	}

	if ss.Client != nil {
		if ss.Client.Timeout != nil {
			metadata["timeout"] = ss.Client.Timeout.String()
		}
		if ss.Client.RetryMax != nil {
			metadata["retry-max"] = *ss.Client.RetryMax
		}
		if ss.Client.UserAgent != nil {
			metadata["user-agent"] = *ss.Client.UserAgent
		}
	}

	if ss.Claude != nil {
		if ss.Claude.TopK != nil && *ss.Claude.TopK != 1 {
			metadata["claude-top-k"] = *ss.Claude.TopK
		}
		if ss.Claude.UserID != nil && *ss.Claude.UserID != "" {
			metadata["claude-user-id"] = *ss.Claude.UserID
		}
		if ss.Claude.BaseURL != nil {
			metadata["claude-base-url"] = *ss.Claude.BaseURL
		}
	}

	return metadata
}

func (ss *StepSettings) Clone() *StepSettings {
	return &StepSettings{
		Chat:   ss.Chat.Clone(),
		OpenAI: ss.OpenAI.Clone(),
		Client: ss.Client.Clone(),
		Claude: ss.Claude.Clone(),
	}
}
