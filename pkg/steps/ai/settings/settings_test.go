package settings

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/librarian/pkg/steps/ai/types"
)

func TestNewStepSettingsDefaults(t *testing.T) {
	s := NewStepSettings()
	assert.Equal(t, types.ApiTypeClaude, s.Chat.Provider())
	assert.Equal(t, DefaultClaudeModel, s.Chat.Model())
	assert.Equal(t, 1024, *s.Chat.MaxResponseTokens)
	assert.Equal(t, 0.1, *s.Chat.Temperature)
	assert.Equal(t, 60*time.Second, *s.Client.Timeout)
	assert.Equal(t, 2, *s.Client.RetryMax)
	assert.Equal(t, "https://api.anthropic.com", s.Claude.GetBaseURL())
}

func TestUpdateFromViper(t *testing.T) {
	v := viper.New()
	v.Set("provider", "openai")
	v.Set("max-tokens", 256)
	v.Set("openai-api-key", "sk-test")
	v.Set("model-timeout", "5s")
	v.Set("retry-backoff", "250ms")

	s := NewStepSettings()
	require.NoError(t, s.UpdateFromViper(v))
	assert.Equal(t, types.ApiTypeOpenAI, s.Chat.Provider())
	assert.Equal(t, DefaultOpenAIModel, s.Chat.Model())
	assert.Equal(t, 256, *s.Chat.MaxResponseTokens)
	assert.Equal(t, "sk-test", s.APIKey())
	assert.Equal(t, 5*time.Second, *s.Client.Timeout)
	assert.Equal(t, 5, *s.Client.TimeoutSeconds)
	assert.Equal(t, 250*time.Millisecond, *s.Client.RetryBackoff)

	v.Set("provider", "mistral")
	require.Error(t, s.UpdateFromViper(v))
}

func TestNewStepSettingsFromYAML(t *testing.T) {
	doc := `
factories:
  chat:
    api_type: openai
    engine: gpt-4o
  client:
    timeout: 30
    retry_backoff: 2s
  claude:
    api_key: abc
`
	s, err := NewStepSettingsFromYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", s.Chat.Model())
	assert.Equal(t, 30*time.Second, *s.Client.Timeout)
	assert.Equal(t, 2*time.Second, *s.Client.RetryBackoff)
	assert.Equal(t, "abc", *s.Claude.APIKey)
	// unset keys keep their defaults
	assert.Equal(t, 1024, *s.Chat.MaxResponseTokens)
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewStepSettings()
	c := s.Clone()
	*c.Chat.MaxResponseTokens = 10
	c.Chat.APIKeys["claude"] = "x"
	assert.Equal(t, 1024, *s.Chat.MaxResponseTokens)
	assert.Empty(t, s.Chat.APIKeys)

	md := s.GetMetadata()
	assert.Equal(t, "claude", md["ai-api-type"])
	assert.Equal(t, DefaultClaudeModel, md["ai-engine"])
}
