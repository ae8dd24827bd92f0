package claude

import (
	"github.com/huandu/go-clone"
)

const DefaultBaseURL = "https://api.anthropic.com"

type Settings struct {
	TopK    *int    `yaml:"top_k,omitempty"`
	UserID  *string `yaml:"user_id,omitempty"`
	BaseURL *string `yaml:"base_url,omitempty"`
	APIKey  *string `yaml:"api_key,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// GetBaseURL returns the configured base url or the public API endpoint.
func (s *Settings) GetBaseURL() string {
	if s != nil && s.BaseURL != nil && *s.BaseURL != "" {
		return *s.BaseURL
	}
	return DefaultBaseURL
}
