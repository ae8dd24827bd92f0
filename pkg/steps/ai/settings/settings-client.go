package settings

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"gopkg.in/yaml.v3"
)

type ClientSettings struct {
	Timeout        *time.Duration `yaml:"timeout,omitempty"`
	TimeoutSeconds *int           `yaml:"timeout_second,omitempty"`
	UserAgent      *string        `yaml:"user_agent,omitempty"`
	// RetryMax is the number of retries after a rate limited or 5xx answer.
	RetryMax     *int           `yaml:"retry_max,omitempty"`
	RetryBackoff *time.Duration `yaml:"retry_backoff,omitempty"`
	HTTPClient   *http.Client   `yaml:"-" json:"-"`
}

// UnmarshalYAML reads timeout as seconds and retry_backoff as a duration string.
func (cs *ClientSettings) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Timeout      *int    `yaml:"timeout,omitempty"`
		UserAgent    *string `yaml:"user_agent,omitempty"`
		RetryMax     *int    `yaml:"retry_max,omitempty"`
		RetryBackoff *string `yaml:"retry_backoff,omitempty"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Timeout != nil {
		t := time.Duration(*aux.Timeout) * time.Second
		cs.Timeout = &t
		cs.TimeoutSeconds = aux.Timeout
	}
	if aux.UserAgent != nil {
		cs.UserAgent = aux.UserAgent
	}
	if aux.RetryMax != nil {
		cs.RetryMax = aux.RetryMax
	}
	if aux.RetryBackoff != nil {
		d, err := time.ParseDuration(*aux.RetryBackoff)
		if err != nil {
			return err
		}
		cs.RetryBackoff = &d
	}
	return nil
}

func (cs *ClientSettings) Clone() *ClientSettings {
	// the http client is shared, not copied
	cp := *cs
	cp.HTTPClient = nil
	ret := clone.Clone(&cp).(*ClientSettings)
	ret.HTTPClient = cs.HTTPClient
	return ret
}

func NewClientSettings() *ClientSettings {
	defaultTimeout := 60 * time.Second
	retryMax := 2
	backoff := time.Second
	return &ClientSettings{
		Timeout: &defaultTimeout,
		TimeoutSeconds: func() *int {
			i := int(defaultTimeout.Seconds())
			return &i
		}(),
		RetryMax:     &retryMax,
		RetryBackoff: &backoff,
	}
}
