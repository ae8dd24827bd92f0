package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MessageRequest represents the Messages API request payload.
type MessageRequest struct {
	Model         string    `json:"model"`
	Messages      []Message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	Metadata      *Metadata `json:"metadata,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
	System        string    `json:"system,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Tools         []Tool    `json:"tools,omitempty"`
	TopK          *int      `json:"top_k,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
}

// Metadata represents the metadata object for Claude API requests.
type Metadata struct {
	UserID string `json:"user_id,omitempty"`
}

// Tool represents a tool that the model can use.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var aux struct {
		Role    string            `json:"role"`
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	content, err := decodeContents(aux.Content)
	if err != nil {
		return err
	}
	m.Role = aux.Role
	m.Content = content
	return nil
}

// MessageResponse represents the Messages API response payload.
type MessageResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Role         string    `json:"role"`
	Content      []Content `json:"content"`
	Model        string    `json:"model"`
	StopReason   string    `json:"stop_reason,omitempty"`
	StopSequence string    `json:"stop_sequence,omitempty"`
	Usage        Usage     `json:"usage"`
}

func (r *MessageResponse) UnmarshalJSON(b []byte) error {
	type Alias MessageResponse
	aux := struct {
		*Alias
		Content []json.RawMessage `json:"content"`
	}{Alias: (*Alias)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	content, err := decodeContents(aux.Content)
	if err != nil {
		return err
	}
	r.Content = content
	return nil
}

// Usage represents the billing and rate-limit usage information.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Type  string      `json:"type"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatusError is a non-200 answer of the API.
type StatusError struct {
	StatusCode int
	Type       string
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("claude api error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
}

// Retryable reports rate limits, overload and server errors.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryConfig controls retries of rate limited and failed requests.
type RetryConfig struct {
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BackoffBase: time.Second, BackoffFactor: 2}
}

// Backoff returns the wait before retry number attempt (0-based).
func (rc RetryConfig) Backoff(attempt int) time.Duration {
	factor := rc.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(rc.BackoffBase) * math.Pow(factor, float64(attempt)))
}

// Client represents the Claude API client.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
	Retry      RetryConfig
}

const defaultAPIVersion = "2023-06-01"

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithRetry(rc RetryConfig) ClientOption {
	return func(cl *Client) { cl.Retry = rc }
}

func WithAPIVersion(v string) ClientOption {
	return func(cl *Client) { cl.APIVersion = v }
}

// NewClient initializes and returns a new API client.
func NewClient(apiKey string, baseURL string, options ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		APIVersion: defaultAPIVersion,
		Retry:      DefaultRetryConfig(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// Helper function to set necessary headers
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// SendMessage posts a non-streaming Messages API request, retrying rate limits and server errors.
func (c *Client) SendMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal message request")
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.send(ctx, body)
		if err == nil {
			return resp, nil
		}

		var se *StatusError
		if !errors.As(err, &se) || !se.Retryable() || attempt >= c.Retry.MaxRetries {
			return nil, err
		}
		wait := c.Retry.Backoff(attempt)
		if se.RetryAfter > wait {
			wait = se.RetryAfter
		}
		log.Warn().Int("status", se.StatusCode).Int("attempt", attempt+1).Dur("wait", wait).Msg("claude api: retrying request")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) send(ctx context.Context, body []byte) (*MessageResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		se := &StatusError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var errorResp ErrorResponse
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error.Message != "" {
			se.Type = errorResp.Error.Type
			se.Message = errorResp.Error.Message
		}
		if s := resp.Header.Get("retry-after"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				se.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, se
	}

	var msg MessageResponse
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, errors.Wrap(err, "decode message response")
	}
	return &msg, nil
}
