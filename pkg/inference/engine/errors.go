package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrBackend is the root of every model backend failure.
var ErrBackend = errors.New("model backend error")

// BackendError describes a transport, auth or protocol failure of a model backend.
type BackendError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
	// Retryable is set for rate limits and server side errors.
	Retryable bool

	cause error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s backend error (status %d, %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s backend error: %s", e.Provider, e.Message)
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func (e *BackendError) Unwrap() error {
	return e.cause
}

// NewBackendError wraps a transport-level failure.
func NewBackendError(provider string, cause error) *BackendError {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &BackendError{Provider: provider, Message: msg, cause: cause}
}

// NewStatusError describes an HTTP error answer of a backend.
func NewStatusError(provider string, status int, typ, message string) *BackendError {
	return &BackendError{
		Provider:   provider,
		StatusCode: status,
		Type:       typ,
		Message:    message,
		Retryable:  status == 429 || status >= 500,
	}
}

// IsRetryable reports whether err is a backend error worth retrying.
func IsRetryable(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}
