// Package llm talks to the hosted text-generation service.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Completer turns a single user prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
}

var (
	// ErrNoCredential is returned before any request when the API key is blank.
	ErrNoCredential = errors.New("no API key configured")

	// ErrInvalidResponse is returned when a 2xx body lacks the generated text.
	ErrInvalidResponse = errors.New("invalid response format")
)

// TransportError wraps a failure to reach the service at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response. Message is the service's own error
// message when it sent one.
type StatusError struct {
	StatusCode int
	Status     string // e.g. "401 Unauthorized"
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Status
}
