package workspace

import (
	"errors"
	"fmt"
)

// Kind classifies a failed action so callers can report it distinctly.
type Kind string

const (
	KindInput     Kind = "input"
	KindStorage   Kind = "storage"
	KindBusy      Kind = "busy"
	KindService   Kind = "service"
	KindClipboard Kind = "clipboard"
	KindNotFound  Kind = "not_found"
)

// Error is returned by every Workspace action that fails.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Message is the user-facing text: the underlying cause without the op prefix.
func (e *Error) Message() string {
	return e.Err.Error()
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when it is not a workspace error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
