// Package generation owns the generation session state machine and allows at
// most one request to the generation service at a time.
package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zproposal/internal/llm"
	"zproposal/internal/logging"
)

// State of a generation session.
type State string

const (
	Idle      State = "idle"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// ErrBusy is returned when a generation is already running.
var ErrBusy = errors.New("a generation is already in progress")

// Session is a snapshot of one generation attempt.
type Session struct {
	ID         string    `json:"id,omitempty"`
	State      State     `json:"state"`
	Artifact   string    `json:"artifact,omitempty"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Generator runs prompts through a Completer, one at a time.
type Generator struct {
	completer llm.Completer
	logger    *logging.Logger
	onChange  func(Session)
	now       func() time.Time

	mu      sync.Mutex
	current Session
}

// NewGenerator creates an idle generator. onChange, if non-nil, is called
// after every state transition with a copy of the session.
func NewGenerator(completer llm.Completer, logger *logging.Logger, onChange func(Session)) *Generator {
	return &Generator{
		completer: completer,
		logger:    logger,
		onChange:  onChange,
		now:       time.Now,
		current:   Session{State: Idle},
	}
}

// Generate sends prompt to the service and blocks until it answers.
// A blank credential returns llm.ErrNoCredential without starting a session.
// If a session is already running it returns ErrBusy and the running session.
// On a service failure the returned session is Failed and err is the cause.
func (g *Generator) Generate(ctx context.Context, prompt, credential string) (Session, error) {
	if strings.TrimSpace(credential) == "" {
		return g.Current(), llm.ErrNoCredential
	}

	g.mu.Lock()
	if g.current.State == Running {
		running := g.current
		g.mu.Unlock()
		return running, ErrBusy
	}
	session := Session{
		ID:        uuid.NewString(),
		State:     Running,
		StartedAt: g.now(),
	}
	g.current = session
	g.mu.Unlock()
	g.notify(session)

	log := g.logger.WithContext("session", session.ID)
	log.Info("generation started")

	artifact, err := g.completer.Complete(ctx, credential, prompt)

	session.FinishedAt = g.now()
	if err != nil {
		session.State = Failed
		session.Message = err.Error()
		log.Error("generation failed: %v", err)
	} else {
		session.State = Succeeded
		session.Artifact = artifact
		log.WithFields(map[string]interface{}{
			"bytes":    len(artifact),
			"duration": session.FinishedAt.Sub(session.StartedAt).String(),
		}).Info("generation succeeded")
	}

	g.mu.Lock()
	g.current = session
	g.mu.Unlock()
	g.notify(session)

	return session, err
}

// Current returns a copy of the latest session.
func (g *Generator) Current() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Busy reports whether a generation is running.
func (g *Generator) Busy() bool {
	return g.Current().State == Running
}

func (g *Generator) notify(s Session) {
	if g.onChange != nil {
		g.onChange(s)
	}
}
