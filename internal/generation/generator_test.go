package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zproposal/internal/llm"
	"zproposal/internal/logging"
)

// mockCompleter is a test double for llm.Completer
type mockCompleter struct {
	mu      sync.Mutex
	calls   int
	result  string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (m *mockCompleter) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.started != nil {
		close(m.started)
	}
	if m.block != nil {
		<-m.block
	}
	return m.result, m.err
}

func (m *mockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestGenerateSuccess(t *testing.T) {
	mc := &mockCompleter{result: "Proposal body"}
	var states []State
	g := NewGenerator(mc, logging.Discard(), func(s Session) { states = append(states, s.State) })

	assert.Equal(t, Idle, g.Current().State)

	s, err := g.Generate(context.Background(), "prompt", "sk")
	require.NoError(t, err)
	assert.Equal(t, Succeeded, s.State)
	assert.Equal(t, "Proposal body", s.Artifact)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.FinishedAt.Before(s.StartedAt))
	assert.Equal(t, []State{Running, Succeeded}, states)
	assert.Equal(t, s, g.Current())
}

func TestGenerateFailure(t *testing.T) {
	mc := &mockCompleter{err: &llm.StatusError{StatusCode: 401, Status: "401 Unauthorized", Message: "invalid key"}}
	g := NewGenerator(mc, logging.Discard(), nil)

	s, err := g.Generate(context.Background(), "prompt", "sk")
	require.Error(t, err)
	assert.Equal(t, Failed, s.State)
	assert.Equal(t, "invalid key", s.Message)
	assert.Empty(t, s.Artifact)
	assert.False(t, g.Busy())
}

func TestGenerateWithoutCredential(t *testing.T) {
	mc := &mockCompleter{result: "x"}
	notified := false
	g := NewGenerator(mc, logging.Discard(), func(Session) { notified = true })

	_, err := g.Generate(context.Background(), "prompt", "  ")
	assert.ErrorIs(t, err, llm.ErrNoCredential)
	assert.Zero(t, mc.Calls())
	assert.False(t, notified)
	assert.Equal(t, Idle, g.Current().State)
}

func TestGenerateRejectsWhileRunning(t *testing.T) {
	mc := &mockCompleter{result: "done", block: make(chan struct{}), started: make(chan struct{})}
	g := NewGenerator(mc, logging.Discard(), nil)

	done := make(chan Session)
	go func() {
		s, _ := g.Generate(context.Background(), "first", "sk")
		done <- s
	}()

	select {
	case <-mc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first generation never started")
	}
	assert.True(t, g.Busy())

	running, err := g.Generate(context.Background(), "second", "sk")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, Running, running.State)

	close(mc.block)
	first := <-done
	assert.Equal(t, Succeeded, first.State)
	assert.Equal(t, 1, mc.Calls())
	assert.False(t, g.Busy())
}

func TestGenerateAfterFailureStartsNewSession(t *testing.T) {
	mc := &mockCompleter{err: errors.New("boom")}
	g := NewGenerator(mc, logging.Discard(), nil)

	first, _ := g.Generate(context.Background(), "p", "sk")
	mc.err, mc.result = nil, "ok"
	second, err := g.Generate(context.Background(), "p", "sk")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "ok", second.Artifact)
}
