package workspace

import "zproposal/internal/generation"

// Event types emitted to the Notifier.
const (
	EventDocumentsChanged    = "documents.changed"
	EventSelectionChanged    = "selection.changed"
	EventGenerationRunning   = "generation.running"
	EventGenerationSucceeded = "generation.succeeded"
	EventGenerationFailed    = "generation.failed"
	EventResultCleared       = "result.cleared"
)

// Event is a state change worth pushing to connected clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Notifier receives events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

func generationEvent(s generation.Session) Event {
	switch s.State {
	case generation.Running:
		return Event{Type: EventGenerationRunning, Data: s}
	case generation.Succeeded:
		return Event{Type: EventGenerationSucceeded, Data: s}
	default:
		return Event{Type: EventGenerationFailed, Data: s}
	}
}
