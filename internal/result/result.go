// Package result keeps the most recent generated proposal and exports it.
package result

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// ExportMIMEType is the content type of an exported proposal.
const ExportMIMEType = "text/plain; charset=utf-8"

// ErrNoArtifact is returned by export actions when nothing has been generated.
var ErrNoArtifact = errors.New("no proposal has been generated")

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

// ClipboardError reports that the system clipboard refused the write.
type ClipboardError struct {
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("failed to copy to clipboard: %v", e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// Manager holds a single artifact. Setting a new one replaces the old.
type Manager struct {
	mu       sync.RWMutex
	artifact string
	has      bool
}

func NewManager() *Manager {
	return &Manager{}
}

// Set replaces the current artifact.
func (m *Manager) Set(artifact string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifact = artifact
	m.has = true
}

// Artifact returns the current artifact and whether there is one.
func (m *Manager) Artifact() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.artifact, m.has
}

// Clear drops the artifact.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifact = ""
	m.has = false
}

// ExportAsFile returns the artifact as a download named for the date of now.
func (m *Manager) ExportAsFile(now time.Time) (filename string, content []byte, mimeType string, err error) {
	artifact, ok := m.Artifact()
	if !ok {
		return "", nil, "", ErrNoArtifact
	}
	return Filename(now), []byte(artifact), ExportMIMEType, nil
}

// CopyToClipboard places the artifact on the system clipboard.
func (m *Manager) CopyToClipboard() error {
	artifact, ok := m.Artifact()
	if !ok {
		return ErrNoArtifact
	}
	if err := clipboardWrite(artifact); err != nil {
		return &ClipboardError{Err: err}
	}
	return nil
}

// Filename returns proposal_YYYY-MM-DD.txt for the local date of now.
func Filename(now time.Time) string {
	return "proposal_" + now.Format("2006-01-02") + ".txt"
}
