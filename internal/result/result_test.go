package result

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubClipboard(t *testing.T, fn func(string) error) {
	t.Helper()
	orig := clipboardWrite
	clipboardWrite = fn
	t.Cleanup(func() { clipboardWrite = orig })
}

func TestSetReplacesArtifact(t *testing.T) {
	m := NewManager()
	_, ok := m.Artifact()
	assert.False(t, ok)

	m.Set("first")
	m.Set("second")
	got, ok := m.Artifact()
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	m.Clear()
	_, ok = m.Artifact()
	assert.False(t, ok)
}

func TestExportAsFile(t *testing.T) {
	m := NewManager()
	_, _, _, err := m.ExportAsFile(time.Now())
	assert.ErrorIs(t, err, ErrNoArtifact)

	m.Set("Proposal body")
	name, content, mimeType, err := m.ExportAsFile(time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "proposal_2024-03-07.txt", name)
	assert.Equal(t, []byte("Proposal body"), content)
	assert.Equal(t, "text/plain; charset=utf-8", mimeType)
}

func TestCopyToClipboard(t *testing.T) {
	t.Run("no artifact", func(t *testing.T) {
		stubClipboard(t, func(string) error {
			t.Fatal("clipboard must not be touched")
			return nil
		})
		assert.ErrorIs(t, NewManager().CopyToClipboard(), ErrNoArtifact)
	})

	t.Run("success", func(t *testing.T) {
		var copied string
		stubClipboard(t, func(s string) error { copied = s; return nil })
		m := NewManager()
		m.Set("text")
		require.NoError(t, m.CopyToClipboard())
		assert.Equal(t, "text", copied)
	})

	t.Run("failure keeps artifact", func(t *testing.T) {
		denied := errors.New("permission denied")
		stubClipboard(t, func(string) error { return denied })
		m := NewManager()
		m.Set("text")

		err := m.CopyToClipboard()
		var ce *ClipboardError
		require.ErrorAs(t, err, &ce)
		assert.ErrorIs(t, err, denied)

		got, ok := m.Artifact()
		assert.True(t, ok)
		assert.Equal(t, "text", got)
	})
}
