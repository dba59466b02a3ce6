package logging

import (
	"bytes"
	"testing"
)

func TestMultiWriterRouting(t *testing.T) {
	t.Run("debug disabled writes everything to console", func(t *testing.T) {
		var console, file bytes.Buffer
		mw := NewMultiWriter(&console, &file, false)

		mw.Write([]byte("[2026-01-01 00:00:00] INFO [x] a.go:1 f msg\n"))

		if console.Len() == 0 || file.Len() != 0 {
			t.Errorf("console=%q file=%q", console.String(), file.String())
		}
	})

	t.Run("info goes to file only", func(t *testing.T) {
		var console, file bytes.Buffer
		mw := NewMultiWriter(&console, &file, true)

		mw.Write([]byte("[2026-01-01 00:00:00] INFO [x] a.go:1 f msg\n"))

		if console.Len() != 0 || file.Len() == 0 {
			t.Errorf("console=%q file=%q", console.String(), file.String())
		}
	})

	t.Run("error goes to both", func(t *testing.T) {
		var console, file bytes.Buffer
		mw := NewMultiWriter(&console, &file, true)

		mw.Write([]byte("[2026-01-01 00:00:00] ERROR [x] a.go:1 f msg\n"))

		if console.Len() == 0 || file.Len() == 0 {
			t.Errorf("console=%q file=%q", console.String(), file.String())
		}
	})
}

func TestExtractLevel(t *testing.T) {
	if got := extractLevel([]byte("[2026-01-01 00:00:00] WARN [c] x")); got != "WARN" {
		t.Errorf("extractLevel = %q", got)
	}
	if got := extractLevel([]byte("garbage")); got != "" {
		t.Errorf("extractLevel = %q, want empty", got)
	}
}
