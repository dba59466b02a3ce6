package logging

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// OutputConfig describes where log lines go.
type OutputConfig struct {
	DebugEnabled bool
	File         string
	MaxSizeMB    int
	MaxBackups   int
}

// NewOutput builds the process log writer. With debug file logging disabled
// everything goes to the console. Otherwise the file receives every line and
// the console only WARN and ERROR. The returned closer releases the file.
func NewOutput(cfg OutputConfig, console io.Writer) (io.Writer, io.Closer) {
	if console == nil {
		console = os.Stdout
	}
	if !cfg.DebugEnabled || cfg.File == "" {
		return console, io.NopCloser(nil)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   false,
	}
	return NewMultiWriter(console, file, true), file
}

// MultiWriter routes formatted log lines by level.
type MultiWriter struct {
	console      io.Writer
	file         io.Writer
	debugEnabled bool
}

func NewMultiWriter(console, file io.Writer, debugEnabled bool) *MultiWriter {
	return &MultiWriter{console: console, file: file, debugEnabled: debugEnabled}
}

func (m *MultiWriter) Write(p []byte) (int, error) {
	if !m.debugEnabled {
		return m.console.Write(p)
	}

	level := extractLevel(p)
	n, fileErr := m.file.Write(p)
	if level == "WARN" || level == "ERROR" {
		if _, err := m.console.Write(p); err != nil && fileErr == nil {
			return len(p), err
		}
	}
	if fileErr != nil {
		return n, fileErr
	}
	return len(p), nil
}

// extractLevel reads LEVEL out of "[ts] LEVEL [component] ...".
func extractLevel(p []byte) string {
	i := bytes.Index(p, []byte("] "))
	if i < 0 {
		return ""
	}
	rest := p[i+2:]
	j := bytes.IndexByte(rest, ' ')
	if j < 0 {
		return ""
	}
	return string(rest[:j])
}
