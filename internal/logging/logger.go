package logging

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level orders log severity from DEBUG to ERROR.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger writes structured, component-scoped log lines.
// Loggers derived with WithContext, WithFields or Named share the same output.
type Logger struct {
	level     Level
	component string
	out       *syncWriter
	context   map[string]interface{}
	formatter *LogFormatter
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// NewLogger creates a logger for a component. A nil output means stdout.
func NewLogger(component string, level Level, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{
		level:     level,
		component: component,
		out:       &syncWriter{w: output},
		formatter: NewLogFormatter(),
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewLogger("discard", ERROR+1, io.Discard)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Named returns a logger for another component that keeps the current fields.
func (l *Logger) Named(component string) *Logger {
	child := l.derive(nil)
	if child == nil {
		return nil
	}
	child.component = component
	return child
}

// WithContext returns a child logger carrying one extra field.
func (l *Logger) WithContext(key string, value interface{}) *Logger {
	return l.derive(map[string]interface{}{key: value})
}

// WithFields is WithContext for several fields at once.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.derive(fields)
}

func (l *Logger) derive(fields map[string]interface{}) *Logger {
	if l == nil {
		return nil
	}
	merged := maps.Clone(l.context)
	if merged == nil {
		merged = make(map[string]interface{}, len(fields))
	}
	maps.Copy(merged, fields)
	return &Logger{
		level:     l.level,
		component: l.component,
		out:       l.out,
		context:   merged,
		formatter: l.formatter,
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}

	// Skip log() and the level method.
	file, funcName, line := "unknown", "unknown", 0
	if pc, f, ln, ok := runtime.Caller(2); ok {
		file, line = filepath.Base(f), ln
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = filepath.Base(fn.Name())
		}
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Source:    SourceLocation{File: file, Line: line, Function: funcName},
		Message:   fmt.Sprintf(format, args...),
		Context:   l.context,
	}
	l.out.Write([]byte(l.formatter.Format(entry)))
}

// ParseLevel converts a string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}
