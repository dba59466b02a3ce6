package logging

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SourceLocation captures the source code location of a log call
type SourceLocation struct {
	File     string
	Line     int
	Function string
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Component string
	Source    SourceLocation
	Message   string
	Context   map[string]interface{}
}

// LogFormatter renders entries as single lines:
//
//	[YYYY-MM-DD HH:MM:SS] LEVEL [component] file.go:line function message key=value ...
//
// Context keys are written in sorted order.
type LogFormatter struct{}

func NewLogFormatter() *LogFormatter {
	return &LogFormatter{}
}

func (f *LogFormatter) Format(entry LogEntry) string {
	var sb strings.Builder

	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05"))
	sb.WriteString("] ")
	sb.WriteString(entry.Level.String())
	sb.WriteString(" [")
	sb.WriteString(entry.Component)
	sb.WriteString("] ")
	sb.WriteString(entry.Source.File)
	sb.WriteString(":")
	sb.WriteString(strconv.Itoa(entry.Source.Line))
	sb.WriteString(" ")
	sb.WriteString(entry.Source.Function)
	sb.WriteString(" ")
	sb.WriteString(sanitize(entry.Message))

	if len(entry.Context) > 0 {
		keys := make([]string, 0, len(entry.Context))
		for k := range entry.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(" ")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(sanitize(fmt.Sprintf("%v", entry.Context[k])))
		}
	}

	sb.WriteString("\n")
	return sb.String()
}

// sanitize replaces control characters other than tab so a message cannot forge log lines.
func sanitize(msg string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if r < 0x20 {
			return ' '
		}
		return r
	}, msg)
}
