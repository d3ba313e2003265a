// Package logging wires the structured logger shared by every component.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger creates a [log.Logger] writing to w with timestamps enabled.
//
// The writer defaults to [os.Stderr].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true})
}

// Discard returns a logger that drops everything. Used as the fallback
// when a component is built without one.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel maps a config string onto a [log.Level], defaulting to info.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// With creates a child logger carrying the given key-value pairs.
func With(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}
