package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tt := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"WARN", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"", log.InfoLevel},
		{"chatty", log.InfoLevel},
	}

	for _, tc := range tt {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := With(NewLogger(&buf), "component", "sync")
	l.Info("pass finished")

	out := buf.String()
	if !strings.Contains(out, "pass finished") || !strings.Contains(out, "component=sync") {
		t.Errorf("unexpected log output: %q", out)
	}
}
