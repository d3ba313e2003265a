package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestFrameHeaderFillsWidth(t *testing.T) {
	f := Frame{Width: 60}
	header := f.Header("tasksync", "idle")

	if got := lipgloss.Width(header); got != 60 {
		t.Errorf("header width = %d, want 60", got)
	}
	if !strings.Contains(header, "tasksync") || !strings.Contains(header, "idle") {
		t.Errorf("header = %q", header)
	}
}

func TestFrameHeaderNarrow(t *testing.T) {
	header := Frame{}.Header("tasksync", "offline")
	if !strings.Contains(header, "offline") {
		t.Errorf("header = %q", header)
	}
}

func TestFrameComposeSkipsEmpty(t *testing.T) {
	got := Frame{}.Compose("a", "", "b")
	if lines := strings.Split(got, "\n"); len(lines) != 2 {
		t.Errorf("Compose = %q, want two lines", got)
	}
}
