package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tasksync/internal/theme"
)

// Frame lays out a single-screen view: a header bar, a body and a footer.
type Frame struct {
	Width int
}

// Header renders title on the left and status on the right, padded with
// the header background to the frame width. A zero width skips padding.
func (f Frame) Header(title string, status string) string {
	left := theme.HeaderStyle.Render(title)
	right := lipgloss.NewStyle().Padding(0, 1).Render(status)

	gap := f.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		lipgloss.NewStyle().Width(gap).Render(""),
		right,
	)
}

// Compose stacks header, body and footer, skipping empty parts.
func (f Frame) Compose(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, kept...)
}
