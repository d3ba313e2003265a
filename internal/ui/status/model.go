// Package status is the live sync indicator shown by `tasksync status`.
package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tasksync/internal/keys"
	"github.com/nhle/tasksync/internal/model"
	tasksync "github.com/nhle/tasksync/internal/sync"
	"github.com/nhle/tasksync/internal/theme"
	"github.com/nhle/tasksync/internal/ui"
)

// onlinePollInterval is how often the view re-reads connectivity.
const onlinePollInterval = time.Second

// Syncer is the part of the engine the view drives.
type Syncer interface {
	Status() tasksync.Status
	Online() bool
	TriggerSync(ctx context.Context) (tasksync.Status, bool)
	SyncTasksFromServer(ctx context.Context, userID string) ([]model.Task, error)
}

// StatusMsg carries a snapshot from the engine's update stream.
type StatusMsg tasksync.Status

type updatesClosedMsg struct{}

type tickMsg time.Time

type syncDoneMsg struct {
	ran bool
}

type pullDoneMsg struct {
	count int
	err   error
}

// Model is the Bubble Tea model for the status view.
type Model struct {
	ctx     context.Context
	syncer  Syncer
	updates <-chan tasksync.Status

	keys    *keys.KeyMap
	help    help.Model
	spinner spinner.Model

	status tasksync.Status
	online bool
	note   string
	width  int
}

// New creates the status view. updates is usually Engine.Updates(ctx).
func New(ctx context.Context, syncer Syncer, updates <-chan tasksync.Status) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		ctx:     ctx,
		syncer:  syncer,
		updates: updates,
		keys:    keys.DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		status:  syncer.Status(),
		online:  syncer.Online(),
	}
}

// Init starts the spinner, the update subscription and connectivity polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForStatus(m.updates), tick())
}

// waitForStatus returns a tea.Cmd that blocks on the next snapshot.
func waitForStatus(ch <-chan tasksync.Status) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return StatusMsg(s)
	}
}

func tick() tea.Cmd {
	return tea.Tick(onlinePollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages for the status view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Sync):
			m.note = ""
			return m, m.triggerSync()
		case key.Matches(msg, m.keys.Pull):
			m.note = "refreshing tasks..."
			return m, m.pull()
		}
		return m, nil

	case StatusMsg:
		m.status = tasksync.Status(msg)
		return m, waitForStatus(m.updates)

	case updatesClosedMsg:
		return m, tea.Quit

	case tickMsg:
		m.online = m.syncer.Online()
		return m, tick()

	case syncDoneMsg:
		m.status = m.syncer.Status()
		if !msg.ran {
			if m.online {
				m.note = "a sync is already running"
			} else {
				m.note = "offline: changes stay queued"
			}
		}
		return m, nil

	case pullDoneMsg:
		switch {
		case msg.err != nil:
			m.note = fmt.Sprintf("showing %d cached tasks: %v", msg.count, msg.err)
		default:
			m.note = fmt.Sprintf("refreshed %d tasks", msg.count)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) triggerSync() tea.Cmd {
	ctx, syncer := m.ctx, m.syncer
	return func() tea.Msg {
		_, ran := syncer.TriggerSync(ctx)
		return syncDoneMsg{ran: ran}
	}
}

func (m Model) pull() tea.Cmd {
	ctx, syncer := m.ctx, m.syncer
	return func() tea.Msg {
		tasks, err := syncer.SyncTasksFromServer(ctx, "")
		return pullDoneMsg{count: len(tasks), err: err}
	}
}

// stateLabel names the state shown in the header.
func (m Model) stateLabel() string {
	if !m.online {
		return "offline"
	}
	return m.status.State.String()
}

// View renders the status panel.
func (m Model) View() string {
	frame := ui.Frame{Width: m.width}

	state := m.stateLabel()
	indicator := theme.StateStyle(state).Render(state)
	if m.status.IsSyncing {
		indicator = m.spinner.View() + " " + indicator
	}

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(theme.LabelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("Pending", fmt.Sprintf("%d", m.status.PendingCount))
	row("Synced", fmt.Sprintf("%d", m.status.SuccessCount))
	row("Dropped", fmt.Sprintf("%d", m.status.FailedCount))
	row("Last sync", formatLastSync(m.status.LastSyncTime))
	if m.status.Error != "" {
		row("Error", theme.ErrorStyle.Render(m.status.Error))
	}

	note := ""
	if m.note != "" {
		note = theme.HelpStyle.Render(m.note)
	}

	return frame.Compose(
		frame.Header("tasksync", indicator),
		theme.PanelStyle.Render(strings.TrimRight(b.String(), "\n")),
		note,
		m.help.View(m.keys),
	) + "\n"
}

func formatLastSync(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
