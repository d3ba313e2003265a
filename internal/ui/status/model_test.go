package status

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tasksync/internal/model"
	tasksync "github.com/nhle/tasksync/internal/sync"
)

type fakeSyncer struct {
	status   tasksync.Status
	online   bool
	triggers int
	pullErr  error
}

func (f *fakeSyncer) Status() tasksync.Status { return f.status }
func (f *fakeSyncer) Online() bool            { return f.online }

func (f *fakeSyncer) TriggerSync(context.Context) (tasksync.Status, bool) {
	if !f.online {
		return f.status, false
	}
	f.triggers++
	f.status.SuccessCount = 2
	return f.status, true
}

func (f *fakeSyncer) SyncTasksFromServer(context.Context, string) ([]model.Task, error) {
	return []model.Task{{ID: 1}, {ID: 2}, {ID: 3}}, f.pullErr
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewShowsCounts(t *testing.T) {
	syncer := &fakeSyncer{online: true, status: tasksync.Status{
		PendingCount: 4,
		FailedCount:  1,
		Error:        "server unavailable",
		State:        tasksync.SyncError,
		LastSyncTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}}
	m := New(context.Background(), syncer, make(chan tasksync.Status))

	view := m.View()
	for _, want := range []string{"Pending", "4", "Dropped", "server unavailable", "error"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestOfflineLabel(t *testing.T) {
	m := New(context.Background(), &fakeSyncer{}, make(chan tasksync.Status))
	if !strings.Contains(m.View(), "offline") {
		t.Errorf("view should report offline:\n%s", m.View())
	}
	if !strings.Contains(m.View(), "never") {
		t.Error("zero LastSyncTime should render as never")
	}
}

func TestSyncKeyTriggersPass(t *testing.T) {
	syncer := &fakeSyncer{online: true}
	m := New(context.Background(), syncer, make(chan tasksync.Status))

	next, cmd := m.Update(runes("s"))
	if cmd == nil {
		t.Fatal("s should return a command")
	}
	msg := cmd()
	if syncer.triggers != 1 {
		t.Fatalf("triggers = %d, want 1", syncer.triggers)
	}

	next, _ = next.Update(msg)
	if got := next.(Model).status.SuccessCount; got != 2 {
		t.Errorf("SuccessCount = %d, want 2", got)
	}
}

func TestSyncKeyOffline(t *testing.T) {
	syncer := &fakeSyncer{}
	m := New(context.Background(), syncer, make(chan tasksync.Status))

	next, cmd := m.Update(runes("s"))
	next, _ = next.Update(cmd())

	if !strings.Contains(next.(Model).note, "offline") {
		t.Errorf("note = %q", next.(Model).note)
	}
}

func TestPullReportsStaleCache(t *testing.T) {
	syncer := &fakeSyncer{online: true, pullErr: errors.New("boom")}
	m := New(context.Background(), syncer, make(chan tasksync.Status))

	next, cmd := m.Update(runes("r"))
	next, _ = next.Update(cmd())

	note := next.(Model).note
	if !strings.Contains(note, "3 cached") || !strings.Contains(note, "boom") {
		t.Errorf("note = %q", note)
	}
}

func TestStatusStream(t *testing.T) {
	ch := make(chan tasksync.Status, 1)
	m := New(context.Background(), &fakeSyncer{online: true}, ch)

	ch <- tasksync.Status{IsSyncing: true, State: tasksync.SyncRunning, PendingCount: 7}
	msg := waitForStatus(ch)()

	next, cmd := m.Update(msg)
	if cmd == nil {
		t.Error("a status message should re-arm the subscription")
	}
	got := next.(Model)
	if !got.status.IsSyncing || got.status.PendingCount != 7 {
		t.Errorf("status = %+v", got.status)
	}
	if !strings.Contains(got.View(), "syncing") {
		t.Errorf("view should show syncing:\n%s", got.View())
	}

	close(ch)
	if _, ok := waitForStatus(ch)().(updatesClosedMsg); !ok {
		t.Error("closed stream should yield updatesClosedMsg")
	}
}

func TestQuitKey(t *testing.T) {
	m := New(context.Background(), &fakeSyncer{}, make(chan tasksync.Status))

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
