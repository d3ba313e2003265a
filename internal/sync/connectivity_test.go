package sync

import (
	"bytes"
	"context"
	"errors"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/tasksync/internal/logging"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/tests/testutil"
)

type fakeProber struct {
	down atomic.Bool
}

func (p *fakeProber) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

type fakeTarget struct {
	mu      gosync.Mutex
	online  bool
	changes []bool
}

func (f *fakeTarget) Online() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeTarget) SetOnline(online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if online != f.online {
		f.changes = append(f.changes, online)
	}
	f.online = online
}

func (f *fakeTarget) history() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.changes...)
}

func TestMonitorCheck(t *testing.T) {
	prober := &fakeProber{}
	target := &fakeTarget{}
	m := NewMonitor(prober, target, time.Minute, nil)

	if !m.Check(context.Background()) || !target.Online() {
		t.Fatal("reachable server should mark the target online")
	}

	prober.down.Store(true)
	if m.Probe(context.Background()) {
		t.Error("Probe reported a down server as reachable")
	}
	if !target.Online() {
		t.Error("Probe must not change the target")
	}

	if m.Check(context.Background()) || target.Online() {
		t.Error("unreachable server should mark the target offline")
	}

	got := target.history()
	if len(got) != 2 || !got[0] || got[1] {
		t.Errorf("transitions = %v, want [true false]", got)
	}
}

func TestMonitorLoop(t *testing.T) {
	prober := &fakeProber{}
	target := &fakeTarget{}
	m := NewMonitor(prober, target, 5*time.Millisecond, nil)

	m.Start()
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !target.Online() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never marked the target online")
		}
		time.Sleep(2 * time.Millisecond)
	}

	m.Stop()
	m.Stop()

	prober.down.Store(true)
	time.Sleep(30 * time.Millisecond)
	if !target.Online() {
		t.Error("stopped monitor kept probing")
	}
}

func TestMonitorDrivesEngine(t *testing.T) {
	fake := &fakeAPI{}
	e, local := newTestEngine(t, fake, false)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if _, err := e.QueueOperation(ctx, model.NewDelete(id)); err != nil {
			t.Fatalf("QueueOperation: %v", err)
		}
	}

	m := NewMonitor(&fakeProber{}, e, time.Minute, nil)
	m.Check(ctx)

	if !e.Online() {
		t.Error("engine not online after a successful probe")
	}
	if local.PendingCount(ctx) != 0 || fake.callCount() != 2 {
		t.Errorf("pending = %d calls = %d after reconnect", local.PendingCount(ctx), fake.callCount())
	}
}

func TestReachabilityChangeLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf)

	e := New(Options{
		Store:  testutil.NewTestLocal(t),
		API:    &fakeAPI{},
		Logger: logger,
		UserID: "u1",
	})
	t.Cleanup(e.Close)

	m := NewMonitor(&fakeProber{}, e, time.Minute, logger)
	m.Check(context.Background())

	if n := strings.Count(buf.String(), "online=true"); n != 1 {
		t.Errorf("transition logged %d times, want 1:\n%s", n, buf.String())
	}
}
