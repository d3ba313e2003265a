package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)

	var calls atomic.Int32
	unsubscribe := b.Subscribe(func(Status) { calls.Add(1) })

	b.Publish(Status{PendingCount: 1})
	unsubscribe()
	unsubscribe()
	b.Publish(Status{PendingCount: 2})

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d after unsubscribe", b.Len())
	}
}

func TestPublishRecoversFromPanics(t *testing.T) {
	b := NewBroadcaster(nil)

	var got atomic.Int32
	b.Subscribe(func(Status) { panic("subscriber bug") })
	b.Subscribe(func(s Status) { got.Store(int32(s.SuccessCount)) })

	b.Publish(Status{SuccessCount: 3})

	if got.Load() != 3 {
		t.Errorf("healthy subscriber saw %d, want 3", got.Load())
	}
}

func TestUpdatesClosesWithContext(t *testing.T) {
	b := NewBroadcaster(nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch := b.Updates(ctx)
	b.Publish(Status{State: SyncRunning, IsSyncing: true})

	select {
	case s := <-ch:
		if !s.IsSyncing {
			t.Errorf("got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected value after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Publishing after close must not panic.
	b.Publish(Status{})
}

func TestUpdatesDropsWhenFull(t *testing.T) {
	b := NewBroadcaster(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := b.Updates(ctx)
	for i := 0; i < 100; i++ {
		b.Publish(Status{PendingCount: i})
	}

	if len(ch) != cap(ch) {
		t.Errorf("buffered %d of %d", len(ch), cap(ch))
	}
	if s := <-ch; s.PendingCount != 0 {
		t.Errorf("first buffered = %d, want 0", s.PendingCount)
	}
}

func TestSyncStateString(t *testing.T) {
	tt := []struct {
		state SyncState
		want  string
	}{
		{SyncIdle, "idle"},
		{SyncRunning, "syncing"},
		{SyncError, "error"},
		{SyncState(9), "SyncState(9)"},
	}

	for _, tc := range tt {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", int(tc.state), got, tc.want)
		}
	}
}
