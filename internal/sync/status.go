package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/tasksync/internal/logging"
)

// SyncState represents the current state of the drain loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "syncing"
	case SyncError:
		return "error"
	}
	return fmt.Sprintf("SyncState(%d)", int(s))
}

// Status is the snapshot handed to subscribers after every state change.
type Status struct {
	State     SyncState
	IsSyncing bool

	// LastSyncTime is zero until the first completed pass.
	LastSyncTime time.Time

	PendingCount int

	// FailedCount and SuccessCount are per pass.
	FailedCount  int
	SuccessCount int

	// Error is empty unless the last pass had failures.
	Error string
}

// Broadcaster fans Status snapshots out to subscribers.
type Broadcaster struct {
	logger *log.Logger

	mu     gosync.Mutex
	nextID int
	subs   map[int]func(Status)
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Broadcaster{
		logger: logger.With("component", "status"),
		subs:   make(map[int]func(Status)),
	}
}

// Subscribe registers fn and returns a handle that removes it. Calling the
// handle more than once is harmless.
func (b *Broadcaster) Subscribe(fn func(Status)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Len returns the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish calls every subscriber with s. A subscriber that panics is logged
// and skipped.
func (b *Broadcaster) Publish(s Status) {
	b.mu.Lock()
	fns := make([]func(Status), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		b.deliver(fn, s)
	}
}

func (b *Broadcaster) deliver(fn func(Status), s Status) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("status subscriber panicked", "panic", r)
		}
	}()
	fn(s)
}

// Updates returns a channel that receives every published Status until ctx
// ends, at which point the channel is closed. Snapshots are dropped while
// the buffer is full.
func (b *Broadcaster) Updates(ctx context.Context) <-chan Status {
	ch := make(chan Status, 16)

	var mu gosync.Mutex
	closed := false

	unsubscribe := b.Subscribe(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- s:
		default:
			// Drop if channel is full to avoid blocking the publisher
		}
	})

	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch
}
