package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/nhle/tasksync/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestLocal creates a Local cache over a fresh in-memory database.
func NewTestLocal(t *testing.T) *store.Local {
	t.Helper()

	l := store.NewLocalWithOpener(func() (store.Store, error) {
		return store.NewSQLiteStore(":memory:")
	}, nil)

	t.Cleanup(func() {
		if err := l.Close(); err != nil {
			t.Errorf("closing test local store: %v", err)
		}
	})

	return l
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
