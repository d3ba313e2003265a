package store

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nhle/tasksync/internal/logging"
	"github.com/nhle/tasksync/internal/model"
)

// Opener creates the underlying Store on first use.
type Opener func() (Store, error)

// Local is the client-side cache used by the sync engine and the CLI.
//
// The handle is opened lazily and cached for the lifetime of the Local;
// concurrent first callers wait on the same open. Storage errors never
// escape: they are logged and reported as false, nil, zero or an empty
// slice, so callers only branch on the sentinel.
type Local struct {
	open   Opener
	logger *log.Logger
	now    func() time.Time

	mu sync.Mutex
	db Store
}

// NewLocal returns a Local backed by a SQLite file at path.
func NewLocal(path string, logger *log.Logger) *Local {
	return NewLocalWithOpener(func() (Store, error) {
		return NewSQLiteStore(path)
	}, logger)
}

// NewLocalWithOpener returns a Local that obtains its Store from open.
func NewLocalWithOpener(open Opener, logger *log.Logger) *Local {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Local{
		open:   open,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
}

// SetClock overrides the time source used to stamp records.
func (l *Local) SetClock(now func() time.Time) {
	l.now = now
}

// handle returns the cached Store, opening it on first use. A failed open
// is not cached, so the next call tries again.
func (l *Local) handle() (Store, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return l.db, true
	}

	db, err := l.open()
	if err != nil {
		l.logger.Error("opening local store", "err", err)
		return nil, false
	}
	l.db = db
	return db, true
}

// Ready reports whether the store could be opened.
func (l *Local) Ready() bool {
	_, ok := l.handle()
	return ok
}

// Close releases the underlying handle if it was opened.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

func (l *Local) fail(op string, err error, kv ...any) {
	l.logger.Error(op, append(kv, "err", err)...)
}

// === Tasks ===

// Put upserts a single task.
func (l *Local) Put(ctx context.Context, task model.Task) bool {
	return l.PutAll(ctx, []model.Task{task})
}

// PutAll upserts a batch of tasks by ID.
func (l *Local) PutAll(ctx context.Context, tasks []model.Task) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.UpsertTasks(ctx, tasks); err != nil {
		l.fail("saving tasks", err, "count", len(tasks))
		return false
	}
	return true
}

// ReplaceForUser swaps the cached tasks of userID for tasks.
func (l *Local) ReplaceForUser(ctx context.Context, userID string, tasks []model.Task) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.ReplaceUserTasks(ctx, userID, tasks); err != nil {
		l.fail("replacing tasks", err, "user", userID)
		return false
	}
	return true
}

// Get returns the cached task or nil when it is absent.
func (l *Local) Get(ctx context.Context, id int64) *model.Task {
	db, ok := l.handle()
	if !ok {
		return nil
	}
	task, err := db.GetTask(ctx, id)
	if err != nil {
		l.fail("reading task", err, "id", id)
		return nil
	}
	return task
}

// AllForUser returns the cached tasks owned by userID.
func (l *Local) AllForUser(ctx context.Context, userID string) []model.Task {
	db, ok := l.handle()
	if !ok {
		return []model.Task{}
	}
	tasks, err := db.GetTasksByUser(ctx, userID)
	if err != nil {
		l.fail("reading tasks", err, "user", userID)
		return []model.Task{}
	}
	if tasks == nil {
		return []model.Task{}
	}
	return tasks
}

// Delete removes a cached task; absent IDs still report success.
func (l *Local) Delete(ctx context.Context, id int64) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.DeleteTask(ctx, id); err != nil {
		l.fail("deleting task", err, "id", id)
		return false
	}
	return true
}

// ClearTasks wipes the task cache.
func (l *Local) ClearTasks(ctx context.Context) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.ClearTasks(ctx); err != nil {
		l.fail("clearing tasks", err)
		return false
	}
	return true
}

// === Pending operations ===

// Enqueue appends op to the pending log and returns its assigned ID, or 0
// if it could not be stored. The retry counter always starts at zero.
func (l *Local) Enqueue(ctx context.Context, op model.PendingOperation) int64 {
	db, ok := l.handle()
	if !ok {
		return 0
	}

	if op.ClientRef == "" {
		op.ClientRef = uuid.New().String()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = l.now().UTC()
	}
	op.RetryCount = 0

	id, err := db.InsertPending(ctx, op)
	if err != nil {
		l.fail("enqueuing operation", err, "type", op.Type)
		return 0
	}
	return id
}

// ListPending returns queued operations in enqueue order.
func (l *Local) ListPending(ctx context.Context) []model.PendingOperation {
	db, ok := l.handle()
	if !ok {
		return nil
	}
	ops, err := db.ListPending(ctx)
	if err != nil {
		l.fail("listing pending operations", err)
		return nil
	}
	return ops
}

// UpdatePending replaces a queued operation.
func (l *Local) UpdatePending(ctx context.Context, op model.PendingOperation) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.UpdatePending(ctx, op); err != nil {
		l.fail("updating pending operation", err, "id", op.ID)
		return false
	}
	return true
}

// Dequeue removes a queued operation.
func (l *Local) Dequeue(ctx context.Context, id int64) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.DeletePending(ctx, id); err != nil {
		l.fail("dequeuing operation", err, "id", id)
		return false
	}
	return true
}

// PendingCount returns the queue length, or 0 on error.
func (l *Local) PendingCount(ctx context.Context) int {
	db, ok := l.handle()
	if !ok {
		return 0
	}
	n, err := db.CountPending(ctx)
	if err != nil {
		l.fail("counting pending operations", err)
		return 0
	}
	return n
}

// ClearPending drops every queued operation.
func (l *Local) ClearPending(ctx context.Context) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.ClearPending(ctx); err != nil {
		l.fail("clearing pending operations", err)
		return false
	}
	return true
}

// === Metadata ===

// SetMeta stores a scalar under key, stamped with the current time.
func (l *Local) SetMeta(ctx context.Context, key string, value any) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	entry := model.MetaEntry{Key: key, Value: value, UpdatedAt: l.now().UTC()}
	if err := db.SetMeta(ctx, entry); err != nil {
		l.fail("writing metadata", err, "key", key)
		return false
	}
	return true
}

// GetMeta returns the entry for key, or nil when unset.
func (l *Local) GetMeta(ctx context.Context, key string) *model.MetaEntry {
	db, ok := l.handle()
	if !ok {
		return nil
	}
	entry, err := db.GetMeta(ctx, key)
	if err != nil {
		l.fail("reading metadata", err, "key", key)
		return nil
	}
	return entry
}

// MetaBool reads a boolean entry. ok is false when the key is unset or not
// a boolean.
func (l *Local) MetaBool(ctx context.Context, key string) (value bool, ok bool) {
	entry := l.GetMeta(ctx, key)
	if entry == nil {
		return false, false
	}
	value, ok = entry.Value.(bool)
	return value, ok
}

// MetaTime reads an RFC 3339 timestamp entry.
func (l *Local) MetaTime(ctx context.Context, key string) (time.Time, bool) {
	entry := l.GetMeta(ctx, key)
	if entry == nil {
		return time.Time{}, false
	}
	s, ok := entry.Value.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ClearMeta removes all metadata.
func (l *Local) ClearMeta(ctx context.Context) bool {
	db, ok := l.handle()
	if !ok {
		return false
	}
	if err := db.ClearMeta(ctx); err != nil {
		l.fail("clearing metadata", err)
		return false
	}
	return true
}

// Reset wipes all three collections.
func (l *Local) Reset(ctx context.Context) bool {
	tasks := l.ClearTasks(ctx)
	pending := l.ClearPending(ctx)
	meta := l.ClearMeta(ctx)
	return tasks && pending && meta
}
