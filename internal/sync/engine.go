// Package sync replays queued task mutations against the server and reports
// progress to subscribers.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/logging"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/queue"
)

// DefaultInterval is the auto-sync period used when none is given.
const DefaultInterval = 30 * time.Second

// ErrOffline is returned alongside cached data when the server could not be
// asked.
var ErrOffline = errors.New("offline")

// API is the remote collaborator. Mutations report outcome through
// api.Result only.
type API interface {
	CreateTask(ctx context.Context, userID string, patch model.TaskPatch) api.Result
	UpdateTask(ctx context.Context, userID string, id int64, patch model.TaskPatch) api.Result
	DeleteTask(ctx context.Context, userID string, id int64) api.Result
	ToggleComplete(ctx context.Context, userID string, id int64) api.Result
	ListTasks(ctx context.Context, userID string) ([]model.Task, error)
}

// Cache is the local store as seen by the engine.
type Cache interface {
	queue.Backend

	Put(ctx context.Context, task model.Task) bool
	Delete(ctx context.Context, id int64) bool
	ReplaceForUser(ctx context.Context, userID string, tasks []model.Task) bool
	AllForUser(ctx context.Context, userID string) []model.Task

	SetMeta(ctx context.Context, key string, value any) bool
	MetaTime(ctx context.Context, key string) (time.Time, bool)
}

// Options holds the engine's collaborators.
type Options struct {
	Store Cache
	API   API

	// MaxRetries is the number of failed passes before an operation is
	// dropped. Zero means queue.DefaultMaxRetries.
	MaxRetries int

	// Clock defaults to time.Now.
	Clock func() time.Time

	Logger *log.Logger

	// UserID owns every replayed mutation.
	UserID string

	// Online is the initial connectivity state.
	Online bool
}

// Engine drains the pending-operation queue against the API.
//
// At most one drain pass runs at a time; a trigger that arrives while a
// pass is in progress is ignored, not deferred.
type Engine struct {
	cache       Cache
	api         API
	queue       *queue.Queue
	now         func() time.Time
	logger      *log.Logger
	broadcaster *Broadcaster

	ctx    context.Context
	cancel context.CancelFunc

	syncing atomic.Bool
	online  atomic.Bool

	mu      gosync.Mutex
	userID  string
	status  Status
	running bool
	stopCh  chan struct{}
	wg      gosync.WaitGroup
}

// New creates an Engine and loads the persisted pending count and last
// sync time.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cache:       opts.Store,
		api:         opts.API,
		queue:       queue.New(opts.Store, opts.MaxRetries),
		now:         now,
		logger:      logger.With("component", "sync"),
		broadcaster: NewBroadcaster(logger),
		ctx:         ctx,
		cancel:      cancel,
		userID:      opts.UserID,
	}
	e.online.Store(opts.Online)

	e.status = Status{State: SyncIdle, PendingCount: e.queue.Len(ctx)}
	if t, ok := opts.Store.MetaTime(ctx, model.MetaLastSyncTime); ok {
		e.status.LastSyncTime = t
	}
	return e
}

// Close stops auto-sync and cancels passes started by connectivity changes.
func (e *Engine) Close() {
	e.StopAutoSync()
	e.cancel()
}

// SetUser changes the owner used for subsequent dispatches.
func (e *Engine) SetUser(userID string) {
	e.mu.Lock()
	e.userID = userID
	e.mu.Unlock()
}

// User returns the current owner.
func (e *Engine) User() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Online reports the last known connectivity state.
func (e *Engine) Online() bool {
	return e.online.Load()
}

// SetOnline records connectivity. Going from offline to online runs a
// drain pass in the caller's goroutine.
func (e *Engine) SetOnline(online bool) {
	if e.online.Swap(online) == online {
		return
	}
	e.logger.Info("connectivity changed", "online", online)
	if online {
		e.TriggerSync(e.ctx)
	}
}

// Status returns the latest snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Subscribe registers fn for status updates and returns its unsubscribe
// handle.
func (e *Engine) Subscribe(fn func(Status)) func() {
	return e.broadcaster.Subscribe(fn)
}

// Updates streams status snapshots until ctx ends.
func (e *Engine) Updates(ctx context.Context) <-chan Status {
	return e.broadcaster.Updates(ctx)
}

// Pending lists the queued operations in replay order.
func (e *Engine) Pending(ctx context.Context) []model.PendingOperation {
	return e.queue.Pending(ctx)
}

// QueueOperation persists op and, when online, drains the queue right away.
func (e *Engine) QueueOperation(ctx context.Context, op model.PendingOperation) (int64, error) {
	id, err := e.queue.Push(ctx, op)
	if err != nil {
		return 0, fmt.Errorf("queueing %s operation: %w", op.Type, err)
	}

	e.cache.SetMeta(ctx, model.MetaHasPendingChanges, true)
	pending := e.queue.Len(ctx)
	e.broadcaster.Publish(e.setStatus(func(s *Status) {
		s.PendingCount = pending
	}))

	e.logger.Debug("operation queued", "id", id, "type", op.Type, "task", op.Target())

	if e.Online() {
		e.TriggerSync(ctx)
	}
	return id, nil
}

// TriggerSync runs one drain pass. ran is false when the engine is offline,
// no user is set, or a pass is already in progress; the queue is untouched
// in that case.
func (e *Engine) TriggerSync(ctx context.Context) (status Status, ran bool) {
	if !e.Online() {
		e.logger.Debug("offline, skipping sync")
		return e.Status(), false
	}
	if e.User() == "" {
		e.logger.Warn("no user configured, skipping sync")
		return e.Status(), false
	}
	if !e.syncing.CompareAndSwap(false, true) {
		e.logger.Debug("sync already in progress")
		return e.Status(), false
	}

	status = func() Status {
		defer e.syncing.Store(false)
		return e.drain(ctx)
	}()

	e.broadcaster.Publish(status)
	return status, true
}

// drain replays every queued operation once, in enqueue order. ctx is
// checked between dispatches, and a call that fails because ctx ended is
// left queued with its retry count unchanged. Bookkeeping after a dispatch
// always completes.
func (e *Engine) drain(ctx context.Context) Status {
	book := context.WithoutCancel(ctx)
	userID := e.User()

	pending := e.queue.Pending(book)
	e.broadcaster.Publish(e.setStatus(func(s *Status) {
		s.State = SyncRunning
		s.IsSyncing = true
		s.PendingCount = len(pending)
		s.SuccessCount = 0
		s.FailedCount = 0
		s.Error = ""
	}))

	e.logger.Info("sync started", "pending", len(pending))
	start := e.now()

	var (
		succeeded int
		failed    int
		attempted int
		lastErr   string
		canceled  error
	)

	for _, op := range pending {
		if err := ctx.Err(); err != nil {
			canceled = err
			break
		}
		attempted++

		res := e.dispatch(ctx, userID, op)
		if res.Success {
			e.queue.Ack(book, op.ID)
			e.applyResult(book, op, res)
			succeeded++
			continue
		}
		// An aborted call says nothing about the operation.
		if err := ctx.Err(); err != nil {
			canceled = err
			break
		}

		lastErr = res.Message
		e.logger.Warn("operation failed",
			"id", op.ID, "type", op.Type, "task", op.Target(),
			"attempt", op.RetryCount+1, "message", res.Message)

		if e.queue.Fail(book, op) {
			failed++
			e.logger.Error("dropping operation after retries",
				"id", op.ID, "type", op.Type, "task", op.Target(),
				"retries", e.queue.MaxRetries())
		}
	}

	remaining := e.queue.Len(book)
	e.cache.SetMeta(book, model.MetaHasPendingChanges, remaining > 0)

	finished := e.now()
	if canceled == nil {
		e.cache.SetMeta(book, model.MetaLastSyncTime, finished.UTC().Format(time.RFC3339Nano))
	}

	errMsg := ""
	switch {
	case canceled != nil:
		errMsg = fmt.Sprintf("sync interrupted: %v", canceled)
	case lastErr != "":
		errMsg = lastErr
	}

	e.logger.Info("sync finished",
		"attempted", attempted, "succeeded", succeeded, "dropped", failed,
		"remaining", remaining, "took", finished.Sub(start))

	return e.setStatus(func(s *Status) {
		s.IsSyncing = false
		s.PendingCount = remaining
		s.SuccessCount = succeeded
		s.FailedCount = failed
		s.Error = errMsg
		if errMsg != "" {
			s.State = SyncError
		} else {
			s.State = SyncIdle
		}
		if canceled == nil {
			s.LastSyncTime = finished
		}
	})
}

// dispatch makes the one REST call that op stands for.
func (e *Engine) dispatch(ctx context.Context, userID string, op model.PendingOperation) api.Result {
	ctx = api.WithIdempotencyKey(ctx, op.ClientRef)

	var patch model.TaskPatch
	if op.Data != nil {
		patch = *op.Data
	}

	switch op.Type {
	case model.OpCreate:
		return e.api.CreateTask(ctx, userID, patch)
	case model.OpUpdate:
		return e.api.UpdateTask(ctx, userID, op.Target(), patch)
	case model.OpDelete:
		return e.api.DeleteTask(ctx, userID, op.Target())
	case model.OpComplete:
		return e.api.ToggleComplete(ctx, userID, op.Target())
	}
	return api.Result{Message: fmt.Sprintf("unknown operation type %q", op.Type)}
}

// applyResult mirrors a confirmed mutation into the cache.
func (e *Engine) applyResult(ctx context.Context, op model.PendingOperation, res api.Result) {
	if op.Type == model.OpDelete {
		e.cache.Delete(ctx, op.Target())
		return
	}
	if res.Task != nil {
		e.cache.Put(ctx, *res.Task)
	}
}

// SyncTasksFromServer refreshes the cached tasks of userID from the server
// and returns them. When offline, or when the fetch fails, it returns the
// cached tasks together with the reason they may be stale.
func (e *Engine) SyncTasksFromServer(ctx context.Context, userID string) ([]model.Task, error) {
	if userID == "" {
		userID = e.User()
	}

	if !e.Online() {
		return e.cache.AllForUser(ctx, userID), ErrOffline
	}

	tasks, err := e.api.ListTasks(ctx, userID)
	if err != nil {
		e.logger.Warn("fetching tasks failed, serving cache", "user", userID, "err", err)
		return e.cache.AllForUser(ctx, userID), fmt.Errorf("fetching tasks: %w", err)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}

	if !e.cache.ReplaceForUser(ctx, userID, tasks) {
		e.logger.Warn("caching fetched tasks failed", "user", userID)
	}

	now := e.now()
	e.cache.SetMeta(ctx, model.MetaLastSyncTime, now.UTC().Format(time.RFC3339Nano))
	e.broadcaster.Publish(e.setStatus(func(s *Status) {
		s.LastSyncTime = now
	}))

	return tasks, nil
}

// StartAutoSync runs a pass immediately and then every interval until
// StopAutoSync. Calling it while already running does nothing.
func (e *Engine) StartAutoSync(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	stopCh := make(chan struct{})
	e.stopCh = stopCh
	e.mu.Unlock()

	e.wg.Add(1)
	go e.autoSync(interval, stopCh)
}

// StopAutoSync stops the periodic loop, cancels its in-flight pass between
// dispatches, and waits for it to exit. It must not be called from a
// subscriber.
func (e *Engine) StopAutoSync() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	close(e.stopCh)
	e.running = false
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Engine) autoSync(interval time.Duration, stopCh chan struct{}) {
	defer e.wg.Done()

	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.TriggerSync(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.TriggerSync(ctx)
		}
	}
}

// setStatus mutates the snapshot under the lock and returns a copy.
func (e *Engine) setStatus(fn func(*Status)) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.status)
	return e.status
}
