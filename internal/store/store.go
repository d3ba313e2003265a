package store

import (
	"context"

	"github.com/nhle/tasksync/internal/model"
)

// Store defines the error-returning persistence primitives behind the
// local cache: cached tasks, the pending-operation log, and metadata.
type Store interface {
	// === Tasks ===

	UpsertTasks(ctx context.Context, tasks []model.Task) error
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	GetTasksByUser(ctx context.Context, userID string) ([]model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	ReplaceUserTasks(ctx context.Context, userID string, tasks []model.Task) error
	ClearTasks(ctx context.Context) error

	// === Pending operations ===

	InsertPending(ctx context.Context, op model.PendingOperation) (int64, error)
	ListPending(ctx context.Context) ([]model.PendingOperation, error)
	UpdatePending(ctx context.Context, op model.PendingOperation) error
	DeletePending(ctx context.Context, id int64) error
	CountPending(ctx context.Context) (int, error)
	ClearPending(ctx context.Context) error

	// === Metadata ===

	SetMeta(ctx context.Context, entry model.MetaEntry) error
	GetMeta(ctx context.Context, key string) (*model.MetaEntry, error)
	ClearMeta(ctx context.Context) error

	Close() error
}
