package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// OperationType is the kind of mutation a pending operation replays.
type OperationType string

const (
	OpCreate   OperationType = "create"
	OpUpdate   OperationType = "update"
	OpDelete   OperationType = "delete"
	OpComplete OperationType = "complete"
)

// Valid reports whether t is one of the known operation kinds.
func (t OperationType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete, OpComplete:
		return true
	}
	return false
}

// PendingOperation is a mutation intent that the server has not confirmed yet.
type PendingOperation struct {
	// ID is assigned locally on enqueue and increases monotonically.
	ID int64 `json:"id"`

	// ClientRef is a UUID sent as the idempotency key on replay.
	ClientRef string `json:"client_ref"`

	Type OperationType `json:"type"`

	// TaskID is the server task identifier; nil for create.
	TaskID *int64 `json:"task_id,omitempty"`

	// Data holds the changed fields, if any.
	Data *TaskPatch `json:"data,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	RetryCount int       `json:"retry_count"`
}

// Validate checks the shape invariants of an operation before it is queued.
func (op PendingOperation) Validate() error {
	if !op.Type.Valid() {
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	if op.Type == OpCreate {
		if op.Data == nil || op.Data.Title == nil || strings.TrimSpace(*op.Data.Title) == "" {
			return errors.New("create operation requires a title")
		}
		return nil
	}
	if op.TaskID == nil {
		return fmt.Errorf("%s operation requires a task id", op.Type)
	}
	return nil
}

// Target returns the task ID or 0 when the operation has none.
func (op PendingOperation) Target() int64 {
	if op.TaskID == nil {
		return 0
	}
	return *op.TaskID
}

// NewCreate builds a create operation for the given patch.
func NewCreate(data TaskPatch) PendingOperation {
	return PendingOperation{Type: OpCreate, Data: &data}
}

// NewUpdate builds an update operation against taskID.
func NewUpdate(taskID int64, data TaskPatch) PendingOperation {
	return PendingOperation{Type: OpUpdate, TaskID: &taskID, Data: &data}
}

// NewDelete builds a delete operation against taskID.
func NewDelete(taskID int64) PendingOperation {
	return PendingOperation{Type: OpDelete, TaskID: &taskID}
}

// NewComplete builds a toggle-completion operation against taskID.
func NewComplete(taskID int64) PendingOperation {
	return PendingOperation{Type: OpComplete, TaskID: &taskID}
}
