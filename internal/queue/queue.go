// Package queue is the FIFO of task mutations the server has not confirmed.
//
// Entries are never merged: two edits to the same task stay two entries and
// replay in order. A delete aimed at a task that so far only exists as a
// pending create has no server ID and fails at replay like any other error.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/tasksync/internal/model"
)

// DefaultMaxRetries is the number of failed drain passes after which an
// operation is dropped.
const DefaultMaxRetries = 3

var (
	// ErrInvalidOperation is returned when an operation violates its shape
	// invariants (create without a title, mutation without a target).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotPersisted is returned when the backend refused to store an entry.
	ErrNotPersisted = errors.New("operation not persisted")
)

// Backend is the subset of the local store the queue sits on.
type Backend interface {
	Enqueue(ctx context.Context, op model.PendingOperation) int64
	ListPending(ctx context.Context) []model.PendingOperation
	UpdatePending(ctx context.Context, op model.PendingOperation) bool
	Dequeue(ctx context.Context, id int64) bool
	PendingCount(ctx context.Context) int
}

// Queue adds ordering and retry-budget semantics on top of a Backend.
type Queue struct {
	backend    Backend
	maxRetries int
}

// New creates a Queue. maxRetries below 1 falls back to DefaultMaxRetries.
func New(backend Backend, maxRetries int) *Queue {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return &Queue{backend: backend, maxRetries: maxRetries}
}

// MaxRetries returns the retry budget.
func (q *Queue) MaxRetries() int {
	return q.maxRetries
}

// Push validates op and appends it to the log, returning its local ID.
func (q *Queue) Push(ctx context.Context, op model.PendingOperation) (int64, error) {
	if err := op.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	id := q.backend.Enqueue(ctx, op)
	if id == 0 {
		return 0, ErrNotPersisted
	}
	return id, nil
}

// Pending returns every queued entry in enqueue order.
func (q *Queue) Pending(ctx context.Context) []model.PendingOperation {
	return q.backend.ListPending(ctx)
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) int {
	return q.backend.PendingCount(ctx)
}

// Ack removes an entry the server accepted.
func (q *Queue) Ack(ctx context.Context, id int64) bool {
	return q.backend.Dequeue(ctx, id)
}

// Fail records one failed attempt for op. Once the retry counter reaches
// the budget the entry is removed for good and dropped is true; otherwise
// the incremented counter is written back for a later pass.
func (q *Queue) Fail(ctx context.Context, op model.PendingOperation) (dropped bool) {
	op.RetryCount++
	if op.RetryCount >= q.maxRetries {
		q.backend.Dequeue(ctx, op.ID)
		return true
	}
	q.backend.UpdatePending(ctx, op)
	return false
}
