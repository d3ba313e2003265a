package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/queue"
	"github.com/nhle/tasksync/tests/testutil"
)

func strPtr(s string) *string { return &s }

func TestPushValidates(t *testing.T) {
	ctx := context.Background()
	q := queue.New(testutil.NewTestLocal(t), 0)

	tt := []struct {
		name    string
		op      model.PendingOperation
		wantErr error
	}{
		{name: "create", op: model.NewCreate(model.TaskPatch{Title: strPtr("Buy milk")})},
		{name: "create without title", op: model.NewCreate(model.TaskPatch{}), wantErr: queue.ErrInvalidOperation},
		{name: "delete", op: model.NewDelete(4)},
		{name: "update without target", op: model.PendingOperation{Type: model.OpUpdate}, wantErr: queue.ErrInvalidOperation},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			id, err := q.Push(ctx, tc.op)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Push error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil || id == 0 {
				t.Fatalf("Push = %d, %v", id, err)
			}
		})
	}

	if q.Len(ctx) != 2 {
		t.Errorf("Len = %d, want 2", q.Len(ctx))
	}
	if q.MaxRetries() != queue.DefaultMaxRetries {
		t.Errorf("MaxRetries = %d", q.MaxRetries())
	}
}

func TestFailDropsAtBudget(t *testing.T) {
	ctx := context.Background()
	q := queue.New(testutil.NewTestLocal(t), 3)

	if _, err := q.Push(ctx, model.NewUpdate(5, model.TaskPatch{Completed: new(bool)})); err != nil {
		t.Fatalf("Push: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		pending := q.Pending(ctx)
		if len(pending) != 1 {
			t.Fatalf("attempt %d: queue length %d, want 1", attempt, len(pending))
		}
		if pending[0].RetryCount != attempt-1 {
			t.Fatalf("attempt %d: RetryCount = %d", attempt, pending[0].RetryCount)
		}

		dropped := q.Fail(ctx, pending[0])
		if want := attempt == 3; dropped != want {
			t.Fatalf("attempt %d: dropped = %v, want %v", attempt, dropped, want)
		}
	}

	if q.Len(ctx) != 0 {
		t.Errorf("entry should be gone after the budget, Len = %d", q.Len(ctx))
	}
}

func TestAckRemovesOnlyThatEntry(t *testing.T) {
	ctx := context.Background()
	q := queue.New(testutil.NewTestLocal(t), 3)

	first, _ := q.Push(ctx, model.NewDelete(1))
	second, _ := q.Push(ctx, model.NewDelete(2))

	if !q.Ack(ctx, first) {
		t.Fatal("Ack reported failure")
	}

	pending := q.Pending(ctx)
	if len(pending) != 1 || pending[0].ID != second {
		t.Errorf("pending = %+v, want only %d", pending, second)
	}
}

type refusingBackend struct{ testBackend }

func (refusingBackend) Enqueue(context.Context, model.PendingOperation) int64 { return 0 }

type testBackend struct{}

func (testBackend) Enqueue(context.Context, model.PendingOperation) int64 { return 1 }
func (testBackend) ListPending(context.Context) []model.PendingOperation { return nil }
func (testBackend) UpdatePending(context.Context, model.PendingOperation) bool { return true }
func (testBackend) Dequeue(context.Context, int64) bool { return true }
func (testBackend) PendingCount(context.Context) int { return 0 }

func TestPushReportsStorageRefusal(t *testing.T) {
	q := queue.New(refusingBackend{}, 3)

	_, err := q.Push(context.Background(), model.NewDelete(1))
	if !errors.Is(err, queue.ErrNotPersisted) {
		t.Fatalf("Push error = %v, want ErrNotPersisted", err)
	}
}
