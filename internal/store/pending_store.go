package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/tasksync/internal/model"
)

// InsertPending appends an operation to the pending log and returns the
// auto-increment ID SQLite assigned to it. AUTOINCREMENT guarantees IDs are
// never reused, so ID order is enqueue order.
func (s *SQLiteStore) InsertPending(
	ctx context.Context,
	op model.PendingOperation,
) (int64, error) {
	data, err := marshalPatch(op.Data)
	if err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_operations (
			client_ref, type, task_id, data, retry_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		op.ClientRef, string(op.Type), op.TaskID, data,
		op.RetryCount, op.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting pending %s operation: %w", op.Type, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading pending operation id: %w", err)
	}
	return id, nil
}

// ListPending returns every pending operation in enqueue order.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]model.PendingOperation, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, client_ref, type, task_id, data, retry_count, created_at
		FROM pending_operations
		ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying pending operations: %w", err)
	}
	defer rows.Close()

	var ops []model.PendingOperation
	for rows.Next() {
		op, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// UpdatePending replaces a pending operation by ID.
func (s *SQLiteStore) UpdatePending(ctx context.Context, op model.PendingOperation) error {
	data, err := marshalPatch(op.Data)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE pending_operations SET
			client_ref = ?, type = ?, task_id = ?, data = ?, retry_count = ?
		WHERE id = ?`,
		op.ClientRef, string(op.Type), op.TaskID, data, op.RetryCount, op.ID,
	)
	if err != nil {
		return fmt.Errorf("updating pending operation %d: %w", op.ID, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("pending operation %d not found", op.ID)
	}
	return nil
}

// DeletePending removes a pending operation. Missing IDs are ignored.
func (s *SQLiteStore) DeletePending(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_operations WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting pending operation %d: %w", id, err)
	}
	return nil
}

// CountPending returns the number of queued operations.
func (s *SQLiteStore) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM pending_operations"); err != nil {
		return 0, fmt.Errorf("counting pending operations: %w", err)
	}
	return count, nil
}

// ClearPending drops the whole pending log.
func (s *SQLiteStore) ClearPending(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_operations"); err != nil {
		return fmt.Errorf("clearing pending operations: %w", err)
	}
	return nil
}

func marshalPatch(p *model.TaskPatch) (*string, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshaling operation payload: %w", err)
	}
	s := string(b)
	return &s, nil
}

// scanPending scans a pending_operations row.
func scanPending(row interface{ Scan(dest ...interface{}) error }) (model.PendingOperation, error) {
	var (
		op        model.PendingOperation
		opType    string
		taskID    sql.NullInt64
		data      sql.NullString
		createdAt time.Time
	)

	err := row.Scan(
		&op.ID, &op.ClientRef, &opType, &taskID, &data,
		&op.RetryCount, &createdAt,
	)
	if err != nil {
		return model.PendingOperation{}, fmt.Errorf("scanning pending operation row: %w", err)
	}

	op.Type = model.OperationType(opType)
	op.CreatedAt = createdAt.UTC()
	if taskID.Valid {
		id := taskID.Int64
		op.TaskID = &id
	}
	if data.Valid && data.String != "" {
		var patch model.TaskPatch
		if err := json.Unmarshal([]byte(data.String), &patch); err != nil {
			return model.PendingOperation{}, fmt.Errorf("unmarshaling operation payload: %w", err)
		}
		op.Data = &patch
	}

	return op, nil
}
