package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/tasksync/internal/model"
)

const taskColumns = `id, user_id, title, description, completed, priority,
	due_date, tags, created_at, updated_at`

// UpsertTasks inserts or replaces a batch of tasks keyed by ID.
func (s *SQLiteStore) UpsertTasks(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTasksTx(ctx, tx, tasks); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceUserTasks swaps the cached copy of one user's tasks for the given
// set in a single transaction.
func (s *SQLiteStore) ReplaceUserTasks(
	ctx context.Context,
	userID string,
	tasks []model.Task,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing tasks for user %s: %w", userID, err)
	}
	if err := upsertTasksTx(ctx, tx, tasks); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertTasksTx(ctx context.Context, tx *sqlx.Tx, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	const query = `
		INSERT OR REPLACE INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		// nil is stored as null so an empty list reads back as empty.
		tagsJSON, err := json.Marshal(t.Tags)
		if err != nil {
			return fmt.Errorf("marshaling tags for task %d: %w", t.ID, err)
		}

		var due *time.Time
		if t.DueDate != nil {
			d := t.DueDate.UTC()
			due = &d
		}

		_, err = stmt.ExecContext(ctx,
			t.ID, t.UserID, t.Title, t.Description,
			boolToInt(t.Completed), string(t.Priority),
			due, string(tagsJSON),
			t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting task %d: %w", t.ID, err)
		}
	}

	return nil
}

// GetTask retrieves a single cached task. It returns (nil, nil) when the
// task is not cached.
func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}

	return &task, nil
}

// GetTasksByUser returns all cached tasks owned by userID, ordered by ID.
func (s *SQLiteStore) GetTasksByUser(
	ctx context.Context,
	userID string,
) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("querying tasks for user %s: %w", userID, err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// DeleteTask removes a cached task. Deleting a missing task is not an error.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return nil
}

// ClearTasks removes every cached task.
func (s *SQLiteStore) ClearTasks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("clearing tasks: %w", err)
	}
	return nil
}

// scanTask scans a task row from either sqlx.Row or sqlx.Rows.
func scanTask(row interface{ Scan(dest ...interface{}) error }) (model.Task, error) {
	var (
		task      model.Task
		completed int
		priority  string
		dueDate   *time.Time
		tagsJSON  string
	)

	err := row.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Description,
		&completed, &priority, &dueDate, &tagsJSON,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	task.Completed = completed != 0
	task.Priority = model.Priority(priority)
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	if dueDate != nil {
		d := dueDate.UTC()
		task.DueDate = &d
	}

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &task.Tags); err != nil {
			return model.Task{}, fmt.Errorf("unmarshaling tags: %w", err)
		}
	}

	return task, nil
}
