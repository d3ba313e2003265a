package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/nhle/tasksync/internal/model"
)

func tasksPath(userID string) string {
	return fmt.Sprintf("/api/users/%s/tasks", url.PathEscape(userID))
}

func taskPath(userID string, id int64) string {
	return fmt.Sprintf("%s/%d", tasksPath(userID), id)
}

// ListTasks fetches every task owned by userID.
func (c *Client) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	env, err := c.do(ctx, http.MethodGet, tasksPath(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("listing tasks: %s", messageOr(env, "server reported failure"))
	}

	var tasks []model.Task
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &tasks); err != nil {
			return nil, fmt.Errorf("decoding task list: %w", err)
		}
	}
	for i := range tasks {
		if tasks[i].UserID == "" {
			tasks[i].UserID = userID
		}
	}
	return tasks, nil
}

// CreateTask creates a task from patch.
func (c *Client) CreateTask(ctx context.Context, userID string, patch model.TaskPatch) Result {
	return c.mutate(ctx, userID, http.MethodPost, tasksPath(userID), patch)
}

// UpdateTask applies patch to task id.
func (c *Client) UpdateTask(ctx context.Context, userID string, id int64, patch model.TaskPatch) Result {
	return c.mutate(ctx, userID, http.MethodPatch, taskPath(userID, id), patch)
}

// DeleteTask removes task id.
func (c *Client) DeleteTask(ctx context.Context, userID string, id int64) Result {
	return c.mutate(ctx, userID, http.MethodDelete, taskPath(userID, id), nil)
}

// ToggleComplete flips the completion flag of task id.
func (c *Client) ToggleComplete(ctx context.Context, userID string, id int64) Result {
	return c.mutate(ctx, userID, http.MethodPost, taskPath(userID, id)+"/toggle", nil)
}

// Ping probes GET /api/health once, without retries.
func (c *Client) Ping(ctx context.Context) error {
	env, err := c.send(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		var retry *retryableError
		if errors.As(err, &retry) {
			return retry.err
		}
		return err
	}
	if !env.Success {
		return fmt.Errorf("health check: %s", messageOr(env, "server unhealthy"))
	}
	return nil
}

// mutate turns every outcome into a Result. A returned task without an
// owner is attributed to userID.
func (c *Client) mutate(ctx context.Context, userID, method, path string, body interface{}) Result {
	env, err := c.do(ctx, method, path, body)
	if err != nil {
		return failure(err)
	}
	if !env.Success {
		return Result{Success: false, Message: messageOr(env, "server reported failure")}
	}

	res := Result{Success: true, Message: env.Message}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		var task model.Task
		if err := json.Unmarshal(env.Data, &task); err == nil && task.ID != 0 {
			if task.UserID == "" {
				task.UserID = userID
			}
			res.Task = &task
		}
	}
	return res
}

func messageOr(env *envelope, fallback string) string {
	if env.Message != "" {
		return env.Message
	}
	return fallback
}
