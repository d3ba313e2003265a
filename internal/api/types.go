package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nhle/tasksync/internal/model"
)

// envelope is the response shape every endpoint returns.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Result is the outcome of a mutation call. The sync engine reads only
// Success and Message.
type Result struct {
	Success bool
	Message string

	// Task is the server's copy after create, update or toggle.
	Task *model.Task
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error()}
}

// AuthError indicates the server rejected the bearer token (HTTP 401).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// StatusError is returned for non-retryable, non-2xx responses.
type StatusError struct {
	Code    int
	Method  string
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d on %s %s: %s", e.Code, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.Code, e.Method, e.Path)
}
