package model

import (
	"fmt"
	"time"
)

// Priority is the server-side priority level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority converts user input into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q (want low, medium or high)", s)
	}
	return p, nil
}

// Task is the server-owned task record. The local copy is only a cache.
type Task struct {
	// ID is assigned by the server.
	ID int64 `json:"id" db:"id"`

	// UserID identifies the owner of the task.
	UserID string `json:"user_id" db:"user_id"`

	Title       string     `json:"title" db:"title"`
	Description string     `json:"description,omitempty" db:"description"`
	Completed   bool       `json:"completed" db:"completed"`
	Priority    Priority   `json:"priority" db:"priority"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`

	// Tags are free-text labels.
	Tags []string `json:"tags,omitzero" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskPatch carries only the fields a mutation changes.
// Nil fields are omitted on the wire. A non-nil empty Tags clears the
// task's tags and is sent as [].
type TaskPatch struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Completed   *bool      `json:"completed,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Tags        []string   `json:"tags,omitzero"`
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.DueDate == nil && p.Tags == nil
}

// Apply returns a copy of t with the patch fields written over it.
func (p TaskPatch) Apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		due := *p.DueDate
		t.DueDate = &due
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), p.Tags...)
	}
	return t
}
