// Package taskform is the interactive create/edit form for tasks.
package taskform

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/nhle/tasksync/internal/model"
)

const dateLayout = "2006-01-02"

// bindings holds form field values on the heap so that huh's Value()
// pointers stay valid.
type bindings struct {
	title       string
	description string
	priority    string
	dueDate     string
	tags        string
}

// Form collects task fields and turns them into a TaskPatch.
type Form struct {
	fb       *bindings
	original *model.Task
	form     *huh.Form
}

// NewCreate returns a blank form for a new task.
func NewCreate() *Form {
	f := &Form{fb: &bindings{priority: string(model.PriorityMedium)}}
	f.form = f.build("New task")
	return f
}

// NewEdit returns a form prefilled from task. Its Patch carries only the
// fields the user changed.
func NewEdit(task model.Task) *Form {
	fb := &bindings{
		title:       task.Title,
		description: task.Description,
		priority:    string(task.Priority),
		tags:        strings.Join(task.Tags, ", "),
	}
	if fb.priority == "" {
		fb.priority = string(model.PriorityMedium)
	}
	if task.DueDate != nil {
		fb.dueDate = task.DueDate.Format(dateLayout)
	}

	f := &Form{fb: fb, original: &task}
	f.form = f.build(fmt.Sprintf("Edit task %d", task.ID))
	return f
}

// Run shows the form on the terminal and returns the resulting patch.
func (f *Form) Run() (model.TaskPatch, error) {
	if err := f.form.Run(); err != nil {
		return model.TaskPatch{}, fmt.Errorf("running task form: %w", err)
	}
	return f.Patch()
}

func (f *Form) build(title string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				Value(&f.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				Value(&f.fb.description),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("High", string(model.PriorityHigh)),
					huh.NewOption("Medium", string(model.PriorityMedium)),
					huh.NewOption("Low", string(model.PriorityLow)),
				).
				Value(&f.fb.priority),
			huh.NewInput().
				Title("Due Date").
				Placeholder("YYYY-MM-DD (optional)").
				Value(&f.fb.dueDate).
				Validate(validateOptionalDate),
			huh.NewInput().
				Title("Tags").
				Placeholder("comma separated (optional)").
				Value(&f.fb.tags),
		).Title(title),
	)
}

// Patch converts the current field values into a TaskPatch.
func (f *Form) Patch() (model.TaskPatch, error) {
	title := strings.TrimSpace(f.fb.title)
	if err := validateRequired("Title")(title); err != nil {
		return model.TaskPatch{}, err
	}

	priority, err := model.ParsePriority(f.fb.priority)
	if err != nil {
		return model.TaskPatch{}, err
	}

	var due *time.Time
	if s := strings.TrimSpace(f.fb.dueDate); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return model.TaskPatch{}, fmt.Errorf("invalid due date %q: %w", s, err)
		}
		due = &t
	}

	description := strings.TrimSpace(f.fb.description)
	tags := ParseTags(f.fb.tags)

	if f.original == nil {
		patch := model.TaskPatch{Title: &title, Priority: &priority, DueDate: due, Tags: tags}
		if description != "" {
			patch.Description = &description
		}
		return patch, nil
	}

	orig := f.original
	var patch model.TaskPatch
	if title != orig.Title {
		patch.Title = &title
	}
	if description != orig.Description {
		patch.Description = &description
	}
	if priority != orig.Priority {
		patch.Priority = &priority
	}
	if due != nil && (orig.DueDate == nil || orig.DueDate.Format(dateLayout) != due.Format(dateLayout)) {
		patch.DueDate = due
	}
	if !slices.Equal(tags, orig.Tags) {
		patch.Tags = tags
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	return patch, nil
}

// ParseTags splits a comma-separated list, dropping blanks and duplicates.
func ParseTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		tag := strings.TrimSpace(part)
		if tag == "" || slices.Contains(tags, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalDate(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	_, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date format, use YYYY-MM-DD")
	}
	return nil
}
