package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/ui/taskform"
)

// Add queues a create operation.
func (r *Runner) Add(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}

	var patch model.TaskPatch
	var err error
	if cmd.IsSet("title") {
		patch, err = patchFromFlags(cmd)
		if err == nil && patch.Priority == nil {
			p := model.PriorityMedium
			patch.Priority = &p
		}
	} else {
		patch, err = taskform.NewCreate().Run()
	}
	if err != nil {
		return err
	}

	return r.queue(ctx, model.NewCreate(patch))
}

// Update queues an update operation against a server task.
func (r *Runner) Update(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	id, err := parseID(cmd)
	if err != nil {
		return err
	}

	var patch model.TaskPatch
	if anySet(cmd, "title", "description", "priority", "due", "tags", "completed") {
		patch, err = patchFromFlags(cmd)
	} else {
		cached := r.store().Get(ctx, id)
		if cached == nil {
			return fmt.Errorf("task %d is not cached: run `tasksync pull` or pass field flags", id)
		}
		patch, err = taskform.NewEdit(*cached).Run()
	}
	if err != nil {
		return err
	}
	if patch.Empty() {
		return r.writePlain("nothing to update\n")
	}

	return r.queue(ctx, model.NewUpdate(id, patch))
}

// Delete queues a delete operation.
func (r *Runner) Delete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	id, err := parseID(cmd)
	if err != nil {
		return err
	}
	return r.queue(ctx, model.NewDelete(id))
}

// Complete queues a completion toggle.
func (r *Runner) Complete(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	id, err := parseID(cmd)
	if err != nil {
		return err
	}
	return r.queue(ctx, model.NewComplete(id))
}

// queue hands op to the engine, which drains right away when online.
func (r *Runner) queue(ctx context.Context, op model.PendingOperation) error {
	e, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}

	id, err := e.QueueOperation(ctx, op)
	if err != nil {
		return err
	}
	if err := r.writePlain("queued %s operation #%d\n", op.Type, id); err != nil {
		return err
	}

	s := e.Status()
	return r.writeStatus(s, true, e.Online())
}

func parseID(cmd *cli.Command) (int64, error) {
	raw := cmd.StringArg("id")
	if raw == "" {
		return 0, fmt.Errorf("missing task id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", raw)
	}
	return id, nil
}

func anySet(cmd *cli.Command, names ...string) bool {
	for _, name := range names {
		if cmd.IsSet(name) {
			return true
		}
	}
	return false
}

// patchFromFlags builds a patch from the flags that were given.
func patchFromFlags(cmd *cli.Command) (model.TaskPatch, error) {
	var patch model.TaskPatch

	if cmd.IsSet("title") {
		title := strings.TrimSpace(cmd.String("title"))
		if title == "" {
			return patch, fmt.Errorf("title cannot be empty")
		}
		patch.Title = &title
	}
	if cmd.IsSet("description") {
		desc := cmd.String("description")
		patch.Description = &desc
	}
	if cmd.IsSet("priority") {
		p, err := model.ParsePriority(strings.ToLower(cmd.String("priority")))
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if cmd.IsSet("due") {
		due, err := time.Parse("2006-01-02", cmd.String("due"))
		if err != nil {
			return patch, fmt.Errorf("invalid due date %q, use YYYY-MM-DD", cmd.String("due"))
		}
		patch.DueDate = &due
	}
	if cmd.IsSet("tags") {
		patch.Tags = taskform.ParseTags(cmd.String("tags"))
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	if cmd.IsSet("completed") {
		done := cmd.Bool("completed")
		patch.Completed = &done
	}

	return patch, nil
}
