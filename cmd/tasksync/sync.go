package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/model"
	tasksync "github.com/nhle/tasksync/internal/sync"
	"github.com/nhle/tasksync/internal/theme"
	"github.com/nhle/tasksync/internal/ui/status"
)

// Sync runs one drain pass.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	e, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}

	s, ran := e.TriggerSync(ctx)
	return r.writeStatus(s, ran, e.Online())
}

// Pull refreshes the task cache and prints it.
func (r *Runner) Pull(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	e, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}

	tasks, fetchErr := e.SyncTasksFromServer(ctx, r.config.User.ID)
	if fetchErr != nil {
		if api.IsAuthError(fetchErr) {
			return fmt.Errorf("%w (run `tasksync login`)", fetchErr)
		}
		r.logger.Warn("showing cached tasks", "reason", fetchErr)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tasks, true)
	}
	if len(tasks) == 0 {
		return r.writePlain("no tasks\n")
	}
	for _, t := range tasks {
		if err := r.writePlain("%s\n", formatTask(t)); err != nil {
			return err
		}
	}
	return nil
}

func formatTask(t model.Task) string {
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %4d  %s  %s", check, t.ID,
		theme.PriorityStyle(t.Priority).Render(fmt.Sprintf("%-6s", t.Priority)), t.Title)
	if t.DueDate != nil {
		fmt.Fprintf(&b, "  due %s", t.DueDate.Format("2006-01-02"))
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "  #%s", strings.Join(t.Tags, " #"))
	}
	return b.String()
}

// Pending lists queued operations without touching the network.
func (r *Runner) Pending(ctx context.Context, cmd *cli.Command) error {
	local := r.store()
	if !local.Ready() {
		return fmt.Errorf("opening local store at %s", r.config.Store.Path)
	}

	ops := local.ListPending(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(ops, true)
	}
	if len(ops) == 0 {
		return r.writePlain("queue is empty\n")
	}

	for _, op := range ops {
		target := "-"
		if op.TaskID != nil {
			target = fmt.Sprintf("%d", *op.TaskID)
		}
		if err := r.writePlain("#%-4d %-8s task %-6s retries %d  queued %s\n",
			op.ID, op.Type, target, op.RetryCount,
			op.CreatedAt.Local().Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
	}
	return nil
}

// Status shows the live status view while auto-sync and the connectivity
// monitor run in the background.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	e, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := status.New(ctx, e, e.Updates(ctx))

	r.monitor.Start()
	e.StartAutoSync(r.config.SyncInterval())
	defer e.StopAutoSync()

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("running status view: %w", err)
	}
	return nil
}

// Run auto-syncs in the foreground until SIGINT or SIGTERM.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireUser(); err != nil {
		return err
	}
	e, err := r.syncEngine(ctx)
	if err != nil {
		return err
	}

	interval := r.config.SyncInterval()
	if secs := cmd.Int("interval"); secs > 0 {
		interval = time.Duration(secs) * time.Second
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubscribe := e.Subscribe(func(s tasksync.Status) {
		if s.IsSyncing {
			return
		}
		r.logger.Info("status",
			"state", s.State, "pending", s.PendingCount,
			"synced", s.SuccessCount, "dropped", s.FailedCount)
	})
	defer unsubscribe()

	r.logger.Info("auto-sync started", "interval", interval, "online", e.Online())
	r.monitor.Start()
	e.StartAutoSync(interval)

	<-ctx.Done()

	r.logger.Info("stopping")
	r.monitor.Stop()
	e.StopAutoSync()
	return nil
}

// Reset wipes the local store.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		confirmed := false
		err := huh.NewConfirm().
			Title("Discard all cached tasks and queued operations?").
			Affirmative("Reset").
			Negative("Cancel").
			Value(&confirmed).
			Run()
		if err != nil {
			return fmt.Errorf("confirming reset: %w", err)
		}
		if !confirmed {
			return r.writePlain("aborted\n")
		}
	}

	local := r.store()
	if !local.Reset(ctx) {
		return errors.New("reset failed, see log for details")
	}
	return r.writePlain("local store cleared\n")
}

// Login stores the token in the keyring and records the user and server.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	token := strings.TrimSpace(cmd.String("token"))
	if token == "" {
		err := huh.NewInput().
			Title("API token").
			EchoMode(huh.EchoModePassword).
			Value(&token).
			Run()
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(token)
	}
	if token == "" {
		return credential.ErrNoToken
	}

	if err := credential.Set(credential.TokenKey, token); err != nil {
		return err
	}

	changed := false
	if user := cmd.String("user"); user != "" {
		r.config.User.ID = user
		changed = true
	}
	if url := cmd.String("url"); url != "" {
		r.config.API.BaseURL = url
		changed = true
	}
	if changed {
		if err := model.SaveConfig(r.configPath, r.config); err != nil {
			return err
		}
	}

	return r.writePlain("token saved\n")
}
