package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/nhle/tasksync/internal/api"
	"github.com/nhle/tasksync/internal/credential"
	"github.com/nhle/tasksync/internal/logging"
	"github.com/nhle/tasksync/internal/model"
	"github.com/nhle/tasksync/internal/store"
	tasksync "github.com/nhle/tasksync/internal/sync"
)

// errNoUser is returned by commands that need an owner when none is set.
var errNoUser = errors.New("no user configured: run `tasksync login --user <id>`")

// Runner holds all dependencies for CLI commands and provides methods for
// each command action. Collaborators are built on first use.
type Runner struct {
	configPath string
	config     *model.AppConfig
	token      oauth2.TokenSource
	logger     *log.Logger
	output     io.Writer

	local   *store.Local
	client  *api.Client
	engine  *tasksync.Engine
	monitor *tasksync.Monitor
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	// Config skips loading from disk when set.
	Config *model.AppConfig

	// Local overrides the store opened from Config.Store.Path.
	Local *store.Local

	Token  oauth2.TokenSource
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Token == nil {
		opts.Token = credential.NewTokenSource()
	}

	return &Runner{
		config: opts.Config,
		local:  opts.Local,
		token:  opts.Token,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		loginCommand, addCommand, updateCommand, deleteCommand, completeCommand,
		syncCommand, pullCommand, pendingCommand, statusCommand, runCommand, resetCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads configuration once the global flags are parsed.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	if r.config == nil {
		cfg, err := model.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = cfg
	}

	level := logging.ParseLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	r.logger.SetLevel(level)

	return ctx, nil
}

// after releases whatever the command opened.
func (r *Runner) after(_ context.Context, _ *cli.Command) error {
	if r.monitor != nil {
		r.monitor.Stop()
	}
	if r.engine != nil {
		r.engine.Close()
	}
	if r.local != nil {
		return r.local.Close()
	}
	return nil
}

func (r *Runner) store() *store.Local {
	if r.local == nil {
		r.local = store.NewLocal(r.config.Store.Path, r.logger)
	}
	return r.local
}

func (r *Runner) apiClient() *api.Client {
	if r.client == nil {
		r.client = api.NewClient(api.Config{
			BaseURL:    r.config.API.BaseURL,
			Token:      r.token,
			Timeout:    time.Duration(r.config.API.TimeoutSec) * time.Second,
			MaxRetries: r.config.API.MaxRetries,
			RetryDelay: time.Duration(r.config.API.RetryDelayMs) * time.Millisecond,
			RatePerSec: r.config.API.RatePerSec,
		})
	}
	return r.client
}

// syncEngine builds the engine, probing the server once to seed its
// connectivity state.
func (r *Runner) syncEngine(ctx context.Context) (*tasksync.Engine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	local := r.store()
	if !local.Ready() {
		return nil, fmt.Errorf("opening local store at %s", r.config.Store.Path)
	}

	client := r.apiClient()
	online := true
	if err := tasksync.Reachable(ctx, client); err != nil {
		online = false
		r.logger.Warn("server unreachable, working offline", "url", r.config.API.BaseURL, "err", err)
	}

	e := tasksync.New(tasksync.Options{
		Store:      local,
		API:        client,
		MaxRetries: r.config.Sync.MaxRetries,
		Logger:     r.logger,
		UserID:     r.config.User.ID,
		Online:     online,
	})
	r.monitor = tasksync.NewMonitor(client, e, r.config.ProbeInterval(), r.logger)

	r.engine = e
	return e, nil
}

func (r *Runner) requireUser() error {
	if r.config.User.ID == "" {
		return errNoUser
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeStatus prints the outcome of a drain pass.
func (r *Runner) writeStatus(s tasksync.Status, ran bool, online bool) error {
	switch {
	case !online:
		return r.writePlain("offline: %d operation(s) queued\n", s.PendingCount)
	case !ran:
		return r.writePlain("a sync is already running\n")
	}

	if err := r.writePlain("synced %d, dropped %d, %d pending\n",
		s.SuccessCount, s.FailedCount, s.PendingCount); err != nil {
		return err
	}
	if s.Error != "" {
		return r.writePlain("last error: %s\n", s.Error)
	}
	return nil
}
