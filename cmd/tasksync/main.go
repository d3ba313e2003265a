package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/nhle/tasksync/internal/logging"
	"github.com/nhle/tasksync/internal/model"
)

func main() {
	logger := logging.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newApp assembles the command tree around r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tasksync",
		Usage:   "Offline-first task client with a queued sync engine",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   model.DefaultConfigPath(),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   r.before,
		After:    r.after,
		Commands: r.register(),
	}
}
