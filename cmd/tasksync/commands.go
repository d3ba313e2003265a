package main

import "github.com/urfave/cli/v3"

// taskFlags are shared by add and update.
func taskFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "title",
			Aliases: []string{"t"},
			Usage:   "Task title",
		},
		&cli.StringFlag{
			Name:    "description",
			Aliases: []string{"d"},
			Usage:   "Task description",
		},
		&cli.StringFlag{
			Name:    "priority",
			Aliases: []string{"p"},
			Usage:   "Priority: low, medium or high",
		},
		&cli.StringFlag{
			Name:  "due",
			Usage: "Due date (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "tags",
			Usage: "Comma-separated tags",
		},
	}
}

func idArg() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{
			Name:      "id",
			UsageText: "server task ID",
		},
	}
}

func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Store the API token in the system keyring",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "token",
				Usage: "API bearer token (prompted when omitted)",
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "User ID that owns synced tasks",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Task server base URL",
			},
		},
		Action: r.Login,
	}
}

func addCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "add",
		Usage:  "Queue a new task (interactive form when --title is omitted)",
		Flags:  taskFlags(),
		Action: r.Add,
	}
}

func updateCommand(r *Runner) *cli.Command {
	flags := append(taskFlags(),
		&cli.BoolFlag{
			Name:  "completed",
			Usage: "Set the completion flag",
		},
	)
	return &cli.Command{
		Name:      "update",
		Usage:     "Queue an update (interactive form when no field flag is given)",
		Arguments: idArg(),
		Flags:     flags,
		Action:    r.Update,
	}
}

func deleteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Queue a task deletion",
		Arguments: idArg(),
		Action:    r.Delete,
	}
}

func completeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Aliases:   []string{"toggle"},
		Usage:     "Queue a completion toggle",
		Arguments: idArg(),
		Action:    r.Complete,
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Replay queued operations against the server now",
		Action: r.Sync,
	}
}

func pullCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Refresh and list tasks (cached copy when offline)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Pull,
	}
}

func pendingCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pending",
		Usage: "List queued operations in replay order",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Pending,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Live sync status with auto-sync running",
		Action: r.Status,
	}
}

func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Auto-sync in the foreground until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "interval",
				Usage: "Seconds between passes (defaults to sync.interval_sec)",
			},
		},
		Action: r.Run,
	}
}

func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Wipe cached tasks, queued operations and metadata",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip confirmation",
			},
		},
		Action: r.Reset,
	}
}
