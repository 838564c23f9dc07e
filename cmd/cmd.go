// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/playlist-converter/internal/ui"
	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.SetupDatabase,
	}
}

// workerCommand runs the conversion worker.
func workerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Consume conversion jobs until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Override worker.concurrency (max parallel lookups per job)",
			},
			&cli.BoolFlag{
				Name:  "no-server",
				Usage: "Do not start the health/metrics server",
			},
		},
		Action: r.Worker,
	}
}

// queueCommand handles queue operations
func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Conversion job queue operations",
		Commands: []*cli.Command{
			{
				Name:    "push",
				Aliases: []string{"enqueue"},
				Usage:   "Enqueue a conversion job",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "playlist",
						Aliases:  []string{"p"},
						Usage:    "Source playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Name for the destination playlist",
					},
					&cli.StringFlag{
						Name:     "source-session",
						Usage:    "Session ID holding source catalog credentials",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "dest-session",
						Usage:    "Session ID holding destination catalog credentials",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the enqueued job as JSON",
					},
				},
				Action: r.QueuePush,
			},
			{
				Name:   "depth",
				Usage:  "Show the number of jobs waiting",
				Action: r.QueueDepth,
			},
		},
	}
}

// sessionCommand manages stored catalog sessions (normally written by the auth service).
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Catalog session operations",
		Commands: []*cli.Command{
			{
				Name:  "put",
				Usage: "Store a session for local testing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Session ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "service",
						Usage:    "Catalog service (spotify or youtube)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "access-token",
						Usage: "OAuth access token",
					},
					&cli.DurationFlag{
						Name:  "expires-in",
						Usage: "Token lifetime",
						Value: time.Hour,
					},
					&cli.StringFlag{
						Name:  "auth-file",
						Usage: "YouTube proxy auth file (browser.json/oauth.json)",
					},
				},
				Action: r.SessionPut,
			},
		},
	}
}

// statusCommand prints job status projections.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the live status of one or more jobs",
		ArgsUsage: "<job-id>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// watchCommand returns the top-level TUI command for following job progress.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Aliases:   []string{"ui"},
		Usage:     "Follow job progress in an interactive view",
		ArgsUsage: "<job-id>...",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Polling interval",
				Value: ui.DefaultPollInterval,
			},
		},
		Action: r.Watch,
	}
}

// historyCommand reads the durable conversion history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Conversion history operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded conversions, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status (completed or failed)",
					},
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Filter by source playlist ID",
					},
					&cli.DurationFlag{
						Name:  "since",
						Usage: "Only conversions created within this window (e.g. 24h)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of conversions to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show one conversion and its per-track log",
				ArgsUsage: "<conversion-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:      "export",
				Usage:     "Export one conversion report",
				ArgsUsage: "<conversion-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, md, txt)",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: {id}_report.{format})",
					},
				},
				Action: r.HistoryExport,
			},
		},
	}
}
