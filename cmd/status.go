package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/desertthunder/playlist-converter/internal/status"
	"github.com/desertthunder/playlist-converter/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/plconv-watch.log"

func (r *Runner) statusReader(ctx context.Context) (*status.Publisher, func(), error) {
	rdb, err := r.openRedis(ctx)
	if err != nil {
		return nil, nil, err
	}
	publisher := status.NewPublisher(rdb, status.PublisherOpts{
		Prefix: r.config.Redis.StatusPrefix,
		Logger: r.logger,
	})
	return publisher, func() { rdb.Close() }, nil
}

// Status prints the live status projection of each job ID argument.
//
// Jobs without a projection are reported and do not stop the others.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one job id", shared.ErrMissingArgument)
	}

	reader, closeFn, err := r.statusReader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	var statuses []*models.ConversionStatus
	var missing int
	for _, id := range ids {
		st, err := reader.Get(ctx, id)
		switch {
		case errors.Is(err, shared.ErrStatusNotFound):
			missing++
			if !cmd.Bool("json") {
				r.writePlain("%s: no status (not queued yet or expired)\n", id)
			}
			continue
		case err != nil:
			return err
		}

		statuses = append(statuses, st)
		if !cmd.Bool("json") {
			r.writePlain("%s (%.1f%%)\n", st, st.Percent())
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(statuses, true); err != nil {
			return err
		}
	}
	if missing == len(ids) {
		return fmt.Errorf("%w: %d job(s)", shared.ErrStatusNotFound, missing)
	}
	return nil
}

// Watch launches the interactive progress view for the job ID arguments.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one job id", shared.ErrMissingArgument)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(fileLogger)

	reader, closeFn, err := r.statusReader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	model := ui.NewModel(ctx, reader, cmd.Duration("interval"), ids...)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
