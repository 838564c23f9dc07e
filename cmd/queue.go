package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/queue"
	"github.com/desertthunder/playlist-converter/internal/sessions"
	"github.com/desertthunder/playlist-converter/internal/status"
	"github.com/urfave/cli/v3"
)

// QueuePush enqueues one conversion job and prints its ID.
func (r *Runner) QueuePush(ctx context.Context, cmd *cli.Command) error {
	rdb, err := r.openRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	publisher := status.NewPublisher(rdb, status.PublisherOpts{
		Prefix:    r.config.Redis.StatusPrefix,
		TTL:       r.config.Status.TTL,
		Retention: r.config.Status.Retention,
		Attempts:  r.config.Status.PublishAttempts,
		Logger:    r.logger,
	})
	producer := queue.NewProducer(rdb, r.config.Redis.QueueKey, publisher)

	job := models.NewConversionJob(
		cmd.String("playlist"),
		cmd.String("name"),
		cmd.String("source-session"),
		cmd.String("dest-session"),
	)
	if err := producer.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	r.logger.Info("job enqueued", "job_id", job.ID, "playlist", job.SourcePlaylistID, "queue", r.config.Redis.QueueKey)

	if cmd.Bool("json") {
		return r.writeJSON(job, true)
	}
	return r.writePlain("%s\n", job.ID)
}

// QueueDepth prints the number of jobs waiting in the queue.
func (r *Runner) QueueDepth(ctx context.Context, cmd *cli.Command) error {
	rdb, err := r.openRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	depth, err := queue.NewProducer(rdb, r.config.Redis.QueueKey, nil).Depth(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%d\n", depth)
}

// SessionPut stores a catalog session, normally the auth service's job.
func (r *Runner) SessionPut(ctx context.Context, cmd *cli.Command) error {
	rdb, err := r.openRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	session := sessions.Session{
		ID:          cmd.String("id"),
		Service:     cmd.String("service"),
		AccessToken: cmd.String("access-token"),
		TokenType:   "Bearer",
		AuthFile:    cmd.String("auth-file"),
	}
	if session.AccessToken != "" {
		session.Expiry = time.Now().Add(cmd.Duration("expires-in")).UTC()
	}

	store := sessions.NewStore(rdb, r.config.Redis.SessionPrefix, r.logger)
	if err := store.Put(ctx, session, 0); err != nil {
		return err
	}

	r.logger.Info("session stored", "session_id", session.ID, "service", session.Service)
	return nil
}
