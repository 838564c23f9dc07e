package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/observability/metrics"
	"github.com/desertthunder/playlist-converter/internal/queue"
	"github.com/desertthunder/playlist-converter/internal/repositories"
	"github.com/desertthunder/playlist-converter/internal/server"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/sessions"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/desertthunder/playlist-converter/internal/status"
	"github.com/desertthunder/playlist-converter/internal/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const progressBuffer = 64

// worker is the fully wired conversion pipeline.
type worker struct {
	consumer *queue.Consumer
	ops      *server.OpsServer // nil when disabled
	progress chan tasks.ProgressUpdate
	redis    *redis.Client
	db       *sql.DB
	logger   *log.Logger
}

// Worker consumes jobs until SIGINT/SIGTERM, serving health and metrics alongside.
func (r *Runner) Worker(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if n := cmd.Int("concurrency"); n > 0 {
		r.config.Worker.Concurrency = n
	}

	w, err := r.newWorker(ctx, !cmd.Bool("no-server"))
	if err != nil {
		return err
	}
	defer w.close()

	return w.run(ctx)
}

func (r *Runner) newWorker(ctx context.Context, withServer bool) (*worker, error) {
	cfg := r.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rdb, err := r.openRedis(ctx)
	if err != nil {
		return nil, err
	}

	db, err := r.openDatabase(ctx)
	if err != nil {
		rdb.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewWorkerMetrics(registry)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	publisher := status.NewPublisher(rdb, status.PublisherOpts{
		Prefix:    cfg.Redis.StatusPrefix,
		TTL:       cfg.Status.TTL,
		Retention: cfg.Status.Retention,
		Attempts:  cfg.Status.PublishAttempts,
		Logger:    r.logger,
		Metrics:   m,
	})

	catalogs := services.NewRegistry(
		services.NewSpotifyService(cfg.Credentials.Spotify, r.httpClient),
		services.NewYouTubeService(cfg.Credentials.YouTube.ProxyURL, r.httpClient),
	)

	progress := make(chan tasks.ProgressUpdate, progressBuffer)
	orchestrator := tasks.NewOrchestrator(tasks.OrchestratorOpts{
		Sessions: sessions.NewStore(rdb, cfg.Redis.SessionPrefix, r.logger),
		Catalogs: catalogs,
		History:  repositories.NewHistoryRepository(db),
		Status:   publisher,
		Matcher: tasks.NewMatcher(tasks.MatcherOpts{
			Concurrency:      cfg.Worker.Concurrency,
			LookupTimeout:    cfg.Worker.LookupTimeout,
			Threshold:        cfg.Worker.MatchThreshold,
			LookupsPerSecond: cfg.Worker.LookupsPerSecond,
			Logger:           r.logger,
			Metrics:          m,
		}),
		Builder:  tasks.NewPlaylistBuilder(r.logger),
		Progress: progress,
		Logger:   r.logger,
		Metrics:  m,
	})

	w := &worker{
		consumer: queue.NewConsumer(rdb, orchestrator, queue.ConsumerOpts{
			Key:          cfg.Redis.QueueKey,
			BlockTimeout: cfg.Worker.BlockTimeout,
			Logger:       r.logger,
			Metrics:      m,
		}),
		progress: progress,
		redis:    rdb,
		db:       db,
		logger:   r.logger,
	}

	if withServer {
		router := server.NewOpsRouter(registry, r.logger,
			server.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			server.HealthCheck{Name: "database", Check: func(ctx context.Context) error { return shared.PingDatabase(ctx, db) }},
		)
		w.ops = server.NewOpsServer(cfg.Server.Addr(), router, r.logger)
	}

	r.logger.Info("worker ready",
		"queue", cfg.Redis.QueueKey,
		"concurrency", cfg.Worker.Concurrency,
		"catalogs", catalogs.Names(),
		"database", cfg.Database.Path,
	)
	return w, nil
}

// run blocks until ctx is cancelled or a component fails.
func (w *worker) run(ctx context.Context) error {
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		w.logProgress()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(w.progress)
		return w.consumer.Run(gctx)
	})
	if w.ops != nil {
		g.Go(func() error { return w.ops.Run(gctx) })
	}

	err := g.Wait()
	<-logged
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *worker) logProgress() {
	for update := range w.progress {
		logger := shared.WithLogger(w.logger, "job_id", update.JobID, "stage", update.Stage)
		if update.Stage == models.StageMatch && update.Step < update.Total {
			logger.Debug(update.Message, "step", update.Step, "total", update.Total)
			continue
		}
		logger.Info(update.Message)
	}
}

func (w *worker) close() {
	if err := w.db.Close(); err != nil {
		w.logger.Warn("failed to close database", "error", err)
	}
	if err := w.redis.Close(); err != nil {
		w.logger.Warn("failed to close redis client", "error", err)
	}
}
