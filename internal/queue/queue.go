// Package queue moves conversion jobs through a Redis list shared by every worker instance.
//
// Producers LPUSH JSON payloads and consumers BRPOP them, which gives FIFO order across the whole queue and hands each
// job to exactly one consumer. There is no acknowledgement or visibility timeout: a worker that dies mid-job leaves
// the job in processing until its status projection expires.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/observability/metrics"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueueKey     = "conversion:jobs"
	defaultBlockTimeout = 5 * time.Second
	defaultErrorBackoff = time.Second
	maxLoggedPayload    = 256
)

// Processor drives one job to a terminal status. The orchestrator implements it.
type Processor interface {
	Process(ctx context.Context, job *models.ConversionJob) error
}

// StatusWriter publishes status projections.
type StatusWriter interface {
	Publish(ctx context.Context, st models.ConversionStatus) error
}

// Consumer pops jobs one at a time and hands them to a [Processor].
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	errorBackoff time.Duration
	processor    Processor
	logger       *log.Logger
	metrics      *metrics.WorkerMetrics
}

// ConsumerOpts configures a [Consumer]. Zero values take defaults.
type ConsumerOpts struct {
	Key string
	// BlockTimeout bounds each BRPOP so the loop can notice shutdown. Redis only honours whole seconds.
	BlockTimeout time.Duration
	ErrorBackoff time.Duration
	Logger       *log.Logger
	Metrics      *metrics.WorkerMetrics
}

// NewConsumer creates a Consumer reading from the list at opts.Key.
func NewConsumer(client *redis.Client, processor Processor, opts ConsumerOpts) *Consumer {
	if opts.Key == "" {
		opts.Key = defaultQueueKey
	}
	if opts.BlockTimeout <= 0 {
		opts.BlockTimeout = defaultBlockTimeout
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = defaultErrorBackoff
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Consumer{
		client:       client,
		key:          opts.Key,
		blockTimeout: opts.BlockTimeout,
		errorBackoff: opts.ErrorBackoff,
		processor:    processor,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
}

// Run consumes jobs until ctx is cancelled.
//
// Cancellation stops further pops; a job already popped runs to completion on a context detached from ctx.
// Run returns nil on shutdown.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", "queue", c.key, "block_timeout", c.blockTimeout)
	defer c.logger.Info("consumer stopped", "queue", c.key)

	for {
		if ctx.Err() != nil {
			return nil
		}

		payload, err := c.pop(ctx)
		switch {
		case err == nil:
			c.handle(context.WithoutCancel(ctx), payload)
		case errors.Is(err, redis.Nil):
			// block timeout elapsed with an empty queue
		case ctx.Err() != nil:
			return nil
		default:
			c.logger.Error("dequeue failed", "queue", c.key, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.errorBackoff):
			}
		}
	}
}

func (c *Consumer) pop(ctx context.Context) (string, error) {
	res, err := c.client.BRPop(ctx, c.blockTimeout, c.key).Result()
	if err != nil {
		return "", err
	}
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	return res[1], nil
}

// handle decodes and processes one payload. Malformed payloads are dropped.
func (c *Consumer) handle(ctx context.Context, payload string) {
	job, err := models.DecodeJob([]byte(payload))
	if err != nil {
		c.metrics.RecordMalformedPayload()
		c.logger.Error("discarding malformed job", "error", err, "payload", truncate(payload, maxLoggedPayload))
		return
	}

	logger := shared.WithLogger(c.logger, "job_id", job.ID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked, job left in processing", "panic", r, "status", job.Status)
		}
	}()

	started := time.Now()
	if err := c.processor.Process(ctx, job); err != nil {
		logger.Warn("job failed", "status", job.Status, "error", err, "elapsed", time.Since(started))
		return
	}
	logger.Info("job finished", "status", job.Status, "elapsed", time.Since(started))
}

// Producer enqueues jobs. The upstream service owns enqueueing in production; the CLI and tests use this.
type Producer struct {
	client *redis.Client
	key    string
	status StatusWriter
}

// NewProducer creates a Producer. status may be nil to skip the queued projection.
func NewProducer(client *redis.Client, key string, status StatusWriter) *Producer {
	if key == "" {
		key = defaultQueueKey
	}
	return &Producer{client: client, key: key, status: status}
}

// Enqueue marks job queued in the status store and pushes its payload.
func (p *Producer) Enqueue(ctx context.Context, job *models.ConversionJob) error {
	if job.Status == "" {
		job.Status = models.StatusQueued
	}
	if job.Status != models.StatusQueued {
		return fmt.Errorf("%w: cannot enqueue job in status %s", shared.ErrInvalidTransition, job.Status)
	}
	if err := job.Validate(); err != nil {
		return err
	}

	payload, err := job.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	if p.status != nil {
		if err := p.status.Publish(ctx, job.Snapshot()); err != nil {
			return err
		}
	}

	if err := p.client.LPush(ctx, p.key, payload).Err(); err != nil {
		return fmt.Errorf("%w: enqueue %s: %v", shared.ErrServiceUnavailable, job.ID, err)
	}
	return nil
}

// Depth returns the number of jobs waiting in the queue.
func (p *Producer) Depth(ctx context.Context) (int64, error) {
	n, err := p.client.LLen(ctx, p.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: queue depth: %v", shared.ErrServiceUnavailable, err)
	}
	return n, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
