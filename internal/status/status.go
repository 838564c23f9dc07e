// Package status maintains the live progress projection of conversion jobs in Redis.
//
// Each job has one hash at "{prefix}{job id}" holding status, total, processed, error and updated_at. Writes go
// through a Lua script so that concurrent or replayed publishes can never move a job backwards.
package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/observability/metrics"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/redis/go-redis/v9"
)

// publishScript applies a status write unless it would regress the stored projection.
//
// Returns 1 when written, 0 when ignored as stale. A write is stale when its rank is lower than the stored rank,
// when it names a different terminal status than the stored one, or when it lowers processed within one rank.
var publishScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rank')
local rank = tonumber(ARGV[2])
if cur then
	cur = tonumber(cur)
	if rank < cur then
		return 0
	end
	if rank == cur then
		if cur == 2 and redis.call('HGET', KEYS[1], 'status') ~= ARGV[1] then
			return 0
		end
		local processed = tonumber(redis.call('HGET', KEYS[1], 'processed') or '0')
		if tonumber(ARGV[4]) < processed then
			return 0
		end
	end
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'rank', ARGV[2], 'total', ARGV[3], 'processed', ARGV[4], 'error', ARGV[5], 'updated_at', ARGV[6])
redis.call('PEXPIRE', KEYS[1], ARGV[7])
return 1
`)

// Publisher writes and reads [models.ConversionStatus] projections.
type Publisher struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	retention time.Duration
	attempts  int
	interval  time.Duration
	logger    *log.Logger
	metrics   *metrics.WorkerMetrics
}

// PublisherOpts configures a [Publisher]. Zero values take defaults.
type PublisherOpts struct {
	Prefix          string
	TTL             time.Duration // expiry while the job is active
	Retention       time.Duration // expiry once terminal
	Attempts        int
	InitialInterval time.Duration
	Logger          *log.Logger
	Metrics         *metrics.WorkerMetrics
}

// NewPublisher creates a Publisher over client.
func NewPublisher(client *redis.Client, opts PublisherOpts) *Publisher {
	if opts.Prefix == "" {
		opts.Prefix = "status:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 50 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Publisher{
		client:    client,
		prefix:    opts.Prefix,
		ttl:       opts.TTL,
		retention: opts.Retention,
		attempts:  opts.Attempts,
		interval:  opts.InitialInterval,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Key returns the Redis key holding jobID's projection.
func (p *Publisher) Key(jobID string) string {
	return p.prefix + jobID
}

// Publish writes st, retrying transient failures with exponential backoff.
//
// Publishing the same counters twice leaves the same state. A stale write is ignored and is not an error.
func (p *Publisher) Publish(ctx context.Context, st models.ConversionStatus) error {
	if st.JobID == "" || !st.Status.Valid() {
		return fmt.Errorf("%w: status for job %q with status %q", shared.ErrInvalidInput, st.JobID, st.Status)
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}

	ttl := p.ttl
	if st.Status.Terminal() {
		ttl = p.retention
	}

	var applied bool
	operation := func() error {
		n, err := publishScript.Run(ctx, p.client, []string{p.Key(st.JobID)},
			string(st.Status),
			st.Status.Rank(),
			st.Total,
			st.Processed,
			string(st.Error),
			st.UpdatedAt.Format(time.RFC3339Nano),
			ttl.Milliseconds(),
		).Int()
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		applied = n == 1
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.attempts-1)), ctx)

	err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		p.logger.Warn("status publish failed, retrying", "job_id", st.JobID, "status", st.Status, "wait", wait, "error", err)
	})
	if err != nil {
		p.metrics.RecordStatusPublish(metrics.ResultError)
		return fmt.Errorf("%w: status publish for %s: %v", shared.ErrServiceUnavailable, st.JobID, err)
	}

	if !applied {
		p.metrics.RecordStatusPublish(metrics.ResultStale)
		p.logger.Debug("stale status ignored", "job_id", st.JobID, "status", st.Status, "processed", st.Processed)
		return nil
	}

	p.metrics.RecordStatusPublish(metrics.ResultApplied)
	return nil
}

// Get reads the projection for jobID or returns [shared.ErrStatusNotFound].
func (p *Publisher) Get(ctx context.Context, jobID string) (*models.ConversionStatus, error) {
	fields, err := p.client.HGetAll(ctx, p.Key(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: status store: %v", shared.ErrServiceUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrStatusNotFound, jobID)
	}

	st := &models.ConversionStatus{
		JobID:  jobID,
		Status: models.Status(fields["status"]),
		Error:  models.Cause(fields["error"]),
	}

	var parseErr error
	if st.Total, err = strconv.Atoi(fields["total"]); err != nil {
		parseErr = errors.Join(parseErr, fmt.Errorf("total: %w", err))
	}
	if st.Processed, err = strconv.Atoi(fields["processed"]); err != nil {
		parseErr = errors.Join(parseErr, fmt.Errorf("processed: %w", err))
	}
	if ts := fields["updated_at"]; ts != "" {
		if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			parseErr = errors.Join(parseErr, fmt.Errorf("updated_at: %w", err))
		}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w: corrupt status for %s: %v", shared.ErrInvalidInput, jobID, parseErr)
	}

	return st, nil
}
