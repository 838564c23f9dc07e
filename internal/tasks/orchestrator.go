package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/observability/metrics"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/sessions"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

// HistoryStore is the durable conversion history. repositories.HistoryRepository implements it.
type HistoryStore interface {
	// Persist writes the completed conversion record and one track log per result in a single transaction.
	Persist(ctx context.Context, job *models.ConversionJob, destinationPlaylistID string, results []models.MatchResult) error

	// RecordFailure writes a minimal record for a job that failed at stage.
	RecordFailure(ctx context.Context, job *models.ConversionJob, stage models.Stage, cause models.Cause) error

	// MarkCompleted stamps the completion time of a persisted record.
	MarkCompleted(ctx context.Context, id string, at time.Time) error
}

// StatusPublisher writes the live progress projection. status.Publisher implements it.
type StatusPublisher interface {
	Publish(ctx context.Context, st models.ConversionStatus) error
}

// CatalogResolver picks the catalog client for a session's service. services.Registry implements it.
type CatalogResolver interface {
	Lookup(service string) (services.Catalog, error)
}

// Outcome summarizes one processed job.
type Outcome struct {
	JobID                 string
	Status                models.Status
	Total                 int
	Matched               int
	Unmatched             int
	Errored               int
	DestinationPlaylistID string
	Stage                 models.Stage // failed jobs only
	Cause                 models.Cause // failed jobs only
	Results               []models.MatchResult
	Elapsed               time.Duration
}

// MatchPercentage returns the share of tracks that were matched.
func (o *Outcome) MatchPercentage() float64 {
	if o.Total == 0 {
		return 0
	}
	return float64(o.Matched) / float64(o.Total) * 100
}

// OrchestratorOpts wires an [Orchestrator]. Sessions, Catalogs, History and Status are required.
type OrchestratorOpts struct {
	Sessions sessions.Resolver
	Catalogs CatalogResolver
	History  HistoryStore
	Status   StatusPublisher
	Matcher  *Matcher
	Builder  *PlaylistBuilder
	Progress chan<- ProgressUpdate // optional, never blocks
	Logger   *log.Logger
	Metrics  *metrics.WorkerMetrics
}

// Orchestrator drives one conversion job from queued to a terminal status.
//
// Jobs are processed one at a time per orchestrator; the only parallelism is inside [Matcher.Match].
type Orchestrator struct {
	sessions sessions.Resolver
	catalogs CatalogResolver
	history  HistoryStore
	status   StatusPublisher
	matcher  *Matcher
	builder  *PlaylistBuilder
	progress chan<- ProgressUpdate
	logger   *log.Logger
	metrics  *metrics.WorkerMetrics
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator from opts.
func NewOrchestrator(opts OrchestratorOpts) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Matcher == nil {
		opts.Matcher = NewMatcher(MatcherOpts{Logger: opts.Logger, Metrics: opts.Metrics})
	}
	if opts.Builder == nil {
		opts.Builder = NewPlaylistBuilder(opts.Logger)
	}

	return &Orchestrator{
		sessions: opts.Sessions,
		catalogs: opts.Catalogs,
		history:  opts.History,
		status:   opts.Status,
		matcher:  opts.Matcher,
		builder:  opts.Builder,
		progress: opts.Progress,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// endpoint is a resolved session paired with its catalog client.
type endpoint struct {
	catalog services.Catalog
	creds   services.Credentials
}

// Process runs job to a terminal status and reports a failed job as an error.
func (o *Orchestrator) Process(ctx context.Context, job *models.ConversionJob) error {
	_, err := o.Execute(ctx, job)
	return err
}

// Execute runs job to a terminal status.
//
// A job-level failure still returns an [Outcome] alongside the error; per-track failures never fail the job.
// The returned error is nil only for a completed job.
func (o *Orchestrator) Execute(ctx context.Context, job *models.ConversionJob) (*Outcome, error) {
	started := time.Now()
	logger := shared.WithLogger(o.logger, "job_id", job.ID)

	if err := job.Transition(models.StatusProcessing); err != nil {
		return nil, err
	}
	job.Total, job.Processed = 0, 0
	o.publish(ctx, logger, job, models.CauseNone)
	o.sendProgress(credentialsUpdate(job))

	src, dst, err := o.resolve(ctx, job)
	if err != nil {
		return o.fail(ctx, logger, job, started, nil, models.StageCredentials, models.CauseCredentialsExpired, err)
	}

	tracks, err := src.catalog.FetchSourceTracks(ctx, src.creds, job.SourcePlaylistID)
	if err != nil {
		err = fmt.Errorf("%w: %s playlist %s: %w", shared.ErrSourceFetchFailed, src.catalog.Name(), job.SourcePlaylistID, err)
		return o.fail(ctx, logger, job, started, nil, models.StageFetchTracks, models.CauseSourceFetchFailed, err)
	}

	job.Total, job.Processed = len(tracks), 0
	o.publish(ctx, logger, job, models.CauseNone)
	o.sendProgress(fetchTracksUpdate(job, len(tracks)))
	logger.Info("source tracks fetched", "source", src.catalog.Name(), "destination", dst.catalog.Name(), "total", len(tracks))

	results := o.matcher.Match(ctx, dst.catalog, dst.creds, tracks, func(processed, total int) {
		job.Processed = processed
		o.publish(ctx, logger, job, models.CauseNone)
		o.sendProgress(matchUpdate(job, processed, total))
	})

	matchedIDs, _ := models.Partition(results)
	o.sendProgress(createPlaylistUpdate(job, len(matchedIDs)))

	playlistID, err := o.builder.Build(ctx, dst.catalog, dst.creds, job.SourcePlaylistName, matchedIDs)
	if err != nil {
		return o.fail(ctx, logger, job, started, results, models.StageCreatePlaylist, models.CausePlaylistCreationFailed, err)
	}

	if err := o.history.Persist(ctx, job, playlistID, results); err != nil {
		o.metrics.RecordHistoryWrite("record", err)
		if !errors.Is(err, shared.ErrPersistenceFailed) {
			err = fmt.Errorf("%w: %w", shared.ErrPersistenceFailed, err)
		}
		return o.fail(ctx, logger, job, started, results, models.StagePersist, models.CausePersistenceFailed, err)
	}
	o.metrics.RecordHistoryWrite("record", nil)

	if err := job.Transition(models.StatusCompleted); err != nil {
		return nil, err
	}
	o.publish(ctx, logger, job, models.CauseNone)

	if err := o.history.MarkCompleted(ctx, job.ID, o.now()); err != nil {
		logger.Warn("failed to stamp completion time", "error", err)
	}

	outcome := o.outcome(job, started, results)
	outcome.DestinationPlaylistID = playlistID

	o.metrics.RecordJob(string(job.Status), string(models.CauseNone), outcome.Elapsed)
	o.sendProgress(completedUpdate(job, outcome))
	logger.Info("conversion completed",
		"playlist_id", playlistID,
		"matched", outcome.Matched,
		"unmatched", outcome.Unmatched,
		"errored", outcome.Errored,
		"match_rate", fmt.Sprintf("%.1f%%", outcome.MatchPercentage()),
	)

	return outcome, nil
}

// resolve looks up both sessions and their catalogs. Any failure means the job cannot act on the user's behalf.
func (o *Orchestrator) resolve(ctx context.Context, job *models.ConversionJob) (*endpoint, *endpoint, error) {
	src, err := o.resolveEndpoint(ctx, job.SourceSessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("source session: %w", err)
	}
	dst, err := o.resolveEndpoint(ctx, job.DestinationSessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("destination session: %w", err)
	}
	return src, dst, nil
}

func (o *Orchestrator) resolveEndpoint(ctx context.Context, sessionID string) (*endpoint, error) {
	creds, err := o.sessions.ResolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	catalog, err := o.catalogs.Lookup(creds.Service)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCredentialsExpired, err)
	}
	return &endpoint{catalog: catalog, creds: creds}, nil
}

// fail moves job to failed, publishes the cause and makes one best-effort attempt at a failure record.
//
// The cause comes from err's chain; stageCause is used when the chain only carries a per-track cause or none.
func (o *Orchestrator) fail(
	ctx context.Context,
	logger *log.Logger,
	job *models.ConversionJob,
	started time.Time,
	results []models.MatchResult,
	stage models.Stage,
	stageCause models.Cause,
	err error,
) (*Outcome, error) {
	cause := models.CauseFromError(err)
	if !cause.JobLevel() {
		cause = stageCause
	}

	if terr := job.Transition(models.StatusFailed); terr != nil {
		return nil, fmt.Errorf("%w (while failing: %w)", terr, err)
	}
	o.publish(ctx, logger, job, cause)

	ferr := o.history.RecordFailure(ctx, job, stage, cause)
	o.metrics.RecordHistoryWrite("failure", ferr)
	if ferr != nil {
		logger.Warn("failed to record job failure", "stage", stage, "error", ferr)
	}

	outcome := o.outcome(job, started, results)
	outcome.Stage, outcome.Cause = stage, cause

	o.metrics.RecordJob(string(job.Status), string(cause), outcome.Elapsed)
	o.sendProgress(failedUpdate(job, stage, cause, err))
	logger.Error("conversion failed", "stage", stage, "cause", cause, "error", err)

	return outcome, err
}

// publish writes the job's projection. Failures are logged and never stop the job.
func (o *Orchestrator) publish(ctx context.Context, logger *log.Logger, job *models.ConversionJob, cause models.Cause) {
	st := job.Snapshot()
	st.Error = cause
	st.UpdatedAt = o.now()

	if err := o.status.Publish(ctx, st); err != nil {
		logger.Warn("status publish failed", "status", st.Status, "processed", st.Processed, "error", err)
	}
}

func (o *Orchestrator) outcome(job *models.ConversionJob, started time.Time, results []models.MatchResult) *Outcome {
	out := &Outcome{
		JobID:   job.ID,
		Status:  job.Status,
		Total:   job.Total,
		Results: results,
		Elapsed: time.Since(started),
	}
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeMatched:
			out.Matched++
		case models.OutcomeUnmatched:
			out.Unmatched++
		default:
			out.Errored++
		}
	}
	return out
}

// sendProgress sends a progress update through the channel without blocking.
func (o *Orchestrator) sendProgress(update ProgressUpdate) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- update:
	default:
		// Channel full, skip this update
	}
}
