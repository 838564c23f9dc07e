package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/observability/metrics"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency   = 5
	DefaultLookupTimeout = 10 * time.Second
)

// ProgressFunc receives the running count of finished tracks. It is called once per track, serially, with
// processed strictly increasing from 1 to total.
type ProgressFunc func(processed, total int)

// MatcherOpts contains configuration for a [Matcher].
type MatcherOpts struct {
	Concurrency      int           // lookups in flight at once (default: 5)
	LookupTimeout    time.Duration // per-lookup bound (default: 10s)
	Threshold        float64       // a candidate must score strictly above this (default: 0.65)
	LookupsPerSecond float64       // outbound throttle, 0 disables
	Logger           *log.Logger
	Metrics          *metrics.WorkerMetrics
}

// Matcher finds a destination item for every source track under a fixed concurrency ceiling.
type Matcher struct {
	ceiling   int
	timeout   time.Duration
	threshold float64
	limiter   *rate.Limiter
	logger    *log.Logger
	metrics   *metrics.WorkerMetrics

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewMatcher creates a Matcher from opts.
func NewMatcher(opts MatcherOpts) *Matcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultMatchThreshold
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	m := &Matcher{
		ceiling:   opts.Concurrency,
		timeout:   opts.LookupTimeout,
		threshold: opts.Threshold,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if opts.LookupsPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(opts.LookupsPerSecond), 1)
	}
	return m
}

// Ceiling returns the configured concurrency ceiling.
func (m *Matcher) Ceiling() int { return m.ceiling }

// InFlight returns the number of lookups currently running.
func (m *Matcher) InFlight() int { return int(m.inFlight.Load()) }

// PeakInFlight returns the highest number of simultaneous lookups observed.
func (m *Matcher) PeakInFlight() int { return int(m.peak.Load()) }

// Match returns exactly one [models.MatchResult] per track, in source order.
//
// Individual lookup failures become errored results; Match never fails as a whole. onProgress may be nil.
func (m *Matcher) Match(
	ctx context.Context,
	dest services.DestinationCatalog,
	creds services.Credentials,
	tracks []models.Track,
	onProgress ProgressFunc,
) []models.MatchResult {
	total := len(tracks)
	results := make([]models.MatchResult, total)
	if total == 0 {
		return results
	}

	// completions are counted by one aggregator so progress is never skipped or doubled
	completions := make(chan struct{}, total)
	aggregated := make(chan struct{})
	var processed atomic.Int64

	go func() {
		defer close(aggregated)
		for range completions {
			n := processed.Add(1)
			if onProgress != nil {
				onProgress(int(n), total)
			}
		}
	}()

	sem := semaphore.NewWeighted(int64(m.ceiling))
	var wg sync.WaitGroup

	for i, track := range tracks {
		if err := sem.Acquire(ctx, 1); err != nil {
			for j := i; j < total; j++ {
				results[j] = models.Errored(tracks[j], models.CauseLookupFailed, fmt.Errorf("lookup not started: %w", err))
				completions <- struct{}{}
			}
			break
		}

		wg.Add(1)
		go func(i int, track models.Track) {
			defer wg.Done()
			defer sem.Release(1)

			results[i] = m.lookup(ctx, dest, creds, track)
			completions <- struct{}{}
		}(i, track)
	}

	wg.Wait()
	close(completions)
	<-aggregated

	return results
}

func (m *Matcher) enter() {
	n := m.inFlight.Add(1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	m.metrics.LookupStarted()
}

func (m *Matcher) leave() {
	m.inFlight.Add(-1)
	m.metrics.LookupFinished()
}

// lookup searches for one track and classifies the outcome. It is never retried.
func (m *Matcher) lookup(ctx context.Context, dest services.DestinationCatalog, creds services.Credentials, track models.Track) models.MatchResult {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return models.Errored(track, models.CauseLookupFailed, err)
		}
	}

	m.enter()
	defer m.leave()

	lctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	query := shared.NormalizeQuery(track.Title, track.Artists)
	candidates, err := m.search(lctx, dest, creds, query)

	var result models.MatchResult
	if err != nil {
		result = m.classify(lctx, track, err)
	} else {
		best, score := BestCandidate(track, candidates)
		if best != nil && score > m.threshold {
			result = models.Matched(track, best.ID, score)
		} else {
			result = models.Unmatched(track, score)
		}
	}

	elapsed := time.Since(started)
	m.metrics.RecordLookup(string(result.Outcome), string(result.Cause), elapsed)
	m.logger.Debug("lookup finished",
		"position", track.Position,
		"query", query,
		"candidates", len(candidates),
		"outcome", result.Outcome,
		"score", fmt.Sprintf("%.3f", result.Score),
		"elapsed", elapsed,
	)

	return result
}

type searchResult struct {
	candidates []models.Candidate
	err        error
}

// search bounds one catalog call by lctx even when the client ignores cancellation.
// A late answer is dropped.
func (m *Matcher) search(lctx context.Context, dest services.DestinationCatalog, creds services.Credentials, query string) ([]models.Candidate, error) {
	done := make(chan searchResult, 1)
	go func() {
		cands, err := dest.SearchDestinationCatalog(lctx, creds, query)
		done <- searchResult{candidates: cands, err: err}
	}()

	select {
	case r := <-done:
		return r.candidates, r.err
	case <-lctx.Done():
		return nil, lctx.Err()
	}
}

func (m *Matcher) classify(lctx context.Context, track models.Track, err error) models.MatchResult {
	switch {
	case errors.Is(err, shared.ErrRateLimited):
		return models.Errored(track, models.CauseRateLimited, err)
	case errors.Is(err, shared.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(lctx.Err(), context.DeadlineExceeded):
		return models.Errored(track, models.CauseTimeout, fmt.Errorf("%w: lookup exceeded %s: %v", shared.ErrTimeout, m.timeout, err))
	default:
		return models.Errored(track, models.CauseLookupFailed, err)
	}
}
