package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
	th "github.com/desertthunder/playlist-converter/internal/testing"
)

func newTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range n {
		tracks[i] = models.Track{
			ID:       fmt.Sprintf("src-%d", i),
			Title:    fmt.Sprintf("Song %d", i),
			Artists:  []string{"Artist"},
			Duration: 180 * time.Second,
			Position: i,
		}
	}
	return tracks
}

// libraryFor returns destination entries that exactly match each track, with IDs "dst-{position}".
func libraryFor(tracks []models.Track) []models.Candidate {
	lib := make([]models.Candidate, 0, len(tracks))
	for _, tr := range tracks {
		lib = append(lib, models.Candidate{
			ID:       fmt.Sprintf("dst-%d", tr.Position),
			Title:    tr.Title,
			Artists:  tr.Artists,
			Duration: tr.Duration,
		})
	}
	return lib
}

// librarySearch answers like the fake catalog's library but lets tests wrap it.
func librarySearch(lib []models.Candidate) func(context.Context, string) ([]models.Candidate, error) {
	return func(ctx context.Context, query string) ([]models.Candidate, error) {
		var hits []models.Candidate
		for _, c := range lib {
			if shared.NormalizeQuery(c.Title, c.Artists) == query {
				hits = append(hits, c)
			}
		}
		return hits, nil
	}
}

func newTestMatcher(opts MatcherOpts) *Matcher {
	opts.Logger = shared.NewLogger(io.Discard)
	return NewMatcher(opts)
}

func TestNewMatcher_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		concurrency int
		want        int
	}{
		{"zero uses default", 0, DefaultConcurrency},
		{"negative uses default", -1, DefaultConcurrency},
		{"explicit", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMatcher(MatcherOpts{Concurrency: tt.concurrency})
			if m.Ceiling() != tt.want {
				t.Errorf("Ceiling() = %d, want %d", m.Ceiling(), tt.want)
			}
			if m.timeout != DefaultLookupTimeout {
				t.Errorf("timeout = %v, want %v", m.timeout, DefaultLookupTimeout)
			}
			if m.threshold != DefaultMatchThreshold {
				t.Errorf("threshold = %v, want %v", m.threshold, DefaultMatchThreshold)
			}
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	creds := services.Credentials{Service: "youtube"}

	t.Run("one result per track in source order", func(t *testing.T) {
		tracks := newTracks(12)
		dest := th.NewFakeCatalog("youtube")
		search := librarySearch(libraryFor(tracks))
		// later tracks answer first
		dest.SearchFunc = func(ctx context.Context, query string) ([]models.Candidate, error) {
			hits, err := search(ctx, query)
			if len(hits) > 0 {
				var pos int
				fmt.Sscanf(hits[0].ID, "dst-%d", &pos)
				time.Sleep(time.Duration(12-pos) * time.Millisecond)
			}
			return hits, err
		}

		m := newTestMatcher(MatcherOpts{Concurrency: 4})
		results := m.Match(context.Background(), dest, creds, tracks, nil)

		if len(results) != len(tracks) {
			t.Fatalf("got %d results, want %d", len(results), len(tracks))
		}
		for i, r := range results {
			if r.Track.Position != i {
				t.Errorf("results[%d].Track.Position = %d", i, r.Track.Position)
			}
			if want := fmt.Sprintf("dst-%d", i); r.DestinationID != want {
				t.Errorf("results[%d].DestinationID = %q, want %q", i, r.DestinationID, want)
			}
			if r.Outcome != models.OutcomeMatched {
				t.Errorf("results[%d].Outcome = %s, want matched", i, r.Outcome)
			}
		}
	})

	t.Run("sends normalized queries", func(t *testing.T) {
		dest := th.NewFakeCatalog("youtube")
		tracks := []models.Track{{Title: "Digital Love (feat. Someone)", Artists: []string{"Daft Punk", "Someone"}}}

		m := newTestMatcher(MatcherOpts{})
		m.Match(context.Background(), dest, creds, tracks, nil)

		queries := dest.Queries()
		if len(queries) != 1 || queries[0] != "daft punk digital love" {
			t.Errorf("queries = %q, want [\"daft punk digital love\"]", queries)
		}
	})

	t.Run("weak candidates are unmatched", func(t *testing.T) {
		tracks := newTracks(1)
		dest := th.NewFakeCatalog("youtube")
		dest.SearchFunc = func(ctx context.Context, query string) ([]models.Candidate, error) {
			return []models.Candidate{{ID: "cover", Title: "Song 0 (Live Cover)", Artists: []string{"Cover Band"}, Duration: 400 * time.Second}}, nil
		}

		results := newTestMatcher(MatcherOpts{}).Match(context.Background(), dest, creds, tracks, nil)

		r := results[0]
		if r.Outcome != models.OutcomeUnmatched {
			t.Fatalf("Outcome = %s, want unmatched", r.Outcome)
		}
		if r.DestinationID != "" {
			t.Errorf("DestinationID = %q, want empty", r.DestinationID)
		}
		if r.Score <= 0 || r.Score >= DefaultMatchThreshold {
			t.Errorf("Score = %v, want in (0, %v)", r.Score, DefaultMatchThreshold)
		}
	})

	t.Run("no candidates is unmatched with zero score", func(t *testing.T) {
		results := newTestMatcher(MatcherOpts{}).Match(context.Background(), th.NewFakeCatalog("youtube"), creds, newTracks(1), nil)
		if results[0].Outcome != models.OutcomeUnmatched || results[0].Score != 0 {
			t.Errorf("got %s score %v, want unmatched score 0", results[0].Outcome, results[0].Score)
		}
	})

	t.Run("empty track list", func(t *testing.T) {
		var calls int
		results := newTestMatcher(MatcherOpts{}).Match(context.Background(), th.NewFakeCatalog("youtube"), creds, nil, func(int, int) { calls++ })
		if len(results) != 0 {
			t.Errorf("got %d results, want 0", len(results))
		}
		if calls != 0 {
			t.Errorf("progress called %d times, want 0", calls)
		}
	})
}

func TestMatcher_ConcurrencyCeiling(t *testing.T) {
	const ceiling = 3

	tracks := newTracks(20)
	search := librarySearch(libraryFor(tracks))

	var current, observed atomic.Int64
	dest := th.NewFakeCatalog("youtube")
	dest.SearchFunc = func(ctx context.Context, query string) ([]models.Candidate, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			peak := observed.Load()
			if n <= peak || observed.CompareAndSwap(peak, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return search(ctx, query)
	}

	m := newTestMatcher(MatcherOpts{Concurrency: ceiling})
	results := m.Match(context.Background(), dest, services.Credentials{}, tracks, nil)

	if len(results) != len(tracks) {
		t.Fatalf("got %d results, want %d", len(results), len(tracks))
	}
	if got := observed.Load(); got > ceiling {
		t.Errorf("observed %d concurrent searches, ceiling is %d", got, ceiling)
	}
	if got := m.PeakInFlight(); got < 1 || got > ceiling {
		t.Errorf("PeakInFlight() = %d, want in [1, %d]", got, ceiling)
	}
	if got := m.InFlight(); got != 0 {
		t.Errorf("InFlight() = %d after Match, want 0", got)
	}
}

func TestMatcher_Progress(t *testing.T) {
	tracks := newTracks(10)
	dest := th.NewFakeCatalog("youtube")
	dest.Library = libraryFor(tracks)

	var calls [][2]int
	m := newTestMatcher(MatcherOpts{Concurrency: 4})
	m.Match(context.Background(), dest, services.Credentials{}, tracks, func(processed, total int) {
		calls = append(calls, [2]int{processed, total})
	})

	if len(calls) != len(tracks) {
		t.Fatalf("progress called %d times, want %d", len(calls), len(tracks))
	}
	for i, c := range calls {
		if c[0] != i+1 {
			t.Errorf("call %d: processed = %d, want %d", i, c[0], i+1)
		}
		if c[1] != len(tracks) {
			t.Errorf("call %d: total = %d, want %d", i, c[1], len(tracks))
		}
	}
}

func TestMatcher_LookupTimeout(t *testing.T) {
	tracks := newTracks(5)
	search := librarySearch(libraryFor(tracks))
	slow := shared.NormalizeQuery(tracks[2].Title, tracks[2].Artists)

	dest := th.NewFakeCatalog("youtube")
	dest.SearchFunc = func(ctx context.Context, query string) ([]models.Candidate, error) {
		if query == slow {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return search(ctx, query)
	}

	m := newTestMatcher(MatcherOpts{Concurrency: 5, LookupTimeout: 50 * time.Millisecond})
	results := m.Match(context.Background(), dest, services.Credentials{}, tracks, nil)

	for i, r := range results {
		if i == 2 {
			if r.Outcome != models.OutcomeErrored || r.Cause != models.CauseTimeout {
				t.Errorf("slow track: got %s/%s, want errored/timeout", r.Outcome, r.Cause)
			}
			if !errors.Is(r.Err, shared.ErrTimeout) {
				t.Errorf("slow track error = %v, want ErrTimeout", r.Err)
			}
			continue
		}
		if r.Outcome != models.OutcomeMatched {
			t.Errorf("track %d: outcome = %s, want matched", i, r.Outcome)
		}
	}
}

func TestMatcher_LookupTimeoutUncooperativeClient(t *testing.T) {
	tracks := newTracks(3)
	search := librarySearch(libraryFor(tracks))
	stuck := shared.NormalizeQuery(tracks[1].Title, tracks[1].Artists)

	release := make(chan struct{})
	var returned sync.WaitGroup
	returned.Add(1)

	dest := th.NewFakeCatalog("youtube")
	dest.SearchFunc = func(ctx context.Context, query string) ([]models.Candidate, error) {
		if query != stuck {
			return search(ctx, query)
		}
		defer returned.Done()
		// ignores ctx and answers late with an exact hit
		select {
		case <-release:
		case <-time.After(300 * time.Millisecond):
		}
		return search(context.Background(), query)
	}

	m := newTestMatcher(MatcherOpts{Concurrency: 3, LookupTimeout: 20 * time.Millisecond})

	start := time.Now()
	results := m.Match(context.Background(), dest, services.Credentials{}, tracks, nil)
	elapsed := time.Since(start)

	close(release)
	returned.Wait()

	if elapsed >= 200*time.Millisecond {
		t.Errorf("Match took %v, want it bounded by the 20ms lookup timeout", elapsed)
	}
	if r := results[1]; r.Outcome != models.OutcomeErrored || r.Cause != models.CauseTimeout {
		t.Errorf("stuck track: got %s/%s, want errored/timeout", r.Outcome, r.Cause)
	}
	if !errors.Is(results[1].Err, shared.ErrTimeout) {
		t.Errorf("stuck track error = %v, want ErrTimeout", results[1].Err)
	}
	for _, i := range []int{0, 2} {
		if results[i].Outcome != models.OutcomeMatched {
			t.Errorf("track %d: outcome = %s, want matched", i, results[i].Outcome)
		}
	}
	if m.InFlight() != 0 {
		t.Errorf("InFlight = %d after Match, want 0", m.InFlight())
	}
}

func TestMatcher_ThresholdIsExclusive(t *testing.T) {
	tracks := newTracks(1)
	lib := libraryFor(tracks)
	_, score := BestCandidate(tracks[0], lib)

	tests := []struct {
		name      string
		threshold float64
		want      models.Outcome
	}{
		{"score equal to threshold", score, models.OutcomeUnmatched},
		{"score above threshold", score - 0.01, models.OutcomeMatched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := th.NewFakeCatalog("youtube")
			dest.Library = lib

			m := newTestMatcher(MatcherOpts{Threshold: tt.threshold})
			results := m.Match(context.Background(), dest, services.Credentials{}, tracks, nil)

			if results[0].Outcome != tt.want {
				t.Errorf("score %.3f at threshold %.3f: outcome = %s, want %s", score, tt.threshold, results[0].Outcome, tt.want)
			}
		})
	}
}

func TestMatcher_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCause models.Cause
	}{
		{"upstream 429", fmt.Errorf("%w: slow down", shared.ErrRateLimited), models.CauseRateLimited},
		{"client timeout", fmt.Errorf("%w: read", shared.ErrTimeout), models.CauseTimeout},
		{"server error", fmt.Errorf("%w: 502", shared.ErrServiceUnavailable), models.CauseLookupFailed},
		{"anything else", errors.New("boom"), models.CauseLookupFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := th.NewFakeCatalog("youtube")
			dest.SearchFunc = func(ctx context.Context, query string) ([]models.Candidate, error) {
				return nil, tt.err
			}

			results := newTestMatcher(MatcherOpts{}).Match(context.Background(), dest, services.Credentials{}, newTracks(2), nil)

			for _, r := range results {
				if r.Outcome != models.OutcomeErrored {
					t.Errorf("Outcome = %s, want errored", r.Outcome)
				}
				if r.Cause != tt.wantCause {
					t.Errorf("Cause = %s, want %s", r.Cause, tt.wantCause)
				}
				if r.Err == nil {
					t.Error("expected Err to be set")
				}
			}
			if dest.Searches() != 2 {
				t.Errorf("searches = %d, want 2 (no retries)", dest.Searches())
			}
		})
	}
}

func TestMatcher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := th.NewFakeCatalog("youtube")
	var calls int
	results := newTestMatcher(MatcherOpts{}).Match(ctx, dest, services.Credentials{}, newTracks(3), func(int, int) { calls++ })

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, r := range results {
		if r.Outcome != models.OutcomeErrored || r.Cause != models.CauseLookupFailed {
			t.Errorf("results[%d] = %s/%s, want errored/lookup_failed", i, r.Outcome, r.Cause)
		}
	}
	if calls != 3 {
		t.Errorf("progress called %d times, want 3", calls)
	}
	if dest.Searches() != 0 {
		t.Errorf("searches = %d, want 0", dest.Searches())
	}
}

func TestMatcher_RateLimit(t *testing.T) {
	tracks := newTracks(5)
	dest := th.NewFakeCatalog("youtube")
	dest.Library = libraryFor(tracks)

	m := newTestMatcher(MatcherOpts{Concurrency: 5, LookupsPerSecond: 20})

	start := time.Now()
	results := m.Match(context.Background(), dest, services.Credentials{}, tracks, nil)
	elapsed := time.Since(start)

	if matched, _ := models.Partition(results); len(matched) != 5 {
		t.Errorf("matched %d, want 5", len(matched))
	}
	// burst of one, then 50ms per lookup
	if elapsed < 150*time.Millisecond {
		t.Errorf("5 lookups at 20/s finished in %v, expected throttling", elapsed)
	}
}
