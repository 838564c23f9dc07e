// package testing contains shared testing utilities and in-memory doubles for the worker's collaborators.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

// FakePlaylist is a playlist created through [FakeCatalog].
type FakePlaylist struct {
	ID    string
	Name  string
	Items []string
}

// FakeCatalog is an in-memory [services.Catalog].
//
// Search answers from Candidates keyed by the normalized query, then from Library entries whose own normalized
// query equals the request. SearchFunc, when set, replaces both. A positive Limit makes the catalog chunked.
type FakeCatalog struct {
	ServiceName string
	Playlists   map[string][]models.Track
	Library     []models.Candidate
	Candidates  map[string][]models.Candidate
	SearchFunc  func(ctx context.Context, query string) ([]models.Candidate, error)
	Limit       int

	FetchErr  error
	CreateErr error
	AppendErr error

	mu       sync.Mutex
	queries  []string
	created  []*FakePlaylist
	appends  int
	searches atomic.Int64
	fetches  atomic.Int64
}

// NewFakeCatalog creates an empty FakeCatalog named name.
func NewFakeCatalog(name string) *FakeCatalog {
	return &FakeCatalog{
		ServiceName: name,
		Playlists:   make(map[string][]models.Track),
		Candidates:  make(map[string][]models.Candidate),
	}
}

func (f *FakeCatalog) Name() string { return f.ServiceName }

func (f *FakeCatalog) FetchSourceTracks(ctx context.Context, creds services.Credentials, playlistID string) ([]models.Track, error) {
	f.fetches.Add(1)
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	tracks, ok := f.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return tracks, nil
}

func (f *FakeCatalog) SearchDestinationCatalog(ctx context.Context, creds services.Credentials, query string) ([]models.Candidate, error) {
	f.searches.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, query)
	}
	if candidates, ok := f.Candidates[query]; ok {
		return candidates, nil
	}

	var hits []models.Candidate
	for _, c := range f.Library {
		if shared.NormalizeQuery(c.Title, c.Artists) == query {
			hits = append(hits, c)
		}
	}
	return hits, nil
}

func (f *FakeCatalog) CreateDestinationPlaylist(ctx context.Context, creds services.Credentials, name string, itemIDs []string) (string, error) {
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if f.Limit > 0 && len(itemIDs) > f.Limit {
		return "", fmt.Errorf("%w: %d items exceeds limit %d", shared.ErrAPIRequest, len(itemIDs), f.Limit)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	pl := &FakePlaylist{
		ID:    fmt.Sprintf("%s-playlist-%d", f.ServiceName, len(f.created)+1),
		Name:  name,
		Items: append([]string{}, itemIDs...),
	}
	f.created = append(f.created, pl)
	return pl.ID, nil
}

func (f *FakeCatalog) BatchLimit() int { return f.Limit }

func (f *FakeCatalog) AppendToPlaylist(ctx context.Context, creds services.Credentials, playlistID string, itemIDs []string) error {
	if f.AppendErr != nil {
		return f.AppendErr
	}
	if f.Limit > 0 && len(itemIDs) > f.Limit {
		return fmt.Errorf("%w: %d items exceeds limit %d", shared.ErrAPIRequest, len(itemIDs), f.Limit)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, pl := range f.created {
		if pl.ID == playlistID {
			pl.Items = append(pl.Items, itemIDs...)
			f.appends++
			return nil
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

// Created returns copies of the playlists created so far.
func (f *FakeCatalog) Created() []FakePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakePlaylist, 0, len(f.created))
	for _, pl := range f.created {
		out = append(out, FakePlaylist{ID: pl.ID, Name: pl.Name, Items: append([]string{}, pl.Items...)})
	}
	return out
}

// Appends returns the number of successful append calls.
func (f *FakeCatalog) Appends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

// Queries returns the search queries received, in arrival order.
func (f *FakeCatalog) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.queries...)
}

func (f *FakeCatalog) Searches() int { return int(f.searches.Load()) }
func (f *FakeCatalog) Fetches() int  { return int(f.fetches.Load()) }

// FakeResolver resolves sessions from a map. Unknown sessions are reported as expired.
type FakeResolver struct {
	Sessions map[string]services.Credentials
	Err      error
	calls    atomic.Int64
}

func (r *FakeResolver) ResolveSession(ctx context.Context, sessionID string) (services.Credentials, error) {
	r.calls.Add(1)
	if r.Err != nil {
		return services.Credentials{}, r.Err
	}
	creds, ok := r.Sessions[sessionID]
	if !ok {
		return services.Credentials{}, fmt.Errorf("%w: %w: %s", shared.ErrCredentialsExpired, shared.ErrSessionNotFound, sessionID)
	}
	return creds, nil
}

func (r *FakeResolver) Calls() int { return int(r.calls.Load()) }

// StatusRecorder records every published [models.ConversionStatus].
type StatusRecorder struct {
	Err error

	mu        sync.Mutex
	published []models.ConversionStatus
}

func (s *StatusRecorder) Publish(ctx context.Context, st models.ConversionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, st)
	return s.Err
}

// Published returns every status in publish order.
func (s *StatusRecorder) Published() []models.ConversionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ConversionStatus{}, s.published...)
}

// Statuses returns the distinct lifecycle statuses in the order they were first published.
func (s *StatusRecorder) Statuses() []models.Status {
	var out []models.Status
	for _, st := range s.Published() {
		if len(out) == 0 || out[len(out)-1] != st.Status {
			out = append(out, st.Status)
		}
	}
	return out
}

// Last returns the most recent status, or the zero value.
func (s *StatusRecorder) Last() models.ConversionStatus {
	published := s.Published()
	if len(published) == 0 {
		return models.ConversionStatus{}
	}
	return published[len(published)-1]
}

// FailureCall is one [FakeHistory.RecordFailure] invocation.
type FailureCall struct {
	JobID string
	Stage models.Stage
	Cause models.Cause
}

// PersistCall is one successful [FakeHistory.Persist] invocation.
type PersistCall struct {
	JobID                 string
	DestinationPlaylistID string
	Results               []models.MatchResult
}

// FakeHistory is an in-memory history store.
type FakeHistory struct {
	PersistErr error
	FailureErr error

	mu        sync.Mutex
	persisted []PersistCall
	failures  []FailureCall
	completed map[string]time.Time
}

func (h *FakeHistory) Persist(ctx context.Context, job *models.ConversionJob, destinationPlaylistID string, results []models.MatchResult) error {
	if h.PersistErr != nil {
		return h.PersistErr
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.persisted = append(h.persisted, PersistCall{
		JobID:                 job.ID,
		DestinationPlaylistID: destinationPlaylistID,
		Results:               append([]models.MatchResult{}, results...),
	})
	return nil
}

func (h *FakeHistory) RecordFailure(ctx context.Context, job *models.ConversionJob, stage models.Stage, cause models.Cause) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, FailureCall{JobID: job.ID, Stage: stage, Cause: cause})
	return h.FailureErr
}

func (h *FakeHistory) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.completed == nil {
		h.completed = make(map[string]time.Time)
	}
	h.completed[id] = at
	return nil
}

func (h *FakeHistory) Persisted() []PersistCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PersistCall{}, h.persisted...)
}

func (h *FakeHistory) Failures() []FailureCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]FailureCall{}, h.failures...)
}

// CompletedAt returns the completion stamp for id, if any.
func (h *FakeHistory) CompletedAt(id string) (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	at, ok := h.completed[id]
	return at, ok
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
