package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/observability/metrics"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

type recordingProcessor struct {
	mu     sync.Mutex
	seen   []string
	notify chan string
	fn     func(ctx context.Context, job *models.ConversionJob) error
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{notify: make(chan string, 100)}
}

func (p *recordingProcessor) Process(ctx context.Context, job *models.ConversionJob) error {
	var err error
	if p.fn != nil {
		err = p.fn(ctx, job)
	}
	p.mu.Lock()
	p.seen = append(p.seen, job.ID)
	p.mu.Unlock()
	p.notify <- job.ID
	return err
}

func (p *recordingProcessor) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

type fakeStatus struct {
	mu        sync.Mutex
	published []models.ConversionStatus
}

func (f *fakeStatus) Publish(_ context.Context, st models.ConversionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, st)
	return nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func newJob(id string) *models.ConversionJob {
	return &models.ConversionJob{
		ID:                   id,
		SourcePlaylistID:     "pl-" + id,
		SourceSessionID:      "src",
		DestinationSessionID: "dst",
		CreatedAt:            time.Now().UTC(),
		Status:               models.StatusQueued,
	}
}

func waitFor(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case id := <-ch:
			got = append(got, id)
		case <-timeout:
			t.Fatalf("timed out after %d of %d jobs", len(got), n)
		}
	}
	return got
}

func startConsumer(t *testing.T, c *Consumer) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	return cancelFn, errCh
}

func stop(t *testing.T, cancel func(), done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumer(t *testing.T) {
	ctx := context.Background()
	opts := ConsumerOpts{Key: "jobs", BlockTimeout: time.Second}

	t.Run("processes jobs in FIFO order", func(t *testing.T) {
		client := newTestRedis(t)
		producer := NewProducer(client, "jobs", nil)
		for _, id := range []string{"a", "b", "c"} {
			if err := producer.Enqueue(ctx, newJob(id)); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}

		proc := newRecordingProcessor()
		cancel, done := startConsumer(t, NewConsumer(client, proc, opts))
		got := waitFor(t, proc.notify, 3)
		stop(t, cancel, done)

		if fmt.Sprint(got) != "[a b c]" {
			t.Errorf("expected FIFO order [a b c], got %v", got)
		}
	})

	t.Run("competing consumers process each job once", func(t *testing.T) {
		client := newTestRedis(t)
		producer := NewProducer(client, "jobs", nil)

		const jobs = 20
		delivered := make(chan string, jobs)
		procA, procB := newRecordingProcessor(), newRecordingProcessor()
		procA.notify, procB.notify = delivered, delivered

		cancelA, doneA := startConsumer(t, NewConsumer(client, procA, opts))
		cancelB, doneB := startConsumer(t, NewConsumer(client, procB, opts))

		for i := range jobs {
			if err := producer.Enqueue(ctx, newJob(fmt.Sprintf("job-%02d", i))); err != nil {
				t.Fatalf("enqueue failed: %v", err)
			}
		}

		got := waitFor(t, delivered, jobs)
		stop(t, cancelA, doneA)
		stop(t, cancelB, doneB)

		counts := make(map[string]int)
		for _, id := range got {
			counts[id]++
		}
		if len(counts) != jobs {
			t.Errorf("expected %d distinct jobs, got %d", jobs, len(counts))
		}
		for id, n := range counts {
			if n != 1 {
				t.Errorf("job %s processed %d times", id, n)
			}
		}
		if len(procA.ids())+len(procB.ids()) != jobs {
			t.Errorf("expected %d total deliveries, got %d", jobs, len(procA.ids())+len(procB.ids()))
		}
	})

	t.Run("malformed payload is discarded", func(t *testing.T) {
		client := newTestRedis(t)
		m, _ := metrics.NewWorkerMetrics(prometheus.NewRegistry())

		client.LPush(ctx, "jobs", "{not json")
		client.LPush(ctx, "jobs", `{"id":"missing-fields"}`)
		NewProducer(client, "jobs", nil).Enqueue(ctx, newJob("good"))

		proc := newRecordingProcessor()
		consumerOpts := opts
		consumerOpts.Metrics = m
		cancel, done := startConsumer(t, NewConsumer(client, proc, consumerOpts))
		got := waitFor(t, proc.notify, 1)
		stop(t, cancel, done)

		if got[0] != "good" {
			t.Errorf("expected only the valid job, got %v", got)
		}
		if n := client.LLen(ctx, "jobs").Val(); n != 0 {
			t.Errorf("expected malformed payloads to be removed, %d left", n)
		}

		count := testutil.CollectAndCount(m, "plconv_malformed_payloads_total")
		if count != 1 {
			t.Errorf("expected malformed counter series, got %d", count)
		}
	})

	t.Run("shutdown lets the in-flight job finish", func(t *testing.T) {
		client := newTestRedis(t)
		NewProducer(client, "jobs", nil).Enqueue(ctx, newJob("slow"))
		NewProducer(client, "jobs", nil).Enqueue(ctx, newJob("never"))

		started := make(chan struct{})
		release := make(chan struct{})
		var jobCtxErr error

		proc := newRecordingProcessor()
		proc.fn = func(jobCtx context.Context, job *models.ConversionJob) error {
			close(started)
			<-release
			jobCtxErr = jobCtx.Err()
			return nil
		}

		cancel, done := startConsumer(t, NewConsumer(client, proc, opts))
		<-started
		cancel()

		select {
		case <-done:
			t.Fatal("Run returned while a job was in flight")
		case <-time.After(100 * time.Millisecond):
		}

		close(release)
		stop(t, func() {}, done)

		if jobCtxErr != nil {
			t.Errorf("in-flight job context was cancelled: %v", jobCtxErr)
		}
		if ids := proc.ids(); len(ids) != 1 || ids[0] != "slow" {
			t.Errorf("expected only the in-flight job, got %v", ids)
		}
		if n := client.LLen(ctx, "jobs").Val(); n != 1 {
			t.Errorf("expected the second job to stay queued, got depth %d", n)
		}
	})

	t.Run("processor failure and panic do not stop the loop", func(t *testing.T) {
		client := newTestRedis(t)
		producer := NewProducer(client, "jobs", nil)
		for _, id := range []string{"boom", "fail", "ok"} {
			producer.Enqueue(ctx, newJob(id))
		}

		proc := newRecordingProcessor()
		proc.fn = func(_ context.Context, job *models.ConversionJob) error {
			switch job.ID {
			case "boom":
				proc.notify <- job.ID
				panic("orchestrator bug")
			case "fail":
				return errors.New("source fetch failed")
			}
			return nil
		}

		cancel, done := startConsumer(t, NewConsumer(client, proc, opts))
		got := waitFor(t, proc.notify, 3)
		stop(t, cancel, done)

		if fmt.Sprint(got) != "[boom fail ok]" {
			t.Errorf("expected all three jobs, got %v", got)
		}
	})
}

func TestProducer(t *testing.T) {
	ctx := context.Background()

	t.Run("Enqueue publishes queued status", func(t *testing.T) {
		client := newTestRedis(t)
		st := &fakeStatus{}
		producer := NewProducer(client, "jobs", st)

		if err := producer.Enqueue(ctx, newJob("j1")); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if len(st.published) != 1 || st.published[0].Status != models.StatusQueued || st.published[0].JobID != "j1" {
			t.Errorf("unexpected published statuses %+v", st.published)
		}

		depth, err := producer.Depth(ctx)
		if err != nil || depth != 1 {
			t.Errorf("expected depth 1, got %d (%v)", depth, err)
		}
	})

	t.Run("Enqueue rejects non-queued jobs", func(t *testing.T) {
		client := newTestRedis(t)
		job := newJob("j2")
		job.Status = models.StatusProcessing

		err := NewProducer(client, "jobs", nil).Enqueue(ctx, job)
		if !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("Enqueue rejects invalid jobs", func(t *testing.T) {
		client := newTestRedis(t)
		job := newJob("j3")
		job.SourceSessionID = ""

		if err := NewProducer(client, "jobs", nil).Enqueue(ctx, job); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}
