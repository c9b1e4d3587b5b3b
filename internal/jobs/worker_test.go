package jobs

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/shoplist/shoplist/internal/classify"
	"github.com/shoplist/shoplist/internal/models"
	"github.com/shoplist/shoplist/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"))
}

func startPool(t *testing.T, pool *WorkerPool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		defer cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		if err := pool.Stop(stopCtx); err != nil {
			t.Fatalf("stop worker pool: %v", err)
		}
	})
}

func TestWorkerPoolProcessesJobs(t *testing.T) {
	db, storeID := setupQueueTestDB(t)
	q := NewQueue(db, QueueOptions{RetryDelay: 5 * time.Millisecond, MaxAttempts: 2})

	job, err := q.EnqueueOrganize(context.Background(), storeID)
	if err != nil {
		t.Fatal(err)
	}

	var processed atomic.Int32
	pool := NewWorkerPool(q, func(ctx context.Context, claimed *models.OrganizeJob) error {
		if claimed == nil {
			return errors.New("claimed job is nil")
		}
		if claimed.StoreID != storeID {
			return errors.New("unexpected store id")
		}
		processed.Add(1)
		return nil
	}, WorkerPoolOptions{
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
	})
	startPool(t, pool)

	waitForJobStatus(t, q, job.ID, models.OrganizeJobCompleted, 2*time.Second)
	if got := processed.Load(); got != 1 {
		t.Fatalf("processed count = %d, want 1", got)
	}
}

func TestWorkerPoolRetriesAndFailsAfterMaxAttempts(t *testing.T) {
	db, storeID := setupQueueTestDB(t)
	q := NewQueue(db, QueueOptions{RetryDelay: 5 * time.Millisecond, MaxAttempts: 2})

	job, err := q.EnqueueOrganize(context.Background(), storeID)
	if err != nil {
		t.Fatal(err)
	}

	var attempts atomic.Int32
	pool := NewWorkerPool(q, func(ctx context.Context, claimed *models.OrganizeJob) error {
		attempts.Add(1)
		return errors.New("boom")
	}, WorkerPoolOptions{
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
	})
	startPool(t, pool)

	status := waitForJobStatus(t, q, job.ID, models.OrganizeJobFailed, 3*time.Second)
	if got := attempts.Load(); got < 2 {
		t.Fatalf("attempts = %d, want >= 2", got)
	}
	if status.AttemptCount != 2 {
		t.Fatalf("attempt count = %d, want 2", status.AttemptCount)
	}
	if !strings.Contains(status.LastError, "boom") {
		t.Fatalf("last error = %q, want to contain boom", status.LastError)
	}
}

func TestWorkerPoolJobTimeout(t *testing.T) {
	db, storeID := setupQueueTestDB(t)
	q := NewQueue(db, QueueOptions{MaxAttempts: 1})

	job, err := q.EnqueueOrganize(context.Background(), storeID)
	if err != nil {
		t.Fatal(err)
	}
	pool := NewWorkerPool(q, func(ctx context.Context, _ *models.OrganizeJob) error {
		<-ctx.Done()
		return ctx.Err()
	}, WorkerPoolOptions{
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
		JobTimeout:   20 * time.Millisecond,
	})
	startPool(t, pool)

	status := waitForJobStatus(t, q, job.ID, models.OrganizeJobFailed, 2*time.Second)
	if !strings.Contains(status.LastError, "deadline") {
		t.Fatalf("last error = %q, want deadline exceeded", status.LastError)
	}
}

type stubOrganizer struct {
	err   error
	calls atomic.Int32
}

func (s *stubOrganizer) Organize(ctx context.Context, storeID int64) (service.OrganizeResult, error) {
	s.calls.Add(1)
	return service.OrganizeResult{Proposed: 1, Applied: 1}, s.err
}

func TestOrganizeProcessorClassifiesFailures(t *testing.T) {
	job := &models.OrganizeJob{ID: 1, StoreID: 7}

	ok := &stubOrganizer{}
	if err := OrganizeProcessor(ok, nil)(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	if ok.calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", ok.calls.Load())
	}

	for name, tc := range map[string]struct {
		err       error
		permanent bool
	}{
		"missing store":   {err: service.ErrNotFound, permanent: true},
		"no classifier":   {err: classify.ErrNotConfigured, permanent: true},
		"upstream outage": {err: errors.New("503 from provider")},
	} {
		err := OrganizeProcessor(&stubOrganizer{err: tc.err}, nil)(context.Background(), job)
		if !errors.Is(err, tc.err) {
			t.Fatalf("%s: err = %v, want wrapping %v", name, err, tc.err)
		}
		if got := errors.Is(err, ErrPermanent); got != tc.permanent {
			t.Fatalf("%s: permanent = %v, want %v", name, got, tc.permanent)
		}
	}
}

func waitForJobStatus(t *testing.T, q *Queue, jobID int64, want models.OrganizeJobStatus, timeout time.Duration) *models.OrganizeJob {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := q.Status(context.Background(), jobID)
		if err != nil {
			t.Fatal(err)
		}
		if status != nil && status.Status == want {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %q", want)
	return nil
}
