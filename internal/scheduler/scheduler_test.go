package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/scheduler"
	"curator/internal/services"
	"curator/internal/settings"
	"curator/internal/testsupport"
)

type fakeWorker struct {
	mu        sync.Mutex
	started   []int64
	block     chan struct{}
	failWith  error
	failOnce  error
	completer *catalog.Store
}

func (w *fakeWorker) Process(ctx context.Context, job *catalog.Job) error {
	w.mu.Lock()
	w.started = append(w.started, job.ID)
	once := w.failOnce
	w.failOnce = nil
	w.mu.Unlock()

	if w.block != nil {
		<-w.block
	}
	if once != nil {
		return once
	}
	if w.failWith != nil {
		return w.failWith
	}
	if w.completer != nil {
		return w.completer.CompleteJob(ctx, job.ID, nil)
	}
	return nil
}

func (w *fakeWorker) startedJobs() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]int64, len(w.started))
	copy(out, w.started)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newFixture(t *testing.T) (*config.Config, *catalog.Store, *settings.Service) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.JobPollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(store)
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	return cfg, store, svc
}

func enqueue(t *testing.T, store *catalog.Store, folderID int64, name string) *catalog.Job {
	t.Helper()
	file, err := store.BeginFileScan(context.Background(), folderID, filepath.Join("/media", name), name, 1024, time.Now().UTC())
	if err != nil {
		t.Fatalf("BeginFileScan failed: %v", err)
	}
	job, err := store.EnqueueJob(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	return job
}

func TestDispatchesQueuedJobsInOrder(t *testing.T) {
	cfg, store, svc := newFixture(t)
	folder := testsupport.NewFolder(t, store, "/media", "Media")

	first := enqueue(t, store, folder.ID, "a.mkv")
	second := enqueue(t, store, folder.ID, "b.mkv")

	worker := &fakeWorker{completer: store}
	sched := scheduler.New(cfg, store, svc, worker, nil, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(sched.Stop)

	waitFor(t, 5*time.Second, func() bool {
		return len(worker.startedJobs()) == 2
	})

	started := worker.startedJobs()
	if started[0] != first.ID || started[1] != second.ID {
		t.Fatalf("expected FIFO dispatch %d,%d, got %v", first.ID, second.ID, started)
	}

	waitFor(t, 5*time.Second, func() bool {
		job, err := store.JobByID(context.Background(), second.ID)
		return err == nil && job.Status == catalog.JobCompleted
	})
}

func TestRespectsConcurrencyCeiling(t *testing.T) {
	cfg, store, svc := newFixture(t)
	folder := testsupport.NewFolder(t, store, "/media", "Media")

	enqueue(t, store, folder.ID, "a.mkv")
	enqueue(t, store, folder.ID, "b.mkv")
	enqueue(t, store, folder.ID, "c.mkv")

	block := make(chan struct{})
	worker := &fakeWorker{block: block, completer: store}
	sched := scheduler.New(cfg, store, svc, worker, nil, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(sched.Stop)

	// Default ceiling is one; only the first job may start while blocked.
	waitFor(t, 5*time.Second, func() bool {
		return len(worker.startedJobs()) == 1
	})
	time.Sleep(1500 * time.Millisecond)
	if got := len(worker.startedJobs()); got != 1 {
		t.Fatalf("expected 1 running job under ceiling, got %d", got)
	}

	close(block)
	waitFor(t, 10*time.Second, func() bool {
		return len(worker.startedJobs()) == 3
	})
}

func TestRequeuesOrphansBeforeDispatch(t *testing.T) {
	cfg, store, svc := newFixture(t)
	folder := testsupport.NewFolder(t, store, "/media", "Media")

	// Simulate a job left processing by a crashed daemon.
	orphan := enqueue(t, store, folder.ID, "a.mkv")
	if _, err := store.ClaimJob(context.Background(), orphan.ID); err != nil {
		t.Fatalf("ClaimJob failed: %v", err)
	}
	if err := store.SetJobTempPath(context.Background(), orphan.ID, "/tmp/curator-job-dead"); err != nil {
		t.Fatalf("SetJobTempPath failed: %v", err)
	}

	worker := &fakeWorker{completer: store}
	sched := scheduler.New(cfg, store, svc, worker, nil, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(sched.Stop)

	waitFor(t, 5*time.Second, func() bool {
		job, err := store.JobByID(context.Background(), orphan.ID)
		return err == nil && job.Status == catalog.JobCompleted
	})

	started := worker.startedJobs()
	if len(started) != 1 || started[0] != orphan.ID {
		t.Fatalf("expected orphan requeued and processed, got %v", started)
	}
}

func TestWorkerErrorMarksJobFailed(t *testing.T) {
	cfg, store, svc := newFixture(t)
	folder := testsupport.NewFolder(t, store, "/media", "Media")
	job := enqueue(t, store, folder.ID, "a.mkv")

	worker := &fakeWorker{failWith: errors.New("boom")}
	sched := scheduler.New(cfg, store, svc, worker, nil, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(sched.Stop)

	waitFor(t, 5*time.Second, func() bool {
		failed, err := store.JobByID(context.Background(), job.ID)
		return err == nil && failed.Status == catalog.JobFailed
	})

	failed, err := store.JobByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobByID failed: %v", err)
	}
	if failed.ErrorMessage == "" {
		t.Fatalf("expected failure message recorded: %#v", failed)
	}
}

func TestTransientWorkerErrorRequeuesJob(t *testing.T) {
	cfg, store, svc := newFixture(t)
	folder := testsupport.NewFolder(t, store, "/media", "Media")
	job := enqueue(t, store, folder.ID, "a.mkv")

	// First attempt hits a transient failure; the scheduler requeues it and
	// the second attempt completes.
	worker := &fakeWorker{
		failOnce:  services.Wrap(services.ErrTransient, "transcode", "probe", "", errors.New("tool busy")),
		completer: store,
	}
	sched := scheduler.New(cfg, store, svc, worker, nil, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(sched.Stop)

	waitFor(t, 10*time.Second, func() bool {
		current, err := store.JobByID(context.Background(), job.ID)
		return err == nil && current.Status == catalog.JobCompleted
	})

	if got := len(worker.startedJobs()); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestStopWaitsForInFlightJobs(t *testing.T) {
	cfg, store, svc := newFixture(t)
	folder := testsupport.NewFolder(t, store, "/media", "Media")
	enqueue(t, store, folder.ID, "a.mkv")

	block := make(chan struct{})
	worker := &fakeWorker{block: block, completer: store}
	sched := scheduler.New(cfg, store, svc, worker, nil, nil)
	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return sched.ActiveCount() == 1
	})

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned while a job was still running")
	case <-time.After(200 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after jobs finished")
	}
}
