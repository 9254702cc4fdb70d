// Package scheduler dispatches queued processing jobs to workers, bounded by
// the max_concurrent_jobs setting.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/services"
	"curator/internal/settings"
)

// Worker executes one claimed job to completion. Implementations own the
// terminal status transition (completed or failed) on the job.
type Worker interface {
	Process(ctx context.Context, job *catalog.Job) error
}

// Scheduler polls the catalog for queued jobs and runs them on goroutines.
type Scheduler struct {
	cfg      *config.Config
	store    *catalog.Store
	settings *settings.Service
	worker   Worker
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration

	mu      sync.Mutex
	active  map[int64]struct{}
	running bool
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	jobWG   sync.WaitGroup
}

// New constructs a Scheduler.
func New(cfg *config.Config, store *catalog.Store, svc *settings.Service, worker Worker, notifier notifications.Service, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Scheduler{
		cfg:          cfg,
		store:        store,
		settings:     svc,
		worker:       worker,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		pollInterval: time.Duration(cfg.Workflow.JobPollInterval) * time.Second,
		active:       make(map[int64]struct{}),
	}
}

// Start launches the poll loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.loopWG.Add(1)
	go s.run(runCtx)
	return nil
}

// Stop cancels the poll loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.loopWG.Wait()
	s.jobWG.Wait()
}

// ActiveCount reports how many jobs are currently running.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.loopWG.Done()

	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// cycle performs one scheduling pass: recover orphans when idle, then
// dispatch queued jobs up to the concurrency ceiling.
func (s *Scheduler) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	// Orphan recovery is only safe while nothing is running locally: any job
	// still marked processing must belong to a previous daemon instance.
	if s.ActiveCount() == 0 {
		s.recoverOrphans(ctx)
	}

	ceiling := s.settings.MaxConcurrentJobs(ctx)
	for s.ActiveCount() < ceiling {
		job, err := s.store.NextQueuedJob(ctx)
		if errors.Is(err, catalog.ErrNotFound) {
			return
		}
		if err != nil {
			s.logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check catalog database access"),
			)
			return
		}
		if !s.dispatch(ctx, job) {
			return
		}
	}
}

func (s *Scheduler) recoverOrphans(ctx context.Context) {
	orphans, err := s.store.RequeueOrphans(ctx)
	if err != nil {
		s.logger.Error("orphan recovery failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "orphan_recovery_failed"),
		)
		return
	}
	for _, job := range orphans {
		s.logger.Warn("requeued orphaned job from previous run",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64(logging.FieldFileID, job.FileID),
			logging.String("stale_temp_path", job.TempPath),
			logging.String(logging.FieldEventType, "job_requeued"),
		)
	}
}

// dispatch claims the job and runs the worker on a tracked goroutine.
// Returns false when the claim was lost and the cycle should stop.
func (s *Scheduler) dispatch(ctx context.Context, job *catalog.Job) bool {
	claimed, err := s.store.ClaimJob(ctx, job.ID)
	if errors.Is(err, catalog.ErrNotFound) {
		// Claimed elsewhere between fetch and claim.
		return true
	}
	if err != nil {
		s.logger.Error("failed to claim job",
			logging.Error(err),
			logging.Int64(logging.FieldJobID, job.ID),
		)
		return false
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.active[claimed.ID] = struct{}{}
	s.jobWG.Add(1)
	s.mu.Unlock()

	s.logger.Info("job started",
		logging.Int64(logging.FieldJobID, claimed.ID),
		logging.Int64(logging.FieldFileID, claimed.FileID),
		logging.String(logging.FieldEventType, "job_started"),
	)
	if err := s.notifier.NotifyJobStarted(ctx, claimed); err != nil {
		s.logger.Warn("start notification failed", logging.Error(err))
	}

	go func(job *catalog.Job) {
		defer s.jobWG.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, job.ID)
			s.mu.Unlock()
		}()
		s.runJob(ctx, job)
	}(claimed)
	return true
}

func (s *Scheduler) runJob(ctx context.Context, job *catalog.Job) {
	err := s.worker.Process(ctx, job)
	if err == nil {
		s.logger.Info("job completed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64(logging.FieldFileID, job.FileID),
			logging.String(logging.FieldEventType, "job_completed"),
		)
		if notifyErr := s.notifier.NotifyJobCompleted(ctx, job); notifyErr != nil {
			s.logger.Warn("completion notification failed", logging.Error(notifyErr))
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		// Shutdown mid-job: leave the row processing; the next daemon start
		// requeues it through orphan recovery.
		s.logger.Info("job interrupted by shutdown",
			logging.Int64(logging.FieldJobID, job.ID),
		)
		return
	}

	s.logger.Error("job failed",
		logging.Error(err),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64(logging.FieldFileID, job.FileID),
		logging.String(logging.FieldEventType, "job_failed"),
	)

	// Workers normally persist their own failure; this is the backstop for
	// workers that return before reaching their terminal transition.
	if current, lookupErr := s.store.JobByID(ctx, job.ID); lookupErr == nil && !current.Status.IsTerminal() {
		if failErr := s.store.FailJob(ctx, job.ID, fmt.Sprintf("worker error: %v", err)); failErr != nil {
			s.logger.Error("failed to record job failure",
				logging.Error(failErr),
				logging.Int64(logging.FieldJobID, job.ID),
			)
		}
	}

	// Transient failures go back into the queue for a later cycle rather
	// than waiting for a manual retry, and skip the failure notification.
	if services.IsRetryable(err) {
		if _, retryErr := s.store.RetryJob(ctx, job.ID); retryErr != nil {
			s.logger.Error("failed to requeue job after transient failure",
				logging.Error(retryErr),
				logging.Int64(logging.FieldJobID, job.ID),
			)
		} else {
			s.logger.Info("job requeued after transient failure",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String(logging.FieldEventType, "job_requeued"),
			)
		}
		return
	}

	if notifyErr := s.notifier.NotifyJobFailed(ctx, job, err); notifyErr != nil {
		s.logger.Warn("failure notification failed", logging.Error(notifyErr))
	}
}
