package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/scanner"
	"curator/internal/scheduler"
	"curator/internal/settings"
	"curator/internal/transcode"
	"curator/internal/watcher"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *catalog.Store
	settings *settings.Service
	notifier notifications.Service

	scanner   *scanner.Scanner
	watcher   *watcher.Watcher
	scheduler *scheduler.Scheduler

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	ActiveJobs   int
	Catalog      *catalog.Summary
	DatabasePath string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	svc := settings.NewService(store)
	notifier := notifications.NewService(cfg)
	worker := transcode.NewWorker(cfg, store, svc, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "curatord.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		settings:  svc,
		notifier:  notifier,
		scanner:   scanner.New(cfg, store, svc, logger),
		scheduler: scheduler.New(cfg, store, svc, worker, notifier, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another curator daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.settings.Seed(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.scanner.Start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.abortStart()
		return fmt.Errorf("start scanner: %w", err)
	}

	// The watcher reads the folder table on start and re-reads it on a
	// periodic refresh, so folders added through the CLI are picked up
	// without a restart.
	d.watcher = watcher.New(d.cfg, d.store, d.scanner, d.logger)
	if err := d.watcher.Start(d.ctx); err != nil {
		d.scanner.Stop()
		d.scheduler.Stop()
		d.abortStart()
		return fmt.Errorf("start watcher: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("curator daemon started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) abortStart() {
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.cancel = nil
	_ = d.lock.Unlock()
}

// Stop halts background processing and releases the daemon lock. Services
// stop in reverse start order so no new work arrives while jobs drain.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	d.scanner.Stop()
	d.scheduler.Stop()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("curator daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is currently started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns runtime information about the daemon and its catalog.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	status := Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		status.ActiveJobs = d.scheduler.ActiveCount()
	}
	summary, err := d.store.Summarize(ctx)
	if err != nil {
		return status, err
	}
	status.Catalog = summary
	return status, nil
}

// Scanner exposes the scanner for on-demand rescans triggered by the CLI.
func (d *Daemon) Scanner() *scanner.Scanner {
	return d.scanner
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}
