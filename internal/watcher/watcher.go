// Package watcher reacts to filesystem changes under the active library
// folders, debouncing bursty events before handing paths to the scanner.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/scanner"
)

// Rescanner is the part of the scanner the watcher drives.
type Rescanner interface {
	RescanFile(ctx context.Context, path string) error
	RemovePath(ctx context.Context, path string) error
}

// Watcher mirrors filesystem events into catalog updates.
type Watcher struct {
	store    *catalog.Store
	scan     Rescanner
	logger   *slog.Logger
	debounce time.Duration
	settle   time.Duration
	refresh  time.Duration

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Watcher using the config's debounce and settle windows.
func New(cfg *config.Config, store *catalog.Store, scan Rescanner, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		store:    store,
		scan:     scan,
		logger:   logging.NewComponentLogger(logger, "watcher"),
		debounce: time.Duration(cfg.Workflow.DebounceWindowMS) * time.Millisecond,
		settle:   time.Duration(cfg.Workflow.SettleDelayMS) * time.Millisecond,
		refresh:  time.Duration(cfg.Workflow.FolderRefreshMS) * time.Millisecond,
		timers:   make(map[string]*time.Timer),
	}
}

// Start registers every active folder recursively and launches the event
// loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw

	folders, err := w.store.Folders(ctx, true)
	if err != nil {
		_ = fsw.Close()
		w.fsw = nil
		return err
	}
	for i := range folders {
		if err := w.addRecursive(folders[i].Path); err != nil {
			w.logger.Warn("failed to watch folder",
				logging.Error(err),
				logging.String(logging.FieldFolder, folders[i].Path),
			)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.run(runCtx)
	return nil
}

// Stop cancels pending debounce timers, closes the fsnotify watcher, and
// waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	cancel()
	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
}

// syncFolders re-reads the active folder list so folders added or re-enabled
// through the CLI start being watched without a daemon restart. Registering an
// already-watched path is a no-op for fsnotify.
func (w *Watcher) syncFolders(ctx context.Context) {
	folders, err := w.store.Folders(ctx, true)
	if err != nil {
		w.logger.Warn("failed to refresh watched folders", logging.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running || w.fsw == nil {
		return
	}
	for i := range folders {
		if err := w.addRecursive(folders[i].Path); err != nil {
			w.logger.Warn("failed to watch folder",
				logging.Error(err),
				logging.String(logging.FieldFolder, folders[i].Path),
			)
		}
	}
}

// addRecursive registers path and every subdirectory. Callers hold w.mu or
// run before the event loop starts.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}

	ticker := time.NewTicker(w.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.syncFolders(ctx)
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("filesystem watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"),
			)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// New directories must be registered before files land in them.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.fsw != nil {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						logging.Error(err),
						logging.String(logging.FieldPath, event.Name),
					)
				}
			}
			w.mu.Unlock()
			return
		}
	}

	if !scanner.IsMediaFile(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// A rename delivers the old path; both forms mean the file at this
		// path is gone.
		w.schedule(ctx, event.Name, true)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.schedule(ctx, event.Name, false)
	}
}

// schedule arms (or re-arms) the per-path debounce timer. Later events for
// the same path supersede earlier ones, so a create followed by a remove
// within the window acts as a remove.
func (w *Watcher) schedule(ctx context.Context, path string, removed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.fire(ctx, path, removed)
	})
}

func (w *Watcher) fire(ctx context.Context, path string, removed bool) {
	if ctx.Err() != nil {
		return
	}

	if removed {
		if err := w.scan.RemovePath(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("failed to remove cataloged file",
				logging.Error(err),
				logging.String(logging.FieldPath, path),
			)
		}
		return
	}

	// Let the writer finish before probing.
	select {
	case <-ctx.Done():
		return
	case <-time.After(w.settle):
	}

	if _, err := os.Stat(path); err != nil {
		w.logger.Debug("changed file vanished before rescan",
			logging.String(logging.FieldPath, path),
		)
		return
	}

	if err := w.scan.RescanFile(ctx, path); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("rescan after change failed",
			logging.Error(err),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "rescan_failed"),
		)
	}
}
