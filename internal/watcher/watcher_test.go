package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"curator/internal/testsupport"
	"curator/internal/watcher"
)

type recordingScanner struct {
	mu       sync.Mutex
	rescans  []string
	removals []string
}

func (r *recordingScanner) RescanFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescans = append(r.rescans, path)
	return nil
}

func (r *recordingScanner) RemovePath(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removals = append(r.removals, path)
	return nil
}

func (r *recordingScanner) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rescans), len(r.removals)
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

func newWatcher(t *testing.T) (*watcher.Watcher, *recordingScanner, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DebounceWindowMS = 50
	cfg.Workflow.SettleDelayMS = 10

	library := filepath.Join(testsupport.BaseDir(cfg), "library")
	if err := os.MkdirAll(library, 0o755); err != nil {
		t.Fatalf("mkdir library: %v", err)
	}

	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewFolder(t, store, library, "Library")

	scan := &recordingScanner{}
	w := watcher.New(cfg, store, scan, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, scan, library
}

func TestWriteBurstCoalescesIntoOneRescan(t *testing.T) {
	_, scan, library := newWatcher(t)

	path := filepath.Join(library, "movie.mkv")
	for i := 0; i < 5; i++ {
		testsupport.WriteFile(t, path, int64(1024*(i+1)))
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, 3*time.Second, func() bool {
		rescans, _ := scan.counts()
		return rescans >= 1
	})

	// Give any stray timers a chance to fire, then confirm coalescing.
	time.Sleep(200 * time.Millisecond)
	rescans, removals := scan.counts()
	if rescans != 1 {
		t.Fatalf("expected 1 coalesced rescan, got %d", rescans)
	}
	if removals != 0 {
		t.Fatalf("expected no removals, got %d", removals)
	}
}

func TestRemoveTriggersCatalogRemoval(t *testing.T) {
	_, scan, library := newWatcher(t)

	path := filepath.Join(library, "movie.mkv")
	testsupport.WriteFile(t, path, 1024)
	waitFor(t, 3*time.Second, func() bool {
		rescans, _ := scan.counts()
		return rescans >= 1
	})

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		_, removals := scan.counts()
		return removals >= 1
	})

	scan.mu.Lock()
	got := scan.removals[0]
	scan.mu.Unlock()
	if got != path {
		t.Fatalf("expected removal of %s, got %s", path, got)
	}
}

func TestNewDirectoriesAreWatched(t *testing.T) {
	_, scan, library := newWatcher(t)

	sub := filepath.Join(library, "season-01")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	// The directory watch is added asynchronously on the Create event.
	time.Sleep(100 * time.Millisecond)

	testsupport.WriteFile(t, filepath.Join(sub, "episode.mkv"), 1024)
	waitFor(t, 3*time.Second, func() bool {
		rescans, _ := scan.counts()
		return rescans >= 1
	})
}

func TestNonMediaFilesIgnored(t *testing.T) {
	_, scan, library := newWatcher(t)

	testsupport.WriteFile(t, filepath.Join(library, "notes.txt"), 64)
	time.Sleep(200 * time.Millisecond)

	rescans, removals := scan.counts()
	if rescans != 0 || removals != 0 {
		t.Fatalf("expected no activity for non-media file, got %d rescans %d removals", rescans, removals)
	}
}

func TestFolderAddedAfterStartIsPickedUp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DebounceWindowMS = 50
	cfg.Workflow.SettleDelayMS = 10
	cfg.Workflow.FolderRefreshMS = 50

	store := testsupport.MustOpenStore(t, cfg)
	scan := &recordingScanner{}
	w := watcher.New(cfg, store, scan, nil)
	// Started with an empty folder table: nothing is watched yet.
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(w.Stop)

	library := filepath.Join(testsupport.BaseDir(cfg), "late-library")
	if err := os.MkdirAll(library, 0o755); err != nil {
		t.Fatalf("mkdir library: %v", err)
	}
	testsupport.NewFolder(t, store, library, "Late Library")

	// Keep touching the file until a refresh tick registers the folder and
	// the write lands on a watched path. The pauses leave room for the
	// debounce window to elapse between writes.
	path := filepath.Join(library, "movie.mkv")
	deadline := time.Now().Add(5 * time.Second)
	for {
		testsupport.WriteFile(t, path, 1024)
		time.Sleep(150 * time.Millisecond)
		if rescans, _ := scan.counts(); rescans >= 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("folder added after start was never watched")
		}
	}
}

func TestStopCancelsPendingTimers(t *testing.T) {
	w, scan, library := newWatcher(t)

	testsupport.WriteFile(t, filepath.Join(library, "movie.mkv"), 1024)
	// Stop before the debounce window elapses.
	w.Stop()
	time.Sleep(200 * time.Millisecond)

	rescans, _ := scan.counts()
	if rescans != 0 {
		t.Fatalf("expected pending timer cancelled, got %d rescans", rescans)
	}
}
