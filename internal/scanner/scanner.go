// Package scanner walks library folders, probes media files with ffprobe,
// and reconciles the catalog against what is on disk.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"curator/internal/catalog"
	"curator/internal/classify"
	"curator/internal/config"
	"curator/internal/ffprobe"
	"curator/internal/language"
	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/settings"
)

var mediaExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".flv": {}, ".m4v": {}, ".webm": {}, ".ts": {}, ".mts": {},
	".m2ts": {}, ".vob": {}, ".mpg": {}, ".mpeg": {}, ".3gp": {},
	".asf": {},
}

// IsMediaFile reports whether the filename carries a supported extension.
func IsMediaFile(name string) bool {
	_, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scanner keeps the catalog in sync with the watched folders on disk.
type Scanner struct {
	cfg      *config.Config
	store    *catalog.Store
	settings *settings.Service
	logger   *slog.Logger

	probeThrottle time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Scanner.
func New(cfg *config.Config, store *catalog.Store, svc *settings.Service, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		cfg:           cfg,
		store:         store,
		settings:      svc,
		logger:        logging.NewComponentLogger(logger, "scanner"),
		probeThrottle: time.Duration(cfg.Workflow.ProbeThrottleMS) * time.Millisecond,
	}
}

// Start launches the periodic scan loop.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scanner already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

// Stop terminates the scan loop and waits for it to exit.
func (s *Scanner) Stop() {
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
	s.wg.Wait()
}

func (s *Scanner) run(ctx context.Context) {
	defer s.wg.Done()

	initialDelay := time.Duration(s.cfg.Workflow.InitialScanDelay) * time.Second
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	for {
		if err := s.ScanAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("library scan failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "scan_failed"),
				logging.String(logging.FieldErrorHint, "check folder permissions and catalog database access"),
			)
		}

		interval := time.Duration(s.settings.ScanInterval(ctx)) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// ScanAll scans every active folder. A failure in one folder is logged and
// does not stop the others.
func (s *Scanner) ScanAll(ctx context.Context) error {
	folders, err := s.store.Folders(ctx, true)
	if err != nil {
		return services.Wrap(services.ErrStore, "scanner", "list folders", "", err)
	}

	for i := range folders {
		folder := &folders[i]
		if err := s.ScanFolder(ctx, folder); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("folder scan failed",
				logging.Error(err),
				logging.String(logging.FieldFolder, folder.Path),
				logging.String(logging.FieldEventType, "folder_scan_failed"),
			)
			continue
		}
		if err := s.store.TouchFolderScanned(ctx, folder.ID, time.Now().UTC()); err != nil {
			s.logger.Warn("failed to record folder scan time",
				logging.Error(err),
				logging.String(logging.FieldFolder, folder.Path),
			)
		}
	}
	return nil
}

// ScanFolder walks one folder, probing new and changed files, then removes
// catalog rows for files that disappeared from disk.
func (s *Scanner) ScanFolder(ctx context.Context, folder *catalog.Folder) error {
	info, err := os.Stat(folder.Path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "scanner", "stat folder", folder.Path, err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrValidation, "scanner", "stat folder", folder.Path+" is not a directory", nil)
	}

	seen := make(map[string]struct{})
	walkFailures := 0
	walkErr := filepath.WalkDir(folder.Path, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			walkFailures++
			s.logger.Warn("walk error",
				logging.Error(err),
				logging.String(logging.FieldPath, path),
			)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() || !IsMediaFile(entry.Name()) {
			return nil
		}

		seen[path] = struct{}{}
		if err := s.scanFile(ctx, folder.ID, path); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Warn("file scan failed",
				logging.Error(err),
				logging.String(logging.FieldPath, path),
			)
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	// An unreadable subtree leaves its files out of seen; reconciling
	// against that partial view would purge rows for files still on disk.
	if walkFailures > 0 {
		s.logger.Warn("skipping deletion reconcile after incomplete walk",
			logging.String(logging.FieldFolder, folder.Path),
			logging.Int("walk_failures", walkFailures),
		)
		return nil
	}

	return s.reconcileDeletions(ctx, folder, seen)
}

// RescanFile probes a single path on behalf of the watcher. The owning
// folder is resolved by longest prefix over the active folders.
func (s *Scanner) RescanFile(ctx context.Context, path string) error {
	folder, err := s.resolveFolder(ctx, path)
	if err != nil {
		return err
	}
	return s.scanFile(ctx, folder.ID, path)
}

// RemovePath deletes the catalog row for path, if one exists and carries no
// active job.
func (s *Scanner) RemovePath(ctx context.Context, path string) error {
	file, err := s.store.FileByPath(ctx, path)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil
	}
	if err != nil {
		return services.Wrap(services.ErrStore, "scanner", "lookup file", path, err)
	}

	active, err := s.store.HasActiveJob(ctx, file.ID)
	if err != nil {
		return services.Wrap(services.ErrStore, "scanner", "check active job", path, err)
	}
	if active {
		s.logger.Warn("skipping removal of file with active job",
			logging.String(logging.FieldPath, path),
			logging.Int64(logging.FieldFileID, file.ID),
		)
		return nil
	}
	if err := s.store.DeleteFile(ctx, file.ID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return services.Wrap(services.ErrStore, "scanner", "delete file", path, err)
	}
	s.logger.Info("removed missing file from catalog",
		logging.String(logging.FieldPath, path),
		logging.String(logging.FieldEventType, "file_removed"),
	)
	return nil
}

func (s *Scanner) resolveFolder(ctx context.Context, path string) (*catalog.Folder, error) {
	folders, err := s.store.Folders(ctx, true)
	if err != nil {
		return nil, services.Wrap(services.ErrStore, "scanner", "list folders", "", err)
	}

	var best *catalog.Folder
	for i := range folders {
		folder := &folders[i]
		prefix := strings.TrimRight(folder.Path, string(os.PathSeparator)) + string(os.PathSeparator)
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if best == nil || len(folder.Path) > len(best.Path) {
			best = folder
		}
	}
	if best == nil {
		return nil, services.Wrap(services.ErrNotFound, "scanner", "resolve folder", path, nil)
	}
	return best, nil
}

func (s *Scanner) scanFile(ctx context.Context, folderID int64, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, "scanner", "stat file", path, err)
	}
	modifiedAt := info.ModTime().UTC()

	// Unchanged since the last completed scan: nothing to do.
	if existing, err := s.store.FileByPath(ctx, path); err == nil {
		if existing.ScanStatus == catalog.ScanCompleted && !modifiedAt.After(existing.ModifiedAt) {
			return nil
		}
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return services.Wrap(services.ErrStore, "scanner", "lookup file", path, err)
	}

	file, err := s.store.BeginFileScan(ctx, folderID, path, filepath.Base(path), info.Size(), modifiedAt)
	if err != nil {
		return services.Wrap(services.ErrStore, "scanner", "begin scan", path, err)
	}

	result, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary(), path)
	if err != nil {
		message := fmt.Sprintf("probe failed: %v", err)
		if failErr := s.store.FailFileScan(ctx, file.ID, message); failErr != nil {
			s.logger.Warn("failed to record scan error",
				logging.Error(failErr),
				logging.String(logging.FieldPath, path),
			)
		}
		return services.Wrap(services.ErrProbeFailed, "scanner", "probe", path, err)
	}

	update := buildProbeUpdate(file.Filename, result)
	tracks := s.buildTracks(ctx, result)

	replaceTracks := true
	active, err := s.store.HasActiveJob(ctx, file.ID)
	if err != nil {
		return services.Wrap(services.ErrStore, "scanner", "check active job", path, err)
	}
	if active {
		replaceTracks = false
		s.logger.Info("file has active job; keeping existing track rows",
			logging.String(logging.FieldPath, path),
			logging.Int64(logging.FieldFileID, file.ID),
		)
	}

	if err := s.store.CompleteFileScan(ctx, file.ID, update, replaceTracks, tracks); err != nil {
		return services.Wrap(services.ErrStore, "scanner", "complete scan", path, err)
	}

	s.logger.Info("scanned file",
		logging.String(logging.FieldPath, path),
		logging.Int64(logging.FieldFileID, file.ID),
		logging.String("media_type", string(update.MediaType)),
		logging.String("title", update.Title),
		logging.String(logging.FieldEventType, "file_scanned"),
	)

	if s.probeThrottle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.probeThrottle):
		}
	}
	return nil
}

func buildProbeUpdate(filename string, result ffprobe.Result) catalog.ProbeUpdate {
	identity := classify.Classify(filename)
	update := catalog.ProbeUpdate{
		MediaType:  identity.MediaType,
		Title:      identity.Title,
		SeriesName: identity.SeriesName,
		Season:     identity.Season,
		Episode:    identity.Episode,
		Duration:   result.DurationSeconds(),
	}
	if video := result.VideoStream(); video != nil {
		update.VideoCodec = video.CodecName
		if video.Width > 0 && video.Height > 0 {
			update.Resolution = fmt.Sprintf("%dx%d", video.Width, video.Height)
		}
	}
	return update
}

func (s *Scanner) buildTracks(ctx context.Context, result ffprobe.Result) []catalog.Track {
	autoDetect := s.settings.AutoDetectLanguage(ctx)
	defaultAudio := s.settings.DefaultAudioLanguage(ctx)
	defaultSubtitle := s.settings.DefaultSubtitleLanguage(ctx)

	var tracks []catalog.Track
	for i, stream := range result.AudioStreams() {
		tracks = append(tracks, catalog.Track{
			Kind:  catalog.TrackAudio,
			Index: i,
			Original: catalog.TrackFacts{
				Title:      stream.Title(),
				Language:   trackLanguage(stream, autoDetect, defaultAudio),
				Codec:      stream.CodecName,
				Channels:   stream.Channels,
				SampleRate: stream.SampleRateHz(),
			},
		})
	}
	for i, stream := range result.SubtitleStreams() {
		tracks = append(tracks, catalog.Track{
			Kind:  catalog.TrackSubtitle,
			Index: i,
			Original: catalog.TrackFacts{
				Title:    stream.Title(),
				Language: trackLanguage(stream, autoDetect, defaultSubtitle),
				Codec:    stream.CodecName,
				Forced:   stream.IsForced(),
				Default:  stream.IsDefault(),
			},
		})
	}
	return tracks
}

func trackLanguage(stream ffprobe.Stream, autoDetect bool, fallback string) string {
	if autoDetect {
		if tagged := language.ExtractFromTags(stream.Tags); tagged != "" {
			if iso3 := language.ToISO3(tagged); iso3 != language.Undetermined {
				return iso3
			}
		}
	}
	if fallback == "" {
		return language.Undetermined
	}
	return fallback
}

func (s *Scanner) reconcileDeletions(ctx context.Context, folder *catalog.Folder, seen map[string]struct{}) error {
	files, err := s.store.FilesInFolder(ctx, folder.ID)
	if err != nil {
		return services.Wrap(services.ErrStore, "scanner", "list files", folder.Path, err)
	}
	for i := range files {
		if _, ok := seen[files[i].Path]; ok {
			continue
		}
		if err := s.RemovePath(ctx, files[i].Path); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Warn("failed to reconcile deleted file",
				logging.Error(err),
				logging.String(logging.FieldPath, files[i].Path),
			)
		}
	}
	return nil
}
