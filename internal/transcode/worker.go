// Package transcode applies staged track metadata edits to media files by
// remuxing them with ffmpeg and atomically replacing the originals.
package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/fileutil"
	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/settings"
)

// Worker processes one job at a time on behalf of the scheduler.
type Worker struct {
	cfg      *config.Config
	store    *catalog.Store
	settings *settings.Service
	logger   *slog.Logger
}

// NewWorker constructs a Worker.
func NewWorker(cfg *config.Config, store *catalog.Store, svc *settings.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{
		cfg:      cfg,
		store:    store,
		settings: svc,
		logger:   logging.NewComponentLogger(logger, "transcode"),
	}
}

// Process applies the file's staged track edits. The job must already be in
// processing state. On success the original file is replaced atomically and
// the job completed; on failure the original is left untouched and the job
// marked failed.
func (w *Worker) Process(ctx context.Context, job *catalog.Job) error {
	file, err := w.store.FileByID(ctx, job.FileID)
	if err != nil {
		return w.fail(ctx, job, "load file", err)
	}

	tracks, err := w.store.TracksForFile(ctx, file.ID)
	if err != nil {
		return w.fail(ctx, job, "load tracks", err)
	}

	var modifiedIDs []int64
	for _, track := range tracks {
		if track.Edit.Modified {
			modifiedIDs = append(modifiedIDs, track.ID)
		}
	}
	if len(modifiedIDs) == 0 {
		// Nothing staged; the job is a no-op.
		w.logger.Info("no staged edits; completing job without processing",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64(logging.FieldFileID, file.ID),
		)
		if err := w.store.CompleteJob(ctx, job.ID, nil); err != nil {
			return services.Wrap(services.ErrStore, "transcode", "complete job", "", err)
		}
		return nil
	}

	sourceInfo, err := os.Stat(file.Path)
	if err != nil {
		return w.fail(ctx, job, "stat source", err)
	}

	tempRoot := w.settings.TempDirectory(ctx)
	if err := w.preflight(tempRoot, sourceInfo.Size()); err != nil {
		return w.fail(ctx, job, "preflight", err)
	}

	tempDir := filepath.Join(tempRoot, "curator-job-"+uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return w.fail(ctx, job, "create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	if err := w.store.SetJobTempPath(ctx, job.ID, tempDir); err != nil {
		w.logger.Warn("failed to persist temp path",
			logging.Error(err),
			logging.Int64(logging.FieldJobID, job.ID),
		)
	}

	outputPath := filepath.Join(tempDir, "processed_"+sanitizeFilename(file.Filename))
	args := buildCommand(file.Path, tracks, outputPath)

	w.logger.Info("remuxing file",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPath, file.Path),
		logging.Int("modified_tracks", len(modifiedIDs)),
		logging.String(logging.FieldEventType, "remux_started"),
	)

	tail, err := runWithProgress(ctx, w.cfg.FFmpegBinary(), args, file.Duration, func(percent float64) {
		if progressErr := w.store.UpdateJobProgress(ctx, job.ID, percent); progressErr != nil {
			w.logger.Debug("failed to persist progress", logging.Error(progressErr))
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := fmt.Sprintf("%v\n%s", err, strings.Join(tail, "\n"))
		return w.fail(ctx, job, "run ffmpeg", fmt.Errorf("%s", detail))
	}

	if _, err := os.Stat(outputPath); err != nil {
		return w.fail(ctx, job, "verify output", err)
	}

	if err := w.replaceOriginal(ctx, file.Path, outputPath); err != nil {
		return w.fail(ctx, job, "replace original", err)
	}

	if err := w.store.CompleteJob(ctx, job.ID, modifiedIDs); err != nil {
		return services.Wrap(services.ErrStore, "transcode", "complete job", "", err)
	}

	w.logger.Info("job finished",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldPath, file.Path),
		logging.String(logging.FieldEventType, "remux_completed"),
	)
	return nil
}

// preflight verifies the temp directory exists and has at least the source
// file size free.
func (w *Worker) preflight(tempRoot string, needed int64) error {
	info, err := os.Stat(tempRoot)
	if err != nil {
		return fmt.Errorf("temp directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("temp directory %s is not a directory", tempRoot)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(tempRoot, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", tempRoot, err)
	}
	free := int64(stat.Bavail) * int64(stat.Bsize) //nolint:unconvert
	if free < needed {
		return fmt.Errorf("insufficient space in %s: need %d bytes, have %d", tempRoot, needed, free)
	}
	return nil
}

// replaceOriginal swaps the processed output into place. A sidecar backup is
// kept for the duration of the swap when backups are enabled, so a failure
// mid-replace never loses the original.
func (w *Worker) replaceOriginal(ctx context.Context, originalPath, outputPath string) error {
	backupPath := ""
	if w.settings.BackupOriginals(ctx) {
		backupPath = originalPath + ".backup"
		// The backup is the only copy of the original during the swap, so it
		// is hash-verified on write.
		if err := fileutil.CopyFileVerified(originalPath, backupPath); err != nil {
			return fmt.Errorf("backup original: %w", err)
		}
	}

	if err := atomicReplace(outputPath, originalPath); err != nil {
		if backupPath != "" {
			if restoreErr := fileutil.CopyPreserve(backupPath, originalPath); restoreErr != nil {
				w.logger.Error("failed to restore backup after replace error",
					logging.Error(restoreErr),
					logging.String(logging.FieldPath, originalPath),
				)
			}
		}
		return err
	}

	if backupPath != "" {
		if err := os.Remove(backupPath); err != nil {
			w.logger.Warn("failed to remove backup",
				logging.Error(err),
				logging.String(logging.FieldPath, backupPath),
			)
		}
	}
	return nil
}

// atomicReplace copies src into a pending file beside dst and commits it with
// an atomic rename, so readers never observe a partially written file.
func atomicReplace(src, dst string) error {
	pending, err := renameio.NewPendingFile(dst, renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(pending, in); err != nil {
		return fmt.Errorf("copy output: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace: %w", err)
	}
	return nil
}

// fail records the failure on the job and returns a wrapped error for the
// scheduler's logs.
func (w *Worker) fail(ctx context.Context, job *catalog.Job, operation string, cause error) error {
	message := fmt.Sprintf("%s: %v", operation, cause)
	if err := w.store.FailJob(ctx, job.ID, message); err != nil {
		w.logger.Error("failed to record job failure",
			logging.Error(err),
			logging.Int64(logging.FieldJobID, job.ID),
		)
	}
	return services.Wrap(services.ErrToolFailed, "transcode", operation, "", cause)
}
