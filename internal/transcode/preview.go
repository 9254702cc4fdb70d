package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"curator/internal/catalog"
	"curator/internal/services"
)

// PreviewAudio extracts a ten-second MP3 snippet of the given audio track,
// starting at startSec, into destDir. Returns the snippet path.
func (w *Worker) PreviewAudio(ctx context.Context, file *catalog.File, trackIndex int, startSec float64, destDir string) (string, error) {
	if startSec < 0 {
		startSec = 0
	}
	output := filepath.Join(destDir, fmt.Sprintf("preview-%s-a%d.mp3", uuid.NewString(), trackIndex))
	args := []string{
		"-ss", fmt.Sprintf("%.2f", startSec),
		"-i", file.Path,
		"-map", fmt.Sprintf("0:a:%d", trackIndex),
		"-t", "10",
		"-c:a", "libmp3lame", "-q:a", "4",
		"-y", output,
	}
	return w.extract(ctx, file, args, output)
}

// PreviewSubtitle extracts the given subtitle track as SRT into destDir.
// Returns the extracted file path.
func (w *Worker) PreviewSubtitle(ctx context.Context, file *catalog.File, trackIndex int, destDir string) (string, error) {
	output := filepath.Join(destDir, fmt.Sprintf("preview-%s-s%d.srt", uuid.NewString(), trackIndex))
	args := []string{
		"-i", file.Path,
		"-map", fmt.Sprintf("0:s:%d", trackIndex),
		"-c:s", "srt",
		"-y", output,
	}
	return w.extract(ctx, file, args, output)
}

func (w *Worker) extract(ctx context.Context, file *catalog.File, args []string, output string) (string, error) {
	tail, err := runWithProgress(ctx, w.cfg.FFmpegBinary(), args, 0, nil)
	if err != nil {
		detail := strings.Join(tail, "\n")
		return "", services.Wrap(services.ErrToolFailed, "transcode", "extract preview", detail, err)
	}
	if _, err := os.Stat(output); err != nil {
		return "", services.Wrap(services.ErrToolFailed, "transcode", "extract preview", "output missing", err)
	}
	return output, nil
}
