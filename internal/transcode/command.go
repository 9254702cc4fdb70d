package transcode

import (
	"fmt"
	"strings"

	"curator/internal/catalog"
	"curator/internal/language"
)

// sanitizeFilename keeps letters, digits, spaces, and -_.() so the temp
// output name is safe on every filesystem curator writes to.
func sanitizeFilename(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.', r == '(', r == ')':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

// buildCommand assembles the ffmpeg invocation that remuxes the source with
// updated track metadata. Every stored track is mapped in order so the output
// carries the same streams as the input; only metadata changes.
func buildCommand(sourcePath string, tracks []catalog.Track, outputPath string) []string {
	args := []string{"-i", sourcePath, "-map", "0:v:0", "-c:v", "copy"}

	for _, track := range tracks {
		specifier := "a"
		if track.Kind == catalog.TrackSubtitle {
			specifier = "s"
		}
		args = append(args, "-map", fmt.Sprintf("0:%s:%d", specifier, track.Index))
	}
	args = append(args, "-c:a", "copy", "-c:s", "copy")

	for _, track := range tracks {
		if !track.Edit.Modified {
			continue
		}
		specifier := "a"
		if track.Kind == catalog.TrackSubtitle {
			specifier = "s"
		}
		if title := strings.TrimSpace(track.Edit.Title); title != "" {
			args = append(args, fmt.Sprintf("-metadata:s:%s:%d", specifier, track.Index), "title="+title)
		}
		if lang := strings.TrimSpace(track.Edit.Language); lang != "" {
			args = append(args, fmt.Sprintf("-metadata:s:%s:%d", specifier, track.Index), "language="+language.ToISO3(lang))
		}
	}

	args = append(args, "-y", outputPath)
	return args
}
