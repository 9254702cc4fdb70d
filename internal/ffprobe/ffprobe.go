package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Disposition captures the per-stream disposition flags curator cares about.
type Disposition struct {
	Default int `json:"default"`
	Forced  int `json:"forced"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	Duration    string            `json:"duration"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	Tags        map[string]string `json:"tags"`
	Disposition Disposition       `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return Parse(output)
}

// Parse decodes raw ffprobe JSON.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Title returns the stream's title tag, if any.
func (s Stream) Title() string {
	return strings.TrimSpace(s.Tags["title"])
}

// IsForced reports whether the forced disposition flag is set.
func (s Stream) IsForced() bool { return s.Disposition.Forced == 1 }

// IsDefault reports whether the default disposition flag is set.
func (s Stream) IsDefault() bool { return s.Disposition.Default == 1 }

// SampleRateHz returns the stream sample rate as an integer, or 0.
func (s Stream) SampleRateHz() int {
	rate, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	if err != nil {
		return 0
	}
	return rate
}

// VideoStream returns the first video stream, or nil when none exists.
func (r Result) VideoStream() *Stream {
	for i := range r.Streams {
		if strings.EqualFold(r.Streams[i].CodecType, "video") {
			return &r.Streams[i]
		}
	}
	return nil
}

// AudioStreams returns the audio streams in container order.
func (r Result) AudioStreams() []Stream {
	return r.streamsOfType("audio")
}

// SubtitleStreams returns the subtitle streams in container order.
func (r Result) SubtitleStreams() []Stream {
	return r.streamsOfType("subtitle")
}

func (r Result) streamsOfType(codecType string) []Stream {
	var streams []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			streams = append(streams, stream)
		}
	}
	return streams
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
