package transcode

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
)

const outputTailLines = 20

var timePattern = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

// runWithProgress executes ffmpeg, streaming its combined output line by
// line. Progress derived from time= markers is reported through onProgress,
// capped at 95 until the file replacement finishes. The returned tail holds
// the last lines of output for failure diagnostics.
func runWithProgress(ctx context.Context, binary string, args []string, durationSeconds float64, onProgress func(percent float64)) ([]string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	tail := make([]string, 0, outputTailLines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if len(tail) == outputTailLines {
			copy(tail, tail[1:])
			tail = tail[:outputTailLines-1]
		}
		tail = append(tail, line)

		if onProgress == nil || durationSeconds <= 0 {
			continue
		}
		if elapsed, ok := parseElapsed(line); ok {
			percent := elapsed / durationSeconds * 100
			if percent > 95 {
				percent = 95
			}
			onProgress(percent)
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return tail, fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return tail, err
	}
	return tail, nil
}

// parseElapsed extracts the elapsed seconds from an ffmpeg progress line.
func parseElapsed(line string) (float64, bool) {
	match := timePattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	fraction, _ := strconv.Atoi(match[4])

	elapsed := float64(hours)*3600 + float64(minutes)*60 + float64(seconds)
	if match[4] != "" {
		elapsed += float64(fraction) / pow10(len(match[4]))
	}
	return elapsed, true
}

func pow10(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 10
	}
	return out
}
