package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks lookups for records or files that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrProbeFailed marks ffprobe failures; the file stays rescannable.
	ErrProbeFailed = errors.New("probe failed")
	// ErrToolFailed marks external tool failures (nonzero exit, bad output).
	ErrToolFailed = errors.New("tool failed")
	// ErrStore marks catalog read/write failures.
	ErrStore = errors.New("store error")
	// ErrValidation marks invalid caller input.
	ErrValidation = errors.New("validation error")
	// ErrTransient marks failures worth retrying on the next cycle.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether an error should be retried on the next
// scan/poll cycle rather than recorded as a terminal failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrStore)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
