package services_test

import (
	"errors"
	"fmt"
	"testing"

	"curator/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := services.Wrap(services.ErrToolFailed, "transcode", "run ffmpeg", "remux failed", cause)

	if !errors.Is(err, services.ErrToolFailed) {
		t.Fatalf("expected ErrToolFailed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be preserved")
	}
	want := "tool failed: transcode: run ffmpeg: remux failed: exit status 1"
	if err.Error() != want {
		t.Fatalf("unexpected message:\n got: %s\nwant: %s", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "scanner", "walk", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		marker error
		want   bool
	}{
		{services.ErrTransient, true},
		{services.ErrStore, true},
		{services.ErrProbeFailed, false},
		{services.ErrToolFailed, false},
		{services.ErrNotFound, false},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "c", "op", "", nil)
		if got := services.IsRetryable(err); got != tc.want {
			t.Fatalf("IsRetryable(%v) = %v, want %v", tc.marker, got, tc.want)
		}
	}
}
