package transcode

import (
	"strings"
	"testing"

	"curator/internal/catalog"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Heat (1995).mkv", "Heat (1995).mkv"},
		{"weird:name?.mkv", "weird_name_.mkv"},
		{"show/ep*1.mkv", "show_ep_1.mkv"},
		{"ünïcode.mkv", "_n_code.mkv"},
		{"plain_name-ok.mkv", "plain_name-ok.mkv"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildCommandMapsAllTracks(t *testing.T) {
	tracks := []catalog.Track{
		{Kind: catalog.TrackAudio, Index: 0, Edit: catalog.TrackEdit{Title: "Director Commentary", Language: "en", Modified: true}},
		{Kind: catalog.TrackAudio, Index: 1},
		{Kind: catalog.TrackSubtitle, Index: 0, Edit: catalog.TrackEdit{Language: "Spanish", Modified: true}},
	}
	args := buildCommand("/media/in.mkv", tracks, "/tmp/out.mkv")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-i /media/in.mkv",
		"-map 0:v:0 -c:v copy",
		"-map 0:a:0",
		"-map 0:a:1",
		"-map 0:s:0",
		"-c:a copy -c:s copy",
		"-metadata:s:a:0 title=Director Commentary",
		"-metadata:s:a:0 language=eng",
		"-metadata:s:s:0 language=spa",
		"-y /tmp/out.mkv",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}

	// The unmodified audio track carries no metadata flags.
	if strings.Contains(joined, "-metadata:s:a:1") {
		t.Errorf("unexpected metadata for unmodified track in %q", joined)
	}
}

func TestBuildCommandSkipsBlankEditFields(t *testing.T) {
	tracks := []catalog.Track{
		{Kind: catalog.TrackAudio, Index: 0, Edit: catalog.TrackEdit{Title: "Stereo", Modified: true}},
	}
	args := buildCommand("/media/in.mkv", tracks, "/tmp/out.mkv")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "title=Stereo") {
		t.Errorf("expected title metadata in %q", joined)
	}
	if strings.Contains(joined, "language=") {
		t.Errorf("unexpected language metadata in %q", joined)
	}
}

func TestParseElapsed(t *testing.T) {
	cases := []struct {
		line string
		want float64
		ok   bool
	}{
		{"frame= 100 fps=25 time=00:01:30.50 bitrate=1000k", 90.5, true},
		{"time=01:00:00.00", 3600, true},
		{"size= 1024kB", 0, false},
		{"time=00:00:05.25 speed=2x", 5.25, true},
	}
	for _, tc := range cases {
		got, ok := parseElapsed(tc.line)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseElapsed(%q) = (%v, %v), want (%v, %v)", tc.line, got, ok, tc.want, tc.ok)
		}
	}
}
