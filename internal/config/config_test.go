package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"curator/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if cfg.Workflow.JobPollInterval != 5 {
		t.Fatalf("unexpected poll interval: %d", cfg.Workflow.JobPollInterval)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.FFmpegBinary() != "ffmpeg" || cfg.FFprobeBinary() != "ffprobe" {
		t.Fatal("expected default tool binaries")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[tools]
ffmpeg = "/opt/ffmpeg/bin/ffmpeg"

[workflow]
job_poll_interval = 2
debounce_window_ms = 500

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: exists=%v path=%s", exists, resolved)
	}
	if cfg.Workflow.JobPollInterval != 2 || cfg.Workflow.DebounceWindowMS != 500 {
		t.Fatalf("unexpected workflow values: %+v", cfg.Workflow)
	}
	if cfg.Workflow.FolderRefreshMS != 60000 {
		t.Fatalf("expected omitted folder_refresh_ms to normalize to default, got %d", cfg.Workflow.FolderRefreshMS)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowered logging values, got %+v", cfg.Logging)
	}
	if cfg.FFmpegBinary() != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %s", cfg.FFmpegBinary())
	}
	if cfg.DatabasePath() != filepath.Join(dir, "data", "catalog.db") {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath())
	}
}

func TestValidateRejectsBadLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"loud\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for bad level")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.TempDir = filepath.Join(dir, "tmp")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", p)
		}
	}
}
