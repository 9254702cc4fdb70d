package settings_test

import (
	"context"
	"testing"

	"curator/internal/settings"
	"curator/internal/testsupport"
)

func TestSeedAndReadDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(store)
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	if got := svc.MaxConcurrentJobs(ctx); got != 1 {
		t.Fatalf("expected default max jobs 1, got %d", got)
	}
	if got := svc.ScanInterval(ctx); got != 3600 {
		t.Fatalf("expected default scan interval 3600, got %d", got)
	}
	if got := svc.TempDirectory(ctx); got != "/tmp" {
		t.Fatalf("expected default temp directory /tmp, got %q", got)
	}
	if !svc.BackupOriginals(ctx) {
		t.Fatal("expected backups enabled by default")
	}
	if got := svc.DefaultAudioLanguage(ctx); got != "und" {
		t.Fatalf("expected und default audio language, got %q", got)
	}

	all, err := svc.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 seeded settings, got %d", len(all))
	}
}

func TestMaxConcurrentJobsClampsToOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(store)
	ctx := context.Background()

	if err := svc.Set(ctx, settings.KeyMaxConcurrentJobs, "0"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := svc.MaxConcurrentJobs(ctx); got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}

	if err := svc.Set(ctx, settings.KeyMaxConcurrentJobs, "-3"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := svc.MaxConcurrentJobs(ctx); got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}

	if err := svc.Set(ctx, settings.KeyMaxConcurrentJobs, "4"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got := svc.MaxConcurrentJobs(ctx); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestSetValidatesType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(store)
	ctx := context.Background()

	if err := svc.Set(ctx, settings.KeyMaxConcurrentJobs, "many"); err == nil {
		t.Fatal("expected error for non-integer value")
	}
	if err := svc.Set(ctx, settings.KeyBackupOriginalFiles, "sometimes"); err == nil {
		t.Fatal("expected error for non-boolean value")
	}
	if err := svc.Set(ctx, settings.KeyDefaultAudioLanguage, "eng"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestMissingSettingFallsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := settings.NewService(store)
	ctx := context.Background()

	// Nothing seeded yet.
	if got := svc.ScanInterval(ctx); got != 3600 {
		t.Fatalf("expected fallback 3600, got %d", got)
	}
	if !svc.AutoDetectLanguage(ctx) {
		t.Fatal("expected fallback true")
	}
}
