// Package settings exposes typed accessors over the runtime settings rows in
// the catalog store. Unlike the TOML config, these values are adjustable at
// runtime through the CLI and take effect on the next scheduler or scanner
// cycle.
package settings

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"curator/internal/catalog"
)

// Well-known setting keys.
const (
	KeyMaxConcurrentJobs       = "max_concurrent_jobs"
	KeyScanInterval            = "scan_interval"
	KeyTempDirectory           = "temp_directory"
	KeyBackupOriginalFiles     = "backup_original_files"
	KeyAutoDetectLanguage      = "auto_detect_language"
	KeyDefaultAudioLanguage    = "default_audio_language"
	KeyDefaultSubtitleLanguage = "default_subtitle_language"
)

// Defaults returns the settings seeded into a fresh catalog.
func Defaults() []catalog.Setting {
	return []catalog.Setting{
		{Key: KeyMaxConcurrentJobs, Value: "1", Description: "Maximum number of simultaneous processing jobs"},
		{Key: KeyScanInterval, Value: "3600", Description: "Seconds between periodic full library scans"},
		{Key: KeyTempDirectory, Value: "/tmp", Description: "Scratch directory for in-flight processing output"},
		{Key: KeyBackupOriginalFiles, Value: "true", Description: "Keep a backup of the original file until the replacement is verified"},
		{Key: KeyAutoDetectLanguage, Value: "true", Description: "Derive track languages from stream tags during scans"},
		{Key: KeyDefaultAudioLanguage, Value: "und", Description: "Language assumed for untagged audio tracks"},
		{Key: KeyDefaultSubtitleLanguage, Value: "und", Description: "Language assumed for untagged subtitle tracks"},
	}
}

// Service reads and writes runtime settings backed by the catalog store.
type Service struct {
	store *catalog.Store
}

func NewService(store *catalog.Store) *Service {
	return &Service{store: store}
}

// Seed inserts any missing default settings. Existing values are preserved.
func (s *Service) Seed(ctx context.Context) error {
	return s.store.SeedSettings(ctx, Defaults())
}

// Set stores a raw value after validating it against the key's type.
func (s *Service) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyMaxConcurrentJobs, KeyScanInterval:
		if _, err := strconv.Atoi(value); err != nil {
			return errors.New(key + " requires an integer value")
		}
	case KeyBackupOriginalFiles, KeyAutoDetectLanguage:
		if _, err := strconv.ParseBool(value); err != nil {
			return errors.New(key + " requires a boolean value")
		}
	}
	return s.store.SetSetting(ctx, key, value, "")
}

// All lists every settings row.
func (s *Service) All(ctx context.Context) ([]catalog.Setting, error) {
	return s.store.AllSettings(ctx)
}

// MaxConcurrentJobs returns the job ceiling. Values below one clamp to one so
// the scheduler always makes progress.
func (s *Service) MaxConcurrentJobs(ctx context.Context) int {
	value := s.intValue(ctx, KeyMaxConcurrentJobs, 1)
	if value < 1 {
		return 1
	}
	return value
}

// ScanInterval returns the periodic scan interval in seconds.
func (s *Service) ScanInterval(ctx context.Context) int {
	value := s.intValue(ctx, KeyScanInterval, 3600)
	if value < 1 {
		return 3600
	}
	return value
}

// TempDirectory returns the scratch directory for worker output.
func (s *Service) TempDirectory(ctx context.Context) string {
	return s.stringValue(ctx, KeyTempDirectory, "/tmp")
}

// BackupOriginals reports whether workers keep a backup copy of the original
// file while replacing it.
func (s *Service) BackupOriginals(ctx context.Context) bool {
	return s.boolValue(ctx, KeyBackupOriginalFiles, true)
}

// AutoDetectLanguage reports whether scans derive languages from stream tags.
func (s *Service) AutoDetectLanguage(ctx context.Context) bool {
	return s.boolValue(ctx, KeyAutoDetectLanguage, true)
}

// DefaultAudioLanguage returns the language assumed for untagged audio tracks.
func (s *Service) DefaultAudioLanguage(ctx context.Context) string {
	return s.stringValue(ctx, KeyDefaultAudioLanguage, "und")
}

// DefaultSubtitleLanguage returns the language assumed for untagged subtitle
// tracks.
func (s *Service) DefaultSubtitleLanguage(ctx context.Context) string {
	return s.stringValue(ctx, KeyDefaultSubtitleLanguage, "und")
}

func (s *Service) stringValue(ctx context.Context, key, fallback string) string {
	value, err := s.store.GetSetting(ctx, key)
	if err != nil || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func (s *Service) intValue(ctx context.Context, key string, fallback int) int {
	raw, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

func (s *Service) boolValue(ctx context.Context, key string, fallback bool) bool {
	raw, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}
