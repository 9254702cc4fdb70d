package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}

	c.normalizeLogging()
	c.normalizeWorkflow()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.JobPollInterval <= 0 {
		c.Workflow.JobPollInterval = defaultJobPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.InitialScanDelay < 0 {
		c.Workflow.InitialScanDelay = defaultInitialScanDelay
	}
	if c.Workflow.DebounceWindowMS <= 0 {
		c.Workflow.DebounceWindowMS = defaultDebounceWindowMS
	}
	if c.Workflow.SettleDelayMS < 0 {
		c.Workflow.SettleDelayMS = defaultSettleDelayMS
	}
	if c.Workflow.ProbeThrottleMS < 0 {
		c.Workflow.ProbeThrottleMS = defaultProbeThrottleMS
	}
	if c.Workflow.FolderRefreshMS <= 0 {
		c.Workflow.FolderRefreshMS = defaultFolderRefreshMS
	}
}
