package config

const (
	defaultDataDir            = "~/.local/share/curator"
	defaultLogDir             = "~/.local/share/curator/logs"
	defaultTempDir            = "/tmp"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultJobPollInterval    = 5
	defaultErrorRetryInterval = 10
	defaultInitialScanDelay   = 2
	defaultDebounceWindowMS   = 2000
	defaultSettleDelayMS      = 1000
	defaultProbeThrottleMS    = 100
	defaultFolderRefreshMS    = 60000
	defaultNtfyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			TempDir: defaultTempDir,
		},
		Workflow: Workflow{
			JobPollInterval:    defaultJobPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			InitialScanDelay:   defaultInitialScanDelay,
			DebounceWindowMS:   defaultDebounceWindowMS,
			SettleDelayMS:      defaultSettleDelayMS,
			ProbeThrottleMS:    defaultProbeThrottleMS,
			FolderRefreshMS:    defaultFolderRefreshMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			JobEvents:      true,
			Errors:         true,
		},
	}
}
