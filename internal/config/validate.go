package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Notifications.NtfyTopic != "" && !strings.Contains(c.Notifications.NtfyTopic, "://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}
