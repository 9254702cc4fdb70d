// Package config loads and validates the curator configuration file.
//
// Configuration lives in a TOML file (default ~/.config/curator/config.toml)
// and covers process-level concerns only: directories, logging, external tool
// binaries, and daemon timing. Runtime knobs that operators change while the
// daemon runs (concurrency ceiling, scan interval, backup policy) live in the
// catalog-backed settings store instead, so that concurrent processes observe
// updates immediately.
package config
