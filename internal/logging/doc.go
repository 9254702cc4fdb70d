// Package logging builds the slog loggers used throughout curator.
//
// All components log through *slog.Logger instances constructed here. The
// package provides console and JSON handlers, multi-destination output
// (stdout plus the daemon log file), typed attribute helpers, and
// standardized field keys so log streams stay greppable.
package logging
