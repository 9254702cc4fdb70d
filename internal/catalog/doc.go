// Package catalog persists the media catalog in SQLite: configured folders,
// discovered media files, their audio/subtitle tracks, processing jobs, and
// application settings.
//
// The store is the single channel through which the scanner, watcher,
// scheduler, and CLI coordinate. Every read-modify-write sequence that spans
// rows (track replacement, job enqueue, job completion) runs inside one
// transaction so partial updates are never observed by concurrent components.
// SQLite runs in WAL mode with busy retries, which lets the daemon and CLI
// share the database across processes.
package catalog
