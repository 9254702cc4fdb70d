// Package daemon coordinates the long-running curator process: the folder
// scanner, the filesystem watcher, and the job scheduler, with flock-based
// locking to prevent multiple instances from sharing one catalog. Orchestration
// lives here; the subsystems themselves stay independently testable.
package daemon
