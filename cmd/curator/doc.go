// Package main hosts the curator CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into catalog
// operations: folder management, file and track inspection, staged metadata
// edits, job control, settings, scan triggers, and configuration scaffolding.
// Commands operate directly on the catalog database; SQLite's WAL journal
// allows the CLI and a running daemon to share the store safely.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
