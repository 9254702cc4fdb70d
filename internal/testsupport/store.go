package testsupport

import (
	"context"
	"testing"

	"curator/internal/catalog"
	"curator/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewFolder registers a watched folder for tests using the provided store.
func NewFolder(t testing.TB, store *catalog.Store, path, name string) *catalog.Folder {
	t.Helper()

	folder, err := store.AddFolder(context.Background(), path, name)
	if err != nil {
		t.Fatalf("store.AddFolder: %v", err)
	}
	return folder
}
