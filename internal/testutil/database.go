// Package testutil provides shared test helpers for the snapledger project.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/offlinefirst/snapledger/internal/storage"
)

// SetupTestStore creates a migrated SQLite store backed by a per-test
// temporary directory and registers its cleanup.
func SetupTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
