// Package kv tests for the durable key-value store.
package kv

import (
	"path/filepath"
	"testing"
)

// openTestStore creates a store in a temp directory.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestStore_SetGet verifies basic round trips.
func TestStore_SetGet(t *testing.T) {
	store := openTestStore(t)

	if err := store.Set("trips_cache_user-1", `[{"id":"t1"}]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := store.Get("trips_cache_user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if value != `[{"id":"t1"}]` {
		t.Errorf("value = %q", value)
	}
}

// TestStore_GetAbsent verifies absent keys report ok=false with no error.
func TestStore_GetAbsent(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected ok=false for absent key")
	}
}

// TestStore_Overwrite verifies Set overwrites existing values.
func TestStore_Overwrite(t *testing.T) {
	store := openTestStore(t)

	store.Set("k", "v1")
	if err := store.Set("k", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	value, _, _ := store.Get("k")
	if value != "v2" {
		t.Errorf("value = %q, want v2", value)
	}
}

// TestStore_Remove verifies removal, including of absent keys.
func TestStore_Remove(t *testing.T) {
	store := openTestStore(t)

	store.Set("k", "v")
	if err := store.Remove("k"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	_, ok, _ := store.Get("k")
	if ok {
		t.Error("key should be gone after Remove")
	}

	// Removing again is not an error.
	if err := store.Remove("k"); err != nil {
		t.Errorf("Remove of absent key failed: %v", err)
	}
}

// TestStore_SurvivesReopen verifies values persist across close/open.
func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Set("pending_mutations_user-1", "[]"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get("pending_mutations_user-1")
	if err != nil || !ok {
		t.Fatalf("Get after reopen: value=%q ok=%v err=%v", value, ok, err)
	}
	if value != "[]" {
		t.Errorf("value = %q, want []", value)
	}

	if _, err := filepath.Glob(filepath.Join(dir, "*.db")); err != nil {
		t.Fatalf("glob: %v", err)
	}
}
