package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_SetGetDelete(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "test.sqlite"))

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("Expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := store.Set("k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if v, ok, err := store.Get("k"); err != nil || !ok || v != "v1" {
		t.Fatalf("Get returned %q ok=%v err=%v", v, ok, err)
	}

	// Upsert overwrites.
	if err := store.Set("k", "v2"); err != nil {
		t.Fatalf("Second set failed: %v", err)
	}
	if v, _, _ := store.Get("k"); v != "v2" {
		t.Errorf("Expected overwritten value, got %q", v)
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("Expected key gone after delete")
	}

	// Deleting an absent key is not an error.
	if err := store.Delete("k"); err != nil {
		t.Errorf("Delete of absent key errored: %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.sqlite")

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if err := store.Set("doc", "survives restart"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	store.Close()

	reopened := openTestStore(t, path)
	if v, ok, err := reopened.Get("doc"); err != nil || !ok || v != "survives restart" {
		t.Errorf("Expected value after reopen, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteStore_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "db.sqlite")
	store := openTestStore(t, path)

	if err := store.Set("k", "v"); err != nil {
		t.Errorf("Set in nested path failed: %v", err)
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "ping.sqlite"))
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSQLiteStore_ManagerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manager.sqlite")

	store := openTestStore(t, path)
	m := newTestManager(t, store)
	m.Save("persisted transcript")
	m.SetDocument("persisted document")
	m.Flush()
	store.Close()

	reopened := openTestStore(t, path)
	m2 := newTestManager(t, reopened)
	if entries := m2.List(); len(entries) != 1 || entries[0].Content != "persisted transcript" {
		t.Errorf("Expected restored history, got %v", entries)
	}
	if m2.Document() != "persisted document" {
		t.Errorf("Expected restored document, got %q", m2.Document())
	}
}

func TestIsTransientStoreError(t *testing.T) {
	if isTransientStoreError(nil) {
		t.Error("nil error flagged transient")
	}
	if !isTransientStoreError(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("locked error not flagged transient")
	}
	if isTransientStoreError(errors.New("no such table: kv")) {
		t.Error("schema error flagged transient")
	}
}
