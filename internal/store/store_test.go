package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()

	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(KeyLastNonLatinID, "com.apple.inputmethod.SCIM.ITABC"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.Get(KeyLastNonLatinID)
	if err != nil || v != "com.apple.inputmethod.SCIM.ITABC" {
		t.Fatalf("get: got %q, %v", v, err)
	}

	// Overwrite.
	if err := s.Set(KeyLastNonLatinID, "xkb:us::eng"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _ = s.Get(KeyLastNonLatinID)
	if v != "xkb:us::eng" {
		t.Fatalf("overwrite not applied, got %q", v)
	}

	if err := s.Delete(KeyLastNonLatinID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(KeyLastNonLatinID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	// Deleting an absent key is fine.
	if err := s.Delete(KeyLastNonLatinID); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	defer s.Close()
	testStoreContract(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(KeyTapEnabled, "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	v, err := s2.Get(KeyTapEnabled)
	if err != nil || v != "false" {
		t.Fatalf("value should survive reopen, got %q, %v", v, err)
	}
}

func TestGetDefault(t *testing.T) {
	s := NewMemory()

	v, err := GetDefault(s, KeyLatinSourceID, "com.apple.keylayout.ABC")
	if err != nil || v != "com.apple.keylayout.ABC" {
		t.Fatalf("absent key should yield the default, got %q, %v", v, err)
	}

	s.Set(KeyLatinSourceID, "xkb:us::eng")
	v, err = GetDefault(s, KeyLatinSourceID, "com.apple.keylayout.ABC")
	if err != nil || v != "xkb:us::eng" {
		t.Fatalf("present key should win, got %q, %v", v, err)
	}
}
