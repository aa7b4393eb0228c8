package images

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDeleteRemovesStoredFile(t *testing.T) {
	store := NewStore(t.TempDir())

	dir := filepath.Join(store.RootDir, "categories")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "categories-abc-1.jpeg")
	if err := os.WriteFile(target, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete("categories", "categories-abc-1.jpeg"); err != nil {
		t.Fatalf("expected delete to succeed, got %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, got %v", err)
	}
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	store := NewStore(t.TempDir())

	if err := store.Delete("categories", "never-stored.jpeg"); err != nil {
		t.Fatalf("missing file should not be an error, got %v", err)
	}
	if err := store.Delete("categories", ""); err != nil {
		t.Fatalf("empty filename should be a no-op, got %v", err)
	}
}

func TestDeleteRefusesPathsOutsideEntityDir(t *testing.T) {
	store := NewStore(t.TempDir())

	outside := filepath.Join(store.RootDir, "secret.txt")
	if err := os.WriteFile(outside, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, filename := range []string{
		"../../etc/passwd",
		"nested/file.jpeg",
		"..",
		".",
	} {
		if err := store.Delete("categories", filename); err == nil {
			t.Fatalf("expected %q to be refused", filename)
		}
	}

	// A single "../" collapses to a bare name inside the entity dir, so it
	// becomes a harmless missing-file no-op rather than a traversal.
	if err := store.Delete("categories", "../secret.txt"); err != nil {
		t.Fatalf("collapsed traversal should be a no-op, got %v", err)
	}

	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("file outside the entity dir must survive: %v", err)
	}
}
