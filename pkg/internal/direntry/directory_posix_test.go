// +build !windows

package direntry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenAndReadContents(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "file.txt"), []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0700); err != nil {
		t.Fatal(err)
	}

	dir, err := Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dir.Close()

	contents, err := dir.ReadContents()
	if err != nil {
		t.Fatalf("ReadContents failed: %v", err)
	}
	if len(contents) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(contents))
	}

	var sawFile, sawDirectory bool
	for _, m := range contents {
		switch m.Name {
		case "file.txt":
			if !m.IsRegularFile() {
				t.Error("file.txt not classified as regular file")
			}
			if m.Size != 5 {
				t.Errorf("unexpected size for file.txt: %d", m.Size)
			}
			sawFile = true
		case "sub":
			if !m.IsDirectory() {
				t.Error("sub not classified as directory")
			}
			sawDirectory = true
		default:
			t.Errorf("unexpected entry: %s", m.Name)
		}
	}
	if !sawFile || !sawDirectory {
		t.Fatal("did not observe both expected entries")
	}
}

func TestOpenDirectorySubdirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "sub"), 0700); err != nil {
		t.Fatal(err)
	}

	dir, err := Open(root)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dir.Close()

	sub, err := dir.OpenDirectory("sub")
	if err != nil {
		t.Fatalf("OpenDirectory failed: %v", err)
	}
	defer sub.Close()

	names, err := sub.ReadContentNames()
	if err != nil {
		t.Fatalf("ReadContentNames failed: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty subdirectory, got %v", names)
	}
}

func TestEnsureValidNameRejectsSeparatorsAndDotEntries(t *testing.T) {
	for _, name := range []string{".", "..", "a/b"} {
		if err := ensureValidName(name); err == nil {
			t.Errorf("expected error for name %q", name)
		}
	}
	if err := ensureValidName("normal.txt"); err != nil {
		t.Errorf("unexpected error for valid name: %v", err)
	}
}

func TestCanonicalPathAfterRename(t *testing.T) {
	root := t.TempDir()
	original := filepath.Join(root, "original")
	if err := os.Mkdir(original, 0700); err != nil {
		t.Fatal(err)
	}

	dir, err := Open(original)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer dir.Close()

	renamed := filepath.Join(root, "renamed")
	if err := os.Rename(original, renamed); err != nil {
		t.Fatal(err)
	}

	path, err := dir.CanonicalPath()
	if err != nil {
		t.Fatalf("CanonicalPath failed: %v", err)
	}
	if path != renamed {
		t.Fatalf("expected canonical path %q, got %q", renamed, path)
	}
}
