package traverse

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func collect(t *testing.T, it *Iterator) []string {
	t.Helper()
	var paths []string
	for it.Next() {
		paths = append(paths, it.Entry().Path)
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected traversal error: %v", err)
	}
	sort.Strings(paths)
	return paths
}

func TestIteratorBasicTraversal(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "a"))
	mustMkdir(t, filepath.Join(root, "a", "b"))
	mustWriteFile(t, filepath.Join(root, "a", "b", "c.txt"), "hello")
	mustWriteFile(t, filepath.Join(root, "top.txt"), "hi")

	it, err := New(root, DefaultDirectoryOptions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer it.Close()

	got := collect(t, it)
	want := []string{
		filepath.Join(root, "a"),
		filepath.Join(root, "a", "b"),
		filepath.Join(root, "a", "b", "c.txt"),
		filepath.Join(root, "top.txt"),
	}
	sort.Strings(want)
	if !equalSlices(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIteratorSkipDescendants(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "skip"))
	mustWriteFile(t, filepath.Join(root, "skip", "hidden.txt"), "x")
	mustMkdir(t, filepath.Join(root, "keep"))
	mustWriteFile(t, filepath.Join(root, "keep", "visible.txt"), "x")

	it, err := New(root, DefaultDirectoryOptions)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer it.Close()

	var got []string
	for it.Next() {
		entry := it.Entry()
		got = append(got, entry.Path)
		if filepath.Base(entry.Path) == "skip" {
			it.SkipDescendants()
		}
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected traversal error: %v", err)
	}

	for _, p := range got {
		if filepath.Base(filepath.Dir(p)) == "skip" {
			t.Fatalf("descended into skipped directory, found %q", p)
		}
	}
}

func TestIteratorPostorder(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "dir"))
	mustWriteFile(t, filepath.Join(root, "dir", "file.txt"), "x")

	it, err := New(root, DefaultDirectoryOptions|IncludePostorderDirectories)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer it.Close()

	var sawFileBeforePostorder, sawPostorder bool
	for it.Next() {
		entry := it.Entry()
		if entry.Path == filepath.Join(root, "dir", "file.txt") {
			sawFileBeforePostorder = true
		}
		if entry.Path == filepath.Join(root, "dir") && entry.Postorder {
			if !sawFileBeforePostorder {
				t.Fatal("postorder directory entry arrived before its descendant")
			}
			sawPostorder = true
		}
	}
	if err := it.Err(); err != nil {
		t.Fatalf("unexpected traversal error: %v", err)
	}
	if !sawPostorder {
		t.Fatal("never saw postorder directory entry")
	}
}

func TestIteratorSkipHiddenDescendants(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, ".hidden"), "x")
	mustWriteFile(t, filepath.Join(root, "visible.txt"), "x")

	it, err := New(root, DefaultDirectoryOptions|SkipHiddenDescendants)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer it.Close()

	got := collect(t, it)
	if len(got) != 1 || filepath.Base(got[0]) != "visible.txt" {
		t.Fatalf("expected only visible.txt, got %v", got)
	}
}

func TestIteratorRejectsNonDirectoryRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	mustWriteFile(t, file, "x")

	if _, err := New(file, DefaultDirectoryOptions); err != ErrUnsupportedRootType {
		t.Fatalf("expected ErrUnsupportedRootType, got %v", err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.Mkdir(path, 0700); err != nil {
		t.Fatal(err)
	}
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
