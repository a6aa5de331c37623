package watching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prosoft-labs/corefs/pkg/traverse"
)

func newTestIterator() *ChangedDirectoryIterator {
	return &ChangedDirectoryIterator{set: make(map[string]struct{})}
}

func TestChangedDirectoryIteratorRequiresEventOption(t *testing.T) {
	_, err := NewChangedDirectoryIterator("/tmp", traverse.DefaultDirectoryOptions, DefaultChangeConfig())
	if err == nil {
		t.Fatal("expected an error when neither IncludeCreatedEvents nor IncludeModifiedEvents is set")
	}
}

func TestChangedDirectoryIteratorDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal("unable to create test file:", err)
	}

	it := newTestIterator()
	filters := []notificationFilter{isRegularFilter, existsFilter}

	it.handle(&Notification{Path: path, Event: EventCreated, FileType: FileTypeRegular}, filters)
	it.handle(&Notification{Path: path, Event: EventContentModified, FileType: FileTypeRegular}, filters)

	queued := it.Extract()
	if len(queued) != 1 || queued[0] != path {
		t.Fatalf("expected a single deduplicated entry for %q, got %v", path, queued)
	}
}

func TestChangedDirectoryIteratorExistsFilterRejectsGoneFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone")

	it := newTestIterator()
	filters := []notificationFilter{isRegularFilter, existsFilter}

	it.handle(&Notification{Path: path, Event: EventRemoved, FileType: FileTypeRegular}, filters)

	if queued := it.Extract(); len(queued) != 0 {
		t.Fatalf("expected no entries for a nonexistent path, got %v", queued)
	}
}

func TestChangedDirectoryIteratorBypassesFiltersForRescanRequired(t *testing.T) {
	it := newTestIterator()
	filters := []notificationFilter{isRegularFilter, existsFilter}

	it.handle(&Notification{Event: EventRescan}, filters)
	if it.AtEnd() {
		t.Fatal("a bare rescan (not canceled) should not mark the iterator done")
	}

	it.handle(&Notification{Event: EventCanceled}, filters)
	if !it.AtEnd() {
		t.Fatal("expected AtEnd to be true after a canceled notification with an empty queue")
	}
}

func TestChangedDirectoryIteratorNextAndExtract(t *testing.T) {
	it := newTestIterator()

	it.mu.Lock()
	it.set["/root/a"] = struct{}{}
	it.order = append(it.order, "/root/a")
	it.set["/root/b"] = struct{}{}
	it.order = append(it.order, "/root/b")
	it.mu.Unlock()

	if path := it.Next(); path != "/root/a" {
		t.Fatalf("expected /root/a, got %q", path)
	}

	remaining := it.Extract()
	if len(remaining) != 1 || remaining[0] != "/root/b" {
		t.Fatalf("expected [/root/b], got %v", remaining)
	}

	if path := it.Next(); path != "" {
		t.Fatalf("expected empty path after drain, got %q", path)
	}
}

func TestChangedDirectoryIteratorRenameDeduplicationKey(t *testing.T) {
	n := &Notification{Path: "/root/old", RenamedToPath: "/root/new"}
	if targetPath(n) != "/root/new" {
		t.Fatalf("expected targetPath to prefer RenamedToPath, got %q", targetPath(n))
	}

	plain := &Notification{Path: "/root/a"}
	if targetPath(plain) != "/root/a" {
		t.Fatalf("expected targetPath to fall back to Path, got %q", targetPath(plain))
	}
}

func TestEventsForOptions(t *testing.T) {
	mask := eventsForOptions(IncludeCreatedEvents)
	if !mask.Has(EventCreated) {
		t.Fatal("expected EventCreated to be included")
	}
	if mask.Has(EventContentModified) {
		t.Fatal("did not expect EventContentModified without IncludeModifiedEvents")
	}
	if !mask.Has(EventRemoved | EventRenamed | EventRescan | EventCanceled) {
		t.Fatal("expected the always-included structural events")
	}
}
