package watching

import "testing"

func TestNormalizeBatchBasicCreate(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/a", ID: 1, FileType: FileTypeRegular, Created: true},
	}, normalizeContext{registrationID: 7})

	if len(result.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.notifications))
	}
	n := result.notifications[0]
	if !n.Event.Has(EventCreated) {
		t.Fatal("expected EventCreated")
	}
	if n.RegistrationID != 7 {
		t.Fatalf("expected registration id 7, got %d", n.RegistrationID)
	}
	if result.lastEventID != 1 {
		t.Fatalf("expected lastEventID 1, got %d", result.lastEventID)
	}
}

func TestNormalizeBatchCoalescedRemove(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/a", ID: 1, FileType: FileTypeRegular, Removed: true, ContentModified: true},
	}, normalizeContext{
		registrationID: 1,
		exists:         func(path string) bool { return true },
	})

	if len(result.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.notifications))
	}
	n := result.notifications[0]
	if n.Event.Has(EventRemoved) {
		t.Fatal("expected removed bit to be cleared by coalesced-remove heuristic")
	}
	if !n.Event.Has(EventContentModified) {
		t.Fatal("expected content-modified bit to survive")
	}
}

func TestNormalizeBatchRemoveWithoutExistenceSurvives(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/a", ID: 1, FileType: FileTypeRegular, Removed: true, ContentModified: true},
	}, normalizeContext{
		registrationID: 1,
		exists:         func(path string) bool { return false },
	})

	n := result.notifications[0]
	if !n.Event.Has(EventRemoved) {
		t.Fatal("expected removed bit to survive when path no longer exists")
	}
}

func TestNormalizeBatchRenamePairing(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/old", ID: 5, FileType: FileTypeRegular, Renamed: true},
		{Path: "/root/new", ID: 5, FileType: FileTypeRegular, Renamed: true},
	}, normalizeContext{registrationID: 1})

	if len(result.notifications) != 1 {
		t.Fatalf("expected rename pair to merge into 1 notification, got %d", len(result.notifications))
	}
	n := result.notifications[0]
	if n.Path != "/root/old" || n.RenamedToPath != "/root/new" {
		t.Fatalf("unexpected merged rename: %+v", n)
	}
}

func TestNormalizeBatchRenameThenRemoveDoesNotMerge(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/old", ID: 5, FileType: FileTypeRegular, Renamed: true},
		{Path: "/root/old", ID: 5, FileType: FileTypeRegular, Renamed: true, Removed: true},
	}, normalizeContext{registrationID: 1})

	if len(result.notifications) != 2 {
		t.Fatalf("expected 2 separate notifications, got %d", len(result.notifications))
	}
	if result.notifications[0].RenamedToPath != "" {
		t.Fatal("expected first notification to stay unmerged")
	}
	if result.notifications[1].Event.Has(EventRenamed) {
		t.Fatal("expected second notification's renamed bit to be cleared")
	}
	if !result.notifications[1].Event.Has(EventRemoved) {
		t.Fatal("expected second notification's removed bit to survive")
	}
}

func TestNormalizeBatchRescanCancelsAndDiscardsRest(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root", ID: 1, MustRescanSubdirs: true},
		{Path: "/root/a", ID: 2, Created: true},
	}, normalizeContext{registrationID: 1, rootPath: "/root"})

	if len(result.notifications) != 1 {
		t.Fatalf("expected only the rescan notification, got %d", len(result.notifications))
	}
	n := result.notifications[0]
	if !n.Event.Has(EventCanceled | EventRescan) {
		t.Fatal("expected canceled|rescan bits")
	}
	if !result.terminal {
		t.Fatal("expected terminal to be true")
	}
}

func TestNormalizeBatchMountDoesNotCancel(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/mnt", ID: 1, Mount: true},
		{Path: "/root/a", ID: 2, Created: true},
	}, normalizeContext{registrationID: 1})

	if result.terminal {
		t.Fatal("did not expect mount to terminate the registration")
	}
	if len(result.notifications) != 2 {
		t.Fatalf("expected both notifications to survive, got %d", len(result.notifications))
	}
	if !result.notifications[0].Event.Has(EventRescan) {
		t.Fatal("expected mount to map to a rescan notification")
	}
}

func TestNormalizeBatchReplayBoundary(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/a", ID: 10, Created: true},
	}, normalizeContext{registrationID: 1, stopID: 10})

	if len(result.notifications) != 2 {
		t.Fatalf("expected the original event plus a replay-end marker, got %d", len(result.notifications))
	}
	marker := result.notifications[1]
	if !marker.Event.Has(EventReplayEnd) {
		t.Fatal("expected EventReplayEnd on the boundary marker")
	}
	if marker.EventID != 0 {
		t.Fatal("expected boundary marker event id to be 0")
	}
	if !result.terminal {
		t.Fatal("expected terminal to be true at the replay boundary")
	}
}

func TestNormalizeBatchHistoryDoneIsSkipped(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/a", ID: 1, HistoryDone: true},
	}, normalizeContext{registrationID: 1})

	if len(result.notifications) != 0 {
		t.Fatalf("expected history-done marker to be silently skipped, got %d", len(result.notifications))
	}
	if result.lastEventID != 1 {
		t.Fatal("expected lastEventID to still advance past a history marker")
	}
}

func TestNormalizeBatchHistoryDoneTriggersReplayBoundaryBelowStopID(t *testing.T) {
	result := normalizeBatch([]rawEvent{
		{Path: "/root/a", ID: 3, Created: true},
		{Path: "/root/a", ID: 4, HistoryDone: true},
	}, normalizeContext{registrationID: 1, stopID: 100})

	if len(result.notifications) != 2 {
		t.Fatalf("expected the original event plus a replay-end marker, got %d", len(result.notifications))
	}
	marker := result.notifications[1]
	if !marker.Event.Has(EventReplayEnd) {
		t.Fatal("expected HistoryDone to trigger the replay boundary even though lastID never reached stopID")
	}
	if !marker.Event.Has(EventCanceled) {
		t.Fatal("expected the replay boundary to also cancel the registration")
	}
	if !result.terminal {
		t.Fatal("expected terminal to be true")
	}
}
