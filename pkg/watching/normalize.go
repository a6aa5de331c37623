package watching

// rawEvent is a single platform event, already translated by the
// platform-specific backend from native flags into this neutral shape.
// Splitting the translation this way keeps the flag-mapping table
// (grounded on original_source's fsevents_monitor.cpp::to_event) close to
// each backend while keeping the rename-pairing, coalesced-remove, and
// rescan/cancel logic below entirely platform-agnostic and unit-testable.
type rawEvent struct {
	Path     string
	ID       uint64
	FileType FileType

	Created           bool
	Removed           bool
	Renamed           bool
	ContentModified   bool
	MetadataModified  bool
	RootChanged       bool
	MustRescanSubdirs bool
	Mount             bool
	Unmount           bool
	HistoryDone       bool
}

// normalizeContext supplies the filesystem-touching hooks the normalizer
// needs: the coalesced-remove heuristic's existence check, and root-rename
// recovery's canonical-path query. Both are optional; a nil hook disables
// the corresponding refinement (existence assumed false, root assumed
// simply removed).
type normalizeContext struct {
	// exists reports whether path currently exists on disk. Used solely by
	// the coalesced-remove heuristic, the one place the normalizer touches
	// the filesystem.
	exists func(path string) bool
	// resolveRoot recovers the watched root's current canonical path after
	// the platform reports the root itself changed. ok is false if the root
	// is confirmed gone (vs. merely renamed).
	resolveRoot func() (path string, ok bool)

	rootPath       string
	registrationID uint64
	stopID         uint64
}

// normalizeResult is the output of normalizing one batch.
type normalizeResult struct {
	notifications []*Notification
	lastEventID   uint64
	terminal      bool
}

// normalizeBatch converts a batch of raw platform events into uniform
// notifications, applying the rescan/cancel short-circuit, the
// coalesced-remove heuristic, the rename-pairing post-pass, and the replay
// boundary. The replay boundary fires once stopID is set and either the
// processed id reaches it or the platform reports its history-complete
// signal, whichever comes first.
func normalizeBatch(raw []rawEvent, ctx normalizeContext) normalizeResult {
	var result normalizeResult
	var lastID uint64
	var historyDone bool

	for _, ev := range raw {
		if ev.ID > lastID {
			lastID = ev.ID
		}

		if ev.RootChanged || ev.MustRescanSubdirs {
			n := &Notification{
				Path:           ctx.rootPath,
				Event:          EventCanceled | EventRescan,
				FileType:       FileTypeDirectory,
				EventID:        ev.ID,
				RegistrationID: ctx.registrationID,
			}
			if ev.RootChanged {
				if newPath, ok := resolveRoot(ctx); ok {
					n.Event |= EventRenamed
					n.RenamedToPath = newPath
				} else {
					n.Event |= EventRemoved
				}
			}
			result.notifications = append(result.notifications, n)
			result.lastEventID = lastID
			result.terminal = true
			return result
		}

		if ev.Mount || ev.Unmount {
			result.notifications = append(result.notifications, &Notification{
				Path:           ev.Path,
				Event:          EventRescan,
				FileType:       FileTypeNone,
				EventID:        ev.ID,
				RegistrationID: ctx.registrationID,
			})
			continue
		}

		if ev.HistoryDone {
			historyDone = true
			continue
		}

		removed := ev.Removed
		hasOtherModifyFlags := ev.Created || ev.ContentModified || ev.MetadataModified || ev.Renamed
		if removed && hasOtherModifyFlags && ctx.exists != nil && ctx.exists(ev.Path) {
			removed = false
		}

		var mask Event
		if ev.Created {
			mask |= EventCreated
		}
		if ev.ContentModified {
			mask |= EventContentModified
		}
		if ev.MetadataModified {
			mask |= EventMetadataModified
		}
		if removed {
			mask |= EventRemoved
		}
		if ev.Renamed {
			mask |= EventRenamed
		}
		if mask == 0 {
			continue
		}

		result.notifications = append(result.notifications, &Notification{
			Path:           ev.Path,
			Event:          mask,
			FileType:       ev.FileType,
			EventID:        ev.ID,
			RegistrationID: ctx.registrationID,
		})
	}

	result.notifications = pairRenames(result.notifications)

	if ctx.stopID > 0 && (historyDone || lastID >= ctx.stopID) {
		result.notifications = append(result.notifications, &Notification{
			Event:          EventReplayEnd | EventCanceled,
			FileType:       FileTypeNone,
			EventID:        0,
			RegistrationID: ctx.registrationID,
		})
		result.terminal = true
	}

	result.lastEventID = lastID
	return result
}

// resolveRoot is split out purely so it can short-circuit on a nil hook
// without every call site checking for nil.
func resolveRoot(ctx normalizeContext) (string, bool) {
	if ctx.resolveRoot == nil {
		return "", false
	}
	return ctx.resolveRoot()
}

// pairRenames performs the rename-pairing post-pass: two notifications
// sharing an EventID and both carrying EventRenamed are merged into one,
// with the second's path becoming the first's RenamedToPath. If the second
// also carries EventRemoved, it instead has EventRenamed cleared (it became
// a cross-tree remove) and no merge happens. This pass operates only within
// a single batch, per the documented limitation that rename pairs split
// across batches are never paired.
func pairRenames(notifications []*Notification) []*Notification {
	removed := make(map[int]bool)
	for i, first := range notifications {
		if removed[i] || !first.Event.Has(EventRenamed) || first.RenamedToPath != "" {
			continue
		}
		for j := i + 1; j < len(notifications); j++ {
			if removed[j] {
				continue
			}
			second := notifications[j]
			if second.EventID != first.EventID || !second.Event.Has(EventRenamed) {
				continue
			}
			if second.Event.Has(EventRemoved) {
				second.Event &^= EventRenamed
			} else {
				first.RenamedToPath = second.Path
				removed[j] = true
			}
			break
		}
	}

	if len(removed) == 0 {
		return notifications
	}
	result := make([]*Notification, 0, len(notifications)-len(removed))
	for i, n := range notifications {
		if !removed[i] {
			result = append(result, n)
		}
	}
	return result
}
