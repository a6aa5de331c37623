package watching

import (
	"github.com/prosoft-labs/corefs/pkg/internal/direntry"
)

// Event is a bit mask describing the kind(s) of change a Notification
// represents, grounded on original_source's change_event enum
// (filesystem_change_monitor.hpp).
type Event uint32

const (
	// EventCreated indicates that the path was created.
	EventCreated Event = 1 << iota
	// EventContentModified indicates that the path's content changed.
	EventContentModified
	// EventMetadataModified indicates that the path's metadata (inode,
	// extended attributes, owner, Finder info, etc.) changed.
	EventMetadataModified
	// EventRemoved indicates that the path was removed.
	EventRemoved
	// EventRenamed indicates that the path was renamed. If RenamedToPath is
	// non-empty on the notification, the rename was fully resolved to a
	// destination within the watched tree.
	EventRenamed
	// EventRescan indicates a volume-level hint that the consumer should
	// rescan the watched tree, without necessarily terminating the
	// registration (e.g. a mount/unmount under the tree).
	EventRescan
	// EventCanceled indicates that the registration has terminated; no
	// further notifications will be delivered for it.
	EventCanceled
	// EventOutsideTree indicates the event is a side effect of an operation
	// that crossed the watch boundary (e.g. the second half of a rename
	// whose source or destination lies outside the watched tree).
	EventOutsideTree
	// EventReplayEnd marks the boundary of a historical replay requested via
	// a resume token's replay-to-current-event behavior.
	EventReplayEnd
)

// EventModified is an alias for the combination of content and metadata
// modification.
const EventModified = EventContentModified | EventMetadataModified

// EventRescanRequired is an alias meaning "the consumer must fully rescan":
// either a rescan hint or a terminal cancellation.
const EventRescanRequired = EventRescan | EventCanceled

// Has reports whether every bit in mask is set.
func (e Event) Has(mask Event) bool {
	return e&mask == mask
}

// Any reports whether any bit in mask is set.
func (e Event) Any(mask Event) bool {
	return e&mask != 0
}

// FileType identifies the best-effort type of the path a Notification
// refers to. It is shared with the traverse package's classification.
type FileType = direntry.FileType

const (
	FileTypeNone         = direntry.TypeNone
	FileTypeNotFound     = direntry.TypeNotFound
	FileTypeRegular      = direntry.TypeRegular
	FileTypeDirectory    = direntry.TypeDirectory
	FileTypeSymbolicLink = direntry.TypeSymbolicLink
	FileTypeBlock        = direntry.TypeBlockDevice
	FileTypeCharacter    = direntry.TypeCharacterDevice
	FileTypeFIFO         = direntry.TypeFIFO
	FileTypeSocket       = direntry.TypeSocket
	FileTypeUnknown      = direntry.TypeUnknown
)

// Notification describes one normalized filesystem change.
type Notification struct {
	// Path is the path the event pertains to.
	Path string
	// RenamedToPath is non-empty only when a rename has been fully resolved
	// within a single batch by the rename-pairing pass; Event will have
	// EventRenamed set whenever this is non-empty.
	RenamedToPath string
	// Event is the bit mask of change kinds this notification represents.
	Event Event
	// FileType is the best-effort type of Path at the time of the event.
	FileType FileType
	// EventID is a monotonic, per-registration identifier. 0 is reserved for
	// root-changed/replay-boundary notifications.
	EventID uint64
	// RegistrationID identifies the registration this notification belongs
	// to; it matches a Registration's identity.
	RegistrationID uint64
}
