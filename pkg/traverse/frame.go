package traverse

import (
	"github.com/prosoft-labs/corefs/pkg/internal/direntry"
)

// frame represents one level of the explicit traversal stack. It mirrors the
// stack_entry / state<Ops>::m_stack design of the teacher's iterator
// implementation: an open directory handle (nil for a placeholder pushed in
// place of a directory that failed to open), its content names, a cursor
// into those names, and enough context to make mountpoint and postorder
// decisions without re-querying the filesystem.
type frame struct {
	// dir is the open directory, or nil if this is a placeholder frame for a
	// directory that could not be opened.
	dir *direntry.Directory
	// path is the full path of the directory this frame represents.
	path string
	// names holds the directory's content names, consumed in order.
	names []string
	// index is the offset of the next name in names to be processed.
	index int
	// deviceID is the device ID of this directory, used to detect
	// mountpoint boundaries in children.
	deviceID uint64
	// postorderPending is true if this directory still needs to be yielded
	// a second time, after its children, because IncludePostorderDirectories
	// is set.
	postorderPending bool
}

// atEnd reports whether every name in the frame has been consumed.
func (f *frame) atEnd() bool {
	return f.index >= len(f.names)
}

// close releases the frame's directory handle, if any.
func (f *frame) close() error {
	if f.dir != nil {
		return f.dir.Close()
	}
	return nil
}
