package traverse

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/prosoft-labs/corefs/pkg/internal/direntry"
)

// ErrUnsupportedRootType indicates that the filesystem entry at the
// traversal root is not a directory (or a symlink to one, if
// FollowDirectorySymlink is set).
var ErrUnsupportedRootType = errors.New("traversal root is not a directory")

// Iterator performs a non-recursive, explicit-stack traversal of a directory
// tree, yielding one DirectoryEntry per call to Next. It is grounded on the
// teacher's recursive filesystem.Walk but restructured, following
// original_source's state<Ops> design, as an explicit []frame stack so that
// Next, SkipDescendants, and Depth are first-class rather than
// callback-driven.
type Iterator struct {
	options DirectoryOptions
	stack   []*frame
	current *DirectoryEntry

	// pendingDescentFrame is the frame most recently pushed as a result of
	// descending into the directory entry just returned by Next, if any. It
	// is consulted (and cleared) by SkipDescendants.
	pendingDescentFrame *frame

	// currentDepth is the depth of the most recently returned entry, i.e.
	// the number of ancestor directories between it and the traversal root.
	currentDepth int

	// err is the sticky, most recent non-fatal error encountered during
	// traversal (e.g. a directory that failed to open). It is cleared only
	// by an explicit call to ClearErr.
	err error

	closed bool
}

// New begins a traversal rooted at the given path.
func New(root string, options DirectoryOptions) (*Iterator, error) {
	info, err := os.Lstat(root)
	if err != nil {
		return nil, errors.Wrap(err, "unable to query traversal root")
	}
	if info.Mode()&os.ModeSymlink != 0 {
		if !options.has(FollowDirectorySymlink) {
			return nil, ErrUnsupportedRootType
		}
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			return nil, errors.Wrap(err, "unable to resolve traversal root symlink")
		}
		root = resolved
		if info, err = os.Lstat(root); err != nil {
			return nil, errors.Wrap(err, "unable to query resolved traversal root")
		}
	}
	if !info.IsDir() {
		return nil, ErrUnsupportedRootType
	}

	it := &Iterator{options: options}
	if err := it.push(root, 0); err != nil {
		return nil, err
	}
	return it, nil
}

// push opens the directory at path and pushes a frame for it. parentDevice
// is used only to seed the new frame's own deviceID when the open fails (so
// that mountpoint comparisons downstream remain well defined); on success
// the frame's deviceID is read from the freshly opened directory itself.
func (i *Iterator) push(path string, parentDevice uint64) error {
	dir, err := direntry.Open(path)
	if err != nil {
		if os.IsPermission(err) && i.options.has(SkipPermissionDenied) {
			err = nil
		} else {
			i.err = errors.Wrapf(err, "unable to open directory %q", path)
		}
		i.stack = append(i.stack, &frame{path: path, deviceID: parentDevice})
		return nil
	}

	names, err := dir.ReadContentNames()
	if err != nil {
		dir.Close()
		i.err = errors.Wrapf(err, "unable to list directory %q", path)
		i.stack = append(i.stack, &frame{path: path, deviceID: parentDevice})
		return nil
	}

	deviceID := parentDevice
	if meta, err := dir.ReadContentMetadata("."); err == nil {
		deviceID = meta.DeviceID
	}

	i.stack = append(i.stack, &frame{
		dir:              dir,
		path:             path,
		names:            names,
		deviceID:         deviceID,
		postorderPending: i.options.has(IncludePostorderDirectories),
	})
	return nil
}

// pop closes and removes the top frame from the stack.
func (i *Iterator) pop() {
	n := len(i.stack)
	top := i.stack[n-1]
	top.close()
	i.stack = i.stack[:n-1]
}

// Next advances the iterator and reports whether another entry is
// available. When it returns false, the traversal is complete (call Err to
// check whether that was due to exhaustion or a fatal condition — though in
// this implementation individual directory errors are non-fatal and merely
// recorded via Err while traversal continues).
func (i *Iterator) Next() bool {
	i.pendingDescentFrame = nil
	i.current = nil

	for len(i.stack) > 0 {
		top := i.stack[len(i.stack)-1]

		if top.dir == nil {
			// Placeholder frame for a directory that failed to open. There
			// is nothing to enumerate; just pop it.
			i.pop()
			continue
		}

		if top.atEnd() {
			if top.postorderPending {
				top.postorderPending = false
				entry := &DirectoryEntry{
					Path:      top.path,
					Type:      TypeDirectory,
					Postorder: true,
				}
				if meta, err := func() (*direntry.Metadata, error) {
					if len(i.stack) >= 2 {
						parent := i.stack[len(i.stack)-2]
						if parent.dir != nil {
							return parent.dir.ReadContentMetadata(filepath.Base(top.path))
						}
					}
					return nil, errors.New("no parent frame available")
				}(); err == nil {
					entry.Size = meta.Size
					entry.ModifiedTime = meta.ModificationTime
				}
				i.current = entry
				i.currentDepth = len(i.stack) - 1
				i.pop()
				return true
			}
			i.pop()
			continue
		}

		i.currentDepth = len(i.stack)
		name := top.names[top.index]
		top.index++

		if name == "." || name == ".." {
			continue
		}
		if !i.options.has(IncludeAppleDoubleFiles) && isAppleDouble(name, top.names) {
			continue
		}

		fullPath := filepath.Join(top.path, name)

		if i.options.has(SkipHiddenDescendants) && direntry.IsHidden(fullPath) {
			continue
		}

		metadata, err := top.dir.ReadContentMetadata(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			i.err = errors.Wrapf(err, "unable to read metadata for %q", fullPath)
			continue
		}

		entry := newDirectoryEntry(fullPath, metadata)

		if entry.Type == TypeSymbolicLink && i.options.has(FollowDirectorySymlink) {
			if target, err := filepath.EvalSymlinks(fullPath); err == nil {
				if targetInfo, err := os.Stat(target); err == nil && targetInfo.IsDir() {
					if pushErr := i.push(target, top.deviceID); pushErr == nil {
						i.pendingDescentFrame = i.stack[len(i.stack)-1]
					}
				}
			}
		} else if entry.Type == TypeDirectory {
			isMountpoint := metadata.DeviceID != top.deviceID
			crossable := !isMountpoint || i.options.has(FollowMountpoints)
			skipContent := i.options.has(SkipPackageContentDescendants) && isPackageDirectory(name)

			if crossable && !skipContent {
				if pushErr := i.push(fullPath, top.deviceID); pushErr == nil {
					i.pendingDescentFrame = i.stack[len(i.stack)-1]
				}
			}
		}

		i.current = entry
		return true
	}

	return false
}

// Entry returns the entry produced by the most recent call to Next. It
// returns nil if Next has not been called or the traversal is exhausted.
func (i *Iterator) Entry() *DirectoryEntry {
	return i.current
}

// Depth returns the depth of the most recently returned entry relative to
// the traversal root (the root's direct children are at depth 1).
func (i *Iterator) Depth() int {
	return i.currentDepth
}

// SkipDescendants prevents descent into the directory entry most recently
// returned by Next. It is a no-op if the most recent entry was not a
// directory that was about to be descended into (including if Next has not
// been called, or the entry was a file, a non-crossed mountpoint, or a
// skipped package).
func (i *Iterator) SkipDescendants() {
	if i.pendingDescentFrame == nil {
		return
	}
	if len(i.stack) == 0 || i.stack[len(i.stack)-1] != i.pendingDescentFrame {
		return
	}
	i.stack[len(i.stack)-1].postorderPending = false
	i.pop()
	i.pendingDescentFrame = nil
}

// Err returns the most recent non-fatal error encountered during traversal
// (for example, a directory that could not be opened or stat'd). It is
// sticky: it remains set across calls to Next until ClearErr is called.
func (i *Iterator) Err() error {
	return i.err
}

// ClearErr clears any sticky error recorded by Err.
func (i *Iterator) ClearErr() {
	i.err = nil
}

// Close releases any directory handles still held on the traversal stack,
// for a caller that abandons iteration before reaching the end.
func (i *Iterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	var firstErr error
	for len(i.stack) > 0 {
		n := len(i.stack)
		top := i.stack[n-1]
		i.stack = i.stack[:n-1]
		if err := top.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
