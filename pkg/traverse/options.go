package traverse

// DirectoryOptions is a bit mask controlling the behavior of an Iterator.
type DirectoryOptions uint32

const (
	// FollowDirectorySymlink allows symbolic links to directories to be
	// followed, both at the traversal root and beneath it. A followed link
	// is descended into through its resolved target path.
	FollowDirectorySymlink DirectoryOptions = 1 << iota
	// SkipPermissionDenied causes permission-denied errors encountered while
	// opening a directory to be swallowed (a placeholder frame is still
	// pushed so that depth accounting stays consistent) rather than
	// surfaced via Err.
	SkipPermissionDenied
	// SkipSubdirectoryDescendants, when set on a specific directory by
	// calling SkipDescendants, prevents that directory's children from
	// being visited. This flag itself has no effect when set globally; it
	// documents the option family named in the external surface.
	SkipSubdirectoryDescendants
	// SkipHiddenDescendants causes dot-prefixed (POSIX) or
	// FILE_ATTRIBUTE_HIDDEN (Windows) entries to be skipped entirely.
	SkipHiddenDescendants
	// SkipPackageContentDescendants causes the contents of macOS packages
	// (application bundles and similar extension-denoted directories) to be
	// skipped below the top of the package; the package directory entry
	// itself is still yielded.
	SkipPackageContentDescendants
	// FollowMountpoints allows traversal to cross filesystem mountpoint
	// boundaries. By default, a directory whose device ID differs from its
	// parent's is treated as a mountpoint and not descended into.
	FollowMountpoints
	// IncludePostorderDirectories causes each directory to be yielded a
	// second time, after all of its descendants have been yielded.
	IncludePostorderDirectories
	// IncludeAppleDoubleFiles disables the default macOS-only elision of
	// "._name" AppleDouble sidecar files that accompany "name" on non-HFS+
	// volumes. It has no effect on non-darwin platforms.
	IncludeAppleDoubleFiles
)

// DefaultDirectoryOptions is the recommended default option set: don't
// follow directory symlinks, don't cross mountpoints, skip permission-denied
// directories, and never show AppleDouble sidecar files.
const DefaultDirectoryOptions DirectoryOptions = SkipPermissionDenied

// has reports whether every bit in mask is set in o.
func (o DirectoryOptions) has(mask DirectoryOptions) bool {
	return o&mask == mask
}

// Has reports whether every bit in mask is set in o. Exported so that the
// watching package, which extends this bitmask with two change-iterator-only
// bits, can test caller-supplied options without duplicating the type.
func (o DirectoryOptions) Has(mask DirectoryOptions) bool {
	return o.has(mask)
}
