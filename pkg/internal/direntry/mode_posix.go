// +build !windows

package direntry

import (
	"golang.org/x/sys/unix"
)

// Mode is an opaque type representing a file type. It is guaranteed to be
// convertible to a uint32 value. On POSIX systems, it is the type portion of
// the raw underlying file mode from the Stat_t structure.
type Mode uint32

const (
	// ModeTypeMask is a bit mask that isolates type information from a Mode.
	ModeTypeMask = Mode(unix.S_IFMT)
	// ModeTypeDirectory represents a directory.
	ModeTypeDirectory = Mode(unix.S_IFDIR)
	// ModeTypeFile represents a regular file.
	ModeTypeFile = Mode(unix.S_IFREG)
	// ModeTypeSymbolicLink represents a symbolic link.
	ModeTypeSymbolicLink = Mode(unix.S_IFLNK)
)
