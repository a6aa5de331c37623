package direntry

import (
	"bytes"
	"unsafe"

	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

// maxPathLength is the buffer size required by fcntl(F_GETPATH), which on
// Darwin always returns a path of at most MAXPATHLEN bytes.
const maxPathLength = 1024

// canonicalPathForDescriptorPlatform resolves the current path of an open
// directory descriptor using fcntl(F_GETPATH), the standard mechanism for
// recovering a path from a descriptor on macOS.
func canonicalPathForDescriptorPlatform(descriptor int) (string, error) {
	buffer := make([]byte, maxPathLength)
	_, _, errno := unix.Syscall(unix.SYS_FCNTL, uintptr(descriptor), uintptr(unix.F_GETPATH), uintptr(unsafe.Pointer(&buffer[0])))
	if errno != 0 {
		return "", errors.Wrap(errno, "unable to resolve descriptor via fcntl")
	}
	end := bytes.IndexByte(buffer, 0)
	if end == -1 {
		end = len(buffer)
	}
	return string(buffer[:end]), nil
}
