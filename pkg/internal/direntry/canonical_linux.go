package direntry

import (
	"fmt"

	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

// canonicalPathForDescriptorPlatform resolves the current path of an open
// directory descriptor via the /proc/self/fd symlink farm, the standard
// mechanism for recovering a path from a descriptor on Linux.
func canonicalPathForDescriptorPlatform(descriptor int) (string, error) {
	link := fmt.Sprintf("/proc/self/fd/%d", descriptor)
	buffer := make([]byte, 4096)
	n, err := unix.Readlink(link, buffer)
	if err != nil {
		return "", errors.Wrap(err, "unable to resolve descriptor via /proc")
	}
	return string(buffer[:n]), nil
}
