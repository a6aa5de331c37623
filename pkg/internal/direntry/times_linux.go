package direntry

import (
	"golang.org/x/sys/unix"
)

// extractModificationTime extracts the modification time specification from a
// Stat_t structure. The field name varies across POSIX platforms.
func extractModificationTime(metadata *unix.Stat_t) unix.Timespec {
	return metadata.Mtim
}
