package traverse

import (
	"strings"
)

// appleDoublePrefix is the prefix used for AppleDouble sidecar files, which
// carry the extended attributes and resource fork of a sibling file on
// non-HFS+ volumes (e.g. when copying to a network share or a FAT volume).
const appleDoublePrefix = "._"

// isAppleDouble reports whether name is an AppleDouble sidecar file, i.e. it
// begins with "._" and a sibling file with the remainder of the name is also
// present in siblings.
func isAppleDouble(name string, siblings []string) bool {
	if !strings.HasPrefix(name, appleDoublePrefix) {
		return false
	}
	base := name[len(appleDoublePrefix):]
	if base == "" {
		return false
	}
	for _, sibling := range siblings {
		if sibling == base {
			return true
		}
	}
	return false
}
