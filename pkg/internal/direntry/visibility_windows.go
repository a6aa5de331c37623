package direntry

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

// IsHidden reports whether or not a path is considered hidden, based on the
// FILE_ATTRIBUTE_HIDDEN flag (dot-prefixed names are not treated specially on
// Windows).
func IsHidden(path string) bool {
	path16, err := windows.UTF16PtrFromString(filepath.Clean(path))
	if err != nil {
		return false
	}
	attributes, err := windows.GetFileAttributes(path16)
	if err != nil {
		return false
	}
	return attributes&windows.FILE_ATTRIBUTE_HIDDEN != 0
}
