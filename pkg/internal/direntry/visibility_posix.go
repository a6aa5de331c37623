// +build !windows

package direntry

import (
	"path/filepath"
	"strings"
)

// IsHidden reports whether or not a path is considered hidden. POSIX
// platforms have no hidden file attribute; a path is hidden if and only if
// its base name begins with a dot.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
