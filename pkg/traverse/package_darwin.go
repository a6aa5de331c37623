package traverse

import (
	"strings"
)

// packageExtensions lists directory extensions treated as opaque packages
// on macOS, mirroring the common set recognized by LaunchServices (a full
// kLSItemInfoIsPackage query would require Cocoa/cgo bindings, which this
// library avoids pulling in for a single classification check).
var packageExtensions = map[string]bool{
	".app":       true,
	".bundle":    true,
	".framework": true,
	".plugin":    true,
	".kext":      true,
	".xcodeproj": true,
	".playground": true,
}

// isPackageDirectory reports whether a directory name should be treated as
// an opaque package whose contents are skipped when
// SkipPackageContentDescendants is set.
func isPackageDirectory(name string) bool {
	ext := strings.ToLower(extOf(name))
	return packageExtensions[ext]
}

// extOf returns the final dot-prefixed extension of a name, or "" if none.
func extOf(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
