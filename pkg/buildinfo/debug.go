package buildinfo

import (
	"os"
)

// DebugEnabled controls whether or not debug-level diagnostics are enabled. It
// is set automatically based on the COREFS_DEBUG environment variable.
var DebugEnabled bool

func init() {
	// Check whether or not debugging should be enabled.
	DebugEnabled = os.Getenv("COREFS_DEBUG") == "1"
}
