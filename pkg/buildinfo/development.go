package buildinfo

import (
	"os"
)

// DevelopmentModeEnabled controls whether or not development mode is enabled.
// It is set automatically based on the COREFS_DEVELOPMENT environment
// variable.
var DevelopmentModeEnabled bool

func init() {
	// Check whether or not development mode should be enabled.
	DevelopmentModeEnabled = os.Getenv("COREFS_DEVELOPMENT") == "1"
}
