// +build !darwin,!linux,!windows

package watching

import (
	"github.com/pkg/errors"

	"github.com/prosoft-labs/corefs/pkg/logging"
)

// RecursiveWatchingSupported indicates whether the current platform supports
// native recursive watching. It does not on platforms without a dedicated
// backend, matching the teacher's watch_recursive_unsupported.go.
const RecursiveWatchingSupported = false

// newRecursiveBackend always fails on platforms without a native backend.
func newRecursiveBackend(path string, config ChangeConfig, s *state, logger *logging.Logger) (backend, error) {
	return nil, newError(KindNotSupported, errors.New("recursive monitoring is not supported on this platform"))
}

// newBackend always fails on platforms without a native backend.
func newBackend(path string, config ChangeConfig, s *state, logger *logging.Logger) (backend, error) {
	return nil, newError(KindNotSupported, errors.New("monitoring is not supported on this platform"))
}
