// +build darwin,!cgo

package watching

import (
	"github.com/pkg/errors"

	"github.com/prosoft-labs/corefs/pkg/logging"
)

// RecursiveWatchingSupported is false here because FSEvents requires cgo;
// a cgo-disabled darwin build has no native backend available.
const RecursiveWatchingSupported = false

// newRecursiveBackend always fails when built without cgo on darwin.
func newRecursiveBackend(path string, config ChangeConfig, s *state, logger *logging.Logger) (backend, error) {
	return nil, newError(KindNotSupported, errors.New("recursive monitoring requires a cgo-enabled darwin build"))
}

// newBackend always fails when built without cgo on darwin.
func newBackend(path string, config ChangeConfig, s *state, logger *logging.Logger) (backend, error) {
	return nil, newError(KindNotSupported, errors.New("monitoring requires a cgo-enabled darwin build"))
}
