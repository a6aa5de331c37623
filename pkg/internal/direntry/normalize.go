package direntry

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// Normalize converts a path to a cleaned, absolute path. It does not perform
// tilde expansion, since library callers are expected to supply concrete
// filesystem paths rather than shell-style user input.
func Normalize(path string) (string, error) {
	path, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrap(err, "unable to compute absolute path")
	}
	return path, nil
}
