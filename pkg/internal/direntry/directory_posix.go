// +build !windows

package direntry

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"

	"golang.org/x/sys/unix"
)

// ensureValidName verifies that the provided name does not reference the
// current directory, the parent directory, or contain a path separator
// character.
func ensureValidName(name string) error {
	if name == "." {
		return errors.New("name is directory reference")
	} else if name == ".." {
		return errors.New("name is parent directory reference")
	}
	if strings.IndexByte(name, os.PathSeparator) != -1 {
		return errors.New("path separator appears in name")
	}
	return nil
}

// Directory represents an open directory on disk and provides race-free,
// read-only operations on its contents using POSIX *at functions relative to
// the directory's own descriptor. All of its operations avoid traversal of
// symbolic links at the leaf position.
type Directory struct {
	// descriptor is the file descriptor for the directory, used with POSIX
	// *at functions. It is wrapped by file below and should not be closed
	// directly.
	descriptor int
	// file wraps the directory descriptor. It's required for Readdirnames,
	// since there's no other portable way to read directory entries from Go.
	file *os.File
}

// Open opens the directory at the specified path as a traversal root.
func Open(path string) (*Directory, error) {
	var descriptor int
	for {
		d, err := unix.Open(path, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
		if err == nil {
			descriptor = d
			break
		} else if runtime.GOOS == "darwin" && err == unix.EINTR {
			continue
		}
		return nil, err
	}
	var metadata unix.Stat_t
	if err := unix.Fstat(descriptor, &metadata); err != nil {
		unix.Close(descriptor)
		return nil, errors.Wrap(err, "unable to query root metadata")
	} else if Mode(metadata.Mode)&ModeTypeMask != ModeTypeDirectory {
		unix.Close(descriptor)
		return nil, errors.New("root is not a directory")
	}
	return &Directory{
		descriptor: descriptor,
		file:       os.NewFile(uintptr(descriptor), path),
	}, nil
}

// Close closes the directory.
func (d *Directory) Close() error {
	return d.file.Close()
}

// Descriptor provides access to the raw file descriptor underlying the
// directory. It should not be used or retained beyond the point where Close
// is called, and it should not be closed externally.
func (d *Directory) Descriptor() int {
	return d.descriptor
}

// CanonicalPath recovers the current absolute path of the directory by
// resolving its open file descriptor, regardless of any renames that may have
// occurred since it was opened. This is required to re-derive a usable root
// path after a platform reports that the watched root itself was renamed.
func (d *Directory) CanonicalPath() (string, error) {
	return canonicalPathForDescriptor(d.descriptor)
}

// open is the shared implementation backing OpenDirectory.
func (d *Directory) open(name string, wantDirectory bool) (int, *os.File, error) {
	if wantDirectory && name == "." {
		// Directories may be re-opened via ".", which is safe since it
		// doesn't allow traversal outside the directory.
	} else if err := ensureValidName(name); err != nil {
		return -1, nil, err
	}

	var descriptor int
	for {
		fd, err := unix.Openat(d.descriptor, name, unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
		if err == nil {
			descriptor = fd
			break
		} else if runtime.GOOS == "darwin" && err == unix.EINTR {
			continue
		}
		return -1, nil, err
	}

	expectedType := ModeTypeFile
	if wantDirectory {
		expectedType = ModeTypeDirectory
	}
	var metadata unix.Stat_t
	if err := unix.Fstat(descriptor, &metadata); err != nil {
		unix.Close(descriptor)
		return -1, nil, errors.Wrap(err, "unable to query file metadata")
	} else if Mode(metadata.Mode)&ModeTypeMask != expectedType {
		unix.Close(descriptor)
		return -1, nil, errors.New("path is not of the expected type")
	}

	return descriptor, os.NewFile(uintptr(descriptor), name), nil
}

// OpenDirectory opens the subdirectory within the directory specified by
// name. Passing "." re-opens the directory itself with a fresh descriptor.
func (d *Directory) OpenDirectory(name string) (*Directory, error) {
	descriptor, file, err := d.open(name, true)
	if err != nil {
		return nil, err
	}
	return &Directory{descriptor: descriptor, file: file}, nil
}

// ReadContentNames queries the directory contents and returns their base
// names. It does not return "." or ".." entries.
func (d *Directory) ReadContentNames() ([]string, error) {
	names, err := d.file.Readdirnames(0)
	if err != nil {
		return nil, err
	}

	// Seek the directory back to the start since Readdirnames exhausts it.
	if offset, err := unix.Seek(d.descriptor, 0, 0); err != nil {
		return nil, errors.Wrap(err, "unable to reset directory read pointer")
	} else if offset != 0 {
		return nil, errors.New("directory offset is non-zero after seek operation")
	}

	results := names[:0]
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		results = append(results, name)
	}
	return results, nil
}

// ReadContentMetadata reads metadata for the content within the directory
// specified by name, without following a symbolic link at that name. Passing
// "." reads the metadata of the directory itself.
func (d *Directory) ReadContentMetadata(name string) (*Metadata, error) {
	if name == "." {
		// The directory's own metadata, which can't reach outside it.
	} else if err := ensureValidName(name); err != nil {
		return nil, err
	}

	var metadata unix.Stat_t
	if err := unix.Fstatat(d.descriptor, name, &metadata, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, err
	}

	modificationTime := extractModificationTime(&metadata)
	return &Metadata{
		Name:             name,
		Mode:             Mode(metadata.Mode),
		Size:             uint64(metadata.Size),
		ModificationTime: time.Unix(modificationTime.Unix(), modificationTime.Nano()),
		DeviceID:         uint64(metadata.Dev),
		FileID:           uint64(metadata.Ino),
	}, nil
}

// ReadContents queries the directory contents and their associated metadata.
// It does not return metadata for "." or ".." entries, and it skips any entry
// that has disappeared between the name listing and the metadata query.
func (d *Directory) ReadContents() ([]*Metadata, error) {
	names, err := d.ReadContentNames()
	if err != nil {
		return nil, errors.Wrap(err, "unable to read directory content names")
	}

	results := make([]*Metadata, 0, len(names))
	for _, name := range names {
		m, err := d.ReadContentMetadata(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrap(err, "unable to access content metadata")
		}
		results = append(results, m)
	}
	return results, nil
}

// readlinkInitialBufferSize specifies the initial buffer size used for
// readlinkat operations.
const readlinkInitialBufferSize = 128

// ReadSymbolicLink reads the target of the symbolic link within the directory
// specified by name.
func (d *Directory) ReadSymbolicLink(name string) (string, error) {
	if err := ensureValidName(name); err != nil {
		return "", err
	}

	for size := readlinkInitialBufferSize; ; size *= 2 {
		buffer := make([]byte, size)
		count, err := unix.Readlinkat(d.descriptor, name, buffer)
		if err != nil {
			return "", &os.PathError{Op: "readlinkat", Path: name, Err: err}
		}
		if count < size {
			return string(buffer[:count]), nil
		}
	}
}

// canonicalPathForDescriptor resolves the current path referenced by an open
// file descriptor.
func canonicalPathForDescriptor(descriptor int) (string, error) {
	return canonicalPathForDescriptorPlatform(descriptor)
}
