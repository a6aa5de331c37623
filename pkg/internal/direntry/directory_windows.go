package direntry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ensureValidName verifies that the provided name does not reference the
// current directory, the parent directory, or contain a path separator.
func ensureValidName(name string) error {
	if name == "." {
		return errors.New("name is directory reference")
	} else if name == ".." {
		return errors.New("name is parent directory reference")
	}
	if strings.IndexByte(name, os.PathSeparator) != -1 || strings.IndexByte(name, '/') != -1 {
		return errors.New("path separator appears in name")
	}
	return nil
}

// Directory represents an open directory on disk. Unlike the POSIX
// implementation, Windows doesn't offer a race-free *at-style API for
// directory-relative operations, so this implementation tracks the
// directory's own absolute path and recomposes child paths from it, while
// still holding an open handle that pins the directory and detects renames
// of the directory itself.
type Directory struct {
	// handle is the open Win32 handle for the directory, held open so that
	// the directory cannot be deleted and so that its path can be recovered
	// after a rename via GetFinalPathNameByHandle.
	handle windows.Handle
	// path is the path used to open the directory, retained for composing
	// child paths.
	path string
}

// Open opens the directory at the specified path as a traversal root.
func Open(path string) (*Directory, error) {
	if !filepath.IsAbs(path) {
		return nil, errors.New("path is not absolute")
	}
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("unable to convert path to UTF-16: %w", err)
	}
	handle, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to open directory: %w", err)
	}
	metadata, err := queryHandleMetadata(filepath.Base(path), handle)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, err
	}
	if !metadata.IsDirectory() {
		windows.CloseHandle(handle)
		return nil, errors.New("root is not a directory")
	}
	return &Directory{handle: handle, path: path}, nil
}

// Close closes the directory.
func (d *Directory) Close() error {
	return windows.CloseHandle(d.handle)
}

// CanonicalPath recovers the current absolute path of the directory by
// querying its open handle, regardless of any renames that may have occurred
// since it was opened or since the path field was last refreshed.
func (d *Directory) CanonicalPath() (string, error) {
	buffer := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetFinalPathNameByHandle(d.handle, &buffer[0], uint32(len(buffer)), windows.VOLUME_NAME_DOS)
	if err != nil {
		return "", fmt.Errorf("unable to query handle path: %w", err)
	}
	path := windows.UTF16ToString(buffer[:n])
	path = strings.TrimPrefix(path, `\\?\`)
	d.path = path
	return path, nil
}

// OpenDirectory opens the subdirectory within the directory specified by
// name.
func (d *Directory) OpenDirectory(name string) (*Directory, error) {
	if err := ensureValidName(name); err != nil {
		return nil, err
	}
	return Open(filepath.Join(d.path, name))
}

// ReadContentNames queries the directory contents and returns their base
// names. It does not return "." or ".." entries.
func (d *Directory) ReadContentNames() ([]string, error) {
	file, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("unable to open directory for listing: %w", err)
	}
	defer file.Close()
	return file.Readdirnames(0)
}

// ReadContentMetadata reads metadata for the content within the directory
// specified by name, without following a symbolic link at that name.
func (d *Directory) ReadContentMetadata(name string) (*Metadata, error) {
	if err := ensureValidName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(d.path, name)
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("unable to convert path to UTF-16: %w", err)
	}
	handle, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_BACKUP_SEMANTICS|windows.FILE_FLAG_OPEN_REPARSE_POINT,
		0,
	)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(handle)
	return queryHandleMetadata(name, handle)
}

// ReadContents queries the directory contents and their associated metadata.
// It skips any entry that has disappeared between the name listing and the
// metadata query.
func (d *Directory) ReadContents() ([]*Metadata, error) {
	names, err := d.ReadContentNames()
	if err != nil {
		return nil, fmt.Errorf("unable to read directory content names: %w", err)
	}
	results := make([]*Metadata, 0, len(names))
	for _, name := range names {
		m, err := d.ReadContentMetadata(name)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("unable to access content metadata: %w", err)
		}
		results = append(results, m)
	}
	return results, nil
}

// ReadSymbolicLink reads the target of the symbolic link within the
// directory specified by name.
func (d *Directory) ReadSymbolicLink(name string) (string, error) {
	if err := ensureValidName(name); err != nil {
		return "", err
	}
	return os.Readlink(filepath.Join(d.path, name))
}

// queryHandleMetadata performs a metadata query using a Windows file handle,
// following the same type classification logic as the standard os package so
// that behavior stays consistent across the two.
func queryHandleMetadata(name string, handle windows.Handle) (*Metadata, error) {
	if t, err := windows.GetFileType(handle); err != nil {
		return nil, fmt.Errorf("unable to determine file type: %w", err)
	} else if t != windows.FILE_TYPE_DISK {
		return nil, errors.New("handle does not refer to on-disk type")
	}

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(handle, &info); err != nil {
		return nil, fmt.Errorf("unable to query file metadata: %w", err)
	}

	var symbolicLink bool
	if info.FileAttributes&windows.FILE_ATTRIBUTE_REPARSE_POINT != 0 {
		var tagInfo struct {
			ReparseTag        uint32
			ReparseReserved   uint32
			DummyFieldPadding [0]byte
		}
		err := windows.GetFileInformationByHandleEx(
			handle,
			windows.FileAttributeTagInfo,
			(*byte)(unsafe.Pointer(&tagInfo)),
			uint32(unsafe.Sizeof(tagInfo)),
		)
		if err == nil {
			symbolicLink = tagInfo.ReparseTag == windows.IO_REPARSE_TAG_SYMLINK ||
				tagInfo.ReparseTag == windows.IO_REPARSE_TAG_MOUNT_POINT
		} else if err != windows.ERROR_INVALID_PARAMETER {
			return nil, fmt.Errorf("unable to query reparse point attributes: %w", err)
		}
	}

	mode := ModeTypeFile
	if symbolicLink {
		mode = ModeTypeSymbolicLink
	} else if info.FileAttributes&windows.FILE_ATTRIBUTE_DIRECTORY != 0 {
		mode = ModeTypeDirectory
	}

	size := uint64(info.FileSizeHigh)<<32 + uint64(info.FileSizeLow)
	modificationTime := time.Unix(0, info.LastWriteTime.Nanoseconds())

	return &Metadata{
		Name:             name,
		Mode:             mode,
		Size:             size,
		ModificationTime: modificationTime,
	}, nil
}
