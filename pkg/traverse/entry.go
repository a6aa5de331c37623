package traverse

import (
	"os"
	"time"

	"github.com/prosoft-labs/corefs/pkg/internal/direntry"
)

// FileType identifies the type of a filesystem entry on a best-effort basis.
type FileType = direntry.FileType

// File type constants, re-exported from the shared classification used by
// both this package and the watching package.
const (
	TypeNone            = direntry.TypeNone
	TypeNotFound        = direntry.TypeNotFound
	TypeRegular         = direntry.TypeRegular
	TypeDirectory       = direntry.TypeDirectory
	TypeSymbolicLink    = direntry.TypeSymbolicLink
	TypeBlockDevice     = direntry.TypeBlockDevice
	TypeCharacterDevice = direntry.TypeCharacterDevice
	TypeFIFO            = direntry.TypeFIFO
	TypeSocket          = direntry.TypeSocket
	TypeUnknown         = direntry.TypeUnknown
)

// DirectoryEntry describes a single filesystem entry encountered during
// traversal, with cached metadata from the directory listing that produced
// it.
type DirectoryEntry struct {
	// Path is the full path of the entry, relative to the traversal root's
	// parent (i.e. it begins with the root's own path).
	Path string
	// Type is the entry's file type, as determined at listing time.
	Type FileType
	// Size is the entry's size in bytes, as of listing time.
	Size uint64
	// ModifiedTime is the entry's modification time, as of listing time.
	ModifiedTime time.Time
	// Postorder is true if this yield of the entry represents the
	// post-descendant visit enabled by IncludePostorderDirectories. It is
	// always false for non-directory entries.
	Postorder bool

	cached bool
}

// newDirectoryEntry constructs a DirectoryEntry from cached listing metadata.
func newDirectoryEntry(path string, metadata *direntry.Metadata) *DirectoryEntry {
	return &DirectoryEntry{
		Path:         path,
		Type:         direntry.TypeFromMode(metadata.Mode),
		Size:         metadata.Size,
		ModifiedTime: metadata.ModificationTime,
		cached:       true,
	}
}

// Refresh re-queries the filesystem for the entry's current metadata,
// updating Type, Size, and ModifiedTime in place. It's useful when a caller
// wants to confirm an entry's state hasn't changed since it was cached
// during listing.
func (e *DirectoryEntry) Refresh(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			e.Type = TypeNotFound
			e.cached = true
			return nil
		}
		return err
	}
	e.Type = direntry.TypeFromOSFileMode(info.Mode())
	e.Size = uint64(info.Size())
	e.ModifiedTime = info.ModTime()
	e.cached = true
	return nil
}
