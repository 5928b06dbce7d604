package backend

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/aligator/fatvfs"
)

// UserDetail identifies the session an operation is called for.
// The backend does not check it, it only shows up in the logs.
type UserDetail interface {
	String() string
}

// AnonymousUser is used if the calling server has no user information.
type AnonymousUser struct{}

func (AnonymousUser) String() string {
	return "anonymous"
}

// StorageBackend is the contract between a file transfer server and the storage it serves.
// All paths are slash separated logical paths relative to the root of the storage.
type StorageBackend interface {
	Metadata(ctx context.Context, user UserDetail, path string) (Meta, error)
	List(ctx context.Context, user UserDetail, path string) ([]Fileinfo, error)
	Get(ctx context.Context, user UserDetail, path string, start uint64) (io.Reader, error)
	Put(ctx context.Context, user UserDetail, input io.Reader, path string, start uint64) (uint64, error)
	Del(ctx context.Context, user UserDetail, path string) error
	Mkd(ctx context.Context, user UserDetail, path string) error
	Rename(ctx context.Context, user UserDetail, from, to string) error
	Rmd(ctx context.Context, user UserDetail, path string) error
	Cwd(ctx context.Context, user UserDetail, path string) error
}

// Fileinfo is a single entry of a directory listing.
type Fileinfo struct {
	Path     string
	Metadata Meta
}

// Meta describes a file or directory.
// It is derived from a directory entry and does not change after creation.
type Meta struct {
	isDir    bool
	len      uint64
	modified fatvfs.DateTime
}

// NewMeta creates the metadata for an entry with the given properties.
func NewMeta(isDir bool, length uint64, modified fatvfs.DateTime) Meta {
	return Meta{
		isDir:    isDir,
		len:      length,
		modified: modified,
	}
}

func metaOf(e Entry) Meta {
	return NewMeta(e.IsDir(), e.Len(), e.Modified())
}

// rootMeta describes the root directory which has no directory entry and
// therefore no timestamp.
func rootMeta() Meta {
	return Meta{isDir: true}
}

func (m Meta) Len() uint64 {
	return m.len
}

func (m Meta) IsDir() bool {
	return m.isDir
}

func (m Meta) IsFile() bool {
	return !m.isDir
}

// IsSymlink is always false as FAT has no symbolic links.
func (m Meta) IsSymlink() bool {
	return false
}

// Modified converts the FAT timestamp of the entry.
// It returns an error wrapping ErrTimestampInvalid if the stored date is invalid.
func (m Meta) Modified() (time.Time, error) {
	return FATTimestamp(m.modified)
}

// RawModified returns the timestamp fields as stored on the volume.
func (m Meta) RawModified() fatvfs.DateTime {
	return m.modified
}

func (m Meta) UID() uint32 {
	return 0
}

func (m Meta) GID() uint32 {
	return 0
}

// Permissions are read-only for everyone.
func (m Meta) Permissions() os.FileMode {
	if m.isDir {
		return 0555
	}
	return 0444
}
