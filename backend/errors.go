package backend

import (
	"errors"
	"fmt"
	"io/fs"
)

// These errors are returned by the operations of a StorageBackend.
// Use errors.Is to check for them, as they are always wrapped.
var (
	// ErrNotFound is returned if a path or one of its parents does not exist,
	// or if the volume structures needed to find it are corrupt.
	ErrNotFound = fmt.Errorf("permanent file not available: %w", fs.ErrNotExist)

	// ErrNameNotAllowed is returned if the type of the entry found at a path
	// does not fit the operation, e.g. listing a file or reading a directory.
	ErrNameNotAllowed = errors.New("file name not allowed")

	// ErrIsDirectory is returned if the content of a directory is requested.
	ErrIsDirectory = fmt.Errorf("entry is a directory: %w", ErrNameNotAllowed)

	// ErrPermissionDenied is returned by every operation which would modify the volume.
	ErrPermissionDenied = fmt.Errorf("read-only volume: %w", fs.ErrPermission)

	// ErrTimestampInvalid is returned if the FAT timestamp of an entry is out of range.
	ErrTimestampInvalid = fmt.Errorf("invalid FAT timestamp: %w", ErrNotFound)

	// ErrSeekOutOfRange is returned if a read starts behind the end of the file.
	ErrSeekOutOfRange = fmt.Errorf("start position out of range: %w", ErrNotFound)

	// ErrVolume is returned if the image cannot be opened as FAT volume.
	// It is a not-found error for the callers, as nothing on the volume can be reached.
	ErrVolume = fmt.Errorf("could not open FAT volume: %w", ErrNotFound)
)
