package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Vfs provides read-only access to a FAT volume through the StorageBackend contract.
//
// It does not keep any state of the volume. Every operation opens the volume,
// does its work and closes it again, so concurrent operations never share a
// handle and always see the current content of the image.
type Vfs struct {
	open Opener
	log  *zap.Logger
}

var _ StorageBackend = (*Vfs)(nil)

// New creates a Vfs which uses open to get a fresh Volume for each operation.
// A nil logger disables logging.
func New(open Opener, logger *zap.Logger) *Vfs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vfs{
		open: open,
		log:  logger,
	}
}

// NewFromImage creates a Vfs for the FAT image at path inside of fsys.
func NewFromImage(fsys afero.Fs, path string, logger *zap.Logger) *Vfs {
	return New(OpenImage(fsys, path, false), logger)
}

// withVolume opens the volume, passes it to fn and closes it on every return path.
func (v *Vfs) withVolume(ctx context.Context, fn func(vol Volume) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vol, err := v.open()
	if err != nil {
		return err
	}
	defer func() {
		// The volume is only read, so a failing close cannot change the result.
		if err := vol.Close(); err != nil {
			v.log.Warn("could not close volume", zap.Error(err))
		}
	}()

	return fn(vol)
}

func (v *Vfs) logResult(op string, user UserDetail, path string, err error) {
	if user == nil {
		user = AnonymousUser{}
	}
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("path", path),
		zap.String("user", user.String()),
	}
	if err != nil {
		v.log.Debug("operation failed", append(fields, zap.Error(err))...)
		return
	}
	v.log.Debug("operation", fields...)
}

// Metadata returns the metadata of the entry at path.
//
// The root has no directory entry. For it a directory without size is
// returned whose Modified method fails with ErrTimestampInvalid.
func (v *Vfs) Metadata(ctx context.Context, user UserDetail, path string) (Meta, error) {
	if isRoot(path) {
		v.logResult("metadata", user, path, nil)
		return rootMeta(), nil
	}

	var meta Meta
	err := v.withVolume(ctx, func(vol Volume) error {
		entry, err := resolve(vol, path)
		if err != nil {
			return err
		}

		meta = metaOf(entry)
		return nil
	})

	v.logResult("metadata", user, path, err)
	return meta, err
}

// List returns all entries of the directory at path in the order they are stored on the volume.
// A timestamp which cannot be converted does not fail the listing, the error
// is returned by the Modified method of that single entry instead.
func (v *Vfs) List(ctx context.Context, user UserDetail, path string) ([]Fileinfo, error) {
	var result []Fileinfo
	err := v.withVolume(ctx, func(vol Volume) error {
		var dir Dir
		if isRoot(path) {
			dir = vol.RootDir()
		} else {
			entry, err := resolve(vol, path)
			if err != nil {
				return err
			}

			if entry.IsFile() {
				return checkpoint.Wrap(fmt.Errorf("cannot list the file %q", entry.Name()), ErrNameNotAllowed)
			}

			dir, err = entry.Dir()
			if err != nil {
				return checkpoint.Wrap(err, ErrNotFound)
			}
		}

		entries, err := dir.Entries()
		if err != nil {
			return checkpoint.Wrap(err, ErrNotFound)
		}

		result = make([]Fileinfo, len(entries))
		for i, e := range entries {
			result[i] = Fileinfo{
				Path:     e.Name(),
				Metadata: metaOf(e),
			}
		}
		return nil
	})

	v.logResult("list", user, path, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the content of the file at path beginning at start.
//
// The whole remaining content is read into memory before Get returns, so the
// volume is already closed when the caller consumes the reader. Memory usage
// is therefore proportional to the file size.
func (v *Vfs) Get(ctx context.Context, user UserDetail, path string, start uint64) (io.Reader, error) {
	var content []byte
	err := v.withVolume(ctx, func(vol Volume) error {
		if isRoot(path) {
			return checkpoint.Wrap(fmt.Errorf("cannot read the root directory"), ErrIsDirectory)
		}

		entry, err := resolve(vol, path)
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return checkpoint.Wrap(fmt.Errorf("cannot read the directory %q", entry.Name()), ErrIsDirectory)
		}

		file, err := entry.File()
		if err != nil {
			return checkpoint.Wrap(err, ErrNotFound)
		}

		if start > entry.Len() {
			return checkpoint.Wrap(fmt.Errorf("start %v, size %v", start, entry.Len()), ErrSeekOutOfRange)
		}

		if _, err := file.Seek(int64(start), io.SeekStart); err != nil {
			return checkpoint.Wrap(err, ErrSeekOutOfRange)
		}

		content, err = io.ReadAll(file)
		if err != nil {
			return checkpoint.Wrap(fmt.Errorf("read error: %w", err), ErrNotFound)
		}
		return nil
	})

	v.logResult("get", user, path, err)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(content), nil
}

// Cwd checks if path is a directory the client may change into.
// Nothing is changed, as the backend has no state.
func (v *Vfs) Cwd(ctx context.Context, user UserDetail, path string) error {
	if isRoot(path) {
		v.logResult("cwd", user, path, nil)
		return nil
	}

	err := v.withVolume(ctx, func(vol Volume) error {
		entry, err := resolve(vol, path)
		if err != nil {
			return err
		}

		if entry.IsFile() {
			return checkpoint.Wrap(fmt.Errorf("cannot change into the file %q", entry.Name()), ErrNameNotAllowed)
		}
		return nil
	})

	v.logResult("cwd", user, path, err)
	return err
}

// denied is the result of all modifying operations. The volume is not touched
// and the path is not validated.
func (v *Vfs) denied(op string, user UserDetail, path string) error {
	err := checkpoint.Wrap(fmt.Errorf("%s %q", op, path), ErrPermissionDenied)
	v.logResult(op, user, path, err)
	return err
}

// Put always fails with ErrPermissionDenied.
func (v *Vfs) Put(_ context.Context, user UserDetail, _ io.Reader, path string, _ uint64) (uint64, error) {
	return 0, v.denied("put", user, path)
}

// Del always fails with ErrPermissionDenied.
func (v *Vfs) Del(_ context.Context, user UserDetail, path string) error {
	return v.denied("del", user, path)
}

// Mkd always fails with ErrPermissionDenied.
func (v *Vfs) Mkd(_ context.Context, user UserDetail, path string) error {
	return v.denied("mkd", user, path)
}

// Rename always fails with ErrPermissionDenied.
func (v *Vfs) Rename(_ context.Context, user UserDetail, from, to string) error {
	return v.denied("rename", user, from+" -> "+to)
}

// Rmd always fails with ErrPermissionDenied.
func (v *Vfs) Rmd(_ context.Context, user UserDetail, path string) error {
	return v.denied("rmd", user, path)
}
