package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

// ReadOnlyFs exposes a StorageBackend as afero.Fs, so that any server which is
// able to serve an afero.Fs can serve the backend.
// All backend calls use the context and user given on creation, so a new
// ReadOnlyFs should be created for each request or session.
type ReadOnlyFs struct {
	ctx     context.Context
	backend StorageBackend
	user    UserDetail
}

var _ afero.Fs = (*ReadOnlyFs)(nil)

// NewReadOnlyFs creates an afero.Fs for backend.
func NewReadOnlyFs(ctx context.Context, backend StorageBackend, user UserDetail) *ReadOnlyFs {
	if user == nil {
		user = AnonymousUser{}
	}
	return &ReadOnlyFs{
		ctx:     ctx,
		backend: backend,
		user:    user,
	}
}

// pathError converts errors of a StorageBackend into the errors returned by
// the os package, so that generic servers can map them to their own replies.
func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}

	var errno syscall.Errno
	switch {
	case errors.Is(err, ErrPermissionDenied):
		errno = syscall.EPERM
	case errors.Is(err, ErrIsDirectory):
		errno = syscall.EISDIR
	case errors.Is(err, ErrNameNotAllowed):
		errno = syscall.ENOTDIR
	case errors.Is(err, ErrNotFound):
		errno = syscall.ENOENT
	default:
		errno = syscall.EIO
	}

	return &os.PathError{Op: op, Path: name, Err: errno}
}

func (r *ReadOnlyFs) Name() string {
	return "ReadOnlyFs"
}

func (r *ReadOnlyFs) Stat(name string) (os.FileInfo, error) {
	meta, err := r.backend.Metadata(r.ctx, r.user, name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return newFileInfo(baseName(name), meta), nil
}

// Open opens a file or directory. The content of a file is fetched completely
// when it is opened, the entries of a directory on the first Readdir.
func (r *ReadOnlyFs) Open(name string) (afero.File, error) {
	meta, err := r.backend.Metadata(r.ctx, r.user, name)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	f := &file{
		fs:   r,
		name: name,
		info: newFileInfo(baseName(name), meta),
	}
	if meta.IsDir() {
		return f, nil
	}

	content, err := r.backend.Get(r.ctx, r.user, name, 0)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	if reader, ok := content.(*bytes.Reader); ok {
		f.content = reader
		return f, nil
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, pathError("read", name, err)
	}
	f.content = bytes.NewReader(data)
	return f, nil
}

// OpenFile opens name like Open if flag only requests reading. Any other flag
// is passed to the Put operation of the backend and the file is opened
// read-only afterwards if the backend accepted it.
func (r *ReadOnlyFs) OpenFile(name string, flag int, _ os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) == 0 {
		return r.Open(name)
	}
	return r.Create(name)
}

func (r *ReadOnlyFs) Create(name string) (afero.File, error) {
	if _, err := r.backend.Put(r.ctx, r.user, bytes.NewReader(nil), name, 0); err != nil {
		return nil, pathError("open", name, err)
	}
	return r.Open(name)
}

func (r *ReadOnlyFs) Mkdir(name string, _ os.FileMode) error {
	return pathError("mkdir", name, r.backend.Mkd(r.ctx, r.user, name))
}

// MkdirAll is passed to the Mkd operation of the backend like Mkdir.
func (r *ReadOnlyFs) MkdirAll(name string, _ os.FileMode) error {
	return pathError("mkdir", name, r.backend.Mkd(r.ctx, r.user, name))
}

// Remove is passed to the Del operation of the backend without looking up name first.
func (r *ReadOnlyFs) Remove(name string) error {
	return pathError("remove", name, r.backend.Del(r.ctx, r.user, name))
}

func (r *ReadOnlyFs) RemoveAll(name string) error {
	return pathError("remove", name, r.backend.Del(r.ctx, r.user, name))
}

func (r *ReadOnlyFs) Rename(oldname, newname string) error {
	return pathError("rename", oldname, r.backend.Rename(r.ctx, r.user, oldname, newname))
}

func (r *ReadOnlyFs) Chmod(name string, _ os.FileMode) error {
	return &os.PathError{Op: "chmod", Path: name, Err: syscall.EPERM}
}

func (r *ReadOnlyFs) Chown(name string, _, _ int) error {
	return &os.PathError{Op: "chown", Path: name, Err: syscall.EPERM}
}

func (r *ReadOnlyFs) Chtimes(name string, _, _ time.Time) error {
	return &os.PathError{Op: "chtimes", Path: name, Err: syscall.EPERM}
}

// baseName returns the last component of name, or "." for the root like io/fs does.
func baseName(name string) string {
	if isRoot(name) {
		return "."
	}
	return path.Base(Normalize(name))
}

// fileInfo implements os.FileInfo for a Meta.
type fileInfo struct {
	name string
	meta Meta
}

func newFileInfo(name string, meta Meta) fileInfo {
	return fileInfo{
		name: name,
		meta: meta,
	}
}

func (i fileInfo) Name() string {
	return i.name
}

func (i fileInfo) Size() int64 {
	return int64(i.meta.Len())
}

func (i fileInfo) Mode() os.FileMode {
	if i.meta.IsDir() {
		return os.ModeDir | i.meta.Permissions()
	}
	return i.meta.Permissions()
}

// ModTime returns the zero time if the timestamp of the entry is invalid.
func (i fileInfo) ModTime() time.Time {
	modified, err := i.meta.Modified()
	if err != nil {
		return time.Time{}
	}
	return modified
}

func (i fileInfo) IsDir() bool {
	return i.meta.IsDir()
}

// Sys returns the Meta the info is created from.
func (i fileInfo) Sys() interface{} {
	return i.meta
}

// file is an opened file or directory of a ReadOnlyFs.
// Files have their content, directories load their entries lazily.
type file struct {
	fs   *ReadOnlyFs
	name string
	info fileInfo

	content *bytes.Reader

	entries []os.FileInfo
	loaded  bool
	pos     int
}

var _ afero.File = (*file)(nil)

func (f *file) Name() string {
	return f.name
}

func (f *file) Stat() (os.FileInfo, error) {
	return f.info, nil
}

// Close does nothing as the content is held in memory.
func (f *file) Close() error {
	return nil
}

func (f *file) Sync() error {
	return nil
}

func (f *file) Read(p []byte) (int, error) {
	if f.info.IsDir() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EISDIR}
	}
	return f.content.Read(p)
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.info.IsDir() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EISDIR}
	}
	return f.content.ReadAt(p, off)
}

// Seek on a directory only supports rewinding to the start, which restarts Readdir.
func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.info.IsDir() {
		if offset != 0 || whence != io.SeekStart {
			return 0, &os.PathError{Op: "seek", Path: f.name, Err: syscall.EISDIR}
		}
		f.pos = 0
		return 0, nil
	}
	return f.content.Seek(offset, whence)
}

func (f *file) loadEntries() error {
	if f.loaded {
		return nil
	}

	list, err := f.fs.backend.List(f.fs.ctx, f.fs.user, f.name)
	if err != nil {
		return pathError("readdir", f.name, err)
	}

	f.entries = make([]os.FileInfo, len(list))
	for i, e := range list {
		f.entries[i] = newFileInfo(e.Path, e.Metadata)
	}
	f.loaded = true
	return nil
}

// Readdir behaves like os.File.Readdir. The entries are in the order the
// backend returns them.
func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	if !f.info.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: syscall.ENOTDIR}
	}

	if err := f.loadEntries(); err != nil {
		return nil, err
	}

	remaining := f.entries[f.pos:]
	if count <= 0 {
		f.pos = len(f.entries)
		return remaining, nil
	}

	if len(remaining) == 0 {
		return nil, io.EOF
	}

	if count > len(remaining) {
		count = len(remaining)
	}
	f.pos += count
	return remaining[:count], nil
}

func (f *file) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, err
}

func (f *file) Write([]byte) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.name, Err: syscall.EPERM}
}

func (f *file) WriteAt([]byte, int64) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.name, Err: syscall.EPERM}
}

func (f *file) WriteString(string) (int, error) {
	return 0, &os.PathError{Op: "write", Path: f.name, Err: syscall.EPERM}
}

func (f *file) Truncate(int64) error {
	return &os.PathError{Op: "truncate", Path: f.name, Err: syscall.EPERM}
}
