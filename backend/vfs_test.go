package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testUser string

func (u testUser) String() string {
	return string(u)
}

func newTestVfs(t *testing.T) (*Vfs, *countingOpener) {
	t.Helper()
	opener := &countingOpener{open: OpenImage(testFs(t), imagePath, false)}
	return New(opener.Open, nil), opener
}

func listNames(t *testing.T, vfs *Vfs, p string) []string {
	t.Helper()
	list, err := vfs.List(context.Background(), nil, p)
	require.NoError(t, err)

	names := make([]string, len(list))
	for i, info := range list {
		names[i] = info.Path
	}
	return names
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func TestVfs_Metadata_endToEnd(t *testing.T) {
	vfs, _ := newTestVfs(t)

	meta, err := vfs.Metadata(context.Background(), testUser("alice"), "/docs/readme.txt")
	require.NoError(t, err)

	assert.False(t, meta.IsDir())
	assert.True(t, meta.IsFile())
	assert.False(t, meta.IsSymlink())
	assert.Equal(t, uint64(42), meta.Len())
	assert.Equal(t, os.FileMode(0444), meta.Permissions())

	modified, err := meta.Modified()
	require.NoError(t, err)
	assert.True(t, modified.Equal(readmeTime), "Modified() = %v, want %v", modified, readmeTime)
	assert.Equal(t, int64(1615804200), modified.Unix())
}

func TestVfs_roundTrip(t *testing.T) {
	vfs, _ := newTestVfs(t)

	assert.Equal(t, []string{"c.txt"}, listNames(t, vfs, "/a/B"))

	for _, p := range []string{"/a/B/c.txt", "/a/b/C.TXT", "/A/b/c.TxT"} {
		meta, err := vfs.Metadata(context.Background(), nil, p)
		require.NoError(t, err, p)
		assert.Equal(t, uint64(1), meta.Len(), p)

		content, err := vfs.Get(context.Background(), nil, p, 0)
		require.NoError(t, err, p)
		assert.Equal(t, "c", string(readAll(t, content)), p)
	}
}

func TestVfs_idempotence(t *testing.T) {
	vfs, _ := newTestVfs(t)
	ctx := context.Background()

	firstList, err := vfs.List(ctx, nil, "/")
	require.NoError(t, err)
	secondList, err := vfs.List(ctx, nil, "/")
	require.NoError(t, err)
	if diff := cmp.Diff(firstList, secondList, cmp.AllowUnexported(Meta{})); diff != "" {
		t.Errorf("List() changed between calls (-first +second):\n%s", diff)
	}

	firstMeta, err := vfs.Metadata(ctx, nil, "/DOCS/README.TXT")
	require.NoError(t, err)
	secondMeta, err := vfs.Metadata(ctx, nil, "/DOCS/README.TXT")
	require.NoError(t, err)
	assert.Equal(t, firstMeta, secondMeta)

	first, err := vfs.Get(ctx, nil, "/DOCS/README.TXT", 0)
	require.NoError(t, err)
	second, err := vfs.Get(ctx, nil, "/DOCS/README.TXT", 0)
	require.NoError(t, err)
	assert.Equal(t, readAll(t, first), readAll(t, second))
}

func TestVfs_Metadata(t *testing.T) {
	vfs, _ := newTestVfs(t)

	tests := []struct {
		name    string
		path    string
		wantDir bool
		wantLen uint64
		wantErr error
	}{
		{
			name:    "directory",
			path:    "/DOCS",
			wantDir: true,
		},
		{
			name:    "long name",
			path:    "/long name file.TXT",
			wantLen: 4,
		},
		{
			name:    "empty file",
			path:    "/empty.txt",
			wantLen: 0,
		},
		{
			name:    "normalized path",
			path:    "/a/../DOCS/./readme.txt",
			wantLen: 42,
		},
		{
			name:    "file used as directory",
			path:    "/file.txt/child",
			wantErr: ErrNameNotAllowed,
		},
		{
			name:    "missing",
			path:    "/missing.txt",
			wantErr: ErrNotFound,
		},
		{
			name:    "missing parent",
			path:    "/missing/readme.txt",
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, err := vfs.Metadata(context.Background(), nil, tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Metadata() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			assert.Equal(t, tt.wantDir, meta.IsDir())
			assert.Equal(t, tt.wantLen, meta.Len())
		})
	}
}

func TestVfs_root(t *testing.T) {
	vfs, opener := newTestVfs(t)
	ctx := context.Background()

	assert.Equal(t,
		[]string{"DOCS", "a", "file.txt", "empty.txt", "Long Name File.txt", "BADDATE.TXT"},
		listNames(t, vfs, "/"),
	)
	assert.Equal(t, listNames(t, vfs, "/"), listNames(t, vfs, "/.."))

	opened, _ := opener.counts()

	for _, p := range []string{"/", "", "/..", "/DOCS/.."} {
		assert.NoError(t, vfs.Cwd(ctx, nil, p), p)

		meta, err := vfs.Metadata(ctx, nil, p)
		require.NoError(t, err, p)
		assert.True(t, meta.IsDir(), p)
		assert.Equal(t, uint64(0), meta.Len(), p)

		_, err = meta.Modified()
		assert.ErrorIs(t, err, ErrTimestampInvalid, p)

		_, err = vfs.Get(ctx, nil, p, 0)
		assert.ErrorIs(t, err, ErrIsDirectory, p)
		assert.ErrorIs(t, err, ErrNameNotAllowed, p)
	}

	// Only Get needs to open the volume for the root.
	afterRoot, _ := opener.counts()
	assert.Equal(t, opened+4, afterRoot)
}

func TestVfs_Cwd(t *testing.T) {
	vfs, _ := newTestVfs(t)

	tests := []struct {
		path    string
		wantErr error
	}{
		{path: "/DOCS"},
		{path: "/docs/"},
		{path: "a/b"},
		{path: "/file.txt", wantErr: ErrNameNotAllowed},
		{path: "/missing", wantErr: ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := vfs.Cwd(context.Background(), nil, tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Cwd() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVfs_List(t *testing.T) {
	vfs, _ := newTestVfs(t)

	list, err := vfs.List(context.Background(), nil, "/docs")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "README.TXT", list[0].Path)
	assert.Equal(t, uint64(42), list[0].Metadata.Len())
	assert.True(t, list[0].Metadata.IsFile())

	_, err = vfs.List(context.Background(), nil, "/file.txt")
	assert.ErrorIs(t, err, ErrNameNotAllowed)

	_, err = vfs.List(context.Background(), nil, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVfs_List_invalidTimestamp(t *testing.T) {
	vfs, _ := newTestVfs(t)

	list, err := vfs.List(context.Background(), nil, "/")
	require.NoError(t, err)

	var found bool
	for _, info := range list {
		_, err := info.Metadata.Modified()
		if info.Path == "BADDATE.TXT" {
			found = true
			assert.ErrorIs(t, err, ErrTimestampInvalid)
			assert.Equal(t, uint16(13), info.Metadata.RawModified().Date.Month)
			continue
		}
		assert.NoError(t, err, info.Path)
	}
	assert.True(t, found, "BADDATE.TXT not listed")

	meta, err := vfs.Metadata(context.Background(), nil, "/baddate.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), meta.Len())
	_, err = meta.Modified()
	assert.ErrorIs(t, err, ErrTimestampInvalid)
}

func TestVfs_Get(t *testing.T) {
	vfs, _ := newTestVfs(t)

	tests := []struct {
		name    string
		path    string
		start   uint64
		want    string
		wantErr error
	}{
		{
			name: "whole file",
			path: "/file.txt",
			want: "hello world",
		},
		{
			name:  "from offset",
			path:  "/FILE.TXT",
			start: 6,
			want:  "world",
		},
		{
			name:  "start at the end",
			path:  "/file.txt",
			start: 11,
			want:  "",
		},
		{
			name: "empty file",
			path: "/empty.txt",
			want: "",
		},
		{
			name:    "start behind the end",
			path:    "/file.txt",
			start:   12,
			wantErr: ErrSeekOutOfRange,
		},
		{
			name:    "start behind the end of an empty file",
			path:    "/empty.txt",
			start:   1,
			wantErr: ErrSeekOutOfRange,
		},
		{
			name:    "directory",
			path:    "/DOCS",
			wantErr: ErrIsDirectory,
		},
		{
			name:    "below a file",
			path:    "/file.txt/child",
			wantErr: ErrNameNotAllowed,
		},
		{
			name:    "missing",
			path:    "/missing.txt",
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vfs.Get(context.Background(), nil, tt.path, tt.start)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Get() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, string(readAll(t, got)))
		})
	}
}

func TestVfs_Get_seekOutOfRangeIsNotFound(t *testing.T) {
	vfs, _ := newTestVfs(t)

	_, err := vfs.Get(context.Background(), nil, "/file.txt", 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVfs_mutations(t *testing.T) {
	vfs, opener := newTestVfs(t)
	ctx := context.Background()

	paths := []string{"/", "/file.txt", "/DOCS", "/missing/deeper", "/file.txt/child", ""}
	for _, p := range paths {
		_, err := vfs.Put(ctx, nil, bytes.NewReader([]byte("data")), p, 0)
		assert.ErrorIs(t, err, ErrPermissionDenied, "Put %q", p)
		assert.ErrorIs(t, vfs.Del(ctx, nil, p), ErrPermissionDenied, "Del %q", p)
		assert.ErrorIs(t, vfs.Mkd(ctx, nil, p), ErrPermissionDenied, "Mkd %q", p)
		assert.ErrorIs(t, vfs.Rmd(ctx, nil, p), ErrPermissionDenied, "Rmd %q", p)
		assert.ErrorIs(t, vfs.Rename(ctx, nil, p, "/new"), ErrPermissionDenied, "Rename %q", p)
		assert.NotErrorIs(t, vfs.Del(ctx, nil, p), ErrNotFound, "Del %q", p)
	}

	opened, _ := opener.counts()
	assert.Equal(t, 0, opened, "mutations must not open the volume")
}

func TestVfs_volumeIsClosed(t *testing.T) {
	vfs, opener := newTestVfs(t)
	ctx := context.Background()

	_, _ = vfs.Metadata(ctx, nil, "/DOCS/README.TXT")
	_, _ = vfs.Metadata(ctx, nil, "/missing")
	_, _ = vfs.List(ctx, nil, "/DOCS")
	_, _ = vfs.List(ctx, nil, "/file.txt")
	_, _ = vfs.Get(ctx, nil, "/file.txt", 0)
	_, _ = vfs.Get(ctx, nil, "/file.txt", 100)
	_ = vfs.Cwd(ctx, nil, "/DOCS")
	_ = vfs.Cwd(ctx, nil, "/file.txt")

	opened, closed := opener.counts()
	assert.Equal(t, 8, opened)
	assert.Equal(t, opened, closed)
}

func TestVfs_concurrent(t *testing.T) {
	vfs, opener := newTestVfs(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			p := "/file.txt"
			want := "hello world"
			if i%2 == 0 {
				p = "/DOCS/README.TXT"
				want = string(readmeContent)
			}

			r, err := vfs.Get(context.Background(), testUser(fmt.Sprintf("user%d", i)), p, 0)
			if err != nil {
				errs <- err
				return
			}
			data, err := io.ReadAll(r)
			if err != nil {
				errs <- err
				return
			}
			if string(data) != want {
				errs <- fmt.Errorf("Get(%v) = %q, want %q", p, data, want)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	opened, closed := opener.counts()
	assert.Equal(t, 20, opened)
	assert.Equal(t, 20, closed)
}

func TestVfs_openError(t *testing.T) {
	tests := []struct {
		name string
		fsys func(t *testing.T) afero.Fs
	}{
		{
			name: "missing image",
			fsys: func(t *testing.T) afero.Fs {
				return afero.NewMemMapFs()
			},
		},
		{
			name: "no FAT image",
			fsys: func(t *testing.T) afero.Fs {
				fsys := afero.NewMemMapFs()
				require.NoError(t, afero.WriteFile(fsys, imagePath, bytes.Repeat([]byte("no fat "), 1000), 0644))
				return fsys
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vfs := NewFromImage(tt.fsys(t), imagePath, nil)
			ctx := context.Background()

			_, err := vfs.Metadata(ctx, nil, "/file.txt")
			assert.ErrorIs(t, err, ErrVolume)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = vfs.List(ctx, nil, "/")
			assert.ErrorIs(t, err, ErrVolume)

			_, err = vfs.Get(ctx, nil, "/file.txt", 0)
			assert.ErrorIs(t, err, ErrVolume)

			assert.ErrorIs(t, vfs.Cwd(ctx, nil, "/DOCS"), ErrVolume)

			// The root needs no volume access.
			assert.NoError(t, vfs.Cwd(ctx, nil, "/"))
		})
	}
}

func TestVfs_canceledContext(t *testing.T) {
	vfs, opener := newTestVfs(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := vfs.List(ctx, nil, "/")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = vfs.Get(ctx, nil, "/file.txt", 0)
	assert.ErrorIs(t, err, context.Canceled)

	opened, _ := opener.counts()
	assert.Equal(t, 0, opened)
}

func TestVfs_logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	vfs := New(OpenImage(testFs(t), imagePath, false), zap.New(core))
	ctx := context.Background()

	_, err := vfs.Metadata(ctx, testUser("alice"), "/DOCS")
	require.NoError(t, err)
	_, err = vfs.Metadata(ctx, nil, "/missing")
	require.Error(t, err)
	require.Error(t, vfs.Del(ctx, testUser("bob"), "/file.txt"))

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, "operation", entries[0].Message)
	assert.Equal(t, "alice", entries[0].ContextMap()["user"])
	assert.Equal(t, "metadata", entries[0].ContextMap()["op"])

	assert.Equal(t, "operation failed", entries[1].Message)
	assert.Equal(t, "anonymous", entries[1].ContextMap()["user"])

	assert.Equal(t, "operation failed", entries[2].Message)
	assert.Equal(t, "del", entries[2].ContextMap()["op"])
	assert.Equal(t, "/file.txt", entries[2].ContextMap()["path"])
}
