package backend

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/aligator/fatvfs/internal/fatimage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const imagePath = "/images/fat.img"

var (
	readmeContent = []byte("This image is served by the fatvfs tests.\n")
	readmeTime    = time.Date(2021, 3, 15, 10, 30, 0, 0, time.UTC)
	otherTime     = time.Date(2020, 6, 1, 8, 0, 0, 0, time.UTC)
)

// testImage builds the image used by most backend tests:
//
//	/DOCS/README.TXT        42 bytes, 2021-03-15 10:30:00
//	/a/B/c.txt              "c"
//	/file.txt               "hello world"
//	/empty.txt              empty
//	/Long Name File.txt     "long"
//	/BADDATE.TXT            month 13
func testImage(t *testing.T) []byte {
	t.Helper()

	var image bytes.Buffer
	fw := fatimage.NewWriter(&image)
	require.NoError(t, fw.SetLabel("FATVFS"))

	writeFile := func(p string, modTime time.Time, content []byte) {
		w, err := fw.File(p, modTime)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}

	require.NoError(t, fw.Mkdir("DOCS", readmeTime))
	writeFile("DOCS/README.TXT", readmeTime, readmeContent)
	require.NoError(t, fw.Mkdir("a/B", otherTime))
	writeFile("a/B/c.txt", otherTime, []byte("c"))
	writeFile("file.txt", otherTime, []byte("hello world"))
	writeFile("empty.txt", otherTime, nil)
	writeFile("Long Name File.txt", otherTime, []byte("long"))
	writeFile("BADDATE.TXT", otherTime, []byte("bad"))
	require.NoError(t, fw.SetStamp("BADDATE.TXT", 41<<9|13<<5|1, 0))

	require.NoError(t, fw.Flush())
	require.Len(t, readmeContent, 42)
	return image.Bytes()
}

// testFs returns a memory file system containing the test image at imagePath.
func testFs(t *testing.T) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, imagePath, testImage(t), 0644))
	return fsys
}

// countingOpener tracks how many volumes are open at the same time and in total.
type countingOpener struct {
	open Opener

	mu     sync.Mutex
	opened int
	closed int
}

func (c *countingOpener) Open() (Volume, error) {
	vol, err := c.open()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.opened++
	return &countingVolume{Volume: vol, opener: c}, nil
}

func (c *countingOpener) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}

type countingVolume struct {
	Volume
	opener *countingOpener
}

func (v *countingVolume) Close() error {
	v.opener.mu.Lock()
	v.opener.closed++
	v.opener.mu.Unlock()
	return v.Volume.Close()
}
