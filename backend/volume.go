package backend

import (
	"io"

	"github.com/aligator/fatvfs"
	"github.com/aligator/fatvfs/checkpoint"
	"github.com/spf13/afero"
)

// Volume is an opened FAT volume. It is owned by exactly one operation which
// has to close it when done.
// Generated mock using mockgen:
//
//	mockgen -source=volume.go -destination=volume_mock_test.go -package backend
type Volume interface {
	RootDir() Dir
	Close() error
}

// Dir is a directory of a Volume.
type Dir interface {
	// Entries returns all entries in the order they are stored on the volume.
	Entries() ([]Entry, error)
}

// Entry is a file or directory inside of a Dir.
type Entry interface {
	Name() string
	IsDir() bool
	IsFile() bool
	Len() uint64
	Modified() fatvfs.DateTime
	Dir() (Dir, error)
	File() (io.ReadSeeker, error)
}

// Opener opens a fresh Volume for a single operation.
type Opener func() (Volume, error)

// OpenImage returns an Opener for the FAT image at the given path of fsys.
// The image is opened read-only and may also be a block device.
// If skipChecks is set, boot sectors with values outside of the FAT format are accepted.
func OpenImage(fsys afero.Fs, path string, skipChecks bool) Opener {
	return func() (Volume, error) {
		file, err := fsys.Open(path)
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrVolume)
		}

		var fat *fatvfs.Fs
		if skipChecks {
			fat, err = fatvfs.NewSkipChecks(file)
		} else {
			fat, err = fatvfs.New(file)
		}
		if err != nil {
			_ = file.Close()
			return nil, checkpoint.Wrap(err, ErrVolume)
		}

		return &fatVolume{
			file: file,
			fs:   fat,
		}, nil
	}
}

type fatVolume struct {
	file afero.File
	fs   *fatvfs.Fs
}

func (v *fatVolume) RootDir() Dir {
	return fatDir{v.fs.RootDir()}
}

func (v *fatVolume) Close() error {
	return v.file.Close()
}

type fatDir struct {
	dir *fatvfs.Dir
}

func (d fatDir) Entries() ([]Entry, error) {
	entries, err := d.dir.Entries()
	if err != nil {
		return nil, err
	}

	result := make([]Entry, len(entries))
	for i, e := range entries {
		result[i] = fatEntry{e}
	}
	return result, nil
}

type fatEntry struct {
	*fatvfs.Entry
}

func (e fatEntry) Dir() (Dir, error) {
	dir, err := e.Entry.Dir()
	if err != nil {
		return nil, err
	}
	return fatDir{dir}, nil
}

func (e fatEntry) File() (io.ReadSeeker, error) {
	file, err := e.Entry.File()
	if err != nil {
		return nil, err
	}
	return file, nil
}
