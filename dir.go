package fatvfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"unicode/utf16"

	"github.com/aligator/fatvfs/checkpoint"
)

// These errors may occur while processing a directory.
var (
	ErrReadDir = errors.New("could not read the directory")
	ErrNotDir  = errors.New("entry is not a directory")
	ErrNotFile = errors.New("entry is not a file")
)

// Dir is a directory of the volume. It does not hold any state besides its
// location, so the entries are read from the volume on every call of Entries.
type Dir struct {
	fs      *Fs
	cluster fatEntry
	root    bool
}

// Entry is a single file or directory inside of a Dir.
type Entry struct {
	fs     *Fs
	header ExtendedEntryHeader
}

// Entries reads all entries of the directory in the order they are stored on the volume.
// Deleted entries, the volume label and the "." and ".." entries are skipped.
func (d *Dir) Entries() ([]*Entry, error) {
	var headers []ExtendedEntryHeader
	var err error
	if d.root {
		headers, err = d.fs.readRoot()
	} else {
		headers, err = d.fs.readDir(d.cluster)
	}
	if err != nil {
		return nil, checkpoint.Wrap(err, ErrReadDir)
	}

	entries := make([]*Entry, len(headers))
	for i := range headers {
		entries[i] = &Entry{
			fs:     d.fs,
			header: headers[i],
		}
	}
	return entries, nil
}

func (e *Entry) Name() string {
	return e.header.Name()
}

func (e *Entry) IsDir() bool {
	return e.header.Attribute&AttrDirectory == AttrDirectory
}

func (e *Entry) IsFile() bool {
	return !e.IsDir()
}

// Len returns the size of the file. Directories always report 0.
func (e *Entry) Len() uint64 {
	if e.IsDir() {
		return 0
	}
	return uint64(e.header.FileSize)
}

// Modified returns the last write time exactly as it is stored in the entry.
func (e *Entry) Modified() DateTime {
	return ParseDateTime(e.header.WriteDate, e.header.WriteTime)
}

// Header returns the raw directory entry.
func (e *Entry) Header() ExtendedEntryHeader {
	return e.header
}

func (e *Entry) FileInfo() os.FileInfo {
	return e.header.FileInfo()
}

// Dir opens the entry as directory.
func (e *Entry) Dir() (*Dir, error) {
	if !e.IsDir() {
		return nil, checkpoint.From(ErrNotDir)
	}
	return &Dir{
		fs:      e.fs,
		cluster: e.header.FirstCluster(),
	}, nil
}

// File opens the entry as file.
func (e *Entry) File() (*File, error) {
	if e.IsDir() {
		return nil, checkpoint.From(ErrNotFile)
	}
	return &File{
		fs:           e.fs,
		path:         e.Name(),
		firstCluster: e.header.FirstCluster(),
		stat:         e.FileInfo(),
	}, nil
}

// readRoot reads the root directory which is a fixed region for FAT12 and FAT16
// and a normal cluster chain for FAT32.
func (fs *Fs) readRoot() ([]ExtendedEntryHeader, error) {
	if fs.info.FSType == FAT32 {
		return fs.readDir(fs.info.RootCluster)
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	firstRootSector := int64(fs.info.ReservedSectors) + int64(fs.info.NumFATs)*int64(fs.info.FATSize)
	data := make([]byte, int(fs.info.RootEntryCount)*entrySize)
	if err := fs.readAt(firstRootSector*int64(fs.info.SectorSize), data); err != nil {
		return nil, err
	}

	return parseEntries(data)
}

// readDir reads the directory stored in the chain starting at the given cluster.
func (fs *Fs) readDir(cluster fatEntry) ([]ExtendedEntryHeader, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	data, err := fs.readChain(cluster)
	if err != nil {
		return nil, err
	}

	return parseEntries(data)
}

// parseEntries decodes raw directory data. Long filename entries are collected
// and attached to the following short entry if they are complete and their
// checksum matches, otherwise the short name is used.
func parseEntries(data []byte) ([]ExtendedEntryHeader, error) {
	var (
		result   []ExtendedEntryHeader
		longName [][]uint16
		checksum byte
		expected int
	)

	for offset := 0; offset+entrySize <= len(data); offset += entrySize {
		raw := data[offset : offset+entrySize]

		switch raw[0] {
		case entryFree:
			return result, nil
		case entryDeleted:
			longName = nil
			continue
		}

		if raw[11]&0x3F == AttrLongName {
			var lfn LongFilenameEntry
			if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &lfn); err != nil {
				return nil, checkpoint.From(err)
			}

			sequence := int(lfn.Sequence & lfnSequence)
			if lfn.Sequence&lfnLast != 0 {
				longName = make([][]uint16, sequence)
				checksum = lfn.Checksum
				expected = sequence
			}

			if longName == nil || sequence == 0 || sequence != expected || lfn.Checksum != checksum {
				longName = nil
				continue
			}

			longName[sequence-1] = lfn.chars()
			expected--
			continue
		}

		var header EntryHeader
		if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &header); err != nil {
			return nil, checkpoint.From(err)
		}

		var name string
		if longName != nil && expected == 0 && shortNameChecksum(header.Name) == checksum {
			name = decodeLongName(longName)
		}
		longName = nil

		if header.Attribute&AttrVolumeId == AttrVolumeId || isDotEntry(header.Name) {
			continue
		}

		if header.Name[0] == entryKanji {
			header.Name[0] = entryDeleted
		}

		result = append(result, ExtendedEntryHeader{
			EntryHeader:  header,
			ExtendedName: name,
		})
	}

	return result, nil
}

func isDotEntry(name [11]byte) bool {
	return name == [11]byte{'.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '} ||
		name == [11]byte{'.', '.', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
}

// chars returns the 13 UTF-16 code units of a long filename entry.
func (l LongFilenameEntry) chars() []uint16 {
	result := make([]uint16, 0, 13)
	result = append(result, l.First[:]...)
	result = append(result, l.Second[:]...)
	return append(result, l.Third[:]...)
}

// decodeLongName joins the parts in sequence order and stops at the first 0x0000.
func decodeLongName(parts [][]uint16) string {
	var units []uint16
	for _, part := range parts {
		for _, c := range part {
			if c == 0x0000 {
				return string(utf16.Decode(units))
			}
			units = append(units, c)
		}
	}
	return string(utf16.Decode(units))
}

// shortNameChecksum calculates the checksum stored in every long filename entry
// which belongs to the short name.
func shortNameChecksum(name [11]byte) byte {
	var sum byte
	for _, c := range name {
		sum = (sum>>1 | sum<<7) + c
	}
	return sum
}

// ShortNameChecksum is exported for tools which generate long filename entries.
func ShortNameChecksum(name [11]byte) byte {
	return shortNameChecksum(name)
}
