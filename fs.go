package fatvfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strings"
	"sync"

	"github.com/aligator/fatvfs/checkpoint"
)

// FATType is the FAT variant of a volume which is determined by its count of clusters.
type FATType uint8

const (
	FAT12 FATType = iota
	FAT16
	FAT32
)

func (t FATType) String() string {
	switch t {
	case FAT12:
		return "FAT12"
	case FAT16:
		return "FAT16"
	case FAT32:
		return "FAT32"
	}
	return fmt.Sprintf("FATType(%d)", uint8(t))
}

// These errors may occur while opening a volume or walking its structures.
var (
	ErrInvalidVolume = errors.New("not a valid FAT volume")
	ErrCorruptChain  = errors.New("corrupt cluster chain")
)

// Info contains all information about the whole filesystem.
type Info struct {
	FSType            FATType
	SectorsPerCluster uint8
	SectorSize        uint16
	ReservedSectors   uint16
	NumFATs           uint8
	FATSize           uint32
	RootEntryCount    uint16
	RootCluster       fatEntry
	FirstDataSector   uint32
	TotalSectors      uint32
	CountOfClusters   uint32
	rootDirSectors    uint32
}

type Sector struct {
	current uint32
	buffer  []byte
}

// Fs is a read-only FAT12, FAT16 or FAT32 volume.
// All methods may be used concurrently as the reader is guarded by a lock.
type Fs struct {
	lock        sync.Mutex
	reader      io.ReadSeeker
	info        Info
	sectorCache Sector
	label       string

	// chains caches the cluster chains already walked, keyed by their first cluster.
	chains map[fatEntry][]fatEntry
}

// New opens a FAT filesystem from the given reader.
func New(reader io.ReadSeeker) (*Fs, error) {
	fs := &Fs{
		reader: reader,
		chains: make(map[fatEntry][]fatEntry),
	}

	if err := fs.initialize(false); err != nil {
		return nil, err
	}

	return fs, nil
}

// NewSkipChecks opens a FAT filesystem from the given reader just like New but
// it skips some filesystem validations which may allow you to open not perfectly standard FAT filesystems.
// Use with caution!
func NewSkipChecks(reader io.ReadSeeker) (*Fs, error) {
	fs := &Fs{
		reader: reader,
		chains: make(map[fatEntry][]fatEntry),
	}

	if err := fs.initialize(true); err != nil {
		return nil, err
	}

	return fs, nil
}

func isValidMedia(media byte) bool {
	return media == 0xF0 || media >= 0xF8
}

func (fs *Fs) initialize(skipChecks bool) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	// The data for the first sector is always in the first 512 so use that until the correct sector size is loaded.
	fs.info.SectorSize = 512
	fs.sectorCache.buffer = make([]byte, 512)

	// Set to a sector unequal 0 to avoid using empty buffer in fetch.
	fs.sectorCache.current = 0xFFFFFFFF
	if err := fs.fetch(0); err != nil {
		return checkpoint.Wrap(err, ErrInvalidVolume)
	}

	bpb := BPB{}
	err := binary.Read(bytes.NewReader(fs.sectorCache.buffer), binary.LittleEndian, &bpb)
	if err != nil {
		return checkpoint.Wrap(err, ErrInvalidVolume)
	}

	if !skipChecks {
		if err := checkBPB(&bpb, fs.sectorCache.buffer); err != nil {
			return checkpoint.Wrap(err, ErrInvalidVolume)
		}
	}

	// These values would lead to divisions by zero, so they are never skipped.
	if bpb.BytesPerSector < 512 || bpb.SectorsPerCluster == 0 || bpb.NumFATs == 0 {
		return checkpoint.Wrap(fmt.Errorf("invalid geometry"), ErrInvalidVolume)
	}

	fs.info.SectorSize = bpb.BytesPerSector
	fs.info.SectorsPerCluster = bpb.SectorsPerCluster
	fs.info.ReservedSectors = bpb.ReservedSectorCount
	fs.info.NumFATs = bpb.NumFATs
	fs.info.RootEntryCount = bpb.RootEntryCount

	var fat32Data FAT32SpecificData
	err = binary.Read(bytes.NewReader(bpb.FATSpecificData[:]), binary.LittleEndian, &fat32Data)
	if err != nil {
		return checkpoint.Wrap(err, ErrInvalidVolume)
	}

	if bpb.FATSize16 != 0 {
		fs.info.FATSize = uint32(bpb.FATSize16)
	} else {
		fs.info.FATSize = fat32Data.FatSize
	}

	if bpb.TotalSectors16 != 0 {
		fs.info.TotalSectors = uint32(bpb.TotalSectors16)
	} else {
		fs.info.TotalSectors = bpb.TotalSectors32
	}

	sectorSize := uint32(bpb.BytesPerSector)
	fs.info.rootDirSectors = (uint32(bpb.RootEntryCount)*entrySize + sectorSize - 1) / sectorSize
	fs.info.FirstDataSector = uint32(bpb.ReservedSectorCount) + uint32(bpb.NumFATs)*fs.info.FATSize + fs.info.rootDirSectors

	if fs.info.FirstDataSector >= fs.info.TotalSectors {
		return checkpoint.Wrap(fmt.Errorf("no data sectors, first data sector: %v, total sectors: %v", fs.info.FirstDataSector, fs.info.TotalSectors), ErrInvalidVolume)
	}
	fs.info.CountOfClusters = (fs.info.TotalSectors - fs.info.FirstDataSector) / uint32(bpb.SectorsPerCluster)

	// The FAT type is determined only by the count of clusters.
	switch {
	case fs.info.CountOfClusters < 4085:
		fs.info.FSType = FAT12
	case fs.info.CountOfClusters < 65525:
		fs.info.FSType = FAT16
	default:
		fs.info.FSType = FAT32
	}

	if fs.info.FSType == FAT32 {
		fs.info.RootCluster = fat32Data.RootCluster
		fs.label = volumeLabel(fat32Data.BSBootSignature, fat32Data.BSVolumeLabel)
		if !skipChecks && (bpb.RootEntryCount != 0 || bpb.FATSize16 != 0) {
			return checkpoint.Wrap(fmt.Errorf("FAT32 with FAT12/16 root directory fields"), ErrInvalidVolume)
		}
	} else {
		var fat16Data FAT16SpecificData
		err = binary.Read(bytes.NewReader(bpb.FATSpecificData[:]), binary.LittleEndian, &fat16Data)
		if err != nil {
			return checkpoint.Wrap(err, ErrInvalidVolume)
		}
		fs.label = volumeLabel(fat16Data.BSBootSignature, fat16Data.BSVolumeLabel)
	}

	// Use the real sector size for all following sector reads.
	fs.sectorCache.buffer = make([]byte, bpb.BytesPerSector)
	fs.sectorCache.current = 0xFFFFFFFF

	return nil
}

// checkBPB validates the values of the boot sector which are fixed by the FAT format.
func checkBPB(bpb *BPB, sector []byte) error {
	// Check for valid jump instructions
	if !(bpb.BSJumpBoot[0] == 0xEB && bpb.BSJumpBoot[2] == 0x90) && !(bpb.BSJumpBoot[0] == 0xE9) {
		return fmt.Errorf("no valid jump instructions at the beginning")
	}

	if sector[510] != 0x55 || sector[511] != 0xAA {
		return fmt.Errorf("invalid boot sector signature")
	}

	// FAT only supports 512, 1024, 2048 and 4096.
	if bpb.BytesPerSector != 512 && bpb.BytesPerSector != 1024 && bpb.BytesPerSector != 2048 && bpb.BytesPerSector != 4096 {
		return fmt.Errorf("invalid sector size %v", bpb.BytesPerSector)
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	// Also the whole cluster size should not be more than 32K.
	if bits.OnesCount8(bpb.SectorsPerCluster) != 1 || uint32(bpb.BytesPerSector)*uint32(bpb.SectorsPerCluster) > 32*1024 {
		return fmt.Errorf("invalid sectors per cluster %v", bpb.SectorsPerCluster)
	}

	// Note: for FAT12 and FAT16 it is typically 1 for FAT32 it is typically 32.
	if bpb.ReservedSectorCount == 0 {
		return fmt.Errorf("invalid reserved sector count")
	}

	if bpb.NumFATs == 0 {
		return fmt.Errorf("invalid count of FATs")
	}

	if !isValidMedia(bpb.Media) {
		return fmt.Errorf("invalid media value 0x%X", bpb.Media)
	}

	if bpb.TotalSectors16 == 0 && bpb.TotalSectors32 == 0 {
		return fmt.Errorf("invalid total sector count")
	}

	return nil
}

func volumeLabel(signature byte, label [11]byte) string {
	// Only the extended boot signature guarantees the label field to be present.
	if signature != 0x29 {
		return ""
	}
	name := strings.TrimRight(string(label[:]), " \x00")
	if name == "NO NAME" {
		return ""
	}
	return name
}

// fetch loads a specific single sector of the filesystem.
// The caller must hold fs.lock.
func (fs *Fs) fetch(sector uint32) error {
	// Only load it once.
	if sector == fs.sectorCache.current {
		return nil
	}

	// Seek to and Read the new sector.
	_, err := fs.reader.Seek(int64(sector)*int64(fs.info.SectorSize), io.SeekStart)
	if err != nil {
		return checkpoint.From(err)
	}

	_, err = io.ReadFull(fs.reader, fs.sectorCache.buffer)
	if err != nil {
		// Invalidate, as the buffer may be partially overwritten.
		fs.sectorCache.current = 0xFFFFFFFF
		return checkpoint.From(err)
	}

	fs.sectorCache.current = sector

	return nil
}

// readAt reads len(p) bytes at the absolute offset without using the sector cache.
// The caller must hold fs.lock.
func (fs *Fs) readAt(offset int64, p []byte) error {
	_, err := fs.reader.Seek(offset, io.SeekStart)
	if err != nil {
		return checkpoint.From(err)
	}

	_, err = io.ReadFull(fs.reader, p)
	if err == io.EOF {
		// Reading nothing at the end of the image still means the volume is too short.
		return checkpoint.From(io.ErrUnexpectedEOF)
	}
	return checkpoint.From(err)
}

// Label returns the volume label from the boot sector. It is empty if no label is set.
func (fs *Fs) Label() string {
	return fs.label
}

// FSType returns the FAT variant of the volume.
func (fs *Fs) FSType() FATType {
	return fs.info.FSType
}

// Info returns the geometry of the volume.
func (fs *Fs) Info() Info {
	return fs.info
}

// RootDir returns the root directory of the volume.
func (fs *Fs) RootDir() *Dir {
	return &Dir{
		fs:   fs,
		root: true,
	}
}
