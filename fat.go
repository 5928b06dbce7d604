package fatvfs

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/aligator/fatvfs/checkpoint"
)

// fatEntry is a single value of the file allocation table.
// Values read from FAT12 and FAT16 tables are extended to the FAT32 value space
// so that the checks below work for all FAT types.
type fatEntry uint32

const (
	fatMask         = 0x0FFFFFFF
	fatMaxCluster   = 0x0FFFFFEF
	fatReservedLow  = 0x0FFFFFF0
	fatReservedHigh = 0x0FFFFFF6
	fatBad          = 0x0FFFFFF7
	fatEOF          = 0x0FFFFFF8
)

// Value returns the value without the 4 reserved high bits of FAT32.
func (e fatEntry) Value() uint32 {
	return uint32(e) & fatMask
}

func (e fatEntry) IsFree() bool {
	return e.Value() == 0
}

func (e fatEntry) IsReservedTemp() bool {
	return e.Value() == 1
}

func (e fatEntry) IsNextCluster() bool {
	return e.Value() >= 2 && e.Value() <= fatMaxCluster
}

func (e fatEntry) IsReservedSometimes() bool {
	return e.Value() >= fatReservedLow && e.Value() <= fatReservedHigh
}

func (e fatEntry) IsReserved() bool {
	return e.IsReservedTemp() || e.IsReservedSometimes()
}

func (e fatEntry) IsBad() bool {
	return e.Value() == fatBad
}

func (e fatEntry) IsEOF() bool {
	return e.Value() >= fatEOF
}

// extendFATValue maps a raw FAT12 or FAT16 value to the FAT32 value space.
func extendFATValue(fsType FATType, raw uint32) fatEntry {
	switch fsType {
	case FAT12:
		raw &= 0xFFF
		if raw >= 0xFF0 {
			raw |= 0x0FFFF000
		}
	case FAT16:
		raw &= 0xFFFF
		if raw >= 0xFFF0 {
			raw |= 0x0FFF0000
		}
	default:
		raw &= fatMask
	}
	return fatEntry(raw)
}

// isDataCluster checks if the cluster points into the data region of the volume.
func (fs *Fs) isDataCluster(cluster fatEntry) bool {
	return cluster.Value() >= 2 && cluster.Value() < fs.info.CountOfClusters+2
}

// readFAT reads the FAT value of the given cluster from the first FAT.
// The caller must hold fs.lock.
func (fs *Fs) readFAT(cluster fatEntry) (fatEntry, error) {
	c := cluster.Value()

	var offset, size uint32
	switch fs.info.FSType {
	case FAT12:
		offset, size = c+c/2, 2
	case FAT16:
		offset, size = c*2, 2
	default:
		offset, size = c*4, 4
	}

	sectorSize := uint32(fs.info.SectorSize)
	raw := make([]byte, 4)

	// A FAT12 value may span two sectors, so collect it byte by byte.
	for i := uint32(0); i < size; i++ {
		pos := offset + i
		if err := fs.fetch(uint32(fs.info.ReservedSectors) + pos/sectorSize); err != nil {
			return 0, err
		}
		raw[i] = fs.sectorCache.buffer[pos%sectorSize]
	}

	value := binary.LittleEndian.Uint32(raw)
	if fs.info.FSType == FAT12 {
		if c%2 == 1 {
			value >>= 4
		}
		value &= 0xFFF
	}

	return extendFATValue(fs.info.FSType, value), nil
}

// chain follows the cluster chain starting at the given cluster.
// The caller must hold fs.lock.
func (fs *Fs) chain(first fatEntry) ([]fatEntry, error) {
	if clusters, ok := fs.chains[first]; ok {
		return clusters, nil
	}

	if !fs.isDataCluster(first) {
		return nil, checkpoint.Wrap(fmt.Errorf("first cluster %v out of range", first.Value()), ErrCorruptChain)
	}

	clusters := []fatEntry{first}
	current := first
	for {
		next, err := fs.readFAT(current)
		if err != nil {
			return nil, checkpoint.Wrap(err, ErrCorruptChain)
		}

		if next.IsEOF() {
			break
		}

		if !next.IsNextCluster() || !fs.isDataCluster(next) {
			return nil, checkpoint.Wrap(fmt.Errorf("cluster %v points to invalid value 0x%X", current.Value(), next.Value()), ErrCorruptChain)
		}

		// A chain can never be longer than the count of clusters, so it has to contain a loop.
		if uint32(len(clusters)) >= fs.info.CountOfClusters {
			return nil, checkpoint.Wrap(fmt.Errorf("loop in chain starting at cluster %v", first.Value()), ErrCorruptChain)
		}

		clusters = append(clusters, next)
		current = next
	}

	fs.chains[first] = clusters
	return clusters, nil
}

func (fs *Fs) clusterSize() int64 {
	return int64(fs.info.SectorsPerCluster) * int64(fs.info.SectorSize)
}

func (fs *Fs) clusterOffset(cluster fatEntry) int64 {
	sector := int64(fs.info.FirstDataSector) + int64(cluster.Value()-2)*int64(fs.info.SectorsPerCluster)
	return sector * int64(fs.info.SectorSize)
}

// readChain reads the whole content of a cluster chain.
// The caller must hold fs.lock.
func (fs *Fs) readChain(first fatEntry) ([]byte, error) {
	clusters, err := fs.chain(first)
	if err != nil {
		return nil, err
	}

	clusterSize := fs.clusterSize()
	data := make([]byte, int64(len(clusters))*clusterSize)
	for i, cluster := range clusters {
		if err := fs.readAt(fs.clusterOffset(cluster), data[int64(i)*clusterSize:int64(i+1)*clusterSize]); err != nil {
			return nil, err
		}
	}

	return data, nil
}

// readFileAt reads up to readSize bytes of the file starting at the given cluster.
// It returns io.EOF together with the data if the end of the file is reached.
func (fs *Fs) readFileAt(cluster fatEntry, fileSize int64, offset int64, readSize int64) ([]byte, error) {
	if offset < 0 || readSize < 0 {
		return nil, fmt.Errorf("negative offset %v or size %v", offset, readSize)
	}

	if offset >= fileSize {
		return nil, io.EOF
	}

	var eof error
	if offset+readSize >= fileSize {
		readSize = fileSize - offset
		eof = io.EOF
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	clusters, err := fs.chain(cluster)
	if err != nil {
		return nil, err
	}

	clusterSize := fs.clusterSize()
	if int64(len(clusters))*clusterSize < fileSize {
		return nil, checkpoint.Wrap(fmt.Errorf("chain of %v clusters too short for %v bytes", len(clusters), fileSize), ErrCorruptChain)
	}

	result := make([]byte, readSize)
	end := offset + readSize
	for pos := offset; pos < end; {
		inCluster := pos % clusterSize
		n := clusterSize - inCluster
		if end-pos < n {
			n = end - pos
		}

		dst := result[pos-offset : pos-offset+n]
		if err := fs.readAt(fs.clusterOffset(clusters[pos/clusterSize])+inCluster, dst); err != nil {
			return result[:pos-offset], err
		}
		pos += n
	}

	return result, eof
}
