// Package fatimage implements writing FAT16 file system images, which is
// useful to create test fixtures and demo images from a directory tree.
//
// The resulting images use a sector size of 512 bytes, two FATs and the
// smallest cluster size which is able to hold all data. Names which do not
// fit into 8.3 are stored as VFAT long file names.
//
// All content is held in memory until Flush is called.
package fatimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aligator/fatvfs"
)

const (
	sectorSize = 512
	entrySize  = 32
	numFATs    = 2

	// rootEntries is the minimal count of root directory entries.
	rootEntries = 512

	// minClusters and maxClusters limit the count of clusters to the range
	// which is detected as FAT16.
	minClusters = 4096
	maxClusters = 65524

	// unusableClusters is the number of FAT entries which are always unusable:
	// the first two entries have special meaning (copy of the media
	// descriptor and file system state).
	unusableClusters = 2

	// endOfChain marks the end of a cluster chain in the FAT.
	endOfChain = uint16(0xFFFF)

	// hardDisk is the media descriptor for a hard disk (as opposed to floppy).
	hardDisk = uint8(0xF8)
)

type entry interface {
	base() *common
}

type common struct {
	longName string
	modTime  time.Time

	// stamp overrides modTime with raw values if set.
	stamp *[2]uint16

	short        shortName
	needsLFN     bool
	firstCluster uint16
}

func (c *common) base() *common {
	return c
}

// dateTime returns the date and time fields of the directory entry.
// Times before the FAT epoch are stored as 1980-01-01 00:00:00.
func (c *common) dateTime() (uint16, uint16) {
	if c.stamp != nil {
		return c.stamp[0], c.stamp[1]
	}

	t := c.modTime
	if t.Year() < 1980 {
		return 1<<5 | 1, 0
	}
	if t.Year() > 2107 {
		t = time.Date(2107, 12, 31, 23, 59, 58, 0, time.UTC)
	}

	date := uint16(t.Year()-1980)<<9 |
		uint16(t.Month())<<5 |
		uint16(t.Day())
	tm := uint16(t.Hour())<<11 |
		uint16(t.Minute())<<5 |
		uint16(t.Second()/2)
	return date, tm
}

type file struct {
	common
	content bytes.Buffer
}

type directory struct {
	common
	entries []entry
	byName  map[string]entry
	parent  *directory
}

func newDirectory(name string, parent *directory) *directory {
	return &directory{
		common: common{
			longName: name,
		},
		byName: make(map[string]entry),
		parent: parent,
	}
}

// Writer collects files and directories and writes them as FAT16 image on Flush.
type Writer struct {
	w     io.Writer
	label string
	root  *directory
}

// NewWriter returns a Writer which will write a FAT16 file system
// image to w once Flush is called.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:    w,
		root: newDirectory("", nil),
	}
}

// SetLabel sets the volume label which is stored in the boot sector and as
// entry of the root directory. It is stored in upper case.
func (fw *Writer) SetLabel(label string) error {
	label = strings.ToUpper(label)
	if len(label) > 11 {
		return fmt.Errorf("label %q is longer than 11 characters", label)
	}
	for _, c := range label {
		if c != ' ' && !isShortNameChar(c) {
			return fmt.Errorf("label %q contains the invalid character %q", label, c)
		}
	}
	fw.label = label
	return nil
}

func splitPath(p string) []string {
	var components []string
	for _, c := range strings.Split(p, "/") {
		if c != "" && c != "." {
			components = append(components, c)
		}
	}
	return components
}

func validName(name string) error {
	if name == "." || name == ".." || strings.ContainsAny(name, "\\:*?\"<>|\x00") {
		return fmt.Errorf("invalid name %q", name)
	}
	return nil
}

// dir returns the directory at p and creates all missing directories.
func (fw *Writer) dir(p string) (*directory, error) {
	cur := fw.root
	for _, component := range splitPath(p) {
		if err := validName(component); err != nil {
			return nil, err
		}
		if _, ok := cur.byName[component]; !ok {
			dir := newDirectory(component, cur)
			cur.entries = append(cur.entries, dir)
			cur.byName[component] = dir
		}
		var ok bool
		cur, ok = cur.byName[component].(*directory)
		if !ok {
			return nil, fmt.Errorf("path %q invalid: component %q identifies a file", p, component)
		}
	}
	return cur, nil
}

// lookup returns the entry at p without creating anything.
func (fw *Writer) lookup(p string) (entry, error) {
	components := splitPath(p)
	if len(components) == 0 {
		return nil, fmt.Errorf("the root has no entry")
	}

	cur := fw.root
	for i, component := range components {
		e, ok := cur.byName[component]
		if !ok {
			return nil, fmt.Errorf("path %q not found", p)
		}
		if i == len(components)-1 {
			return e, nil
		}
		if cur, ok = e.(*directory); !ok {
			return nil, fmt.Errorf("path %q invalid: component %q identifies a file", p, component)
		}
	}
	return nil, fmt.Errorf("path %q not found", p)
}

// Mkdir creates an empty directory with the given full path,
// e.g. Mkdir("usr/share/lib"). Missing parents are created as well.
func (fw *Writer) Mkdir(p string, modTime time.Time) error {
	d, err := fw.dir(p)
	if err != nil {
		return err
	}
	d.modTime = modTime.UTC()
	return nil
}

// File creates a file with the specified path and modTime. The returned
// io.Writer stays valid until Flush is called. Names only need to be unique
// when compared case-sensitively, so "a.txt" and "A.TXT" may coexist.
func (fw *Writer) File(p string, modTime time.Time) (io.Writer, error) {
	dir, err := fw.dir(path.Dir(p))
	if err != nil {
		return nil, err
	}

	filename := path.Base(p)
	if err := validName(filename); err != nil || filename == "/" {
		return nil, fmt.Errorf("invalid file path %q", p)
	}
	if _, ok := dir.byName[filename]; ok {
		return nil, fmt.Errorf("path %q already exists", p)
	}

	f := &file{
		common: common{
			longName: filename,
			modTime:  modTime.UTC(),
		},
	}
	dir.entries = append(dir.entries, f)
	dir.byName[filename] = f
	return &f.content, nil
}

// SetStamp overrides the modification time of an existing entry with the raw
// date and time fields. It allows storing values which are not valid.
func (fw *Writer) SetStamp(p string, date, tm uint16) error {
	e, err := fw.lookup(p)
	if err != nil {
		return err
	}
	e.base().stamp = &[2]uint16{date, tm}
	return nil
}

// assignNames chooses the 8.3 name of every entry. Names which cannot be
// stored exactly or collide with an earlier entry get a numbered alias and a
// long name.
func (d *directory) assignNames() {
	used := make(map[[11]byte]bool)
	for _, e := range d.entries {
		c := e.base()
		if short, ok := exactShortName(c.longName); ok && !used[short.raw] {
			c.short = short
			c.needsLFN = false
		} else {
			c.needsLFN = true
			for n := 1; ; n++ {
				raw := numberedShortName(c.longName, n)
				if !used[raw] {
					c.short = shortName{raw: raw}
					break
				}
			}
		}
		used[c.short.raw] = true

		if sub, ok := e.(*directory); ok {
			sub.assignNames()
		}
	}
}

func (c *common) slots() int {
	if !c.needsLFN {
		return 1
	}
	return 1 + longNameSlots(c.longName)
}

// size returns the size of the directory content in bytes.
func (d *directory) size() int {
	count := 0
	if d.parent != nil {
		// "." and ".."
		count = 2
	}
	for _, e := range d.entries {
		count += e.base().slots()
	}
	return count * entrySize
}

func clustersFor(size, clusterSize int) int {
	return (size + clusterSize - 1) / clusterSize
}

// clusters returns the count of clusters needed by all entries below d.
func (d *directory) clusters(clusterSize int) int {
	count := 0
	for _, e := range d.entries {
		switch e := e.(type) {
		case *directory:
			count += clustersFor(e.size(), clusterSize) + e.clusters(clusterSize)
		case *file:
			count += clustersFor(e.content.Len(), clusterSize)
		}
	}
	return count
}

// layout is the geometry of the image and its FAT while it is built.
type layout struct {
	sectorsPerCluster int
	clusterSize       int
	clusterCount      int
	fatSectors        int
	rootEntries       int

	fat  []uint16
	data []byte
	next int
}

// alloc reserves a chain of count clusters and returns its first cluster.
func (l *layout) alloc(count int) uint16 {
	if count == 0 {
		return 0
	}
	first := l.next
	for i := 0; i < count-1; i++ {
		l.fat[l.next+i] = uint16(l.next + i + 1)
	}
	l.fat[l.next+count-1] = endOfChain
	l.next += count
	return uint16(first)
}

func (l *layout) clusterData(cluster uint16) []byte {
	offset := (int(cluster) - unusableClusters) * l.clusterSize
	return l.data[offset:]
}

// allocate assigns the first clusters to all entries below d in pre-order.
func (l *layout) allocate(d *directory) {
	for _, e := range d.entries {
		switch e := e.(type) {
		case *directory:
			e.firstCluster = l.alloc(clustersFor(e.size(), l.clusterSize))
			l.allocate(e)
		case *file:
			e.firstCluster = l.alloc(clustersFor(e.content.Len(), l.clusterSize))
		}
	}
}

// writeContent copies all file contents and subdirectories below d into the data area.
func (l *layout) writeContent(d *directory) error {
	for _, e := range d.entries {
		switch e := e.(type) {
		case *directory:
			var buf bytes.Buffer
			if err := writeDirEntries(&buf, e, ""); err != nil {
				return err
			}
			copy(l.clusterData(e.firstCluster), buf.Bytes())

			if err := l.writeContent(e); err != nil {
				return err
			}
		case *file:
			if e.firstCluster != 0 {
				copy(l.clusterData(e.firstCluster), e.content.Bytes())
			}
		}
	}
	return nil
}

func dotEntry(name string, cluster uint16, c *common) fatvfs.EntryHeader {
	date, tm := c.dateTime()
	return fatvfs.EntryHeader{
		Name:           formatShortName(name, ""),
		Attribute:      fatvfs.AttrDirectory,
		WriteTime:      tm,
		WriteDate:      date,
		FirstClusterLO: cluster,
	}
}

// writeDirEntries writes all entries of d. The label is only written for the root.
func writeDirEntries(w io.Writer, d *directory, label string) error {
	var headers []interface{}

	if label != "" {
		headers = append(headers, fatvfs.EntryHeader{
			Name:      padName(label),
			Attribute: fatvfs.AttrVolumeId,
		})
	}

	if d.parent != nil {
		headers = append(headers,
			dotEntry(".", d.firstCluster, &d.common),
			// The root is referenced as cluster 0.
			dotEntry("..", d.parent.firstCluster, &d.parent.common),
		)
	}

	for _, e := range d.entries {
		c := e.base()

		if c.needsLFN {
			lfn, err := longNameEntries(c.longName, fatvfs.ShortNameChecksum(c.short.raw))
			if err != nil {
				return err
			}
			headers = append(headers, lfn)
		}

		header := fatvfs.EntryHeader{
			Name:           c.short.raw,
			Attribute:      fatvfs.AttrArchive,
			NTReserved:     c.short.ntFlags,
			FirstClusterLO: c.firstCluster,
		}
		header.WriteDate, header.WriteTime = c.dateTime()
		header.CreateDate, header.CreateTime = header.WriteDate, header.WriteTime
		header.LastAccessDate = header.WriteDate

		switch e := e.(type) {
		case *directory:
			header.Attribute = fatvfs.AttrDirectory
		case *file:
			header.FileSize = uint32(e.content.Len())
		}

		headers = append(headers, header)
	}

	for _, h := range headers {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return err
		}
	}
	return nil
}

func (fw *Writer) newLayout() (*layout, error) {
	fw.root.assignNames()

	rootSlots := fw.root.size() / entrySize
	if fw.label != "" {
		rootSlots++
	}
	entriesPerSector := sectorSize / entrySize
	root := rootEntries
	if rootSlots > root {
		root = (rootSlots + entriesPerSector - 1) / entriesPerSector * entriesPerSector
	}
	if root > 0xFFF0 {
		return nil, fmt.Errorf("too many entries in the root directory: %v", rootSlots)
	}

	for spc := 1; spc <= 64; spc *= 2 {
		clusterSize := spc * sectorSize
		needed := fw.root.clusters(clusterSize)
		if needed > maxClusters {
			continue
		}

		count := needed
		if count < minClusters {
			count = minClusters
		}

		return &layout{
			sectorsPerCluster: spc,
			clusterSize:       clusterSize,
			clusterCount:      count,
			fatSectors:        clustersFor((count+unusableClusters)*2, sectorSize),
			rootEntries:       root,
			fat:               make([]uint16, count+unusableClusters),
			data:              make([]byte, count*clusterSize),
			next:              unusableClusters,
		}, nil
	}

	return nil, fmt.Errorf("content too large for a FAT16 image")
}

func (fw *Writer) writeBootSector(l *layout, totalSectors int) error {
	label := fw.label
	if label == "" {
		label = "NO NAME"
	}

	specific := fatvfs.FAT16SpecificData{
		BSDriveNumber:   0x80,
		BSBootSignature: 0x29,
		BSVolumeId:      0xf3f37b84,
		BSVolumeLabel:   padName(label),
	}
	copy(specific.BSFileSystemType[:], "FAT16   ")

	var specificData bytes.Buffer
	if err := binary.Write(&specificData, binary.LittleEndian, specific); err != nil {
		return err
	}

	bpb := fatvfs.BPB{
		BSJumpBoot:          [3]byte{0xEB, 0x3C, 0x90},
		BSOEMName:           [8]byte{'f', 'a', 't', 'v', 'f', 's', ' ', ' '},
		BytesPerSector:      sectorSize,
		SectorsPerCluster:   uint8(l.sectorsPerCluster),
		ReservedSectorCount: 1,
		NumFATs:             numFATs,
		RootEntryCount:      uint16(l.rootEntries),
		Media:               hardDisk,
		FATSize16:           uint16(l.fatSectors),
		SectorsPerTrack:     32,
		NumberOfHeads:       4,
	}
	if totalSectors < 0x10000 {
		bpb.TotalSectors16 = uint16(totalSectors)
	} else {
		bpb.TotalSectors32 = uint32(totalSectors)
	}
	copy(bpb.FATSpecificData[:], specificData.Bytes())

	sector := bytes.NewBuffer(make([]byte, 0, sectorSize))
	if err := binary.Write(sector, binary.LittleEndian, bpb); err != nil {
		return err
	}
	sector.Write(make([]byte, sectorSize-2-sector.Len()))
	sector.Write([]byte{0x55, 0xAA})

	_, err := fw.w.Write(sector.Bytes())
	return err
}

func (fw *Writer) writeFAT(l *layout) error {
	l.fat[0] = 0xFF00 | uint16(hardDisk)
	l.fat[1] = endOfChain

	table := make([]byte, l.fatSectors*sectorSize)
	for i, value := range l.fat {
		binary.LittleEndian.PutUint16(table[i*2:], value)
	}

	for i := 0; i < numFATs; i++ {
		if _, err := fw.w.Write(table); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the image. The Writer must not be used after calling
// Flush.
func (fw *Writer) Flush() error {
	l, err := fw.newLayout()
	if err != nil {
		return err
	}

	l.allocate(fw.root)
	if err := l.writeContent(fw.root); err != nil {
		return err
	}

	rootSectors := l.rootEntries * entrySize / sectorSize
	totalSectors := 1 + numFATs*l.fatSectors + rootSectors + l.clusterCount*l.sectorsPerCluster

	if err := fw.writeBootSector(l, totalSectors); err != nil {
		return err
	}

	if err := fw.writeFAT(l); err != nil {
		return err
	}

	root := bytes.NewBuffer(make([]byte, 0, rootSectors*sectorSize))
	if err := writeDirEntries(root, fw.root, fw.label); err != nil {
		return err
	}
	root.Write(make([]byte, rootSectors*sectorSize-root.Len()))
	if _, err := fw.w.Write(root.Bytes()); err != nil {
		return err
	}

	_, err = fw.w.Write(l.data)
	return err
}
