package fatvfs

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

func (h *ExtendedEntryHeader) FileInfo() os.FileInfo {
	return entryHeaderFileInfo{*h}
}

// Name returns the long name if present, otherwise the 8.3 name.
func (h *ExtendedEntryHeader) Name() string {
	if h.ExtendedName != "" {
		return h.ExtendedName
	}

	name := strings.TrimRight(decodeOEM(h.EntryHeader.Name[:8]), " ")
	ext := strings.TrimRight(decodeOEM(h.EntryHeader.Name[8:11]), " ")

	if h.NTReserved&ntLowerBase != 0 {
		name = strings.ToLower(name)
	}
	if h.NTReserved&ntLowerExtension != 0 {
		ext = strings.ToLower(ext)
	}

	if ext != "" {
		name += "."
	}

	return name + ext
}

// decodeOEM decodes short names which are stored in an OEM code page.
// Code page 437 is the default used by DOS and Windows.
func decodeOEM(raw []byte) string {
	var b strings.Builder
	for _, c := range raw {
		if c < 0x80 {
			b.WriteByte(c)
			continue
		}
		b.WriteRune(charmap.CodePage437.DecodeByte(c))
	}
	return b.String()
}

type entryHeaderFileInfo struct {
	entry ExtendedEntryHeader
}

func (e entryHeaderFileInfo) Name() string {
	return e.entry.Name()
}

func (e entryHeaderFileInfo) Size() int64 {
	if e.IsDir() {
		return 0
	}
	return int64(e.entry.FileSize)
}

func (e entryHeaderFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

func (e entryHeaderFileInfo) ModTime() time.Time {
	return ParseDateTime(e.entry.WriteDate, e.entry.WriteTime).GoTime()
}

func (e entryHeaderFileInfo) IsDir() bool {
	return e.entry.Attribute&AttrDirectory == AttrDirectory
}

func (e entryHeaderFileInfo) Sys() interface{} {
	return e.entry
}
