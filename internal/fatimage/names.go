package fatimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/aligator/fatvfs"
)

const (
	ntLowerBase      = 0x08
	ntLowerExtension = 0x10

	lfnLast        = 0x40
	charsPerLFN    = 13
	maxLongNameLen = 255
)

// shortNameChars contains all characters besides A-Z and 0-9 which are
// allowed in an 8.3 name.
const shortNameChars = "!#$%&'()-@^_`{}~"

func isShortNameChar(c rune) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || strings.ContainsRune(shortNameChars, c)
}

// shortName is the 8.3 representation of a name together with the NT flags
// which mark an all lowercase base or extension.
type shortName struct {
	raw     [11]byte
	ntFlags byte
}

// padName stores s in a space padded 11 byte field as used for labels.
func padName(s string) [11]byte {
	var raw [11]byte
	copy(raw[:], "           ")
	copy(raw[:], s)
	return raw
}

func formatShortName(base, ext string) [11]byte {
	var raw [11]byte
	copy(raw[:], "           ")
	copy(raw[:8], base)
	copy(raw[8:], ext)
	return raw
}

// exactShortName checks if name can be stored as 8.3 name without a long name.
// This is the case if it only consists of valid characters and both parts
// are either completely upper or completely lower case.
func exactShortName(name string) (shortName, bool) {
	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
	}

	if len(base) == 0 || len(base) > 8 || len(ext) > 3 || strings.ContainsRune(base, '.') {
		return shortName{}, false
	}
	// A trailing dot would get lost.
	if ext == "" && strings.HasSuffix(name, ".") {
		return shortName{}, false
	}

	var flags byte
	for _, part := range []struct {
		value string
		flag  byte
	}{
		{base, ntLowerBase},
		{ext, ntLowerExtension},
	} {
		upper := strings.ToUpper(part.value)
		for _, c := range upper {
			if !isShortNameChar(c) {
				return shortName{}, false
			}
		}

		switch part.value {
		case upper:
		case strings.ToLower(part.value):
			flags |= part.flag
		default:
			// Mixed case needs a long name.
			return shortName{}, false
		}
	}

	return shortName{
		raw:     formatShortName(strings.ToUpper(base), strings.ToUpper(ext)),
		ntFlags: flags,
	}, true
}

// shortNameBasis converts a part of a long name into characters allowed in an 8.3 name.
func shortNameBasis(s string, length int) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(s) {
		if b.Len() == length {
			break
		}

		switch {
		case c == ' ' || c == '.':
		case isShortNameChar(c):
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// numberedShortName creates the n-th alias like "LONGFI~1.TXT" for a long name.
func numberedShortName(name string, n int) [11]byte {
	base, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		base, ext = name[:i], name[i+1:]
	}

	suffix := fmt.Sprintf("~%d", n)
	basis := shortNameBasis(base, 8-len(suffix))
	if basis == "" {
		basis = "_"
	}

	return formatShortName(basis+suffix, shortNameBasis(ext, 3))
}

// longNameSlots returns the count of long filename entries needed for name.
func longNameSlots(name string) int {
	return (len(utf16.Encode([]rune(name))) + charsPerLFN - 1) / charsPerLFN
}

// longNameEntries creates the long filename entries for name in the order
// they have to be written, so the last part comes first.
func longNameEntries(name string, checksum byte) ([]byte, error) {
	units := utf16.Encode([]rune(name))
	if len(units) > maxLongNameLen {
		return nil, fmt.Errorf("name %q is too long", name)
	}

	count := (len(units) + charsPerLFN - 1) / charsPerLFN
	padded := make([]uint16, count*charsPerLFN)
	for i := range padded {
		switch {
		case i < len(units):
			padded[i] = units[i]
		case i == len(units):
			padded[i] = 0x0000
		default:
			padded[i] = 0xFFFF
		}
	}

	var buf bytes.Buffer
	for seq := count; seq >= 1; seq-- {
		chars := padded[(seq-1)*charsPerLFN : seq*charsPerLFN]

		entry := fatvfs.LongFilenameEntry{
			Sequence:  byte(seq),
			Attribute: fatvfs.AttrLongName,
			Checksum:  checksum,
		}
		if seq == count {
			entry.Sequence |= lfnLast
		}
		copy(entry.First[:], chars[0:5])
		copy(entry.Second[:], chars[5:11])
		copy(entry.Third[:], chars[11:13])

		if err := binary.Write(&buf, binary.LittleEndian, entry); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
