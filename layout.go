package xdvdfs

import (
	"encoding/binary"
	"strings"
)

// VolumeMagic is the 20-byte ASCII signature written at both ends of the
// volume descriptor.
const VolumeMagic = "MICROSOFT*XBOX*MEDIA"

// VolumeDescriptorSector is the fixed sector holding the volume descriptor.
const VolumeDescriptorSector = 32

// NoChild is the sentinel subtree-offset value meaning "no child" in a
// DirectoryEntry's Left/Right fields.
const NoChild uint16 = 0xFFFF

// reservedNameChars are rejected in filenames by the layout codec (§4.B).
const reservedNameChars = `/\:*?"<>|`

// entryHeaderSize is the fixed portion of a serialized DirectoryEntry,
// before the name bytes: two u16 subtree offsets, DiskRegion (2x u32),
// file_size (u32), attributes (u8), name_length (u8).
const entryHeaderSize = 2 + 2 + 4 + 4 + 4 + 1 + 1

// DirectoryEntry is the decoded form of one on-disk directory record.
type DirectoryEntry struct {
	Left       uint16
	Right      uint16
	Data       DiskRegion
	FileSize   uint32
	Attributes Attributes
	Name       string
}

// IsDir reports whether this entry names a subdirectory.
func (e DirectoryEntry) IsDir() bool {
	return e.Attributes.IsDir()
}

// paddedEntryLen returns the serialized length of a DirectoryEntry with the
// given name length, rounded up to a 4-byte boundary, per §4.H step 3.
func paddedEntryLen(nameLen int) int {
	n := entryHeaderSize + nameLen
	return (n + 3) &^ 3
}

// validateName checks a filename against the codec's rejection rules
// (§4.B): empty, oversized, containing a reserved character, or carrying a
// non-ASCII byte (§3 "ASCII only"; §9 "names containing [non-ASCII bytes]
// are rejected at insertion").
func validateName(name string) error {
	if len(name) == 0 {
		return ErrInvalidFileName
	}
	if len(name) > 255 {
		return ErrNameTooLong
	}
	if strings.ContainsAny(name, reservedNameChars) {
		return ErrInvalidFileName
	}
	for i := 0; i < len(name); i++ {
		if name[i] >= 0x80 {
			return ErrStringEncoding
		}
	}
	return nil
}

// foldName applies the XDVDFS collation: ASCII-only case folding, A-Z to
// a-z, with non-ASCII bytes compared as-is (§9 Design Notes).
func foldName(name string) string {
	b := []byte(name)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return name
	}
	return string(b)
}

// compareNames orders two names under the XDVDFS collation: negative if a
// sorts before b, zero if equal, positive if a sorts after b.
func compareNames(a, b string) int {
	return strings.Compare(foldName(a), foldName(b))
}

// EncodeDirectoryEntry serializes e, including padding to a 4-byte
// boundary with 0xFF, as required by §6. left/right fields are written
// verbatim from e.Left/e.Right; callers (the directory-table builder) are
// responsible for patching them to the correct offsets beforehand.
func EncodeDirectoryEntry(e DirectoryEntry) ([]byte, error) {
	if err := validateName(e.Name); err != nil {
		return nil, err
	}

	total := paddedEntryLen(len(e.Name))
	buf := make([]byte, total)

	binary.LittleEndian.PutUint16(buf[0:2], e.Left)
	binary.LittleEndian.PutUint16(buf[2:4], e.Right)
	binary.LittleEndian.PutUint32(buf[4:8], e.Data.Sector)
	binary.LittleEndian.PutUint32(buf[8:12], e.Data.Size)
	binary.LittleEndian.PutUint32(buf[12:16], e.FileSize)
	buf[16] = byte(e.Attributes)
	buf[17] = byte(len(e.Name))
	copy(buf[18:18+len(e.Name)], e.Name)
	for i := 18 + len(e.Name); i < total; i++ {
		buf[i] = 0xFF
	}

	return buf, nil
}

// DecodeDirectoryEntry parses one DirectoryEntry from the start of buf,
// enforcing the codec's rejection rules, and returns the entry along with
// the number of bytes it (including padding) occupies.
//
// tableSize bounds how far the padded record may extend; a record that
// would run past it is rejected with ErrSerializationFailed.
func DecodeDirectoryEntry(buf []byte, tableSize int) (DirectoryEntry, int, error) {
	if len(buf) < entryHeaderSize {
		return DirectoryEntry{}, 0, ErrSerializationFailed
	}

	nameLen := int(buf[17])
	if nameLen == 0 {
		return DirectoryEntry{}, 0, ErrInvalidFileName
	}

	total := paddedEntryLen(nameLen)
	if total > tableSize || len(buf) < total {
		return DirectoryEntry{}, 0, ErrSerializationFailed
	}

	name := string(buf[18 : 18+nameLen])
	if err := validateName(name); err != nil {
		return DirectoryEntry{}, 0, err
	}

	e := DirectoryEntry{
		Left:  binary.LittleEndian.Uint16(buf[0:2]),
		Right: binary.LittleEndian.Uint16(buf[2:4]),
		Data: DiskRegion{
			Sector: binary.LittleEndian.Uint32(buf[4:8]),
			Size:   binary.LittleEndian.Uint32(buf[8:12]),
		},
		FileSize:   binary.LittleEndian.Uint32(buf[12:16]),
		Attributes: Attributes(buf[16]),
		Name:       name,
	}

	return e, total, nil
}

// VolumeDescriptor is the decoded single-sector header anchoring an image.
type VolumeDescriptor struct {
	RootTable    DirectoryEntryTable
	CreationTime uint64 // Windows FILETIME, 100ns ticks since 1601-01-01 UTC
}

// EncodeVolumeDescriptor serializes v into a full SectorSize-byte sector,
// per §6: magic, root sector, root size, creation time, zero padding, magic.
func EncodeVolumeDescriptor(v VolumeDescriptor) []byte {
	buf := make([]byte, SectorSize)
	copy(buf[0:20], VolumeMagic)
	binary.LittleEndian.PutUint32(buf[20:24], v.RootTable.Region.Sector)
	binary.LittleEndian.PutUint32(buf[24:28], v.RootTable.Region.Size)
	binary.LittleEndian.PutUint64(buf[28:36], v.CreationTime)
	// buf[36:2028] is reserved and left zero.
	copy(buf[2028:2048], VolumeMagic)
	return buf
}

// DecodeVolumeDescriptor parses a sector previously produced by
// EncodeVolumeDescriptor, failing with ErrInvalidVolume if either magic
// string does not match.
func DecodeVolumeDescriptor(buf []byte) (VolumeDescriptor, error) {
	if len(buf) != SectorSize {
		return VolumeDescriptor{}, ErrInvalidVolume
	}
	if string(buf[0:20]) != VolumeMagic || string(buf[2028:2048]) != VolumeMagic {
		return VolumeDescriptor{}, ErrInvalidVolume
	}

	v := VolumeDescriptor{
		RootTable: DirectoryEntryTable{Region: DiskRegion{
			Sector: binary.LittleEndian.Uint32(buf[20:24]),
			Size:   binary.LittleEndian.Uint32(buf[24:28]),
		}},
		CreationTime: binary.LittleEndian.Uint64(buf[28:36]),
	}
	return v, nil
}
