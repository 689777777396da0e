package xdvdfs

// SectorSize is the fixed addressable unit of an XDVDFS image.
const SectorSize = 2048

// DiskRegion is a contiguous byte span on the disk image, given by a sector
// number and a size in bytes. Grounded on xdvdfs-core/src/layout/region.rs
// (see original_source), re-expressed with Go's usual value-receiver struct
// idiom instead of a packed/derive-heavy Rust type.
type DiskRegion struct {
	Sector uint32
	Size   uint32
}

// IsEmpty reports whether the region has zero size.
func (r DiskRegion) IsEmpty() bool {
	return r.Size == 0
}

// Offset returns the absolute byte offset of o within the region. It fails
// with a *SizeOutOfBoundsError if o is not strictly less than r.Size.
func (r DiskRegion) Offset(o uint64) (uint64, error) {
	if o >= uint64(r.Size) {
		return 0, &SizeOutOfBoundsError{Offset: o, Size: r.Size}
	}
	return uint64(SectorSize)*uint64(r.Sector) + o, nil
}

// DirectoryEntryTable is a DiskRegion known to contain a serialized
// directory binary search tree rather than file data.
type DirectoryEntryTable struct {
	Region DiskRegion
}

// IsEmpty reports whether the table has no entries.
func (t DirectoryEntryTable) IsEmpty() bool {
	return t.Region.IsEmpty()
}

// Offset delegates to the underlying region.
func (t DirectoryEntryTable) Offset(o uint64) (uint64, error) {
	return t.Region.Offset(o)
}
