package xdvdfs

// firstDataSector is the first sector available for allocation: 0..=31 are
// reserved for headers/preamble and 32 holds the volume descriptor (§3).
const firstDataSector = 33

// sectorAllocator is a monotonic sector cursor used by the image builder.
// It never frees allocations; grounded on the simple counter design in
// xdvdfs-core/src/write/sector.rs (see original_source), extended here to
// report its high-water mark for the final image length.
type sectorAllocator struct {
	next uint64
}

func newSectorAllocator() *sectorAllocator {
	return &sectorAllocator{next: firstDataSector}
}

// allocateContiguous returns the first sector of a run big enough to hold
// bytes, rounded up to whole sectors, and advances the cursor. A request
// for zero bytes returns the current cursor without advancing it.
func (a *sectorAllocator) allocateContiguous(bytes uint64) uint32 {
	if bytes == 0 {
		return uint32(a.next)
	}
	sectors := (bytes + SectorSize - 1) / SectorSize
	sector := a.next
	a.next += sectors
	return uint32(sector)
}

// highWater returns the first sector never handed out, i.e. the minimum
// final image length in sectors.
func (a *sectorAllocator) highWater() uint64 {
	return a.next
}
