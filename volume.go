package xdvdfs

import "log"

// xgdOrigins are the recognized byte offsets of the XDVDFS filesystem
// within an XGD image, probed in this fixed order (§6, §9 Open Question b).
// 0 is a pure XISO; the others are known XGD preamble sizes.
var xgdOrigins = []int64{0, 0x18300000, 0x2090000}

// Volume is a successfully opened XDVDFS image: its root directory table
// and the byte origin at which the filesystem was found.
type Volume struct {
	Root       DirectoryEntryTable
	Origin     int64
	Descriptor VolumeDescriptor
}

// OpenVolume reads sector 32 and verifies both magic strings (§4.D). On
// mismatch it probes the known XGD offset prefixes in turn. It fails with
// ErrInvalidVolume if no origin yields a valid descriptor.
func OpenVolume(dev ReadDevice) (*Volume, error) {
	buf := make([]byte, SectorSize)

	for _, origin := range xgdOrigins {
		abs := origin + VolumeDescriptorSector*SectorSize
		n, err := dev.ReadAt(buf, abs)
		if err != nil || n < SectorSize {
			continue
		}

		vd, err := DecodeVolumeDescriptor(buf)
		if err != nil {
			continue
		}

		log.Printf("xdvdfs: volume descriptor found at origin 0x%x", origin)
		return &Volume{Root: vd.RootTable, Origin: origin, Descriptor: vd}, nil
	}

	return nil, ErrInvalidVolume
}

// ReadDevice returns dev wrapped so that virtual sector 0 maps to this
// volume's detected origin, for callers that want to keep reading through
// the directory reader without re-deriving the origin offset themselves.
func (v *Volume) ReadDevice(dev ReadDevice) ReadDevice {
	return WithOffsetRead(dev, v.Origin)
}
