package xdvdfs

import "io/fs"

// Attributes is the single-byte bitfield stored in each on-disk
// DirectoryEntry. Only Directory is load-bearing for traversal (§4.B); the
// remaining bits are carried for round-trip fidelity with images produced
// by other tools, the way the teacher's mode.go carries Unix mode bits it
// doesn't otherwise interpret.
type Attributes uint8

const (
	AttrReadOnly  Attributes = 0x01
	AttrHidden    Attributes = 0x02
	AttrSystem    Attributes = 0x04
	AttrDirectory Attributes = 0x10
	AttrArchive   Attributes = 0x20
	AttrNormal    Attributes = 0x80
)

// IsDir reports whether the directory bit is set.
func (a Attributes) IsDir() bool {
	return a&AttrDirectory != 0
}

// Mode returns an fs.FileMode carrying only the type bit implied by a.
func (a Attributes) Mode() fs.FileMode {
	if a.IsDir() {
		return fs.ModeDir
	}
	return 0
}

// attributesFor returns the Attributes the directory-table builder (§4.H)
// assigns to a freshly packed entry: Directory for directories, Archive for
// regular files, matching the convention used by existing XISO tooling.
func attributesFor(isDir bool) Attributes {
	if isDir {
		return AttrDirectory
	}
	return AttrArchive
}
