package xdvdfs

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"time"
)

// FSView adapts an opened Volume to io/fs, so callers can use fs.WalkDir,
// fs.ReadFile, and friends against an XDVDFS image instead of calling
// ResolvePath/ListDir directly. Grounded on the teacher's file.go
// (Inode.OpenFile/File/FileDir/fileinfo), re-targeted at DirectoryEntry
// instead of an Inode.
type FSView struct {
	dev ReadDevice
	vol *Volume
}

var _ fs.FS = (*FSView)(nil)

// NewFSView opens dev as an XDVDFS image and returns an fs.FS over it.
func NewFSView(dev ReadDevice) (*FSView, error) {
	vol, err := OpenVolume(dev)
	if err != nil {
		return nil, err
	}
	return vol.FS(dev), nil
}

// FS returns an fs.FS view of v, reading through dev.
func (v *Volume) FS(dev ReadDevice) *FSView {
	return &FSView{dev: v.ReadDevice(dev), vol: v}
}

// Open implements fs.FS.
func (v *FSView) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	p := name
	if p == "." {
		p = ""
	}

	entry, table, err := ResolvePath(v.dev, v.vol.Root, p)
	if err == ErrNoDirent {
		root := DirectoryEntry{Attributes: AttrDirectory, Name: ".", FileSize: v.vol.Root.Region.Size}
		return &dirFile{fsv: v, table: v.vol.Root, entry: root, name: "."}, nil
	}
	if errors.Is(err, ErrDoesNotExist) || errors.Is(err, ErrDirectoryEmpty) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if entry.IsDir() {
		return &dirFile{fsv: v, table: table, entry: entry, name: name}, nil
	}

	base := int64(entry.Data.Sector) * SectorSize
	sec := io.NewSectionReader(&regionReaderAt{dev: v.dev, base: base}, 0, int64(entry.FileSize))
	return &file{SectionReader: sec, entry: entry, name: name}, nil
}

// regionReaderAt turns an absolute sector-relative read device into an
// io.ReaderAt with its own zero origin, as required by io.SectionReader.
type regionReaderAt struct {
	dev  ReadDevice
	base int64
}

func (r *regionReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.dev.ReadAt(p, r.base+off)
}

// file lets a regular DirectoryEntry be used as an fs.File (and, via its
// embedded SectionReader, an io.ReaderAt/io.Seeker).
type file struct {
	*io.SectionReader
	entry DirectoryEntry
	name  string
}

var _ fs.File = (*file)(nil)

func (f *file) Stat() (fs.FileInfo, error) {
	return &fileInfo{entry: f.entry, name: path.Base(f.name)}, nil
}

func (f *file) Close() error { return nil }

// dirFile lets a directory DirectoryEntry be used as an fs.ReadDirFile.
type dirFile struct {
	fsv     *FSView
	table   DirectoryEntryTable
	entry   DirectoryEntry
	name    string
	entries []fs.DirEntry
	offset  int
}

var _ fs.ReadDirFile = (*dirFile)(nil)

func (d *dirFile) Read(p []byte) (int, error) {
	return 0, fs.ErrInvalid
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{entry: d.entry, name: path.Base(d.name)}, nil
}

func (d *dirFile) Close() error {
	d.entries = nil
	return nil
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		refs, err := ListDir(d.fsv.dev, d.table)
		if err != nil {
			return nil, err
		}
		ents := make([]fs.DirEntry, len(refs))
		for i, r := range refs {
			ents[i] = dirEntry{entry: r.Entry}
		}
		sort.Slice(ents, func(i, j int) bool {
			return compareNames(ents[i].Name(), ents[j].Name()) < 0
		})
		d.entries = ents
	}

	if n <= 0 {
		rest := d.entries[d.offset:]
		d.offset = len(d.entries)
		return rest, nil
	}
	if d.offset >= len(d.entries) {
		return nil, io.EOF
	}
	end := d.offset + n
	if end > len(d.entries) {
		end = len(d.entries)
	}
	out := d.entries[d.offset:end]
	d.offset = end
	return out, nil
}

// dirEntry adapts a DirectoryEntry to fs.DirEntry.
type dirEntry struct {
	entry DirectoryEntry
}

var _ fs.DirEntry = dirEntry{}

func (d dirEntry) Name() string               { return d.entry.Name }
func (d dirEntry) IsDir() bool                 { return d.entry.IsDir() }
func (d dirEntry) Type() fs.FileMode           { return d.entry.Attributes.Mode() }
func (d dirEntry) Info() (fs.FileInfo, error)  { return &fileInfo{entry: d.entry, name: d.entry.Name}, nil }

// fileInfo adapts a DirectoryEntry to fs.FileInfo. XDVDFS directory entries
// carry no per-entry timestamp (only the volume descriptor has one), so
// ModTime is always the zero time.
type fileInfo struct {
	entry DirectoryEntry
	name  string
}

var _ fs.FileInfo = (*fileInfo)(nil)

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return int64(fi.entry.FileSize) }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.entry.Attributes.Mode() }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return fi.entry.IsDir() }
func (fi *fileInfo) Sys() any           { return fi.entry }
