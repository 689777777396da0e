package xdvdfs

import (
	"io"
	"io/fs"
	"sort"
)

// SourceEntry is one directory entry as reported by a SourceFS (§4.E).
type SourceEntry struct {
	Name  string
	IsDir bool
	Size  uint64
}

// SourceFS is the image builder's input abstraction (§4.E): a uniform,
// read-only view over either a host directory or an existing XDVDFS image.
type SourceFS interface {
	// ListEntries returns path's children in XDVDFS collation order.
	// path is "" for the source root.
	ListEntries(path string) ([]SourceEntry, error)

	// CopyFile streams path's file contents to dev starting at destSector,
	// returning the number of bytes written (which must equal the size
	// reported by ListEntries).
	CopyFile(path string, destSector uint32, dev WriteDevice) (uint64, error)
}

func sortSourceEntries(entries []SourceEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return compareNames(entries[i].Name, entries[j].Name) < 0
	})
}

// HostSource is a SourceFS backed by a host directory, grounded on the
// teacher's fs.FS integration (writer.go's SetSourceFS/Add, designed to be
// driven by fs.WalkDir).
type HostSource struct {
	fsys fs.FS
}

// NewHostSource wraps fsys (e.g. os.DirFS(dir)) as a packing source.
func NewHostSource(fsys fs.FS) *HostSource {
	return &HostSource{fsys: fsys}
}

func (h *HostSource) ListEntries(path string) ([]SourceEntry, error) {
	p := path
	if p == "" {
		p = "."
	}

	ents, err := fs.ReadDir(h.fsys, p)
	if err != nil {
		return nil, wrapIOErr("readdir", err)
	}

	out := make([]SourceEntry, 0, len(ents))
	for _, e := range ents {
		info, err := e.Info()
		if err != nil {
			return nil, wrapIOErr("stat", err)
		}
		out = append(out, SourceEntry{Name: e.Name(), IsDir: e.IsDir(), Size: uint64(info.Size())})
	}
	sortSourceEntries(out)
	return out, nil
}

// hostCopyBufferSize sizes the read/write loop in CopyFile; fs.File.Read is
// already OS-buffered, so unlike ImageSource this is not exposed as a
// tunable (§4.E only calls out the image-to-image copy buffer as tunable).
const hostCopyBufferSize = 1 << 20

func (h *HostSource) CopyFile(path string, destSector uint32, dev WriteDevice) (uint64, error) {
	f, err := h.fsys.Open(path)
	if err != nil {
		return 0, wrapIOErr("open", err)
	}
	defer f.Close()

	buf := make([]byte, hostCopyBufferSize)
	offset := int64(destSector) * SectorSize
	var total uint64

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := dev.WriteAt(buf[:n], offset); werr != nil {
				return total, wrapIOErr("write", werr)
			}
			offset += int64(n)
			total += uint64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return total, wrapIOErr("read", rerr)
		}
	}

	return total, nil
}

// defaultImageCopyBufferSize is ImageSource's default streaming-copy
// buffer (§4.E: "a tunable buffer (default 1 MiB)").
const defaultImageCopyBufferSize = 1 << 20

// ImageSource is a SourceFS backed by a read device that already contains
// an XDVDFS image, used to repack an existing image (e.g. to change its
// sector layout or merge content). Grounded on the repack-from-image
// pattern in original_source's xdvdfs-web/src/fs/ciso.rs, adapted to read
// through this package's own Volume/DirWalker instead of a CISO container.
type ImageSource struct {
	dev     ReadDevice
	vol     *Volume
	bufSize int
}

// ImageSourceOption configures an ImageSource.
type ImageSourceOption func(*ImageSource)

// WithCopyBufferSize overrides ImageSource's default 1 MiB copy buffer.
func WithCopyBufferSize(n int) ImageSourceOption {
	return func(s *ImageSource) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// NewImageSource opens dev as an XDVDFS image to use as a packing source.
func NewImageSource(dev ReadDevice, opts ...ImageSourceOption) (*ImageSource, error) {
	vol, err := OpenVolume(dev)
	if err != nil {
		return nil, err
	}

	s := &ImageSource{dev: vol.ReadDevice(dev), vol: vol, bufSize: defaultImageCopyBufferSize}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ImageSource) resolveDir(path string) (DirectoryEntryTable, error) {
	if path == "" {
		return s.vol.Root, nil
	}

	entry, table, err := ResolvePath(s.dev, s.vol.Root, path)
	if err == ErrNoDirent {
		return s.vol.Root, nil
	}
	if err != nil {
		return DirectoryEntryTable{}, err
	}
	if !entry.IsDir() {
		return DirectoryEntryTable{}, ErrIsNotDirectory
	}
	return table, nil
}

func (s *ImageSource) ListEntries(path string) ([]SourceEntry, error) {
	table, err := s.resolveDir(path)
	if err != nil {
		return nil, err
	}

	refs, err := ListDir(s.dev, table)
	if err != nil {
		return nil, err
	}

	out := make([]SourceEntry, len(refs))
	for i, r := range refs {
		out[i] = SourceEntry{Name: r.Entry.Name, IsDir: r.Entry.IsDir(), Size: uint64(r.Entry.FileSize)}
	}
	sortSourceEntries(out)
	return out, nil
}

func (s *ImageSource) CopyFile(path string, destSector uint32, dev WriteDevice) (uint64, error) {
	entry, _, err := ResolvePath(s.dev, s.vol.Root, path)
	if err != nil && err != ErrNoDirent {
		return 0, err
	}
	if entry.Data.IsEmpty() {
		return 0, nil
	}

	buf := make([]byte, s.bufSize)
	srcOff := int64(entry.Data.Sector) * SectorSize
	dstOff := int64(destSector) * SectorSize
	remaining := uint64(entry.Data.Size)
	var total uint64

	for remaining > 0 {
		n := uint64(len(buf))
		if n > remaining {
			n = remaining
		}

		if _, err := s.dev.ReadAt(buf[:n], srcOff); err != nil && err != io.EOF {
			return total, wrapIOErr("read", err)
		}
		if _, err := dev.WriteAt(buf[:n], dstOff); err != nil {
			return total, wrapIOErr("write", err)
		}

		srcOff += int64(n)
		dstOff += int64(n)
		remaining -= n
		total += n
	}

	return total, nil
}
