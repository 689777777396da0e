package xdvdfs

import (
	"io"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/orcaman/writerseeker"
)

// ReadDevice is the read capability of the BlockDevice abstraction (§4.A):
// uniform random-access reads at absolute byte offsets. Any io.ReaderAt
// satisfies it, mirroring the teacher's "accept the narrowest stdlib
// interface" style (Superblock.fs is a plain io.ReaderAt in super.go).
type ReadDevice interface {
	ReadAt(p []byte, off int64) (int, error)
}

// WriteDevice is the write capability of the BlockDevice abstraction:
// uniform random-access writes plus the current image length. Pack does
// not serialize its writes: while copying file contents it calls WriteAt
// from several goroutines at once (for non-overlapping ranges), so WriteAt
// must be safe for concurrent use. Len is only called from Pack's own
// goroutine.
type WriteDevice interface {
	io.WriterAt
	Len() (int64, error)
}

// FileDevice adapts an *os.File to the ReadDevice/WriteDevice contracts.
// Use OpenFileDevice for read-only access to an existing image, and
// CreateFileDevice for building a new one with an atomic on-disk commit.
type FileDevice struct {
	f       *os.File
	pending *renameio.PendingFile
}

// OpenFileDevice opens path for reading, to be used as a ReadDevice by the
// volume reader / directory reader.
func OpenFileDevice(path string) (*FileDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapIOErr("open", err)
	}
	return &FileDevice{f: f}, nil
}

// CreateFileDevice prepares path for writing. Nothing is visible at path
// until Commit succeeds: the image is built in a sibling temp file and
// renamed into place atomically, so a failed or aborted pack never leaves
// a half-written image at the destination (§4.I failure handling says
// partial output is the caller's responsibility — this makes "do nothing"
// a valid, safe choice).
func CreateFileDevice(path string) (*FileDevice, error) {
	pf, err := renameio.NewPendingFile(path)
	if err != nil {
		return nil, wrapIOErr("create", err)
	}
	return &FileDevice{pending: pf}, nil
}

func (d *FileDevice) ReadAt(p []byte, off int64) (int, error) {
	n, err := d.f.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, wrapIOErr("read", err)
	}
	return n, err
}

func (d *FileDevice) WriteAt(p []byte, off int64) (int, error) {
	n, err := d.pending.WriteAt(p, off)
	if err != nil {
		return n, wrapIOErr("write", err)
	}
	return n, nil
}

func (d *FileDevice) Len() (int64, error) {
	fi, err := d.pending.Stat()
	if err != nil {
		return 0, wrapIOErr("stat", err)
	}
	return fi.Size(), nil
}

// Commit finalizes a device created with CreateFileDevice, atomically
// replacing the destination path with the built image. Calling Commit on a
// device opened with OpenFileDevice does nothing and returns nil.
func (d *FileDevice) Commit() error {
	if d.pending == nil {
		return nil
	}
	return wrapIOErr("commit", d.pending.CloseAtomicallyReplace())
}

// Close releases resources held by a read-only FileDevice. Callers of
// CreateFileDevice should call Commit instead.
func (d *FileDevice) Close() error {
	if d.f != nil {
		return d.f.Close()
	}
	if d.pending != nil {
		return d.pending.Cleanup()
	}
	return nil
}

// BufferDevice is an in-memory WriteDevice+ReadDevice, backed by a
// writerseeker.WriterSeeker. Used for tests and for callers that want to
// build or inspect an image entirely in memory (e.g. UI preview, round-trip
// tests).
type BufferDevice struct {
	mu   sync.Mutex
	ws   writerseeker.WriterSeeker
	size int64
}

// NewBufferDevice returns an empty in-memory block device.
func NewBufferDevice() *BufferDevice {
	return &BufferDevice{}
}

// WriteAt is safe for concurrent use: the image builder may copy several
// files' contents into the same device at once (§5), but writerseeker's
// Seek-then-Write pair is not otherwise safe for that, so the two are
// serialized under mu.
func (d *BufferDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.ws.Seek(off, io.SeekStart); err != nil {
		return 0, wrapIOErr("seek", err)
	}
	n, err := d.ws.Write(p)
	if err != nil {
		return n, wrapIOErr("write", err)
	}
	if end := off + int64(n); end > d.size {
		d.size = end
	}
	return n, nil
}

func (d *BufferDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	r := d.ws.BytesReader()
	d.mu.Unlock()
	return r.ReadAt(p, off)
}

func (d *BufferDevice) Len() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size, nil
}

// Bytes returns the image built so far as a byte slice.
func (d *BufferDevice) Bytes() []byte {
	d.mu.Lock()
	r := d.ws.BytesReader()
	d.mu.Unlock()
	buf := make([]byte, r.Size())
	_, _ = r.ReadAt(buf, 0)
	return buf
}

// NullDevice is a WriteDevice that discards all writes and only tracks the
// high-water mark of offset+len ever written. Used to compute the final
// image size (e.g. for UI estimation) without materializing any bytes
// (§9 Design Notes). Reads are not defined on it.
type NullDevice struct {
	mu   sync.Mutex
	size int64
}

// WriteAt is safe for concurrent use for the same reason BufferDevice.WriteAt
// is: Pack copies several files' contents at once (§5), and a NullDevice is
// as valid a pack target as any other WriteDevice.
func (d *NullDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if end := off + int64(len(p)); end > d.size {
		d.size = end
	}
	return len(p), nil
}

func (d *NullDevice) Len() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size, nil
}

// offsetRead translates a virtual read at sector 0 to a physical origin,
// for images prefixed by an XGD preamble (§3 Image offsets).
type offsetRead struct {
	under  ReadDevice
	origin int64
}

func (o *offsetRead) ReadAt(p []byte, off int64) (int, error) {
	return o.under.ReadAt(p, off+o.origin)
}

// offsetWrite is the write-side counterpart of offsetRead.
type offsetWrite struct {
	under  WriteDevice
	origin int64
}

func (o *offsetWrite) WriteAt(p []byte, off int64) (int, error) {
	return o.under.WriteAt(p, off+o.origin)
}

func (o *offsetWrite) Len() (int64, error) {
	n, err := o.under.Len()
	if err != nil {
		return 0, err
	}
	n -= o.origin
	if n < 0 {
		n = 0
	}
	return n, nil
}

// WithOffsetRead wraps dev so that virtual offset 0 maps to physical byte
// origin, as needed to read an XDVDFS filesystem embedded inside an XGD
// image at a non-zero origin.
func WithOffsetRead(dev ReadDevice, origin int64) ReadDevice {
	if origin == 0 {
		return dev
	}
	return &offsetRead{under: dev, origin: origin}
}

// WithOffsetWrite is the write-side counterpart of WithOffsetRead.
func WithOffsetWrite(dev WriteDevice, origin int64) WriteDevice {
	if origin == 0 {
		return dev
	}
	return &offsetWrite{under: dev, origin: origin}
}
