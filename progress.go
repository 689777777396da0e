package xdvdfs

// ProgressKind tags a ProgressEvent emitted by the image builder (§4.J).
type ProgressKind int

const (
	// DiscoveredDirectory reports one directory found during the initial
	// source-tree walk, before any allocation happens. Count is the
	// cumulative number of directories discovered so far.
	DiscoveredDirectory ProgressKind = iota

	// FileCount reports the final total number of files to pack, emitted
	// once discovery completes.
	FileCount

	// DirCount reports the final total number of directories to pack,
	// emitted once discovery completes.
	DirCount

	// DirAdded reports that a directory's table has been written to its
	// allocated sector. Path and Sector are set.
	DirAdded

	// FileAdded reports that a file's contents have been copied to its
	// allocated sector run. Path and Sector are set.
	FileAdded

	// FinishedCopyingImageData is emitted once every directory table and
	// file body has been written, before the volume descriptor is.
	FinishedCopyingImageData

	// FinishedPacking is emitted last, after the volume descriptor has
	// been written.
	FinishedPacking
)

// ProgressEvent is one tagged notification from the image builder. Which
// fields are meaningful depends on Kind; see the ProgressKind constants.
//
// A single concrete type (rather than one type per Kind) is enough here:
// unlike a borrow-checked implementation, nothing in an event needs a
// lifetime tied to the builder's internal state, so there is no need for
// a separate "owned" variant for delivery off the packing goroutine.
type ProgressEvent struct {
	Kind   ProgressKind
	Count  int
	Path   string
	Sector uint32
}

// ProgressObserver receives ProgressEvents from a pack operation. Observe
// must not block significantly or retain p's Path string beyond the call if
// it plans to mutate the backing array (strings are immutable in Go, so in
// practice this is never a concern, but Observe should still return quickly
// since the builder calls it synchronously on its own goroutine, never
// concurrently).
type ProgressObserver interface {
	Observe(p ProgressEvent)
}

// ProgressFunc adapts a plain function to a ProgressObserver, mirroring the
// standard library's http.HandlerFunc pattern.
type ProgressFunc func(ProgressEvent)

// Observe calls f(p).
func (f ProgressFunc) Observe(p ProgressEvent) {
	f(p)
}

// discardProgress is the default observer used when PackOptions specifies
// none: it drops every event.
type discardProgress struct{}

func (discardProgress) Observe(ProgressEvent) {}
