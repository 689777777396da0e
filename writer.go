package xdvdfs

import (
	"context"
	"fmt"
	"log"
	"math"

	"golang.org/x/sync/errgroup"
)

// defaultCopyConcurrency bounds how many files are copied at once by Pack.
// Grounded on the teacher's worker-pool sizing in writer.go, ported from a
// raw goroutine/channel pool to golang.org/x/sync/errgroup's SetLimit.
const defaultCopyConcurrency = 8

// PackOptions configures Pack. Use the With* functions below to set them.
// Pack starts from a discarding observer, a zero creation time and a copy
// concurrency of defaultCopyConcurrency.
type PackOptions struct {
	observer     ProgressObserver
	creationTime uint64
	concurrency  int
}

// PackOption mirrors the teacher's functional-option pattern (see the
// removed options.go/WriterOption).
type PackOption func(*PackOptions)

// WithProgressObserver routes Pack's progress events to o. The default is a
// no-op observer.
func WithProgressObserver(o ProgressObserver) PackOption {
	return func(p *PackOptions) { p.observer = o }
}

// WithCreationTime sets the volume descriptor's creation time, as a Windows
// FILETIME (100ns ticks since 1601-01-01 UTC). The default is zero.
func WithCreationTime(filetime uint64) PackOption {
	return func(p *PackOptions) { p.creationTime = filetime }
}

// WithCopyConcurrency bounds how many files Pack copies concurrently. n<=0
// means unbounded.
func WithCopyConcurrency(n int) PackOption {
	return func(p *PackOptions) { p.concurrency = n }
}

// packNode is one file or directory discovered from a SourceFS. Its assigned
// DiskRegion is not stored here: per §4.F/§4.I it lives in the path-prefix
// trie, keyed by path, and is set by the allocation passes and read back by
// the emission passes via trieNode/regionOf.
type packNode struct {
	name     string
	path     string // source-relative path, "" for root, no leading slash
	isDir    bool
	size     uint64
	trieNode *PathTrieNode[DiskRegion]
	children []*packNode // collation-ordered, populated for directories
}

// regionOf resolves n's assigned region by looking it up in trie by path
// (§4.I step 4: "resolve each child's assigned region (looked up by path in
// the trie)"), rather than reading packNode state directly.
func regionOf(trie *PathPrefixTree[DiskRegion], n *packNode) DiskRegion {
	region, _ := trie.Lookup(n.path)
	return region
}

func sourcePathJoin(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// displayPath renders a builder-internal source path in the slash-prefixed
// form used by ResolvePath/CollectTree, for progress reporting.
func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return "/" + path
}

// discoverTree walks src depth-first from the root, validating names and
// file sizes as it goes, and reports DiscoveredDirectory as each directory
// is found (§4.I step 1, §4.J). Every discovered entry is inserted into
// trie as it's found, via InsertChild on its parent's own trie node ("tail
// insertion", §4.F) rather than a full Insert from the root each time; its
// region is still unset (zero DiskRegion) until the allocation passes run.
func discoverTree(src SourceFS, trie *PathPrefixTree[DiskRegion], observer ProgressObserver) (root *packNode, nFiles, nDirs int, err error) {
	var walk func(path string, trieNode *PathTrieNode[DiskRegion]) (*packNode, error)
	walk = func(path string, trieNode *PathTrieNode[DiskRegion]) (*packNode, error) {
		entries, err := src.ListEntries(path)
		if err != nil {
			return nil, err
		}

		node := &packNode{path: path, isDir: true, trieNode: trieNode}
		nDirs++
		observer.Observe(ProgressEvent{Kind: DiscoveredDirectory, Count: nDirs})

		for _, e := range entries {
			if err := validateName(e.Name); err != nil {
				return nil, err
			}
			childPath := sourcePathJoin(path, e.Name)
			childTrieNode := trieNode.InsertChild(e.Name, DiskRegion{})

			if e.IsDir {
				child, err := walk(childPath, childTrieNode)
				if err != nil {
					return nil, err
				}
				child.name = e.Name
				node.children = append(node.children, child)
				continue
			}

			if e.Size > math.MaxUint32 {
				return nil, ErrFileTooLarge
			}
			nFiles++
			node.children = append(node.children, &packNode{
				name:     e.Name,
				path:     childPath,
				size:     e.Size,
				trieNode: childTrieNode,
			})
		}

		return node, nil
	}

	root, err = walk("", trie.Root())
	if err != nil {
		return nil, 0, 0, err
	}
	return root, nFiles, nDirs, nil
}

// allocateDirectories assigns every directory (root included) its table
// region, BFS from the root (§4.I step 2), and remembers the resulting
// DiskRegion in the directory's own trie node. Empty directories keep the
// zero DiskRegion, matching buildDirectoryTable's "no sectors for an empty
// directory" rule.
func allocateDirectories(root *packNode, alloc *sectorAllocator) error {
	queue := []*packNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if len(n.children) > 0 {
			names := make([]string, len(n.children))
			for i, c := range n.children {
				names[i] = c.name
			}
			size := directoryTableSize(names)
			if size > math.MaxUint32 {
				return ErrTooManyDirectoryEntries
			}
			n.trieNode.SetValue(DiskRegion{Sector: alloc.allocateContiguous(size), Size: uint32(size)})
		}

		for _, c := range n.children {
			if c.isDir {
				queue = append(queue, c)
			}
		}
	}
	return nil
}

// allocateFiles assigns every file its data region, visiting directories
// BFS and, within each, children in the collation order ListEntries already
// produced (§4.I step 3), remembering each result in the file's trie node.
func allocateFiles(root *packNode, alloc *sectorAllocator) {
	queue := []*packNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for _, c := range n.children {
			if c.isDir {
				queue = append(queue, c)
				continue
			}
			c.trieNode.SetValue(DiskRegion{Sector: alloc.allocateContiguous(c.size), Size: uint32(c.size)})
		}
	}
}

// emitDirectories serializes and writes every directory's table, BFS from
// the root, emitting DirAdded for each non-empty one (§4.I step 4). Each
// child's assigned region is resolved by path through trie rather than read
// off the packNode directly.
func emitDirectories(dev WriteDevice, root *packNode, trie *PathPrefixTree[DiskRegion], observer ProgressObserver) error {
	queue := []*packNode{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if len(n.children) > 0 {
			entries := make([]dirBuildEntry, len(n.children))
			for i, c := range n.children {
				entries[i] = dirBuildEntry{Name: c.name, IsDir: c.isDir, Data: regionOf(trie, c)}
				if !c.isDir {
					entries[i].FileSize = uint32(c.size)
				}
			}

			buf, err := buildDirectoryTable(entries)
			if err != nil {
				return err
			}
			region := regionOf(trie, n)
			if buf != nil {
				if _, err := dev.WriteAt(buf, int64(region.Sector)*SectorSize); err != nil {
					return wrapIOErr("write directory table", err)
				}
			}
			observer.Observe(ProgressEvent{Kind: DirAdded, Path: displayPath(n.path), Sector: region.Sector})
		}

		for _, c := range n.children {
			if c.isDir {
				queue = append(queue, c)
			}
		}
	}
	return nil
}

// emitFiles copies every file's contents from src to dev concurrently
// (§4.I step 5; §5 permits writes to non-overlapping sector runs in any
// order), resolving each file's assigned sector by path through trie.
// FileAdded events are buffered and replayed in discovery order once every
// copy completes, so the ordering guarantee in §4.J ("counts precede adds")
// holds regardless of goroutine scheduling.
func emitFiles(ctx context.Context, dev WriteDevice, src SourceFS, root *packNode, trie *PathPrefixTree[DiskRegion], observer ProgressObserver, concurrency int) error {
	var files []*packNode
	var collect func(n *packNode)
	collect = func(n *packNode) {
		for _, c := range n.children {
			if c.isDir {
				collect(c)
			} else {
				files = append(files, c)
			}
		}
	}
	collect(root)

	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			region := regionOf(trie, f)
			n, err := src.CopyFile(f.path, region.Sector, dev)
			if err != nil {
				return err
			}
			if n != f.size {
				return fmt.Errorf("xdvdfs: copied %d bytes for %q, expected %d: %w", n, f.path, f.size, ErrSerializationFailed)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range files {
		observer.Observe(ProgressEvent{Kind: FileAdded, Path: displayPath(f.path), Sector: regionOf(trie, f).Sector})
	}
	return nil
}

// ensureLength extends dev, if needed, so that it covers at least sectors
// sectors. A single zero byte at the last wanted offset is enough to grow a
// sparse FileDevice or BufferDevice without materializing the rest.
func ensureLength(dev WriteDevice, sectors uint64) error {
	want := int64(sectors) * SectorSize
	cur, err := dev.Len()
	if err != nil {
		return err
	}
	if cur >= want {
		return nil
	}
	if _, err := dev.WriteAt([]byte{0}, want-1); err != nil {
		return wrapIOErr("extend image", err)
	}
	return nil
}

// Pack builds a complete XDVDFS image on dev from src, following the
// pipeline in §4.I: discover, allocate directories, allocate files, emit
// directories, emit files, write the volume descriptor.
//
// The image always spans at least firstDataSector+1 sectors, so an empty
// source still produces a well-formed image with one (unused) data sector
// present past the volume descriptor.
func Pack(ctx context.Context, dev WriteDevice, src SourceFS, opts ...PackOption) error {
	cfg := PackOptions{observer: discardProgress{}, concurrency: defaultCopyConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}

	trie := NewPathPrefixTree[DiskRegion]()
	root, nFiles, nDirs, err := discoverTree(src, trie, cfg.observer)
	if err != nil {
		return err
	}
	cfg.observer.Observe(ProgressEvent{Kind: FileCount, Count: nFiles})
	cfg.observer.Observe(ProgressEvent{Kind: DirCount, Count: nDirs})

	alloc := newSectorAllocator()
	if err := allocateDirectories(root, alloc); err != nil {
		return err
	}
	allocateFiles(root, alloc)

	if err := emitDirectories(dev, root, trie, cfg.observer); err != nil {
		return err
	}
	if err := emitFiles(ctx, dev, src, root, trie, cfg.observer, cfg.concurrency); err != nil {
		return err
	}
	cfg.observer.Observe(ProgressEvent{Kind: FinishedCopyingImageData})

	vd := VolumeDescriptor{RootTable: DirectoryEntryTable{Region: regionOf(trie, root)}, CreationTime: cfg.creationTime}
	if _, err := dev.WriteAt(EncodeVolumeDescriptor(vd), VolumeDescriptorSector*SectorSize); err != nil {
		return wrapIOErr("write volume descriptor", err)
	}

	minSectors := alloc.highWater()
	if minSectors < firstDataSector+1 {
		minSectors = firstDataSector + 1
	}
	if err := ensureLength(dev, minSectors); err != nil {
		return err
	}

	cfg.observer.Observe(ProgressEvent{Kind: FinishedPacking})
	log.Printf("xdvdfs: packed %d files, %d directories", nFiles, nDirs)
	return nil
}
