package xdvdfs

import "io"

// maxEntryBytes is the largest a single serialized DirectoryEntry can be
// (255-byte name, padded): used to bound how much the reader speculatively
// reads before decoding.
const maxEntryBytes = entryHeaderSize + 255 + 3

// DirEntryRef pairs a decoded DirectoryEntry with its offset within the
// enclosing table, in 4-byte units (the same unit used by the on-disk
// Left/Right subtree pointers), per §4.C.
type DirEntryRef struct {
	Entry  DirectoryEntry
	Offset uint32
}

// readEntryAt decodes the DirectoryEntry whose on-disk offset within table
// is offsetUnits*4 bytes. Grounded on the teacher's dirReader/tableReader
// split (dir.go, tablereader.go): one narrow "read this node's bytes"
// primitive reused by every traversal entry point below.
func readEntryAt(dev ReadDevice, table DirectoryEntryTable, offsetUnits uint16) (DirectoryEntry, error) {
	byteOffset := uint64(offsetUnits) * 4
	abs, err := table.Offset(byteOffset)
	if err != nil {
		return DirectoryEntry{}, err
	}

	remaining := table.Region.Size - uint32(byteOffset)
	want := remaining
	if want > maxEntryBytes {
		want = maxEntryBytes
	}

	buf := make([]byte, want)
	n, err := dev.ReadAt(buf, int64(abs))
	if err != nil && err != io.EOF {
		return DirectoryEntry{}, wrapIOErr("read directory entry", err)
	}

	entry, _, err := DecodeDirectoryEntry(buf[:n], int(remaining))
	if err != nil {
		return DirectoryEntry{}, err
	}
	return entry, nil
}

// DirWalker performs a lazy preorder walk of one DirectoryEntryTable's
// binary search tree: visit node, recurse left, recurse right (§4.C).
// Restarting a walk (calling NewDirWalker again) reproduces the same
// sequence, since tables are immutable once built.
type DirWalker struct {
	dev   ReadDevice
	table DirectoryEntryTable
	stack []uint16
	err   error
}

// NewDirWalker starts a preorder walk of table, reading nodes from dev on
// demand as Next is called.
func NewDirWalker(dev ReadDevice, table DirectoryEntryTable) *DirWalker {
	w := &DirWalker{dev: dev, table: table}
	if !table.IsEmpty() {
		w.stack = []uint16{0}
	}
	return w
}

// Next returns the next entry in preorder, or ok=false once the tree is
// exhausted. Once an error is returned, every subsequent call returns the
// same error.
func (w *DirWalker) Next() (ref DirEntryRef, ok bool, err error) {
	if w.err != nil {
		return DirEntryRef{}, false, w.err
	}
	if len(w.stack) == 0 {
		return DirEntryRef{}, false, nil
	}

	offsetUnits := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	entry, err := readEntryAt(w.dev, w.table, offsetUnits)
	if err != nil {
		w.err = err
		return DirEntryRef{}, false, err
	}

	// Push right before left so left is visited first: a standard
	// stack-based preorder traversal.
	if entry.Right != NoChild {
		w.stack = append(w.stack, entry.Right)
	}
	if entry.Left != NoChild {
		w.stack = append(w.stack, entry.Left)
	}

	return DirEntryRef{Entry: entry, Offset: offsetUnits}, true, nil
}

// ListDir collects every entry of table via a full preorder walk. The
// order matches DirWalker.Next, i.e. preorder of the on-disk tree, not
// collation order (callers that need sorted output should sort the
// result; the tree itself is already collation-ordered for lookups).
//
// A table with two entries whose names fold to the same collation key is
// malformed (§4.C edge case: "entries with duplicate case-folded names in
// the same table are rejected on read") and is rejected with
// ErrInvalidFileName rather than silently returned.
func ListDir(dev ReadDevice, table DirectoryEntryTable) ([]DirEntryRef, error) {
	w := NewDirWalker(dev, table)
	var out []DirEntryRef
	seen := make(map[string]struct{})
	for {
		ref, ok, err := w.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		folded := foldName(ref.Entry.Name)
		if _, dup := seen[folded]; dup {
			return nil, ErrInvalidFileName
		}
		seen[folded] = struct{}{}
		out = append(out, ref)
	}
}

// LookupName descends the BST using the collation order, comparing name
// against each node and going left/right, per §4.C. It fails with
// ErrDirectoryEmpty if table has no entries at all, or ErrDoesNotExist at a
// NoChild sentinel.
func LookupName(dev ReadDevice, table DirectoryEntryTable, name string) (DirectoryEntry, error) {
	if table.IsEmpty() {
		return DirectoryEntry{}, ErrDirectoryEmpty
	}

	offsetUnits := uint16(0)
	for {
		entry, err := readEntryAt(dev, table, offsetUnits)
		if err != nil {
			return DirectoryEntry{}, err
		}

		switch c := compareNames(name, entry.Name); {
		case c == 0:
			return entry, nil
		case c < 0:
			if entry.Left == NoChild {
				return DirectoryEntry{}, ErrDoesNotExist
			}
			offsetUnits = entry.Left
		default:
			if entry.Right == NoChild {
				return DirectoryEntry{}, ErrDoesNotExist
			}
			offsetUnits = entry.Right
		}
	}
}

// ResolvePath splits path on '/' and repeatedly looks up each component
// starting at root, rejecting non-final components that are not
// directories (§4.C). The empty path ("" or "/") resolves to the root
// table itself: since the root has no containing DirectoryEntry, this
// returns ErrNoDirent alongside the valid root table, matching the spec's
// "success-adjacent" signal (§7).
func ResolvePath(dev ReadDevice, root DirectoryEntryTable, path string) (DirectoryEntry, DirectoryEntryTable, error) {
	parts, err := normalizePathComponents(path)
	if err != nil {
		return DirectoryEntry{}, DirectoryEntryTable{}, err
	}
	if len(parts) == 0 {
		return DirectoryEntry{}, root, ErrNoDirent
	}

	table := root
	var entry DirectoryEntry
	for i, name := range parts {
		entry, err = LookupName(dev, table, name)
		if err != nil {
			return DirectoryEntry{}, DirectoryEntryTable{}, err
		}

		if i < len(parts)-1 {
			if !entry.IsDir() {
				return DirectoryEntry{}, DirectoryEntryTable{}, ErrIsNotDirectory
			}
			table = DirectoryEntryTable{Region: entry.Data}
		}
	}

	subtable := DirectoryEntryTable{}
	if entry.IsDir() {
		subtable = DirectoryEntryTable{Region: entry.Data}
	}
	return entry, subtable, nil
}

// dirPathJoin joins a parent path (already using '/'-prefixed form, "" for
// root) and a child name into the child's path.
func dirPathJoin(parent, name string) string {
	if parent == "" {
		return "/" + name
	}
	return parent + "/" + name
}

// CollectTree produces a mapping from parent-directory path ("" for root)
// to its ordered entry list, by preorder over each directory in turn
// (§4.C recursive file-tree collection). Entry order within a directory
// matches DirWalker's preorder traversal of that directory.
func CollectTree(dev ReadDevice, root DirectoryEntryTable) (map[string][]DirEntryRef, error) {
	out := make(map[string][]DirEntryRef)
	type pending struct {
		path  string
		table DirectoryEntryTable
	}
	queue := []pending{{path: "", table: root}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := ListDir(dev, cur.table)
		if err != nil {
			return nil, err
		}
		out[cur.path] = entries

		for _, ref := range entries {
			if ref.Entry.IsDir() && !ref.Entry.Data.IsEmpty() {
				childPath := dirPathJoin(cur.path, ref.Entry.Name)
				queue = append(queue, pending{
					path:  childPath,
					table: DirectoryEntryTable{Region: ref.Entry.Data},
				})
			}
		}
	}

	return out, nil
}
