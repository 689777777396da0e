package xdvdfs

import (
	"errors"
	"testing"
)

// writeTable packs entries into a directory table, writes it to dev at
// sector, and returns the table region describing it.
func writeTable(t *testing.T, dev *BufferDevice, sector uint32, entries []dirBuildEntry) DirectoryEntryTable {
	t.Helper()
	buf, err := buildDirectoryTable(entries)
	if err != nil {
		t.Fatalf("buildDirectoryTable failed: %s", err)
	}
	if buf == nil {
		return DirectoryEntryTable{}
	}
	if _, err := dev.WriteAt(buf, int64(sector)*SectorSize); err != nil {
		t.Fatalf("WriteAt failed: %s", err)
	}
	return DirectoryEntryTable{Region: DiskRegion{Sector: sector, Size: uint32(len(buf))}}
}

func TestDirWalkerSingleFile(t *testing.T) {
	dev := NewBufferDevice()
	table := writeTable(t, dev, 33, []dirBuildEntry{
		{Name: "a", FileSize: 1, Data: DiskRegion{Sector: 34, Size: 1}},
	})

	refs, err := ListDir(dev, table)
	if err != nil {
		t.Fatalf("ListDir failed: %s", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d entries, want 1", len(refs))
	}
	if refs[0].Entry.Name != "a" || refs[0].Entry.Left != NoChild || refs[0].Entry.Right != NoChild {
		t.Errorf("entry = %+v, want leaf 'a'", refs[0].Entry)
	}
}

func TestLookupNameCaseInsensitive(t *testing.T) {
	dev := NewBufferDevice()
	table := writeTable(t, dev, 33, []dirBuildEntry{
		{Name: "Foo", Data: DiskRegion{Sector: 34, Size: 10}, IsDir: false, FileSize: 10},
	})

	entry, err := LookupName(dev, table, "foo")
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %s", err)
	}
	if entry.Name != "Foo" {
		t.Errorf("got name %q, want case-preserved %q", entry.Name, "Foo")
	}

	if _, err := LookupName(dev, table, "bar"); !errors.Is(err, ErrDoesNotExist) {
		t.Errorf("missing name: got %v, want ErrDoesNotExist", err)
	}
}

func TestLookupNameOnEmptyTableReturnsDirectoryEmpty(t *testing.T) {
	dev := NewBufferDevice()
	if _, err := LookupName(dev, DirectoryEntryTable{}, "a"); !errors.Is(err, ErrDirectoryEmpty) {
		t.Errorf("empty table: got %v, want ErrDirectoryEmpty", err)
	}
}

// TestListDirRejectsDuplicateFoldedNames hand-assembles a malformed table
// (bypassing buildDirectoryTable's own duplicate rejection) to check that
// reading one back still rejects it, per §4.C edge case 3.
func TestListDirRejectsDuplicateFoldedNames(t *testing.T) {
	dev := NewBufferDevice()

	off1 := paddedEntryLen(len("Foo"))
	e0 := DirectoryEntry{Left: NoChild, Right: uint16(off1 / 4), Name: "Foo", Attributes: AttrArchive}
	e1 := DirectoryEntry{Left: NoChild, Right: NoChild, Name: "foo", Attributes: AttrArchive}

	buf0, err := EncodeDirectoryEntry(e0)
	if err != nil {
		t.Fatalf("EncodeDirectoryEntry(e0) failed: %s", err)
	}
	buf1, err := EncodeDirectoryEntry(e1)
	if err != nil {
		t.Fatalf("EncodeDirectoryEntry(e1) failed: %s", err)
	}

	table := make([]byte, SectorSize)
	copy(table, buf0)
	copy(table[off1:], buf1)
	if _, err := dev.WriteAt(table, 33*SectorSize); err != nil {
		t.Fatalf("WriteAt failed: %s", err)
	}

	region := DirectoryEntryTable{Region: DiskRegion{Sector: 33, Size: uint32(len(table))}}
	if _, err := ListDir(dev, region); !errors.Is(err, ErrInvalidFileName) {
		t.Errorf("duplicate folded names: got %v, want ErrInvalidFileName", err)
	}
}

func TestResolvePathNestedAndNotADirectory(t *testing.T) {
	dev := NewBufferDevice()

	sub := writeTable(t, dev, 34, []dirBuildEntry{
		{Name: "b.txt", Data: DiskRegion{Sector: 36, Size: 3}, FileSize: 3},
	})
	root := writeTable(t, dev, 33, []dirBuildEntry{
		{Name: "sub", IsDir: true, Data: sub.Region},
		{Name: "a.txt", Data: DiskRegion{Sector: 37, Size: 3}, FileSize: 3},
	})

	entry, _, err := ResolvePath(dev, root, "sub/b.txt")
	if err != nil {
		t.Fatalf("ResolvePath(sub/b.txt) failed: %s", err)
	}
	if entry.Name != "b.txt" {
		t.Errorf("got %q, want b.txt", entry.Name)
	}

	_, _, err = ResolvePath(dev, root, "a.txt/b.txt")
	if !errors.Is(err, ErrIsNotDirectory) {
		t.Errorf("descending into a file: got %v, want ErrIsNotDirectory", err)
	}

	_, rootTable, err := ResolvePath(dev, root, "")
	if !errors.Is(err, ErrNoDirent) {
		t.Errorf("empty path: got %v, want ErrNoDirent", err)
	}
	if rootTable != root {
		t.Errorf("empty path should still resolve to the root table")
	}
}

func TestResolvePathRejectsDotDot(t *testing.T) {
	dev := NewBufferDevice()
	root := writeTable(t, dev, 33, []dirBuildEntry{
		{Name: "a.txt", Data: DiskRegion{Sector: 34, Size: 1}, FileSize: 1},
	})

	_, _, err := ResolvePath(dev, root, "../a.txt")
	if !errors.Is(err, ErrInvalidFileName) {
		t.Errorf("'..' component: got %v, want ErrInvalidFileName", err)
	}
}

func TestCollectTree(t *testing.T) {
	dev := NewBufferDevice()
	sub := writeTable(t, dev, 34, []dirBuildEntry{
		{Name: "inner.txt", Data: DiskRegion{Sector: 36, Size: 3}, FileSize: 3},
	})
	root := writeTable(t, dev, 33, []dirBuildEntry{
		{Name: "sub", IsDir: true, Data: sub.Region},
	})

	tree, err := CollectTree(dev, root)
	if err != nil {
		t.Fatalf("CollectTree failed: %s", err)
	}

	if len(tree[""]) != 1 || tree[""][0].Entry.Name != "sub" {
		t.Fatalf("root entries = %+v, want one entry 'sub'", tree[""])
	}
	if len(tree["/sub"]) != 1 || tree["/sub"][0].Entry.Name != "inner.txt" {
		t.Fatalf("/sub entries = %+v, want one entry 'inner.txt'", tree["/sub"])
	}
}
