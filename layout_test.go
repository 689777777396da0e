package xdvdfs_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dvdfsdev/xdvdfs"
)

func TestDirectoryEntryRoundTrip(t *testing.T) {
	want := xdvdfs.DirectoryEntry{
		Left:       xdvdfs.NoChild,
		Right:      5,
		Data:       xdvdfs.DiskRegion{Sector: 1234, Size: 5678},
		FileSize:   5678,
		Attributes: 0,
		Name:       "readme.txt",
	}

	buf, err := xdvdfs.EncodeDirectoryEntry(want)
	if err != nil {
		t.Fatalf("EncodeDirectoryEntry failed: %s", err)
	}
	if len(buf)%4 != 0 {
		t.Errorf("encoded entry length %d is not 4-byte aligned", len(buf))
	}

	got, n, err := xdvdfs.DecodeDirectoryEntry(buf, len(buf))
	if err != nil {
		t.Fatalf("DecodeDirectoryEntry failed: %s", err)
	}
	if n != len(buf) {
		t.Errorf("decoded length = %d, want %d", n, len(buf))
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDirectoryEntryMaxNameLength(t *testing.T) {
	name255 := strings.Repeat("a", 255)
	if _, err := xdvdfs.EncodeDirectoryEntry(xdvdfs.DirectoryEntry{Name: name255}); err != nil {
		t.Errorf("255-byte name should be accepted, got %s", err)
	}

	name256 := strings.Repeat("a", 256)
	_, err := xdvdfs.EncodeDirectoryEntry(xdvdfs.DirectoryEntry{Name: name256})
	if !errors.Is(err, xdvdfs.ErrNameTooLong) {
		t.Errorf("256-byte name: got %v, want ErrNameTooLong", err)
	}
}

func TestDirectoryEntryRejectsReservedChars(t *testing.T) {
	_, err := xdvdfs.EncodeDirectoryEntry(xdvdfs.DirectoryEntry{Name: "a/b"})
	if !errors.Is(err, xdvdfs.ErrInvalidFileName) {
		t.Errorf("name with '/': got %v, want ErrInvalidFileName", err)
	}
}

func TestDirectoryEntryRejectsNonASCII(t *testing.T) {
	_, err := xdvdfs.EncodeDirectoryEntry(xdvdfs.DirectoryEntry{Name: "caf\xe9.txt"})
	if !errors.Is(err, xdvdfs.ErrStringEncoding) {
		t.Errorf("non-ASCII name: got %v, want ErrStringEncoding", err)
	}
}

func TestVolumeDescriptorRoundTrip(t *testing.T) {
	want := xdvdfs.VolumeDescriptor{
		RootTable: xdvdfs.DirectoryEntryTable{Region: xdvdfs.DiskRegion{Sector: 33, Size: 2048}},
		CreationTime: 133000000000000000,
	}

	buf := xdvdfs.EncodeVolumeDescriptor(want)
	if len(buf) != xdvdfs.SectorSize {
		t.Fatalf("encoded volume descriptor is %d bytes, want %d", len(buf), xdvdfs.SectorSize)
	}

	got, err := xdvdfs.DecodeVolumeDescriptor(buf)
	if err != nil {
		t.Fatalf("DecodeVolumeDescriptor failed: %s", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestVolumeDescriptorRejectsBadMagic(t *testing.T) {
	buf := xdvdfs.EncodeVolumeDescriptor(xdvdfs.VolumeDescriptor{})
	buf[0] = 'X'

	_, err := xdvdfs.DecodeVolumeDescriptor(buf)
	if !errors.Is(err, xdvdfs.ErrInvalidVolume) {
		t.Errorf("corrupted magic: got %v, want ErrInvalidVolume", err)
	}
}
