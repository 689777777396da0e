package xdvdfs_test

import (
	"errors"
	"testing"

	"github.com/dvdfsdev/xdvdfs"
)

func TestIOErrorUnwraps(t *testing.T) {
	dev, err := xdvdfs.OpenFileDevice("/nonexistent/path/that/does/not/exist")
	if err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
	if dev != nil {
		t.Error("expected a nil device on error")
	}

	var ioErr *xdvdfs.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *IOError, got %T: %s", err, err)
	}
	if ioErr.Op != "open" {
		t.Errorf("Op = %q, want %q", ioErr.Op, "open")
	}
	if errors.Unwrap(err) == nil {
		t.Error("IOError should unwrap to the underlying error")
	}
}

func TestSizeOutOfBoundsErrorMessage(t *testing.T) {
	err := &xdvdfs.SizeOutOfBoundsError{Offset: 11, Size: 7}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}
