package vmem

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// newTestFile creates a file of n zero bytes and opens it read-write.
func newTestFile(t *testing.T, n int) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backing.dat")
	if err := os.WriteFile(path, make([]byte, n), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestSharedFileWrite(t *testing.T) {
	page := PageSize()
	f := newTestFile(t, 3*page)

	m, err := New(3 * page).WithFlags(FlagShared).CommitFile(f, 0, ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Bytes()[1] = 0xDE
	if err := m.Flush(0, page); err != nil {
		t.Fatal(err)
	}

	// An independent descriptor must observe the write after a sync flush.
	got, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if got[1] != 0xDE {
		t.Fatalf("file byte 1 is %#x after flush, want 0xDE", got[1])
	}
}

func TestCopyOnWriteIsolation(t *testing.T) {
	page := PageSize()
	f := newTestFile(t, 3*page)

	m, err := New(3 * page).WithFlags(FlagCopyOnWrite).CommitFile(f, 0, ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.Sharing() != SharePrivate {
		t.Fatalf("sharing %v for copy-on-write request", m.Sharing())
	}
	m.Bytes()[0] = 0xBE

	got, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 0x00 {
		t.Fatalf("private write leaked to the file: byte 0 is %#x", got[0])
	}
	if m.Bytes()[0] != 0xBE {
		t.Fatal("private write lost")
	}
}

func TestFileContentsVisible(t *testing.T) {
	page := PageSize()
	f := newTestFile(t, page)
	want := bytes.Repeat([]byte{0x5A}, 64)
	if _, err := f.WriteAt(want, 128); err != nil {
		t.Fatal(err)
	}

	m, err := New(page).CommitFile(f, 0, ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if !bytes.Equal(m.Bytes()[128:128+64], want) {
		t.Fatal("mapped view does not show file contents")
	}
}

func TestFileTooSmall(t *testing.T) {
	page := PageSize()
	f := newTestFile(t, page)

	_, err := New(2 * page).CommitFile(f, 0, ProtRead)
	wantCode(t, err, ErrFileTooSmall)
}

func TestFileOffsetAlignment(t *testing.T) {
	page := PageSize()
	f := newTestFile(t, 4*page)

	_, err := New(page).CommitFile(f, 1, ProtRead)
	wantCode(t, err, ErrInvalidOffset)
}

func TestFileOffsetMapping(t *testing.T) {
	gran := AllocationGranularity()
	f := newTestFile(t, 2*gran+PageSize())
	if _, err := f.WriteAt([]byte{0xAB}, int64(gran)); err != nil {
		t.Fatal(err)
	}

	m, err := New(PageSize()).CommitFile(f, int64(gran), ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if m.FileOffset() != int64(gran) {
		t.Fatalf("file offset %d, want %d", m.FileOffset(), gran)
	}
	if m.Bytes()[0] != 0xAB {
		t.Fatalf("byte at offset start is %#x, want 0xAB", m.Bytes()[0])
	}
}

func TestSharedWriteNeedsWritableFile(t *testing.T) {
	page := PageSize()
	rw := newTestFile(t, page)
	ro, err := os.Open(rw.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()

	_, err = New(page).WithFlags(FlagShared).CommitFile(ro, 0, ProtReadWrite)
	wantCode(t, err, ErrPermissionDenied)
}

func TestSplitFileOffsets(t *testing.T) {
	page := PageSize()
	if AllocationGranularity() != page {
		t.Skip("split offset arithmetic below granularity")
	}
	f := newTestFile(t, 4*page)

	m, err := New(4 * page).WithFlags(FlagShared).CommitFile(f, 0, ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	high, err := m.SplitOff(page)
	if err != nil {
		t.Fatal(err)
	}
	defer high.Close()
	defer m.Close()

	if m.FileOffset() != 0 {
		t.Fatalf("low piece offset %d", m.FileOffset())
	}
	if high.FileOffset() != int64(page) {
		t.Fatalf("high piece offset %d, want %d", high.FileOffset(), page)
	}
	if high.File() != f {
		t.Fatal("high piece lost the file borrow")
	}
}

func TestAsyncFlush(t *testing.T) {
	page := PageSize()
	f := newTestFile(t, page)

	m, err := New(page).WithFlags(FlagShared).CommitFile(f, 0, ProtReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	m.Bytes()[0] = 0x7E
	// Only scheduling is guaranteed; the call itself must succeed.
	if err := m.FlushAsync(0, page); err != nil {
		t.Fatal(err)
	}
}
