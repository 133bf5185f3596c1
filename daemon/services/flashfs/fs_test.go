package flashfs

import (
	"bytes"
	"testing"

	"github.com/kdys14/smokehouse-controller/daemon/domain"
)

// memBacking is an in-memory Backing for tests, standing in for the
// os.File-backed flash image.
type memBacking struct {
	data []byte
}

func newMemBacking(size int) *memBacking {
	b := make([]byte, size)
	for i := range b {
		b[i] = 0xFF
	}
	return &memBacking{data: b}
}

func (m *memBacking) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.data[off:])
	return n, nil
}

func (m *memBacking) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.data[off:], p)
	return n, nil
}

func newTestFS() (*FlashFS, *domain.RecursiveMutex) {
	mu := &domain.RecursiveMutex{}
	backing := newMemBacking(16 * 1024 * 1024)
	return New(backing, mu, NoopTFTDrawer{}), mu
}

func TestFormatThenLoadStartsEmpty(t *testing.T) {
	fs, _ := newTestFS()
	if err := fs.Format(); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if fs.liveEntryCount() != 0 {
		t.Errorf("liveEntryCount = %d, want 0", fs.liveEntryCount())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	data := []byte("hello smokehouse profile contents")
	if err := fs.WriteFile("/profiles/test.txt", data); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := fs.ReadFile("/profiles/test.txt", 0)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadFile() = %q, want %q", got, data)
	}
}

func TestWriteDeleteExists(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	fs.WriteFile("/profiles/a.txt", []byte("A"))
	if err := fs.Delete("/profiles/a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if fs.Exists("/profiles/a.txt") {
		t.Error("expected file to not exist after delete")
	}
}

func TestWriteTwiceSamePayloadOneLiveSlot(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	fs.WriteFile("/profiles/a.txt", []byte("same"))
	fs.WriteFile("/profiles/a.txt", []byte("same"))

	if fs.liveEntryCount() != 1 {
		t.Errorf("liveEntryCount = %d, want 1", fs.liveEntryCount())
	}
	got, err := fs.ReadFile("/profiles/a.txt", 0)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "same" {
		t.Errorf("ReadFile() = %q, want %q", got, "same")
	}
}

func TestWriteReplaceKeepsOneLiveSlot(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	fs.WriteFile("/profiles/a.txt", []byte("first"))
	fs.WriteFile("/profiles/a.txt", []byte("second, a longer payload"))

	if fs.liveEntryCount() != 1 {
		t.Errorf("liveEntryCount = %d, want 1", fs.liveEntryCount())
	}
	got, _ := fs.ReadFile("/profiles/a.txt", 0)
	if string(got) != "second, a longer payload" {
		t.Errorf("ReadFile() = %q, want replaced contents", got)
	}
}

func TestFATCorruptionRecoversFromShadow(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()
	fs.WriteFile("/profiles/a.txt", []byte("A"))
	fs.WriteFile("/profiles/b.txt", []byte("B"))
	fs.WriteFile("/profiles/c.txt", []byte("C"))

	if fs.liveEntryCount() != 3 {
		t.Fatalf("setup failed: liveEntryCount = %d, want 3", fs.liveEntryCount())
	}

	// Corrupt the primary FAT's magic, leaving shadow intact.
	corrupt := make([]byte, 4)
	corrupt[0], corrupt[1], corrupt[2], corrupt[3] = 0xEF, 0xBE, 0xAD, 0xDE
	fs.backing.WriteAt(corrupt, 0)

	fresh := New(fs.backing, &domain.RecursiveMutex{}, NoopTFTDrawer{})
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fresh.primaryFATOK {
		t.Error("expected primaryFATOK = false after corruption")
	}
	if !fresh.usedShadowFAT {
		t.Error("expected usedShadowFAT = true")
	}
	if fresh.liveEntryCount() != 3 {
		t.Errorf("liveEntryCount = %d, want 3 (recovered from shadow)", fresh.liveEntryCount())
	}

	// Primary should have been rewritten and now pass its own magic check.
	primary, _ := fresh.readSector(0)
	header := decodeHeader(primary)
	if header.Magic != 0x46415432 {
		t.Errorf("primary magic = %#x after rewrite, want 0x46415432", header.Magic)
	}
}

func TestAtomicReplaceSurvivesPowerLossBeforeFATPersist(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()
	fs.WriteFile("/profiles/X", []byte("A"))

	// Simulate power loss after data is written but before the FAT
	// shadow/primary persist step: directly erase+write the new payload's
	// sectors without calling through WriteFile, leaving the original FAT
	// (pointing at the old sectors) untouched.
	idx, oldEntry := fs.lookup("/profiles/X")
	if oldEntry == nil {
		t.Fatal("setup: old entry not found")
	}
	oldEntryCopy := fs.entries[idx]

	newStart, found := fs.findContiguousFree(2, 101, 1, -1)
	if !found {
		t.Fatal("setup: no free sector found")
	}
	fs.eraseSectors(newStart, 1)
	fs.writePages(newStart, []byte("BBBB..."))
	// Deliberately do NOT update the FAT — this models the crash window.

	// Reboot: reload FAT from the (unmodified) on-disk primary/shadow.
	fresh := New(fs.backing, &domain.RecursiveMutex{}, NoopTFTDrawer{})
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got, err := fresh.ReadFile("/profiles/X", 0)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "A" {
		t.Errorf("ReadFile() = %q, want old contents %q", got, "A")
	}

	for _, e := range fresh.entries {
		if e.Valid == ValidTombstone && int(e.StartSector) == newStart {
			t.Error("found a tombstone pointing into the new (uncommitted) sectors")
		}
	}
	_ = oldEntryCopy
}

func TestPartitionGuardRejectsOversizedFile(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	big := make([]byte, (100+1)*4096) // exceeds MaxFileSectors regardless of partition
	if err := fs.WriteFile("/profiles/huge.bin", big); err == nil {
		t.Error("expected error writing a file exceeding MaxFileSectors")
	}
}

func TestAppendTruncatesFromHead(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	fs.WriteFile("/logs/run.log", bytes.Repeat([]byte("x"), 6000))
	if err := fs.Append("/logs/run.log", bytes.Repeat([]byte("y"), 6000)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	got, _ := fs.ReadFile("/logs/run.log", 0)
	if len(got) != 4096 {
		t.Errorf("len(got) = %d, want 4096 (AppendTruncateKeep)", len(got))
	}
}

func TestMkdirAndDirExists(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	if fs.DirExists("/profiles/sub") {
		t.Error("expected dir to not exist yet")
	}
	if err := fs.Mkdir("/profiles/sub"); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}
	if !fs.DirExists("/profiles/sub") {
		t.Error("expected dir to exist after Mkdir")
	}
}

func TestListExcludesDirMarker(t *testing.T) {
	fs, _ := newTestFS()
	fs.Format()

	fs.Mkdir("/profiles/sub")
	fs.WriteFile("/profiles/sub/a.txt", []byte("a"))

	names := fs.List("/profiles/sub/")
	for _, n := range names {
		if n == "/profiles/sub/.dir" {
			t.Error("List() should exclude the .dir marker")
		}
	}
	found := false
	for _, n := range names {
		if n == "/profiles/sub/a.txt" {
			found = true
		}
	}
	if !found {
		t.Error("expected /profiles/sub/a.txt in List() results")
	}
}
