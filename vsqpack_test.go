package vsqpack

import (
	"testing"

	"github.com/hxivmods/vsqpack/internal/sqlayout"
)

// Scenario 1: empty builder, freeze(strict=false): exactly one span, and
// read_data(0, 0, 1024) fills the buffer. With 1024-byte headers the whole
// buffer lies inside the SqpackHeader, so the zero check below covers no
// offsets for this buffer size.
func TestScenarioEmptyBuilder(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Freeze(false); err != nil {
		t.Fatal(err)
	}
	if v.SpanCount() != 1 {
		t.Fatalf("expected exactly one (empty) span, got %d", v.SpanCount())
	}

	buf := make([]byte, 1024)
	n, err := v.ReadData(0, 0, buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1024 {
		t.Fatalf("expected to fill the buffer, got %d bytes", n)
	}
	for i := sqlayout.HeaderBytes; i < len(buf); i++ {
		if buf[i] != 0 {
			t.Fatalf("expected zeros past the fixed headers at offset %d, got %#x", i, buf[i])
		}
	}
}

// Scenario 2: one entry of size 7. After freeze, block_size=7, pad_size=121,
// spans[0].data_size=128, locator byte offset = header_bytes.
func TestScenarioSingleSmallEntry(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	spec := NewPathSpecFromFullPath("a/b.txt")
	p := newFixedProvider(spec, []byte("abcdefg"))
	if _, err := v.AddEntry(p, false); err != nil {
		t.Fatal(err)
	}
	if err := v.Freeze(false); err != nil {
		t.Fatal(err)
	}

	if v.DataSize(0) != uint64(sqlayout.HeaderBytes)+128 {
		t.Fatalf("expected data size header_bytes+128, got %d", v.DataSize(0))
	}

	buf := make([]byte, 7)
	n, err := v.ReadData(0, uint64(sqlayout.HeaderBytes), buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 || string(buf) != "abcdefg" {
		t.Fatalf("expected entry bytes at header_bytes offset, got %q (n=%d)", buf, n)
	}
}

// P1: read_data(data_file_index, locator.byte_offset, buf[0..s]) equals
// p.read(0, buf[0..s]).
func TestRoundTripReadEqualsProviderRead(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("the quick brown fox jumps over the lazy dog")
	p := newFixedProvider(NewPathSpecFromFullPath("x/y.bin"), want)
	if _, err := v.AddEntry(p, false); err != nil {
		t.Fatal(err)
	}
	if err := v.Freeze(true); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, len(want))
	n, err := v.ReadData(0, uint64(sqlayout.HeaderBytes), got)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(want) || string(got) != string(want) {
		t.Fatalf("round-trip mismatch: got %q want %q", got, want)
	}
}

// Scenario 3: two entries with the same (folder_hash, name_hash),
// overwrite=false then overwrite=true: result streams [Added,
// SkippedExisting] then [Replaced]; final entries.len == 1.
func TestScenarioCollisionThenReplace(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	spec := NewPathSpecFromFullPath("a/b.txt")
	p1 := newFixedProvider(spec, []byte("one"))
	p2 := newFixedProvider(spec, []byte("two"))

	r1, err := v.AddEntry(p1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(r1.Added) != 1 {
		t.Fatalf("expected Added, got %+v", r1)
	}

	r2, err := v.AddEntry(p2, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(r2.SkippedExisting) != 1 {
		t.Fatalf("expected SkippedExisting, got %+v", r2)
	}

	r3, err := v.AddEntry(p2, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(r3.Replaced) != 1 {
		t.Fatalf("expected Replaced, got %+v", r3)
	}
	if len(v.store.entries) != 1 {
		t.Fatalf("expected one entry after collision+replace, got %d", len(v.store.entries))
	}
}

// Scenario 4: three entries in folders A, A, B group into folder_entries of
// length 2. Run sizes are not checked here, since which folder sorts first
// depends on the folder hashes.
func TestScenarioFolderGrouping(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"folderA/one.txt", "folderA/two.txt", "folderB/three.txt"} {
		p := newFixedProvider(NewPathSpecFromFullPath(name), []byte(name))
		if _, err := v.AddEntry(p, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.Freeze(false); err != nil {
		t.Fatal(err)
	}
	if v.FolderCount() != 2 {
		t.Fatalf("expected 2 folder entries, got %d", v.FolderCount())
	}
}

// Scenario 5: bin-pack rollover. With max_file_size =
// sizeof(SqpackHeader)+sizeof(DataHeader)+256, adding three 200-byte entries
// yields three spans (each rounded to 256), data_file_index sequence 0,1,2.
func TestScenarioBinPackRollover(t *testing.T) {
	maxFileSize := uint64(sqlayout.HeaderBytes) + 256
	v, err := NewVirtualSqPack("ffxiv", "040000", maxFileSize)
	if err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, 200)
	var entries []EntryProvider
	for i := 0; i < 3; i++ {
		p := newFixedProvider(NewPathSpecFromFullPath(string(rune('a'+i))+".bin"), payload)
		entries = append(entries, p)
		if _, err := v.AddEntry(p, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.Freeze(false); err != nil {
		t.Fatal(err)
	}
	if v.SpanCount() != 3 {
		t.Fatalf("expected 3 spans, got %d", v.SpanCount())
	}
	for i, e := range v.store.entries {
		if e.dataFileIndex != uint32(i) {
			t.Fatalf("entry %d expected data_file_index %d, got %d", i, i, e.dataFileIndex)
		}
		if e.blockSize+e.padSize != 256 {
			t.Fatalf("entry %d expected block+pad == 256, got %d", i, e.blockSize+e.padSize)
		}
	}
	_ = entries
}

// P9: freeze called a second time raises DoubleFreeze.
func TestFreezeTwiceFails(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Freeze(false); err != nil {
		t.Fatal(err)
	}
	err = v.Freeze(false)
	if !isErr(err, ErrDoubleFreeze) {
		t.Fatalf("expected ErrDoubleFreeze, got %v", err)
	}
}

func TestReadBeforeFreezeFails(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	_, err = v.ReadIndex1(0, make([]byte, 8))
	if !isErr(err, ErrNotFrozen) {
		t.Fatalf("expected ErrNotFrozen, got %v", err)
	}
}

func TestAddAfterFreezeFails(t *testing.T) {
	v, err := NewVirtualSqPack("ffxiv", "040000", 2*1024*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Freeze(false); err != nil {
		t.Fatal(err)
	}
	_, err = v.AddEntry(newFixedProvider(NewPathSpecFromFullPath("a.txt"), nil), false)
	if !isErr(err, ErrFrozenMutation) {
		t.Fatalf("expected ErrFrozenMutation, got %v", err)
	}
}

func TestMaxFileSizeOverLimitRejected(t *testing.T) {
	_, err := NewVirtualSqPack("ffxiv", "040000", sqlayout.MaxFileSizeLimit+1)
	if !isErr(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func isErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
