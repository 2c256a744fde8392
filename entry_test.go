package vsqpack

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStoreAddNewEntry(t *testing.T) {
	s := newStore()
	p := newFixedProvider(NewPathSpecFromFullPath("a/b.txt"), []byte("hello"))

	result := s.add(p, false)
	if len(result.Added) != 1 || result.Added[0] != p {
		t.Fatalf("expected Added=[p], got %+v", result)
	}
	if len(s.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(s.entries))
	}
}

// P6: calling add(p, overwrite=false) twice with the same path_spec yields
// exactly one Added and one SkippedExisting; map sizes are unchanged after
// the second call.
func TestStoreAddIdempotentNoOverwrite(t *testing.T) {
	s := newStore()
	spec := NewPathSpecFromFullPath("a/b.txt")
	p1 := newFixedProvider(spec, []byte("first"))
	p2 := newFixedProvider(spec, []byte("second"))

	r1 := s.add(p1, false)
	if len(r1.Added) != 1 {
		t.Fatalf("first add: expected Added=1, got %+v", r1)
	}

	r2 := s.add(p2, false)
	if len(r2.SkippedExisting) != 1 {
		t.Fatalf("second add: expected SkippedExisting=1, got %+v", r2)
	}
	if len(s.entries) != 1 {
		t.Fatalf("expected entries to stay at 1, got %d", len(s.entries))
	}
	if s.entries[0].provider != p1 {
		t.Fatal("the original provider must remain after a non-overwriting add")
	}
}

// P7: add(p1); add(p2, overwrite=true) on same key => final entries length
// 1, provider identity is p2.
func TestStoreAddReplace(t *testing.T) {
	s := newStore()
	spec := NewPathSpecFromFullPath("a/b.txt")
	p1 := newFixedProvider(spec, []byte("first"))
	p2 := newFixedProvider(spec, []byte("second"))

	s.add(p1, false)
	r2 := s.add(p2, true)

	if len(r2.Replaced) != 1 || r2.Replaced[0] != p2 {
		t.Fatalf("expected Replaced=[p2], got %+v", r2)
	}
	if len(s.entries) != 1 {
		t.Fatalf("expected entries length 1, got %d", len(s.entries))
	}
	if s.entries[0].provider != p2 {
		t.Fatal("provider identity must be p2 after overwrite")
	}
}

// Component-key collisions are checked before full-path collisions, and a
// full-path collision is still honored when no component key is present.
func TestStoreAddFullPathOnlyCollision(t *testing.T) {
	s := newStore()
	spec := NewPathSpecFromComponents("a", "b")
	spec.FullPathHash = sqpackHash("a/b")

	p1 := newFixedProvider(spec, []byte("first"))
	s.add(p1, false)

	// A second provider known only by full path should collide against the
	// same entry via fullpathIdx, since it shares the full-path hash.
	fullOnly := PathSpec{FolderHash: EmptyHash, NameHash: EmptyHash, FullPathHash: spec.FullPathHash}
	p2 := newFixedProvider(fullOnly, []byte("second"))
	r := s.add(p2, false)

	if len(r.SkippedExisting) != 1 {
		t.Fatalf("expected a full-path collision to be detected, got %+v", r)
	}
}

func TestAddResultMerge(t *testing.T) {
	spec1 := NewPathSpecFromFullPath("a.txt")
	spec2 := NewPathSpecFromFullPath("b.txt")
	p1 := newFixedProvider(spec1, nil)
	p2 := newFixedProvider(spec2, nil)

	a := AddResult{Added: []EntryProvider{p1}}
	b := AddResult{Replaced: []EntryProvider{p2}}
	a.Merge(b)

	if len(a.Added) != 1 || len(a.Replaced) != 1 {
		t.Fatalf("merge did not combine both results: %+v", a)
	}
	all := a.AllEntries()
	if len(all) != 2 {
		t.Fatalf("AllEntries should concatenate all three lists, got %d", len(all))
	}
	gotSpecs := []PathSpec{all[0].PathSpec(), all[1].PathSpec()}
	wantSpecs := []PathSpec{spec1, spec2}
	if diff := cmp.Diff(wantSpecs, gotSpecs); diff != "" {
		t.Fatalf("AllEntries order mismatch (-want +got):\n%s", diff)
	}
	if a.AnyItem() != p1 {
		t.Fatal("AnyItem should prefer Added over Replaced")
	}
}
