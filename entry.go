package vsqpack

// componentKey is the map key used for (folder_hash, name_hash) lookups.
type componentKey struct {
	folderHash uint32
	nameHash   uint32
}

// Entry binds one interned PathSpec-derived key to its current provider
// plus placement metadata assigned by Freeze. Pre-freeze, only the
// provider (and therefore its PathSpec) is meaningful; the placement
// fields are their zero value until Freeze runs.
type Entry struct {
	provider EntryProvider

	// itemIndex is this entry's slot in the builder's flat item list,
	// assigned when Freeze feeds the store's insertion-ordered entries into
	// the span allocator.
	itemIndex int

	frozen             bool
	dataFileIndex      uint32
	offsetAfterHeaders uint64
	blockSize          uint32
	padSize            uint32
}

// Provider returns the entry's current backing provider.
func (e *Entry) Provider() EntryProvider { return e.provider }

// DataFileIndex returns the span this entry was placed into. Only
// meaningful once the owning builder has been frozen.
func (e *Entry) DataFileIndex() uint32 { return e.dataFileIndex }

// BlockSize returns the entry's packed payload size, as assigned by
// Freeze.
func (e *Entry) BlockSize() uint32 { return e.blockSize }

// PadSize returns the entry's alignment padding, as assigned by Freeze.
func (e *Entry) PadSize() uint32 { return e.padSize }

// AddResult partitions the outcome of one or more add_* calls into three
// disjoint lists, as described in spec.md §4.2. Added holds newly created
// entries' providers; Replaced holds providers that displaced an existing
// entry's provider; SkippedExisting holds the existing (path-spec-updated)
// provider of an entry that an add call chose not to overwrite.
type AddResult struct {
	Added           []EntryProvider
	Replaced        []EntryProvider
	SkippedExisting []EntryProvider
}

// Merge appends other's three lists onto r's, the Go equivalent of the
// original's AddResult::operator+=. Ingesters that issue many adds
// accumulate their overall result this way.
func (r *AddResult) Merge(other AddResult) {
	r.Added = append(r.Added, other.Added...)
	r.Replaced = append(r.Replaced, other.Replaced...)
	r.SkippedExisting = append(r.SkippedExisting, other.SkippedExisting...)
}

// AnyItem returns an arbitrary provider from whichever of the three lists
// is non-empty first (Added, then Replaced, then SkippedExisting), or nil
// if the result is empty.
func (r AddResult) AnyItem() EntryProvider {
	if len(r.Added) > 0 {
		return r.Added[0]
	}
	if len(r.Replaced) > 0 {
		return r.Replaced[0]
	}
	if len(r.SkippedExisting) > 0 {
		return r.SkippedExisting[0]
	}
	return nil
}

// AllEntries returns the concatenation of Added, Replaced, and
// SkippedExisting.
func (r AddResult) AllEntries() []EntryProvider {
	all := make([]EntryProvider, 0, len(r.Added)+len(r.Replaced)+len(r.SkippedExisting))
	all = append(all, r.Added...)
	all = append(all, r.Replaced...)
	all = append(all, r.SkippedExisting...)
	return all
}

// store is the pre-freeze dedup index: component_index and fullpath_index
// from spec.md §3, plus the insertion-ordered entries vector that Freeze
// bin-packs over.
type store struct {
	entries      []*Entry
	componentIdx map[componentKey]*Entry
	fullpathIdx  map[uint32]*Entry
}

func newStore() *store {
	return &store{
		componentIdx: make(map[componentKey]*Entry),
		fullpathIdx:  make(map[uint32]*Entry),
	}
}

// add implements spec.md §4.2's Add operation: component-key collisions are
// tested first, and fullpath_index is checked only when that lookup found
// nothing (no component key, or no entry under it) — a full-path collision
// is never consulted once a component-key entry already matched, even if
// that entry also carries a
// full-path hash that differs from the incoming one. This asymmetry is
// deliberate (see spec.md §9 "Dual-index consistency"): it guarantees an
// entry first seen by full path and later reseen with both keys gets
// updated in place rather than duplicated.
func (s *store) add(p EntryProvider, overwrite bool) AddResult {
	spec := p.PathSpec()

	if spec.HasComponentHash() {
		if e, ok := s.componentIdx[componentKey{spec.FolderHash, spec.NameHash}]; ok {
			return s.resolveCollision(e, p, overwrite)
		}
	}
	if spec.HasFullPathHash() {
		if e, ok := s.fullpathIdx[spec.FullPathHash]; ok {
			return s.resolveCollision(e, p, overwrite)
		}
	}

	e := &Entry{provider: p}
	if spec.HasFullPathHash() {
		s.fullpathIdx[spec.FullPathHash] = e
	}
	if spec.HasComponentHash() {
		s.componentIdx[componentKey{spec.FolderHash, spec.NameHash}] = e
	}
	s.entries = append(s.entries, e)
	return AddResult{Added: []EntryProvider{p}}
}

func (s *store) resolveCollision(e *Entry, incoming EntryProvider, overwrite bool) AddResult {
	if !overwrite {
		e.provider.UpdatePathSpec(incoming.PathSpec())
		return AddResult{SkippedExisting: []EntryProvider{e.provider}}
	}
	e.provider = incoming
	return AddResult{Replaced: []EntryProvider{incoming}}
}
