package vsqpack

// BaseArchiveEntry is one record yielded while walking an existing on-disk
// SqPack archive: its addressing key, and which datN span its packed bytes
// currently live in.
type BaseArchiveEntry struct {
	PathSpec      PathSpec
	DataFileIndex int
}

// BaseArchiveReader is the external collaborator spec.md §4.5 calls simply
// "a Reader collaborator": something that already knows how to walk an
// on-disk SqPack archive's index1/index2/datN triple and answer both "what
// entries does it contain" and "give me a positioned reader over span i's
// raw bytes". Concrete implementations (actually parsing on-disk index
// files) are out of this package's scope, matching the EntryProvider codecs
// being named as black boxes in spec.md §1.
type BaseArchiveReader interface {
	// Entries returns every entry the base archive contains, in the
	// archive's own on-disk order.
	Entries() ([]BaseArchiveEntry, error)

	// OpenSpan returns a positioned reader over the raw packed bytes of
	// datN span spanIndex. Each entry's position within it comes from
	// EntryLocation.
	OpenSpan(spanIndex int) (backingReaderAt, error)

	// EntryLocation returns the (byteOffset, byteLength) of entry's packed
	// payload within its datN span, as reported by the base archive's own
	// index tables.
	EntryLocation(entry BaseArchiveEntry) (byteOffset, byteLength int64)

	// UnknownSegments returns the base archive's opaque index1/index2
	// "segment 2" and "segment 3" byte ranges, for verbatim adoption.
	UnknownSegments() (indexSegment2, indexSegment3, index2Segment2, index2Segment3 []byte)
}

// IngestBaseArchive populates v from an existing on-disk SqPack archive,
// per spec.md §4.5 "From existing SqPack": every entry becomes a
// SliceEntryProvider view of the base archive's own raw packed bytes (no
// recompression, no reinterpretation), fed through add(provider,
// overwrite) in the reader's own enumeration order. When
// overwriteUnknownSegments is true, the base archive's opaque index
// segments 2 and 3 are adopted verbatim onto the builder.
func (v *VirtualSqPack) IngestBaseArchive(r BaseArchiveReader, overwrite, overwriteUnknownSegments bool) (AddResult, error) {
	entries, err := r.Entries()
	if err != nil {
		return AddResult{}, err
	}

	spans := make(map[int]backingReaderAt)
	var result AddResult
	for _, be := range entries {
		backing, ok := spans[be.DataFileIndex]
		if !ok {
			backing, err = r.OpenSpan(be.DataFileIndex)
			if err != nil {
				return result, err
			}
			spans[be.DataFileIndex] = backing
		}

		off, size := r.EntryLocation(be)
		provider := NewSliceEntryProvider(be.PathSpec, backing, off, size)

		one, err := v.AddEntry(provider, overwrite)
		if err != nil {
			return result, err
		}
		result.Merge(one)
	}

	if overwriteUnknownSegments {
		seg2, seg3, seg2_2, seg3_2 := r.UnknownSegments()
		if err := v.adoptUnknownSegments(seg2, seg3, seg2_2, seg3_2); err != nil {
			return result, err
		}
	}

	return result, nil
}
