package sqbuild

import "sort"

// region is one contiguous span of a logical output stream, served directly
// from its fixed bytes slice (a nil slice is an empty region). ReadData's
// provider-backed entry bytes and zero padding are not regions; ReadData
// serves them itself after the fixed header regions.
type region struct {
	bytes []byte
	size  uint64
}

// readFixedRegions walks a list of wholly in-memory regions, skipping
// everything before off and copying into p until p is full or the regions
// run out. Used by ReadIndex1/ReadIndex2, whose entire logical stream is
// already-marshaled bytes, and by ReadData for its two fixed header
// regions.
func readFixedRegions(regions []region, off uint64, p []byte) (written int, remaining uint64) {
	for _, r := range regions {
		if off >= r.size {
			off -= r.size
			continue
		}
		avail := r.size - off
		n := uint64(len(p))
		if n > avail {
			n = avail
		}
		copy(p[:n], r.bytes[off:off+n])
		written += int(n)
		p = p[n:]
		off = 0
		if len(p) == 0 {
			return written, 0
		}
	}
	return written, off
}

// ReadIndex1 serves offset..offset+len(p) of the logical index1 stream:
// SqpackHeader, IndexSubHeader, sorted file_entries_1, adopted "unknown"
// segment 2, adopted "unknown" segment 3, folder_entries.
func (b *Builder) ReadIndex1(off uint64, p []byte) (int, error) {
	if !b.frozen {
		return 0, ErrNotFrozen
	}
	regions := []region{
		{bytes: b.indexHeaderBytes, size: uint64(len(b.indexHeaderBytes))},
		{bytes: b.indexSubHeaderBytes, size: uint64(len(b.indexSubHeaderBytes))},
		{bytes: b.file1Bytes, size: uint64(len(b.file1Bytes))},
		{bytes: b.indexSegment2, size: uint64(len(b.indexSegment2))},
		{bytes: b.indexSegment3, size: uint64(len(b.indexSegment3))},
		{bytes: b.folderBytes, size: uint64(len(b.folderBytes))},
	}
	n, _ := readFixedRegions(regions, off, p)
	return n, nil
}

// ReadIndex2 serves offset..offset+len(p) of the logical index2 stream:
// SqpackHeader, IndexSubHeader, sorted file_entries_2, adopted "unknown"
// segment 2, adopted "unknown" segment 3.
func (b *Builder) ReadIndex2(off uint64, p []byte) (int, error) {
	if !b.frozen {
		return 0, ErrNotFrozen
	}
	regions := []region{
		{bytes: b.index2HeaderBytes, size: uint64(len(b.index2HeaderBytes))},
		{bytes: b.index2SubHeaderBytes, size: uint64(len(b.index2SubHeaderBytes))},
		{bytes: b.file2Bytes, size: uint64(len(b.file2Bytes))},
		{bytes: b.index2Segment2, size: uint64(len(b.index2Segment2))},
		{bytes: b.index2Segment3, size: uint64(len(b.index2Segment3))},
	}
	n, _ := readFixedRegions(regions, off, p)
	return n, nil
}

// ReadData serves offset..offset+len(p) of the logical datIndex stream:
// SqpackHeader, that span's DataSubHeader, then every item assigned to
// datIndex in offset_after_headers order, each contributing block_size
// bytes delegated to its provider followed by pad_size zero bytes. A short
// read from a provider propagates as a short read from ReadData (§4.4).
func (b *Builder) ReadData(datIndex int, off uint64, p []byte) (int, error) {
	if !b.frozen {
		return 0, ErrNotFrozen
	}
	if datIndex < 0 || datIndex >= len(b.spans) {
		return 0, nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	spanBytes := b.spans[datIndex].MarshalBinary()
	fixed := []region{
		{bytes: b.dataHeaderBytes, size: uint64(len(b.dataHeaderBytes))},
		{bytes: spanBytes, size: uint64(len(spanBytes))},
	}
	written, off := readFixedRegions(fixed, off, p)
	p = p[written:]
	if len(p) == 0 {
		return written, nil
	}

	entryIdx := b.spanItems[datIndex]
	start := sort.Search(len(entryIdx), func(i int) bool {
		pl := b.items[entryIdx[i]].placement
		return pl.OffsetAfterHeaders+uint64(pl.BlockSize)+uint64(pl.PadSize) > off
	})
	if start >= len(entryIdx) {
		return written, nil
	}

	relOff := off - b.items[entryIdx[start]].placement.OffsetAfterHeaders
	for _, idx := range entryIdx[start:] {
		pl := b.items[idx].placement
		if relOff >= uint64(pl.BlockSize)+uint64(pl.PadSize) {
			relOff -= uint64(pl.BlockSize) + uint64(pl.PadSize)
			continue
		}

		if relOff < uint64(pl.BlockSize) {
			avail := uint64(pl.BlockSize) - relOff
			n := uint64(len(p))
			if n > avail {
				n = avail
			}
			got, _ := b.items[idx].provider.ReadAt(p[:n], int64(relOff))
			written += got
			p = p[got:]
			relOff = 0
			if uint64(got) < n || len(p) == 0 {
				return written, nil
			}
		} else {
			relOff -= uint64(pl.BlockSize)
		}

		if relOff < uint64(pl.PadSize) {
			avail := uint64(pl.PadSize) - relOff
			n := uint64(len(p))
			if n > avail {
				n = avail
			}
			for i := uint64(0); i < n; i++ {
				p[i] = 0
			}
			written += int(n)
			p = p[n:]
			relOff = 0
			if len(p) == 0 {
				return written, nil
			}
		} else {
			relOff -= uint64(pl.PadSize)
		}
	}
	return written, nil
}
