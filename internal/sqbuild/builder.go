// Package sqbuild implements the span allocator and freeze pipeline: the
// part of the virtual SqPack builder that assigns placement to a flat,
// insertion-ordered list of (key, provider) pairs, derives the sorted index
// tables and folder directory, and emits the fixed on-wire headers.
//
// This package is deliberately decoupled from the public PathSpec/
// EntryProvider types (package vsqpack, which imports this package): it
// operates on a minimal structural Provider interface and a plain Key
// value, so there is no import cycle and the bin-packing/layout logic can
// be tested in isolation from the dedup store.
package sqbuild

import (
	"sort"

	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/hxivmods/vsqpack/internal/sqlayout"
)

// Provider is the minimal shape sqbuild needs from an entry's payload
// source: its total size, and stateless positioned reads.
type Provider interface {
	StreamSize() int64
	ReadAt(p []byte, off int64) (int, error)
}

// Key is the addressing information sqbuild needs to project an entry into
// the sorted index tables. It mirrors vsqpack.PathSpec without importing
// it.
type Key struct {
	HasComponent bool
	FolderHash   uint32
	NameHash     uint32
	HasFullPath  bool
	FullPathHash uint32
}

// Placement is the subset of per-entry state assigned by Freeze.
type Placement struct {
	DataFileIndex      uint32
	OffsetAfterHeaders uint64
	BlockSize          uint32
	PadSize            uint32
	Locator            sqlayout.Locator
}

type item struct {
	key       Key
	provider  Provider
	placement Placement
}

// Builder is the span allocator and index-table deriver. It is
// single-owner, externally-synchronized: AddItem/SetUnknownSegments must
// not be called concurrently with each other or with Freeze, and Freeze
// must not be called concurrently with anything. Once frozen, all read
// methods are pure functions of immutable state and may be called from any
// number of goroutines.
type Builder struct {
	maxFileSize uint64
	frozen      bool

	items []item

	indexSegment2   []byte
	indexSegment3   []byte
	index2Segment2  []byte
	index2Segment3  []byte

	spans []sqlayout.DataSubHeader

	file1   []sqlayout.FileSegmentEntry
	file2   []sqlayout.FileSegmentEntry2
	folders []sqlayout.FolderSegmentEntry

	indexHeader     sqlayout.SqpackHeader
	indexSubHeader  sqlayout.IndexSubHeader
	index2Header    sqlayout.SqpackHeader
	index2SubHeader sqlayout.IndexSubHeader
	dataHeader      sqlayout.SqpackHeader

	// Marshaled caches, populated once by Freeze so ReadIndex1/ReadIndex2/
	// ReadData never re-encode on every call.
	indexHeaderBytes     []byte
	indexSubHeaderBytes  []byte
	file1Bytes           []byte
	index2HeaderBytes    []byte
	index2SubHeaderBytes []byte
	file2Bytes           []byte
	folderBytes          []byte
	dataHeaderBytes      []byte

	// spanItems[i] holds indices into items assigned to span i, sorted by
	// ascending OffsetAfterHeaders, precomputed once so ReadData's binary
	// search doesn't re-sort on every call.
	spanItems [][]int
}

// NewBuilder constructs a Builder for a single logical archive whose spans
// are capped at maxFileSize bytes each. Returns ErrInvalidArgument if
// maxFileSize exceeds sqlayout.MaxFileSizeLimit.
func NewBuilder(maxFileSize uint64) (*Builder, error) {
	if maxFileSize > sqlayout.MaxFileSizeLimit {
		return nil, xerrors.Errorf("max_file_size %d exceeds %d: %w", maxFileSize, sqlayout.MaxFileSizeLimit, ErrInvalidArgument)
	}
	return &Builder{maxFileSize: maxFileSize}, nil
}

// AddItem appends one (key, provider) pair in caller-determined order and
// returns its item index, later used to retrieve its Placement. Fails after
// Freeze.
func (b *Builder) AddItem(key Key, p Provider) (int, error) {
	if b.frozen {
		return 0, ErrFrozenMutation
	}
	b.items = append(b.items, item{key: key, provider: p})
	return len(b.items) - 1, nil
}

// SetUnknownSegments adopts the opaque "data files" and "unknown3" segments
// of an existing archive's index1/index2 verbatim. Fails after Freeze.
func (b *Builder) SetUnknownSegments(indexSegment2, indexSegment3, index2Segment2, index2Segment3 []byte) error {
	if b.frozen {
		return ErrFrozenMutation
	}
	b.indexSegment2 = indexSegment2
	b.indexSegment3 = indexSegment3
	b.index2Segment2 = index2Segment2
	b.index2Segment3 = index2Segment3
	return nil
}

// Frozen reports whether Freeze has already run.
func (b *Builder) Frozen() bool { return b.frozen }

// SpanCount returns the number of synthesized datN spans. Only meaningful
// after Freeze.
func (b *Builder) SpanCount() int { return len(b.spans) }

// FolderCount returns the number of derived folder directory entries. Only
// meaningful after Freeze.
func (b *Builder) FolderCount() int { return len(b.folders) }

// Placement returns the placement assigned to the item at itemIndex. Only
// meaningful after Freeze.
func (b *Builder) Placement(itemIndex int) Placement {
	return b.items[itemIndex].placement
}

// align128 returns the padding needed to bring size up to a multiple of
// 128, computed as (-size) mod 128 in unsigned arithmetic per spec's
// alignment semantics.
func align128(size uint32) uint32 {
	return uint32(-int32(size)) & 127
}

// allocate finds room for `required` contiguous bytes, opening a new span
// if there is no span yet or the last one lacks room, finalizing the prior span's
// checksum in strict mode. Returns the span index and the offset within it
// (past the two fixed headers) where the entry's bytes begin.
func (b *Builder) allocate(required uint64, strict bool) (spanIndex int, offset uint64, err error) {
	headerBytes := uint64(sqlayout.HeaderBytes)
	if headerBytes+required > b.maxFileSize {
		return 0, 0, xerrors.Errorf("entry of %d bytes cannot fit in a span of max size %d: %w", required, b.maxFileSize, ErrFormatOverflow)
	}

	if len(b.spans) == 0 || headerBytes+b.spans[len(b.spans)-1].DataSize+required > b.maxFileSize {
		if strict && len(b.spans) > 0 {
			last := &b.spans[len(b.spans)-1]
			last.Sha1 = sqlayout.Sum(withZeroSha1(last))
		}
		b.spans = append(b.spans, sqlayout.NewDataSubHeader(uint32(len(b.spans)), b.maxFileSize))
	}

	spanIndex = len(b.spans) - 1
	offset = b.spans[spanIndex].DataSize
	b.spans[spanIndex].DataSize += required
	return spanIndex, offset, nil
}

func withZeroSha1(h *sqlayout.DataSubHeader) []byte {
	cp := *h
	cp.Sha1 = [20]byte{}
	return cp.MarshalBinary()
}

// Freeze performs the one-shot bin-pack/sort/header-emission transition
// described by spec.md §4.3. It is not reentrant: a second call returns
// ErrDoubleFreeze.
func (b *Builder) Freeze(strict bool) error {
	if b.frozen {
		return ErrDoubleFreeze
	}

	b.file1 = b.file1[:0]
	b.file2 = b.file2[:0]
	b.folders = b.folders[:0]
	b.spans = b.spans[:0]

	for i := range b.items {
		it := &b.items[i]

		size := it.provider.StreamSize()
		if size < 0 || size > (1<<32)-1 {
			return xerrors.Errorf("stream size %d exceeds 32-bit block size: %w", size, ErrFormatOverflow)
		}
		blockSize := uint32(size)
		padSize := align128(blockSize)
		required := uint64(blockSize) + uint64(padSize)

		spanIndex, offset, err := b.allocate(required, strict)
		if err != nil {
			return err
		}

		locator := sqlayout.NewLocator(uint32(spanIndex), uint64(sqlayout.HeaderBytes)+offset)
		it.placement = Placement{
			DataFileIndex:      uint32(spanIndex),
			OffsetAfterHeaders: offset,
			BlockSize:          blockSize,
			PadSize:            padSize,
			Locator:            locator,
		}

		if it.key.HasComponent {
			b.file1 = append(b.file1, sqlayout.FileSegmentEntry{
				NameHash:   it.key.NameHash,
				FolderHash: it.key.FolderHash,
				Locator:    locator,
			})
		}
		if it.key.HasFullPath {
			b.file2 = append(b.file2, sqlayout.FileSegmentEntry2{
				FullPathHash: it.key.FullPathHash,
				Locator:      locator,
			})
		}
	}

	if len(b.spans) == 0 {
		// A builder with no entries still produces exactly one (empty) dat
		// span: spec.md's concrete scenario 1 requires read_data(0, ...) to
		// serve header bytes even when nothing has been added.
		if _, _, err := b.allocate(0, strict); err != nil {
			return err
		}
	}

	if strict && len(b.spans) > 0 {
		last := &b.spans[len(b.spans)-1]
		last.Sha1 = sqlayout.Sum(withZeroSha1(last))
	}

	slices.SortFunc(b.file1, func(a, c sqlayout.FileSegmentEntry) bool { return a.Less(c) })
	slices.SortFunc(b.file2, func(a, c sqlayout.FileSegmentEntry2) bool { return a.Less(c) })

	b.deriveFolders()
	b.emitHeaders(strict)
	b.cacheMarshaled()
	b.indexSpanItems()

	b.frozen = true
	return nil
}

func (b *Builder) indexSpanItems() {
	b.spanItems = make([][]int, len(b.spans))
	for i := range b.items {
		di := int(b.items[i].placement.DataFileIndex)
		b.spanItems[di] = append(b.spanItems[di], i)
	}
	for di := range b.spanItems {
		sort.Slice(b.spanItems[di], func(i, j int) bool {
			a, c := b.spanItems[di][i], b.spanItems[di][j]
			return b.items[a].placement.OffsetAfterHeaders < b.items[c].placement.OffsetAfterHeaders
		})
	}
}

func (b *Builder) cacheMarshaled() {
	b.indexHeaderBytes = b.indexHeader.MarshalBinary()
	b.indexSubHeaderBytes = b.indexSubHeader.MarshalBinary()
	b.index2HeaderBytes = b.index2Header.MarshalBinary()
	b.index2SubHeaderBytes = b.index2SubHeader.MarshalBinary()
	b.dataHeaderBytes = b.dataHeader.MarshalBinary()

	b.file1Bytes = make([]byte, 0, len(b.file1)*sqlayout.FileSegmentEntrySize)
	for i := range b.file1 {
		b.file1Bytes = append(b.file1Bytes, b.file1[i].MarshalBinary()...)
	}
	b.file2Bytes = make([]byte, 0, len(b.file2)*sqlayout.FileSegmentEntry2Size)
	for i := range b.file2 {
		b.file2Bytes = append(b.file2Bytes, b.file2[i].MarshalBinary()...)
	}
	b.folderBytes = make([]byte, 0, len(b.folders)*sqlayout.FolderSegmentEntrySize)
	for i := range b.folders {
		b.folderBytes = append(b.folderBytes, b.folders[i].MarshalBinary()...)
	}
}

// deriveFolders scans the sorted file1 table and groups it into maximal
// equal-folder_hash runs (I5), recording each run's starting absolute
// offset inside the frozen index1 stream.
func (b *Builder) deriveFolders() {
	fileSegmentOffset := uint32(sqlayout.HeaderBytes)
	for i, e := range b.file1 {
		if len(b.folders) == 0 || b.folders[len(b.folders)-1].FolderHash != e.FolderHash {
			b.folders = append(b.folders, sqlayout.FolderSegmentEntry{
				FolderHash:        e.FolderHash,
				FileSegmentOffset: fileSegmentOffset + uint32(i)*sqlayout.FileSegmentEntrySize,
				FileSegmentSize:   sqlayout.FileSegmentEntrySize,
			})
		} else {
			b.folders[len(b.folders)-1].FileSegmentSize += sqlayout.FileSegmentEntrySize
		}
	}
}

func (b *Builder) emitHeaders(strict bool) {
	b.indexHeader = sqlayout.NewSqpackHeader(sqlayout.SqpackTypeSqIndex)
	b.index2Header = sqlayout.NewSqpackHeader(sqlayout.SqpackTypeSqIndex)
	b.dataHeader = sqlayout.NewSqpackHeader(sqlayout.SqpackTypeSqData)

	b.indexSubHeader = sqlayout.NewIndexSubHeader(sqlayout.IndexKindIndex)
	fileSegOffset := b.indexHeader.HeaderSize + b.indexSubHeader.HeaderSize
	fileSegSize := uint32(len(b.file1)) * sqlayout.FileSegmentEntrySize
	dataSegOffset := fileSegOffset + fileSegSize
	dataSegSize := uint32(len(b.indexSegment2))
	unk3Offset := dataSegOffset + dataSegSize
	unk3Size := uint32(len(b.indexSegment3))
	folderOffset := unk3Offset + unk3Size
	folderSize := uint32(len(b.folders)) * sqlayout.FolderSegmentEntrySize

	b.indexSubHeader.FileSegment = sqlayout.SegmentDescriptor{Count: 1, Offset: fileSegOffset, Size: fileSegSize}
	b.indexSubHeader.DataFilesSegment = sqlayout.SegmentDescriptor{Count: uint32(len(b.spans)), Offset: dataSegOffset, Size: dataSegSize}
	b.indexSubHeader.UnknownSegment3 = sqlayout.SegmentDescriptor{Count: 0, Offset: unk3Offset, Size: unk3Size}
	b.indexSubHeader.FolderSegment = sqlayout.SegmentDescriptor{Count: 0, Offset: folderOffset, Size: folderSize}

	b.index2SubHeader = sqlayout.NewIndexSubHeader(sqlayout.IndexKindIndex2)
	fileSeg2Offset := b.index2Header.HeaderSize + b.index2SubHeader.HeaderSize
	fileSeg2Size := uint32(len(b.file2)) * sqlayout.FileSegmentEntry2Size
	dataSeg2Offset := fileSeg2Offset + fileSeg2Size
	dataSeg2Size := uint32(len(b.index2Segment2))
	unk3_2Offset := dataSeg2Offset + dataSeg2Size
	unk3_2Size := uint32(len(b.index2Segment3))

	b.index2SubHeader.FileSegment = sqlayout.SegmentDescriptor{Count: 1, Offset: fileSeg2Offset, Size: fileSeg2Size}
	b.index2SubHeader.DataFilesSegment = sqlayout.SegmentDescriptor{Count: uint32(len(b.spans)), Offset: dataSeg2Offset, Size: dataSeg2Size}
	b.index2SubHeader.UnknownSegment3 = sqlayout.SegmentDescriptor{Count: 0, Offset: unk3_2Offset, Size: unk3_2Size}
	b.index2SubHeader.FolderSegment = sqlayout.SegmentDescriptor{}

	if strict {
		b.indexHeader.Sha1 = sqlayout.Sum(zeroedSqpack(&b.indexHeader))
		b.indexSubHeader.Sha1 = sqlayout.Sum(zeroedIndexSub(&b.indexSubHeader))
		b.index2Header.Sha1 = sqlayout.Sum(zeroedSqpack(&b.index2Header))
		b.index2SubHeader.Sha1 = sqlayout.Sum(zeroedIndexSub(&b.index2SubHeader))
		b.dataHeader.Sha1 = sqlayout.Sum(zeroedSqpack(&b.dataHeader))
	}
}

func zeroedSqpack(h *sqlayout.SqpackHeader) []byte {
	cp := *h
	cp.Sha1 = [20]byte{}
	return cp.MarshalBinary()
}

func zeroedIndexSub(h *sqlayout.IndexSubHeader) []byte {
	cp := *h
	cp.Sha1 = [20]byte{}
	return cp.MarshalBinary()
}

// Index1Size is the total byte length of the frozen index1 stream.
func (b *Builder) Index1Size() uint64 {
	return uint64(b.indexHeader.HeaderSize) +
		uint64(b.indexSubHeader.HeaderSize) +
		uint64(b.indexSubHeader.FileSegment.Size) +
		uint64(b.indexSubHeader.DataFilesSegment.Size) +
		uint64(b.indexSubHeader.UnknownSegment3.Size) +
		uint64(b.indexSubHeader.FolderSegment.Size)
}

// Index2Size is the total byte length of the frozen index2 stream.
func (b *Builder) Index2Size() uint64 {
	return uint64(b.index2Header.HeaderSize) +
		uint64(b.index2SubHeader.HeaderSize) +
		uint64(b.index2SubHeader.FileSegment.Size) +
		uint64(b.index2SubHeader.DataFilesSegment.Size) +
		uint64(b.index2SubHeader.UnknownSegment3.Size)
}

// DataSize is the total byte length of the frozen datIndex stream, or 0 if
// datIndex is out of range.
func (b *Builder) DataSize(datIndex int) uint64 {
	if datIndex < 0 || datIndex >= len(b.spans) {
		return 0
	}
	return uint64(b.dataHeader.HeaderSize) + uint64(b.spans[datIndex].HeaderSize) + b.spans[datIndex].DataSize
}
