// Package sqlayout defines the fixed, little-endian, bit-exact byte layout
// of the three SqPack streams (index1, index2, datN): the outer
// SqpackHeader, the per-stream sub-headers, and the packed index records.
//
// Structures are written with explicit little-endian field encoding rather
// than relying on the platform's struct layout, so the same bytes come out
// regardless of host architecture.
package sqlayout

import (
	"crypto/sha1"
	"encoding/binary"
)

// SqpackType discriminates the outer SqpackHeader.Type field.
type SqpackType uint32

const (
	SqpackTypeSqData  SqpackType = 0
	SqpackTypeSqIndex SqpackType = 2
)

// IndexKind discriminates IndexSubHeader.Type.
type IndexKind uint32

const (
	IndexKindIndex  IndexKind = 0
	IndexKindIndex2 IndexKind = 2
)

// MaxFileSizeLimit is the hard ceiling on a DataSubHeader.MaxFileSize (32 GiB).
const MaxFileSizeLimit = 32 * 1024 * 1024 * 1024

const (
	sqpackHeaderUnknown1Value = 1
	sqpackHeaderUnknown2Value = 1
	dataSubHeaderUnknown1     = 1
	dataSubHeaderFixedSize    = 1024
	sqpackHeaderFixedSize     = 1024
	indexSubHeaderFixedSize   = 1024
)

var sqpackSignature = [8]byte{'S', 'q', 'P', 'a', 'c', 'k', 0, 0}

// SqpackHeader is the outermost 1024-byte header shared by every synthesized
// stream (index1, index2, datN).
type SqpackHeader struct {
	HeaderSize uint32
	Unknown1   uint32
	Type       SqpackType
	Unknown2   uint32
	Sha1       [sha1.Size]byte
}

// MarshalBinary writes the fixed 1024-byte on-wire representation.
func (h *SqpackHeader) MarshalBinary() []byte {
	b := make([]byte, sqpackHeaderFixedSize)
	copy(b[0:8], sqpackSignature[:])
	e := binary.LittleEndian
	e.PutUint32(b[8:], h.HeaderSize)
	e.PutUint32(b[12:], h.Unknown1)
	e.PutUint32(b[16:], uint32(h.Type))
	e.PutUint32(b[20:], h.Unknown2)
	copy(b[24:24+sha1.Size], h.Sha1[:])
	return b
}

// NewSqpackHeader builds a header for the given stream type with the fixed
// unknown fields the game's loader expects.
func NewSqpackHeader(t SqpackType) SqpackHeader {
	return SqpackHeader{
		HeaderSize: sqpackHeaderFixedSize,
		Unknown1:   sqpackHeaderUnknown1Value,
		Type:       t,
		Unknown2:   sqpackHeaderUnknown2Value,
	}
}

// SegmentDescriptor records the offset and size (in bytes, relative to the
// start of the owning stream) of one logical segment of an index stream,
// plus a Count field. Count is not an element count: the builder writes 1
// for the file segment, the span count for the data-files segment, and 0
// for the others.
type SegmentDescriptor struct {
	Count    uint32
	Offset   uint32
	Size     uint32
	Reserved uint32
}

func (s *SegmentDescriptor) marshalInto(b []byte) {
	e := binary.LittleEndian
	e.PutUint32(b[0:], s.Count)
	e.PutUint32(b[4:], s.Offset)
	e.PutUint32(b[8:], s.Size)
	e.PutUint32(b[12:], s.Reserved)
}

const segmentDescriptorSize = 16

// IndexSubHeader is the per-stream metadata block following SqpackHeader in
// both index1 and index2 (Index2SubHeader reuses the same shape; its
// FolderSegment is always zeroed since index2 carries no folder directory).
type IndexSubHeader struct {
	HeaderSize        uint32
	Type              IndexKind
	FileSegment       SegmentDescriptor
	DataFilesSegment  SegmentDescriptor
	UnknownSegment3   SegmentDescriptor
	FolderSegment     SegmentDescriptor
	Sha1              [sha1.Size]byte
}

func (h *IndexSubHeader) MarshalBinary() []byte {
	b := make([]byte, indexSubHeaderFixedSize)
	e := binary.LittleEndian
	e.PutUint32(b[0:], h.HeaderSize)
	e.PutUint32(b[4:], uint32(h.Type))
	h.FileSegment.marshalInto(b[8:])
	h.DataFilesSegment.marshalInto(b[8+segmentDescriptorSize:])
	h.UnknownSegment3.marshalInto(b[8+2*segmentDescriptorSize:])
	h.FolderSegment.marshalInto(b[8+3*segmentDescriptorSize:])
	copy(b[8+4*segmentDescriptorSize:8+4*segmentDescriptorSize+sha1.Size], h.Sha1[:])
	return b
}

// NewIndexSubHeader builds a sub-header for the given index kind.
func NewIndexSubHeader(kind IndexKind) IndexSubHeader {
	return IndexSubHeader{
		HeaderSize: indexSubHeaderFixedSize,
		Type:       kind,
	}
}

// DataSubHeader is the per-dat metadata block following SqpackHeader in each
// synthesized datN stream.
type DataSubHeader struct {
	HeaderSize  uint32
	Unknown1    uint32
	DataSize    uint64
	SpanIndex   uint32
	MaxFileSize uint64
	Sha1        [sha1.Size]byte
}

func (h *DataSubHeader) MarshalBinary() []byte {
	b := make([]byte, dataSubHeaderFixedSize)
	e := binary.LittleEndian
	e.PutUint32(b[0:], h.HeaderSize)
	e.PutUint32(b[4:], h.Unknown1)
	e.PutUint64(b[8:], h.DataSize)
	e.PutUint32(b[16:], h.SpanIndex)
	e.PutUint64(b[20:], h.MaxFileSize)
	copy(b[28:28+sha1.Size], h.Sha1[:])
	return b
}

// NewDataSubHeader builds the sub-header for the span at spanIndex.
func NewDataSubHeader(spanIndex uint32, maxFileSize uint64) DataSubHeader {
	return DataSubHeader{
		HeaderSize:  dataSubHeaderFixedSize,
		Unknown1:    dataSubHeaderUnknown1,
		SpanIndex:   spanIndex,
		MaxFileSize: maxFileSize,
	}
}

// HeaderBytes is the fixed number of bytes preceding entry data in every
// synthesized stream: the outer SqpackHeader followed by the stream's own
// sub-header.
const HeaderBytes = sqpackHeaderFixedSize + dataSubHeaderFixedSize

// Locator packs a data-file index and a byte offset within that file into a
// single 32-bit value: the low 4 bits select one of up to 16 spans, the
// remaining 28 bits hold the offset divided by 128. This is lossless because
// every offset this builder produces is a multiple of 128 (entries are
// always padded to a 128-byte boundary, and the fixed header pair
// sqpackHeaderFixedSize+dataSubHeaderFixedSize is itself 2048, also a
// multiple of 128).
type Locator uint32

const (
	locatorIndexBits  = 4
	locatorIndexMask  = (1 << locatorIndexBits) - 1
	locatorOffsetUnit = 128
)

// NewLocator packs dataFileIndex and byteOffset. byteOffset must be a
// multiple of locatorOffsetUnit.
func NewLocator(dataFileIndex uint32, byteOffset uint64) Locator {
	return Locator(dataFileIndex&locatorIndexMask | uint32(byteOffset/locatorOffsetUnit)<<locatorIndexBits)
}

// DataFileIndex returns the packed span index.
func (l Locator) DataFileIndex() uint32 { return uint32(l) & locatorIndexMask }

// ByteOffset returns the packed absolute byte offset within the span.
func (l Locator) ByteOffset() uint64 { return uint64(uint32(l)>>locatorIndexBits) * locatorOffsetUnit }

// FileSegmentEntry is one 16-byte index1 record.
type FileSegmentEntry struct {
	NameHash   uint32
	FolderHash uint32
	Locator    Locator
	Reserved   uint32
}

const FileSegmentEntrySize = 16

func (f *FileSegmentEntry) MarshalBinary() []byte {
	b := make([]byte, FileSegmentEntrySize)
	e := binary.LittleEndian
	e.PutUint32(b[0:], f.NameHash)
	e.PutUint32(b[4:], f.FolderHash)
	e.PutUint32(b[8:], uint32(f.Locator))
	e.PutUint32(b[12:], f.Reserved)
	return b
}

// Less implements the I4 sort order: (folder_hash, name_hash) ascending.
func (f FileSegmentEntry) Less(o FileSegmentEntry) bool {
	if f.FolderHash != o.FolderHash {
		return f.FolderHash < o.FolderHash
	}
	return f.NameHash < o.NameHash
}

// FileSegmentEntry2 is one 8-byte index2 record.
type FileSegmentEntry2 struct {
	FullPathHash uint32
	Locator      Locator
}

const FileSegmentEntry2Size = 8

func (f *FileSegmentEntry2) MarshalBinary() []byte {
	b := make([]byte, FileSegmentEntry2Size)
	e := binary.LittleEndian
	e.PutUint32(b[0:], f.FullPathHash)
	e.PutUint32(b[4:], uint32(f.Locator))
	return b
}

func (f FileSegmentEntry2) Less(o FileSegmentEntry2) bool {
	return f.FullPathHash < o.FullPathHash
}

// FolderSegmentEntry is one folder directory record derived from a maximal
// run of file_entries_1 sharing a folder hash.
type FolderSegmentEntry struct {
	FolderHash        uint32
	FileSegmentOffset uint32
	FileSegmentSize   uint32
	Reserved          uint32
}

const FolderSegmentEntrySize = 16

func (f *FolderSegmentEntry) MarshalBinary() []byte {
	b := make([]byte, FolderSegmentEntrySize)
	e := binary.LittleEndian
	e.PutUint32(b[0:], f.FolderHash)
	e.PutUint32(b[4:], f.FileSegmentOffset)
	e.PutUint32(b[8:], f.FileSegmentSize)
	e.PutUint32(b[12:], f.Reserved)
	return b
}

// Sum computes the SHA-1 digest of b, used for the "strict mode" header
// signatures (each header's own bytes, with its Sha1 field excluded from
// the digest by the caller zeroing it before marshaling).
func Sum(b []byte) [sha1.Size]byte {
	return sha1.Sum(b)
}
