// Package vsqpack implements a virtual SqPack builder: an in-memory
// assembler of game-asset entries from heterogeneous sources that, after a
// single Freeze, serves three synthetic byte streams (index1, index2, one
// or more datN) bit-exact to what the game's SqPack loader expects, without
// ever materializing them on disk.
package vsqpack

import (
	"io"
	"log"

	"golang.org/x/xerrors"

	"github.com/hxivmods/vsqpack/internal/sqbuild"
)

// VirtualSqPack is the façade described by spec.md §2.6: a mutation API
// valid before Freeze, and a read API valid after it. It is single-owner
// and externally-synchronized pre-freeze; once frozen, its observable state
// is immutable and the read methods may be called concurrently from any
// number of goroutines (spec.md §5).
type VirtualSqPack struct {
	expansionName string
	archiveName   string
	maxFileSize   uint64

	store     *store
	builder   *sqbuild.Builder
	openFiles *openFileCache
	logger    *log.Logger

	frozen bool
}

// NewVirtualSqPack constructs a builder for one logical archive
// (expansionName, archiveName identify it the way the game's data tree
// does, e.g. "ffxiv", "040000"). maxFileSize caps each synthesized datN
// span and must not exceed 32 GiB.
func NewVirtualSqPack(expansionName, archiveName string, maxFileSize uint64) (*VirtualSqPack, error) {
	b, err := sqbuild.NewBuilder(maxFileSize)
	if err != nil {
		return nil, mapBuildErr("new virtual sqpack", err)
	}
	return &VirtualSqPack{
		expansionName: expansionName,
		archiveName:   archiveName,
		maxFileSize:   maxFileSize,
		store:         newStore(),
		builder:       b,
		openFiles:     newOpenFileCache(),
		logger:        log.New(io.Discard, "", 0),
	}, nil
}

// ExpansionName returns the expansion this archive belongs to.
func (v *VirtualSqPack) ExpansionName() string { return v.expansionName }

// ArchiveName returns this archive's name, used by the TTMP ingester to
// filter entries by DatFile down to the ones belonging to this builder.
// IngestBaseArchive does not filter by it.
func (v *VirtualSqPack) ArchiveName() string { return v.archiveName }

// SetLogger installs a destination for the builder's progress trace (TTMP
// ingestion's per-entry accept/replace/skip messages). The default is a
// discarding logger.
func (v *VirtualSqPack) SetLogger(l *log.Logger) { v.logger = l }

// Frozen reports whether Freeze has already run.
func (v *VirtualSqPack) Frozen() bool { return v.frozen }

// AddEntry interns provider under whichever of its PathSpec keys are
// present, per spec.md §4.2. Returns ErrFrozenMutation if the builder is
// already frozen.
func (v *VirtualSqPack) AddEntry(provider EntryProvider, overwriteExisting bool) (AddResult, error) {
	if v.frozen {
		return AddResult{}, xerrors.Errorf("add entry: %w", ErrFrozenMutation)
	}
	return v.store.add(provider, overwriteExisting), nil
}

// adoptUnknownSegments forwards an ingester's opaque index1/index2
// segments 2 and 3 to the span allocator, to be carried through Freeze
// verbatim. Returns ErrFrozenMutation if the builder is already frozen.
func (v *VirtualSqPack) adoptUnknownSegments(indexSeg2, indexSeg3, index2Seg2, index2Seg3 []byte) error {
	if v.frozen {
		return xerrors.Errorf("adopt unknown segments: %w", ErrFrozenMutation)
	}
	return v.builder.SetUnknownSegments(indexSeg2, indexSeg3, index2Seg2, index2Seg3)
}

// Freeze assigns placement to every interned entry, derives the sorted
// index tables and folder directory, and emits the fixed headers. It is
// not reentrant: a second call returns ErrDoubleFreeze. When strict is
// true, SHA-1 signatures are computed over each fixed header, yielding
// output indistinguishable from the game's own archives.
func (v *VirtualSqPack) Freeze(strict bool) error {
	if v.frozen {
		return xerrors.Errorf("freeze: %w", ErrDoubleFreeze)
	}

	for _, e := range v.store.entries {
		spec := e.provider.PathSpec()
		key := sqbuild.Key{
			HasComponent: spec.HasComponentHash(),
			FolderHash:   spec.FolderHash,
			NameHash:     spec.NameHash,
			HasFullPath:  spec.HasFullPathHash(),
			FullPathHash: spec.FullPathHash,
		}
		idx, err := v.builder.AddItem(key, e.provider)
		if err != nil {
			return mapBuildErr("freeze", err)
		}
		e.itemIndex = idx
	}

	if err := v.builder.Freeze(strict); err != nil {
		return mapBuildErr("freeze", err)
	}

	for _, e := range v.store.entries {
		pl := v.builder.Placement(e.itemIndex)
		e.frozen = true
		e.dataFileIndex = pl.DataFileIndex
		e.offsetAfterHeaders = pl.OffsetAfterHeaders
		e.blockSize = pl.BlockSize
		e.padSize = pl.PadSize
	}

	v.frozen = true
	return nil
}

// SpanCount returns the number of synthesized datN streams. Meaningful
// only after Freeze.
func (v *VirtualSqPack) SpanCount() int { return v.builder.SpanCount() }

// FolderCount returns the number of derived folder directory entries.
// Meaningful only after Freeze.
func (v *VirtualSqPack) FolderCount() int { return v.builder.FolderCount() }

// Index1Size returns the total byte length of the frozen index1 stream.
func (v *VirtualSqPack) Index1Size() uint64 { return v.builder.Index1Size() }

// Index2Size returns the total byte length of the frozen index2 stream.
func (v *VirtualSqPack) Index2Size() uint64 { return v.builder.Index2Size() }

// DataSize returns the total byte length of the frozen datIndex stream.
func (v *VirtualSqPack) DataSize(datIndex int) uint64 { return v.builder.DataSize(datIndex) }

// ReadIndex1 reads length bytes of the logical index1 stream starting at
// offset into buf, returning the number of bytes actually written (which
// may be less than len(buf) only past the end of the stream). Returns
// ErrNotFrozen before Freeze.
func (v *VirtualSqPack) ReadIndex1(offset uint64, buf []byte) (int, error) {
	if !v.frozen {
		return 0, xerrors.Errorf("read index1: %w", ErrNotFrozen)
	}
	return v.builder.ReadIndex1(offset, buf)
}

// ReadIndex2 is ReadIndex1 for the index2 stream.
func (v *VirtualSqPack) ReadIndex2(offset uint64, buf []byte) (int, error) {
	if !v.frozen {
		return 0, xerrors.Errorf("read index2: %w", ErrNotFrozen)
	}
	return v.builder.ReadIndex2(offset, buf)
}

// ReadData reads length bytes of the logical datIndex stream starting at
// offset into buf. A short read from an underlying EntryProvider propagates
// as a short return here rather than as an error (spec.md §7
// ProviderFailure). Returns ErrNotFrozen before Freeze.
func (v *VirtualSqPack) ReadData(datIndex int, offset uint64, buf []byte) (int, error) {
	if !v.frozen {
		return 0, xerrors.Errorf("read data: %w", ErrNotFrozen)
	}
	return v.builder.ReadData(datIndex, offset, buf)
}

// mapBuildErr translates a sqbuild sentinel error into the corresponding
// public sentinel, so callers never need to import the internal package to
// use errors.Is against the errors this package returns.
func mapBuildErr(op string, err error) error {
	switch {
	case xerrors.Is(err, sqbuild.ErrDoubleFreeze):
		return xerrors.Errorf("%s: %w", op, ErrDoubleFreeze)
	case xerrors.Is(err, sqbuild.ErrFormatOverflow):
		return xerrors.Errorf("%s: %w", op, ErrFormatOverflow)
	case xerrors.Is(err, sqbuild.ErrInvalidArgument):
		return xerrors.Errorf("%s: %w", op, ErrInvalidArgument)
	case xerrors.Is(err, sqbuild.ErrFrozenMutation):
		return xerrors.Errorf("%s: %w", op, ErrFrozenMutation)
	case xerrors.Is(err, sqbuild.ErrNotFrozen):
		return xerrors.Errorf("%s: %w", op, ErrNotFrozen)
	default:
		return err
	}
}
