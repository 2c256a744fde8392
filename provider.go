package vsqpack

// EntryProvider is a sized, randomly-readable byte source for one packed
// entry's payload. Concrete codecs (texture/model/binary packers) are
// external collaborators: this package only depends on the interface below,
// never on how a given provider turns source bytes into packed bytes.
type EntryProvider interface {
	// PathSpec returns the provider's current addressing key.
	PathSpec() PathSpec

	// UpdatePathSpec merges newly-discovered hashes into the provider's
	// PathSpec without clearing fields that are already present.
	UpdatePathSpec(other PathSpec)

	// StreamSize returns the total number of packed bytes this provider
	// will ever produce.
	StreamSize() int64

	// ReadAt performs a stateless, positioned read of the packed payload.
	// It may return n < len(p) only at the end of the payload or on error
	// (never "come back later"); unlike io.ReaderAt, the providers in this
	// package return a nil error for such an end-of-payload short read.
	ReadAt(p []byte, off int64) (n int, err error)
}

// pathSpecHolder is embedded by every concrete provider below to implement
// the PathSpec/UpdatePathSpec half of EntryProvider.
type pathSpecHolder struct {
	spec PathSpec
}

func (h *pathSpecHolder) PathSpec() PathSpec { return h.spec }

func (h *pathSpecHolder) UpdatePathSpec(other PathSpec) { h.spec.Update(other) }

// EmptyEntryProvider is the provider for a zero-byte asset (e.g. a loose
// file ingested with file_size == 0).
type EmptyEntryProvider struct {
	pathSpecHolder
}

// NewEmptyEntryProvider returns a provider with no payload.
func NewEmptyEntryProvider(spec PathSpec) *EmptyEntryProvider {
	return &EmptyEntryProvider{pathSpecHolder{spec}}
}

func (e *EmptyEntryProvider) StreamSize() int64 { return 0 }

func (e *EmptyEntryProvider) ReadAt(p []byte, off int64) (int, error) { return 0, nil }

// backingReaderAt is satisfied by *os.File and by the open-file cache's
// shared handles: a plain positioned reader, consistent with the
// "stateless pread-style reads on a shared file" contract in the
// concurrency model.
type backingReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// SliceEntryProvider views a fixed (offset, size) byte range of a shared
// backing file as one entry's payload. This is the provider shape used by
// both the base-SqPack ingester (raw bytes straight out of an existing
// datN) and the TTMP ingester (a slice of TTMPD.mpd) — in both cases the
// packed bytes already exist verbatim in a backing file and need no
// transformation.
type SliceEntryProvider struct {
	pathSpecHolder
	backing    backingReaderAt
	baseOffset int64
	size       int64
}

// NewSliceEntryProvider returns a provider that reads size bytes starting
// at baseOffset in backing.
func NewSliceEntryProvider(spec PathSpec, backing backingReaderAt, baseOffset, size int64) *SliceEntryProvider {
	return &SliceEntryProvider{
		pathSpecHolder: pathSpecHolder{spec},
		backing:        backing,
		baseOffset:     baseOffset,
		size:           size,
	}
}

func (s *SliceEntryProvider) StreamSize() int64 { return s.size }

func (s *SliceEntryProvider) ReadAt(p []byte, off int64) (int, error) {
	if off >= s.size {
		return 0, nil
	}
	if max := s.size - off; int64(len(p)) > max {
		p = p[:max]
	}
	return s.backing.ReadAt(p, s.baseOffset+off)
}

// onTheFlyProviderKind records which loose-file codec a LooseFileEntryProvider
// is standing in for. The codecs themselves (texture block compression,
// model sub-block layout) are out of this package's scope — see
// LooseFileEntryProvider's doc comment — so all three kinds currently share
// one raw pass-through implementation.
type onTheFlyProviderKind int

const (
	OnTheFlyBinary onTheFlyProviderKind = iota
	OnTheFlyTexture
	OnTheFlyModel
)

// LooseFileEntryProvider stands in for the game's on-the-fly texture,
// model, and binary packers. Those packers are black-box external
// collaborators (see spec §1, Out of scope) that answer stream_size()/
// read() after internally repacking a loose file into SqPack block format;
// this implementation does not repack anything and instead exposes the
// loose file's raw bytes, which is sufficient to exercise every invariant
// this package is responsible for (placement, alignment, indexing) without
// pretending to implement a codec that lives outside this package's remit.
type LooseFileEntryProvider struct {
	pathSpecHolder
	kind    onTheFlyProviderKind
	backing backingReaderAt
	size    int64
}

// NewLooseFileEntryProvider wraps an already-opened backing file of the
// given size as an entry payload for the given codec kind.
func NewLooseFileEntryProvider(spec PathSpec, kind onTheFlyProviderKind, backing backingReaderAt, size int64) *LooseFileEntryProvider {
	return &LooseFileEntryProvider{
		pathSpecHolder: pathSpecHolder{spec},
		kind:           kind,
		backing:        backing,
		size:           size,
	}
}

func (l *LooseFileEntryProvider) Kind() onTheFlyProviderKind { return l.kind }

func (l *LooseFileEntryProvider) StreamSize() int64 { return l.size }

func (l *LooseFileEntryProvider) ReadAt(p []byte, off int64) (int, error) {
	if off >= l.size {
		return 0, nil
	}
	if max := l.size - off; int64(len(p)) > max {
		p = p[:max]
	}
	return l.backing.ReadAt(p, off)
}
