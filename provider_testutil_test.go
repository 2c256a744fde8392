package vsqpack

// fixedProvider is a minimal in-memory EntryProvider used throughout the
// test suite: its payload is just a byte slice held in memory, with no
// backing file.
type fixedProvider struct {
	pathSpecHolder
	data []byte
}

func newFixedProvider(spec PathSpec, data []byte) *fixedProvider {
	return &fixedProvider{pathSpecHolder{spec}, data}
}

func (f *fixedProvider) StreamSize() int64 { return int64(len(f.data)) }

func (f *fixedProvider) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[off:])
	return n, nil
}
